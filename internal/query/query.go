// Package query builds the parameterized SQL statements sent to PostGIS.
//
// Identifiers come from validated configuration and are quoted with
// pgx.Identifier. Every value that varies per request travels as a bound
// argument, so statement text only depends on the table schema.
package query

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/h3tiles/server/internal/config"
	"github.com/h3tiles/server/internal/tile"
)

// Kind labels a statement for logging and metrics.
type Kind string

const (
	KindTile  Kind = "tile"
	KindCount Kind = "count"
)

// Statement is SQL text plus its positional arguments.
type Statement struct {
	Kind Kind
	SQL  string
	Args []any
}

// CountOptions names the band column filtered on the source table and the
// fixed table joined by H3 cell.
type CountOptions struct {
	BandColumn      string
	JoinTable       string
	JoinIndexColumn string
}

// Ident quotes a plain or schema-qualified identifier.
func Ident(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

const tileTemplate = `
WITH
bounds AS (
    SELECT ST_Segmentize(ST_MakeEnvelope($1::float8, $2::float8, $3::float8, $4::float8, %[1]d), $5::float8) AS geom,
           ST_Segmentize(ST_MakeEnvelope($1::float8, $2::float8, $3::float8, $4::float8, %[1]d), $5::float8)::box2d AS b2d
),
mvtgeom AS (
    SELECT ST_AsMVTGeom(ST_Transform(h3_cell_to_boundary_geometry(t.%[2]s), %[1]d), bounds.b2d) AS geom%[3]s
    FROM %[4]s t, bounds
    WHERE t.%[2]s = ANY (get_h3_indexes(ST_Transform(bounds.geom, $6::integer), $7::integer))
)
SELECT ST_AsMVT(mvtgeom.*) FROM mvtgeom`

// Tile returns the statement producing one MVT payload for env. The result
// is NULL or empty when no cells intersect the tile.
func Tile(env tile.Envelope, schema config.TableSchema) Statement {
	var attrs strings.Builder
	for _, col := range schema.AttrColumns {
		attrs.WriteString(",\n           t.")
		attrs.WriteString(Ident(col))
	}

	sql := fmt.Sprintf(tileTemplate,
		tile.SRID,
		Ident(schema.IndexColumn),
		attrs.String(),
		Ident(schema.Table),
	)

	return Statement{
		Kind: KindTile,
		SQL:  sql,
		Args: []any{
			env.XMin, env.YMin, env.XMax, env.YMax,
			env.SegmentSize,
			schema.SRID,
			schema.IndexResolution,
		},
	}
}

const countTemplate = `
WITH t1 AS (
    SELECT src.%[1]s AS cell
    FROM %[2]s src
    WHERE src.%[1]s = ANY (get_h3_indexes(ST_GeomFromGeoJSON($1::text), $2::integer))
      AND src.%[3]s > $3::bigint
      AND src.%[3]s < $4::bigint
)
SELECT count(*)
FROM %[4]s bl
JOIN t1 ON bl.%[5]s = t1.cell`

// Count returns the statement counting join-table rows that share an H3
// cell with source rows covering geoJSON whose band value lies strictly
// between greaterThan and lessThan.
func Count(geoJSON string, schema config.TableSchema, opts CountOptions, greaterThan, lessThan int64) Statement {
	sql := fmt.Sprintf(countTemplate,
		Ident(schema.IndexColumn),
		Ident(schema.Table),
		Ident(opts.BandColumn),
		Ident(opts.JoinTable),
		Ident(opts.JoinIndexColumn),
	)

	return Statement{
		Kind: KindCount,
		SQL:  sql,
		Args: []any{geoJSON, schema.IndexResolution, greaterThan, lessThan},
	}
}
