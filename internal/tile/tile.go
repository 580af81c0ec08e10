// Package tile maps tile pyramid addresses to spherical-mercator envelopes.
package tile

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// WorldMercMax is the half-width of the EPSG:3857 world extent in meters.
const WorldMercMax = 20037508.3427892

// MaxZoom is the deepest zoom level accepted.
const MaxZoom = 30

// densifyFactor is the number of segments each envelope edge is split into
// before reprojection.
const densifyFactor = 4

// SRID of the tiling coordinate system.
const SRID = 3857

// ValidationError reports a request that must be rejected before any cache
// or database access.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Address is a (zoom, x, y) tile in the XYZ pyramid; row 0 is the north edge.
type Address struct {
	Z int
	X int
	Y int
}

// NewAddress validates z/x/y and returns the address.
func NewAddress(z, x, y int) (Address, error) {
	if z < 0 || z > MaxZoom {
		return Address{}, &ValidationError{Reason: fmt.Sprintf("invalid zoom level: %d", z)}
	}
	tilesPerAxis := 1 << z
	if x < 0 || y < 0 || x >= tilesPerAxis || y >= tilesPerAxis {
		return Address{}, &ValidationError{
			Reason: fmt.Sprintf("invalid tile coordinates: %d/%d/%d (tiles_per_axis=%d)", z, x, y, tilesPerAxis),
		}
	}
	return Address{Z: z, X: x, Y: y}, nil
}

func (a Address) String() string {
	return fmt.Sprintf("%d/%d/%d", a.Z, a.X, a.Y)
}

// MapTile converts the address to an orb maptile.
func (a Address) MapTile() maptile.Tile {
	return maptile.New(uint32(a.X), uint32(a.Y), maptile.Zoom(a.Z))
}

// Envelope is an axis-aligned box in EPSG:3857 meters.
type Envelope struct {
	XMin, YMin float64
	XMax, YMax float64
	// SegmentSize is the edge length used to segmentize the box.
	SegmentSize float64
}

// Envelope computes the mercator bounds of the tile.
func (a Address) Envelope() Envelope {
	worldSize := 2 * WorldMercMax
	tileSize := worldSize / float64(uint64(1)<<uint(a.Z))

	env := Envelope{
		XMin: -WorldMercMax + tileSize*float64(a.X),
		XMax: -WorldMercMax + tileSize*float64(a.X+1),
		YMin: WorldMercMax - tileSize*float64(a.Y+1),
		YMax: WorldMercMax - tileSize*float64(a.Y),
	}
	env.SegmentSize = (env.XMax - env.XMin) / densifyFactor
	return env
}

// Bound returns the envelope as an orb.Bound in mercator units.
func (e Envelope) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{e.XMin, e.YMin},
		Max: orb.Point{e.XMax, e.YMax},
	}
}

// Format is a vector tile response encoding.
type Format string

const (
	FormatPBF Format = "pbf"
	FormatMVT Format = "mvt"
)

const (
	// MediaTypeMVT is the registered vector tile media type.
	MediaTypeMVT = "application/vnd.mapbox-vector-tile"
	// MediaTypeProtobuf is sent for .pbf paths, which some clients expect.
	MediaTypeProtobuf = "application/x-protobuf"
)

// ParseFormat accepts pbf and mvt.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatPBF, FormatMVT:
		return Format(s), nil
	}
	return "", &ValidationError{Reason: "Invalid format. Use 'pbf' or 'mvt'."}
}

