package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/h3tiles/server/internal/config"
	"github.com/h3tiles/server/internal/query"
	"github.com/h3tiles/server/internal/tile"
)

// sqlCmd groups the statement inspection commands
var sqlCmd = &cobra.Command{
	Use:   "sql",
	Short: "Print generated SQL statements",
}

// sqlTileCmd represents the sql tile command
var sqlTileCmd = &cobra.Command{
	Use:   "tile [table] [z] [x] [y]",
	Short: "Print the statement that renders one tile",
	Long: `Print the statement and bound arguments used to render a tile, without
connecting to the database.

Examples:
  h3tiles sql tile elev 3 2 3
  h3tiles --config config/server.yaml sql tile five_year 10 512 384`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		schema, ok := cfg.Schema(args[0])
		if !ok {
			return fmt.Errorf("table not found: %s", args[0])
		}

		var zxy [3]int
		for i, raw := range args[1:] {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("invalid tile coordinate %q: %w", raw, err)
			}
			zxy[i] = v
		}

		addr, err := tile.NewAddress(zxy[0], zxy[1], zxy[2])
		if err != nil {
			return err
		}

		stmt := query.Tile(addr.Envelope(), schema)
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, stmt.SQL)
		for i, arg := range stmt.Args {
			fmt.Fprintf(out, "-- $%d = %v\n", i+1, arg)
		}
		return nil
	},
}

func init() {
	sqlCmd.AddCommand(sqlTileCmd)
}
