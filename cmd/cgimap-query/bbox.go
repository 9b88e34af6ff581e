package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jronak/cgimap-go/internal/formatter"
	"github.com/jronak/cgimap-go/internal/osmtypes"
	"github.com/jronak/cgimap-go/internal/tileindex"
)

var (
	minLat, minLon, maxLat, maxLon float64
	bboxLimit                      int
)

var bboxCmd = &cobra.Command{
	Use:   "bbox",
	Short: "Select nodes within a bounding box and print them",
	RunE: func(cmd *cobra.Command, args []string) error {
		box := osmtypes.BBox{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}
		tiles := tileindex.TilesForBBox(box)

		ctx := cmd.Context()
		engine, err := factory.MakeSelection(ctx)
		if err != nil {
			return err
		}
		defer engine.Close(ctx)

		n, err := engine.SelectNodesFromBBox(ctx, tiles, box, bboxLimit)
		if err != nil {
			return err
		}
		if n > bboxLimit {
			fmt.Fprintf(cmd.OutOrStdout(), "result set exceeds limit=%d\n", bboxLimit)
		}

		out := formatter.New()
		if err := engine.WriteNodes(ctx, out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d node(s)\n", len(out.Nodes))
		return nil
	},
}

func init() {
	bboxCmd.Flags().Float64Var(&minLat, "min-lat", 0, "minimum latitude")
	bboxCmd.Flags().Float64Var(&minLon, "min-lon", 0, "minimum longitude")
	bboxCmd.Flags().Float64Var(&maxLat, "max-lat", 0, "maximum latitude")
	bboxCmd.Flags().Float64Var(&maxLon, "max-lon", 0, "maximum longitude")
	bboxCmd.Flags().IntVar(&bboxLimit, "limit", 500, "row limit before overflow")
}
