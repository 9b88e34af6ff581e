package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jronak/cgimap-go/internal/formatter"
	"github.com/jronak/cgimap-go/internal/osmtypes"
)

var nodeIDsFlag string

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "Select nodes by id and print them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDList(nodeIDsFlag)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		engine, err := factory.MakeSelection(ctx)
		if err != nil {
			return err
		}
		defer engine.Close(ctx)

		n, err := engine.SelectNodes(ctx, ids)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "selected %d new node(s)\n", n)

		out := formatter.New()
		if err := engine.WriteNodes(ctx, out); err != nil {
			return err
		}
		for _, node := range out.Nodes {
			fmt.Fprintf(cmd.OutOrStdout(), "node %d v%d (%f, %f) %d tag(s)\n",
				node.Elem.ID, node.Elem.Version, node.Lat, node.Lon, len(node.Tags))
		}
		return nil
	},
}

func init() {
	nodesCmd.Flags().StringVar(&nodeIDsFlag, "ids", "", "comma-separated node ids")
}

func parseIDList(s string) ([]osmtypes.NWRID, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]osmtypes.NWRID, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", p, err)
		}
		ids[i] = osmtypes.NWRID(n)
	}
	return ids, nil
}
