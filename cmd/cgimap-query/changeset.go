package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jronak/cgimap-go/internal/formatter"
	"github.com/jronak/cgimap-go/internal/osmtypes"
)

var (
	changesetIDsFlag    string
	includeDiscussions  bool
)

var changesetCmd = &cobra.Command{
	Use:   "changesets",
	Short: "Select changesets by id and print them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseChangesetIDList(changesetIDsFlag)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		engine, err := factory.MakeSelection(ctx)
		if err != nil {
			return err
		}
		defer engine.Close(ctx)

		if _, err := engine.SelectChangesets(ctx, ids); err != nil {
			return err
		}
		if includeDiscussions {
			engine.SelectChangesetDiscussions()
		}

		out := formatter.New()
		if err := engine.WriteChangesets(ctx, out, time.Now()); err != nil {
			return err
		}
		for _, cs := range out.Changesets {
			fmt.Fprintf(cmd.OutOrStdout(), "changeset %d: %d change(s), %d comment(s)\n",
				cs.Info.ID, cs.Info.NumChanges, cs.Info.CommentsCount)
		}
		return nil
	},
}

func init() {
	changesetCmd.Flags().StringVar(&changesetIDsFlag, "ids", "", "comma-separated changeset ids")
	changesetCmd.Flags().BoolVar(&includeDiscussions, "discussions", false, "include full comment list")
}

func parseChangesetIDList(s string) ([]osmtypes.ChangesetID, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]osmtypes.ChangesetID, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", p, err)
		}
		ids[i] = osmtypes.ChangesetID(n)
	}
	return ids, nil
}
