package cli

import (
	"github.com/spf13/cobra"

	"github.com/systemshift/ddrgraph/internal/server/graph"
)

func newStatsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print node counts per type and the edge count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := o.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			counts, err := store.CountNodesByType(ctx)
			if err != nil {
				return err
			}
			edges, err := store.CountEdges(ctx)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			printTitle(w, "Nodes")
			total := 0
			for _, t := range graph.NodeTypes {
				if n := counts[t]; n > 0 {
					printCount(w, string(t), n)
					total += n
				}
			}
			printCount(w, "Total", total)
			printTitle(w, "Edges")
			printCount(w, "Total", edges)
			return nil
		},
	}
}
