package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/systemshift/ddrgraph/internal/server/graph"
)

func newNodeCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "node <id>",
		Short: "Print a node with its details, parents and children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid node id %q", args[0])
			}

			ctx := cmd.Context()
			store, err := o.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			node, err := store.GetNode(ctx, id)
			if err != nil {
				return err
			}
			parents, err := store.Parents(ctx, id)
			if err != nil {
				return err
			}
			children, err := store.Children(ctx, id)
			if err != nil {
				return err
			}

			return printNode(cmd.OutOrStdout(), node, parents, children)
		},
	}
}

func printNode(w io.Writer, n *graph.Node, parents, children []graph.Neighbor) error {
	printTitle(w, n.Name)
	printKeyValue(w, "id", strconv.FormatInt(n.ID, 10))
	printKeyValue(w, "type", string(n.Type))
	if n.ExternalID != "" {
		printKeyValue(w, "external id", n.ExternalID)
	}

	if len(n.Details) > 0 {
		out, err := yaml.Marshal(n.Details)
		if err != nil {
			return err
		}
		printTitle(w, "Details")
		for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
			printDetail(w, "%s", line)
		}
	}

	printNeighbors(w, "Parents", "from", parents)
	printNeighbors(w, "Children", "to", children)
	return nil
}

func printNeighbors(w io.Writer, title, dir string, list []graph.Neighbor) {
	printTitle(w, fmt.Sprintf("%s (%d)", title, len(list)))
	for _, nb := range list {
		printInfo(w, "%s %s %s", nb.EdgeType, dir, nb.Node)
		printDetail(w, "edge %d", nb.EdgeID)
	}
}
