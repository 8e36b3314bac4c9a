package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/systemshift/ddrgraph/internal/render"
	"github.com/systemshift/ddrgraph/internal/server/graph"
)

// Export formats
const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatDOT  = "dot"
	formatSVG  = "svg"
)

// exportDoc is the JSON and YAML export shape.
type exportDoc struct {
	Nodes []*graph.Node `json:"nodes" yaml:"nodes"`
	Edges []*graph.Edge `json:"edges" yaml:"edges"`
}

type exportFlags struct {
	format   string
	node     int64
	output   string
	detailed bool
}

func newExportCmd(o *rootOptions) *cobra.Command {
	var f exportFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the graph as JSON, YAML, DOT or SVG",
		Long: `Write every node and edge, or with --node only that node, its direct
parents and children, and the edges connecting them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(f.format); err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := o.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			var w io.Writer = cmd.OutOrStdout()
			if f.output != "" {
				file, err := os.Create(f.output)
				if err != nil {
					return err
				}
				defer file.Close()
				w = file
			}

			if err := export(ctx, store, f, w); err != nil {
				return err
			}
			if f.output != "" {
				printFile(cmd.ErrOrStderr(), f.output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.format, "format", "f", formatJSON, "output format: json, yaml, dot or svg")
	cmd.Flags().Int64Var(&f.node, "node", 0, "export only this node's neighborhood")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&f.detailed, "detailed", false, "add external ids to DOT and SVG labels")

	return cmd
}

func validateFormat(format string) error {
	switch format {
	case formatJSON, formatYAML, formatDOT, formatSVG:
		return nil
	}
	return fmt.Errorf("unknown export format %q", format)
}

func export(ctx context.Context, store graph.Store, f exportFlags, w io.Writer) error {
	if err := validateFormat(f.format); err != nil {
		return err
	}

	var sg render.Subgraph
	var err error
	if f.node != 0 {
		sg, err = render.Neighborhood(ctx, store, f.node)
	} else {
		sg, err = render.Whole(ctx, store)
	}
	if err != nil {
		return err
	}

	switch f.format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(exportDoc{Nodes: nonNil(sg.Nodes), Edges: nonNil(sg.Edges)})
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(exportDoc{Nodes: nonNil(sg.Nodes), Edges: nonNil(sg.Edges)}); err != nil {
			return err
		}
		return enc.Close()
	}

	dot := render.ToDOT(sg, render.Options{Highlight: f.node, Detailed: f.detailed})
	if f.format == formatDOT {
		_, err := io.WriteString(w, dot)
		return err
	}
	svg, err := render.RenderSVG(ctx, dot)
	if err != nil {
		return err
	}
	_, err = w.Write(svg)
	return err
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
