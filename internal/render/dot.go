// Package render draws graph nodes and edges as Graphviz diagrams.
package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/systemshift/ddrgraph/internal/server/graph"
)

// Options configures DOT output.
type Options struct {
	// Highlight is drawn with a heavier outline. Zero highlights nothing.
	Highlight int64
	// Detailed adds the external id to each label.
	Detailed bool
}

// Subgraph is a set of nodes and the edges among them.
type Subgraph struct {
	Nodes []*graph.Node
	Edges []*graph.Edge
}

var shapes = map[graph.NodeType]string{
	graph.NodeBaseTable:    "box3d",
	graph.NodeField:        "ellipse",
	graph.NodeRelTable:     "box",
	graph.NodeRelationship: "diamond",
	graph.NodeLayout:       "tab",
	graph.NodeLayoutObject: "note",
	graph.NodeAccount:      "house",
}

var edgeStyles = map[graph.EdgeType]string{
	graph.EdgeContains: "solid",
	graph.EdgeParent:   "bold",
	graph.EdgeUsedBy:   "dashed",
}

func dotID(id int64) string { return fmt.Sprintf("n%d", id) }

// ToDOT converts sg to Graphviz DOT.
func ToDOT(sg Subgraph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [style=\"rounded,filled\", fillcolor=white, fontsize=12];\n")
	buf.WriteString("  edge [fontsize=10];\n")
	buf.WriteString("\n")

	for _, n := range sg.Nodes {
		fmt.Fprintf(&buf, "  %s [%s];\n", dotID(n.ID), strings.Join(nodeAttrs(n, opts), ", "))
	}

	buf.WriteString("\n")
	for _, e := range sg.Edges {
		style, ok := edgeStyles[e.Type]
		if !ok {
			style = "dotted"
		}
		fmt.Fprintf(&buf, "  %s -> %s [label=%q, style=%s];\n", dotID(e.FromID), dotID(e.ToID), string(e.Type), style)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(n *graph.Node, opts Options) []string {
	label := n.Name + "\n" + string(n.Type)
	if opts.Detailed && n.ExternalID != "" {
		label += "\nid " + n.ExternalID
	}
	shape, ok := shapes[n.Type]
	if !ok {
		shape = "plaintext"
	}

	attrs := []string{fmt.Sprintf("label=%q", label), "shape=" + shape}
	if n.ID == opts.Highlight {
		attrs = append(attrs, "penwidth=3", "fillcolor=lightyellow")
	}
	return attrs
}

// Whole returns every node and edge in the store.
func Whole(ctx context.Context, store graph.Store) (Subgraph, error) {
	nodes, err := store.FindNodes(ctx, graph.NodeFilter{})
	if err != nil {
		return Subgraph{}, err
	}
	edges, err := store.Edges(ctx)
	if err != nil {
		return Subgraph{}, err
	}
	return Subgraph{Nodes: nodes, Edges: edges}, nil
}

// Neighborhood returns the node id together with its direct parents and
// children and the edges connecting them to it.
func Neighborhood(ctx context.Context, store graph.Store, id int64) (Subgraph, error) {
	center, err := store.GetNode(ctx, id)
	if err != nil {
		return Subgraph{}, err
	}
	parents, err := store.Parents(ctx, id)
	if err != nil {
		return Subgraph{}, err
	}
	children, err := store.Children(ctx, id)
	if err != nil {
		return Subgraph{}, err
	}

	sg := Subgraph{Nodes: []*graph.Node{center}}
	seen := map[int64]bool{id: true}
	add := func(n *graph.Node) {
		if !seen[n.ID] {
			seen[n.ID] = true
			sg.Nodes = append(sg.Nodes, n)
		}
	}
	for _, p := range parents {
		add(p.Node)
		sg.Edges = append(sg.Edges, &graph.Edge{ID: p.EdgeID, Type: p.EdgeType, FromID: p.Node.ID, ToID: id})
	}
	for _, c := range children {
		add(c.Node)
		// A self loop already came through the parents.
		if c.Node.ID == id {
			continue
		}
		sg.Edges = append(sg.Edges, &graph.Edge{ID: c.EdgeID, Type: c.EdgeType, FromID: id, ToID: c.Node.ID})
	}
	return sg, nil
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
