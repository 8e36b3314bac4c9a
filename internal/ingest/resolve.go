package ingest

import (
	"context"
	"strings"

	"github.com/systemshift/ddrgraph/internal/document"
	"github.com/systemshift/ddrgraph/internal/server/graph"
)

// Fallback names for elements without a name attribute.
const (
	unnamedTable  = "Unnamed"
	unnamedField  = "UnnamedField"
	unnamedObject = "UnnamedObject"
)

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

func details(t document.Tree) graph.Details {
	return graph.Details(t)
}

// pick applies the first-in-store-order rule and records when it had to
// choose between several candidates.
func pick(diag *Diagnostics, candidates []*graph.Node, what string) *graph.Node {
	switch len(candidates) {
	case 0:
		return nil
	case 1:
		return candidates[0]
	}
	diag.Add(KindAmbiguous, "%s matched %d nodes, using %s", what, len(candidates), candidates[0])
	return candidates[0]
}

// splitQualified splits "table::field". A name without a qualifier is
// all field.
func splitQualified(name string) (table, field string) {
	if t, f, ok := strings.Cut(name, "::"); ok {
		return t, f
	}
	return "", name
}

// narrowToTable keeps the candidates contained by the base table behind
// the table occurrence named table. A RelTable named table leads to its
// parent BaseTable; a BaseTable with that name counts directly. When
// nothing survives, the candidates are returned unchanged.
func narrowToTable(ctx context.Context, resolver *graph.Resolver, table string, candidates []*graph.Node) ([]*graph.Node, error) {
	if table == "" || len(candidates) < 2 {
		return candidates, nil
	}

	bases := make(map[int64]bool)
	occurrences, err := resolver.ByTypeAndName(ctx, graph.NodeRelTable, table)
	if err != nil {
		return nil, err
	}
	for _, occ := range occurrences {
		parents, err := resolver.Parents(ctx, occ.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range parents {
			if p.Node.Type == graph.NodeBaseTable && p.EdgeType == graph.EdgeParent {
				bases[p.Node.ID] = true
			}
		}
	}
	direct, err := resolver.ByTypeAndName(ctx, graph.NodeBaseTable, table)
	if err != nil {
		return nil, err
	}
	for _, b := range direct {
		bases[b.ID] = true
	}
	if len(bases) == 0 {
		return candidates, nil
	}

	var narrowed []*graph.Node
	for _, c := range candidates {
		parents, err := resolver.Parents(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range parents {
			if p.EdgeType == graph.EdgeContains && bases[p.Node.ID] {
				narrowed = append(narrowed, c)
				break
			}
		}
	}
	if len(narrowed) == 0 {
		return candidates, nil
	}
	return narrowed, nil
}
