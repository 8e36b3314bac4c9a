package ingest

import (
	"context"

	"github.com/systemshift/ddrgraph/internal/document"
	"github.com/systemshift/ddrgraph/internal/server/graph"
)

// BaseTableTransformer creates a BaseTable node per table and a Field node
// per field, joined by Contains edges.
type BaseTableTransformer struct{}

func (BaseTableTransformer) Kind() string { return SectionBaseTables }

func (BaseTableTransformer) Transform(ctx context.Context, tree document.Tree, store graph.Store, _ *graph.Resolver, diag *Diagnostics) error {
	tables, dropped := tree.Children("BaseTable")
	if dropped > 0 {
		diag.Add(KindMalformed, "%d BaseTable entries are not elements", dropped)
	}

	for _, table := range tables {
		// Fields become their own nodes, so the catalog is not kept twice.
		tableNode := graph.NewNode(
			nameOr(table.Attr("name"), unnamedTable),
			graph.NodeBaseTable,
			details(table.Without("FieldCatalog")),
			table.Attr("id"),
		)
		if err := graph.Save(ctx, store, tableNode); err != nil {
			return err
		}

		fields, dropped := table.Map("FieldCatalog").Children("Field")
		if dropped > 0 {
			diag.Add(KindMalformed, "table %q: %d Field entries are not elements", tableNode.Name, dropped)
		}
		if len(fields) == 0 {
			diag.Add(KindEmpty, "table %q has no fields", tableNode.Name)
			continue
		}

		for _, field := range fields {
			fieldNode := graph.NewNode(
				nameOr(field.Attr("name"), unnamedField),
				graph.NodeField,
				details(field),
				field.Attr("id"),
			)
			if _, err := graph.Link(ctx, store, tableNode, fieldNode, graph.EdgeContains); err != nil {
				return err
			}
		}
	}
	return nil
}
