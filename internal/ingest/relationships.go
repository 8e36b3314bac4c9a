package ingest

import (
	"context"
	"fmt"

	"github.com/systemshift/ddrgraph/internal/document"
	"github.com/systemshift/ddrgraph/internal/server/graph"
)

// RelationshipTransformer builds the relationship graph in two passes:
// table occurrences first, then the relationships joining them.
type RelationshipTransformer struct{}

func (RelationshipTransformer) Kind() string { return SectionRelationships }

func (t RelationshipTransformer) Transform(ctx context.Context, tree document.Tree, store graph.Store, resolver *graph.Resolver, diag *Diagnostics) error {
	if err := t.tables(ctx, tree, store, resolver, diag); err != nil {
		return err
	}
	return t.relationships(ctx, tree, store, resolver, diag)
}

// tables creates a RelTable per TableList entry whose base table exists,
// with a Parent edge from the base table.
func (RelationshipTransformer) tables(ctx context.Context, tree document.Tree, store graph.Store, resolver *graph.Resolver, diag *Diagnostics) error {
	tables, dropped := tree.Map("TableList").Children("Table")
	if dropped > 0 {
		diag.Add(KindMalformed, "%d TableList entries are not elements", dropped)
	}

	for _, table := range tables {
		name := table.Attr("name")
		baseID := table.Attr("baseTableId")
		if baseID == "" {
			diag.Add(KindMalformed, "table occurrence %q has no baseTableId", name)
			continue
		}

		candidates, err := resolver.ByExternalID(ctx, baseID, graph.NodeBaseTable)
		if err != nil {
			return err
		}
		base := pick(diag, candidates, fmt.Sprintf("base table id %s", baseID))
		if base == nil {
			diag.Add(KindUnresolved, "base table id %s not found for table occurrence %q", baseID, name)
			continue
		}

		relTable := graph.NewNode(nameOr(name, unnamedTable), graph.NodeRelTable, details(table), table.Attr("id"))
		if _, err := graph.Link(ctx, store, base, relTable, graph.EdgeParent); err != nil {
			return err
		}
	}
	return nil
}

// relationships creates a Relationship node between the two named table
// occurrences and a UsedBy edge to every field its predicates cite.
func (RelationshipTransformer) relationships(ctx context.Context, tree document.Tree, store graph.Store, resolver *graph.Resolver, diag *Diagnostics) error {
	rels, dropped := tree.Map("RelationshipList").Children("Relationship")
	if dropped > 0 {
		diag.Add(KindMalformed, "%d RelationshipList entries are not elements", dropped)
	}

	for _, rel := range rels {
		leftName := rel.Map("LeftTable").Attr("name")
		rightName := rel.Map("RightTable").Attr("name")
		if leftName == "" || rightName == "" {
			diag.Add(KindMalformed, "relationship %s is missing a table name", rel.Attr("id"))
			continue
		}

		left, err := resolveRelTable(ctx, resolver, diag, leftName)
		if err != nil {
			return err
		}
		if left == nil {
			diag.Add(KindUnresolved, "left table occurrence %q not found for relationship", leftName)
			continue
		}
		right, err := resolveRelTable(ctx, resolver, diag, rightName)
		if err != nil {
			return err
		}
		if right == nil {
			diag.Add(KindUnresolved, "right table occurrence %q not found for relationship", rightName)
			continue
		}

		relNode := graph.NewNode(leftName+"->"+rightName, graph.NodeRelationship, details(rel), rel.Attr("id"))
		if _, err := graph.Link(ctx, store, left, relNode, graph.EdgeParent); err != nil {
			return err
		}
		if _, err := graph.Link(ctx, store, relNode, right, graph.EdgeParent); err != nil {
			return err
		}

		predicates, dropped := rel.Map("JoinPredicateList").Children("JoinPredicate")
		if dropped > 0 {
			diag.Add(KindMalformed, "relationship %q: %d JoinPredicate entries are not elements", relNode.Name, dropped)
		}
		for _, pred := range predicates {
			if err := linkPredicate(ctx, store, resolver, diag, relNode, pred, leftName, rightName); err != nil {
				return err
			}
		}
	}
	return nil
}

func resolveRelTable(ctx context.Context, resolver *graph.Resolver, diag *Diagnostics, name string) (*graph.Node, error) {
	candidates, err := resolver.ByTypeAndName(ctx, graph.NodeRelTable, name)
	if err != nil {
		return nil, err
	}
	return pick(diag, candidates, fmt.Sprintf("table occurrence %q", name)), nil
}

// linkPredicate adds UsedBy edges from relNode to each side of pred that
// resolves. A side that does not resolve is reported and left out.
//
// Field ids repeat across tables, so each side is narrowed to its table:
// the Field's table attribute when present, otherwise the relationship's
// table occurrence on that side.
func linkPredicate(ctx context.Context, store graph.Store, resolver *graph.Resolver, diag *Diagnostics, relNode *graph.Node, pred document.Tree, leftTable, rightTable string) error {
	sides := []struct {
		label string
		key   string
		table string
	}{
		{"left", "LeftField", leftTable},
		{"right", "RightField", rightTable},
	}

	ids := make([]string, len(sides))
	for i, side := range sides {
		ids[i] = pred.Path(side.key, "Field").Attr("id")
		if ids[i] == "" {
			diag.Add(KindMalformed, "relationship %q: join predicate has no %s field id", relNode.Name, side.label)
			return nil
		}
	}

	for i, side := range sides {
		candidates, err := resolver.ByExternalID(ctx, ids[i], graph.NodeField)
		if err != nil {
			return err
		}
		table := pred.Path(side.key, "Field").Attr("table")
		if table == "" {
			table = side.table
		}
		candidates, err = narrowToTable(ctx, resolver, table, candidates)
		if err != nil {
			return err
		}
		field := pick(diag, candidates, fmt.Sprintf("field id %s", ids[i]))
		if field == nil {
			diag.Add(KindUnresolved, "relationship %q: %s field id %s not found", relNode.Name, side.label, ids[i])
			continue
		}
		if _, err := graph.Link(ctx, store, relNode, field, graph.EdgeUsedBy); err != nil {
			return err
		}
	}
	return nil
}
