package ingest

import (
	"context"
	"fmt"

	"github.com/systemshift/ddrgraph/internal/document"
	"github.com/systemshift/ddrgraph/internal/server/graph"
)

// LayoutTransformer attaches each layout to the table it shows and each
// layout object to the layout, plus a UsedBy edge to the field an object
// displays.
type LayoutTransformer struct{}

func (LayoutTransformer) Kind() string { return SectionLayouts }

func (t LayoutTransformer) Transform(ctx context.Context, tree document.Tree, store graph.Store, resolver *graph.Resolver, diag *Diagnostics) error {
	layouts, dropped := tree.Children("Layout")
	if dropped > 0 {
		diag.Add(KindMalformed, "%d Layout entries are not elements", dropped)
	}

	for _, layout := range layouts {
		name := nameOr(layout.Attr("name"), unnamedTable)
		tableID := layout.Map("Table").Attr("id")
		if tableID == "" {
			diag.Add(KindMalformed, "layout %q has no table id", name)
			continue
		}

		table, err := resolveLayoutTable(ctx, resolver, diag, tableID)
		if err != nil {
			return err
		}
		if table == nil {
			diag.Add(KindUnresolved, "table id %s not found for layout %q", tableID, name)
			continue
		}

		layoutNode := graph.NewNode(name, graph.NodeLayout, details(layout.Without("Object", "ObjectList")), layout.Attr("id"))
		if _, err := graph.Link(ctx, store, table, layoutNode, graph.EdgeUsedBy); err != nil {
			return err
		}

		if err := t.objects(ctx, store, resolver, diag, layoutNode, layoutObjects(layout, diag)); err != nil {
			return err
		}
	}
	return nil
}

// resolveLayoutTable looks the id up among table occurrences first, which
// is what layouts cite, and falls back to base tables.
func resolveLayoutTable(ctx context.Context, resolver *graph.Resolver, diag *Diagnostics, id string) (*graph.Node, error) {
	for _, nt := range []graph.NodeType{graph.NodeRelTable, graph.NodeBaseTable} {
		candidates, err := resolver.ByExternalID(ctx, id, nt)
		if err != nil {
			return nil, err
		}
		if n := pick(diag, candidates, fmt.Sprintf("%s id %s", nt, id)); n != nil {
			return n, nil
		}
	}
	return nil, nil
}

// layoutObjects collects the objects directly under t, which may sit in
// an ObjectList wrapper or straight under the element.
func layoutObjects(t document.Tree, diag *Diagnostics) []document.Tree {
	objects, dropped := t.Children("Object")
	listed, droppedListed := t.Map("ObjectList").Children("Object")
	if n := dropped + droppedListed; n > 0 {
		diag.Add(KindMalformed, "%d Object entries are not elements", n)
	}
	return append(objects, listed...)
}

// objects creates a LayoutObject per object with a Parent edge from
// parent, then recurses into grouped objects.
func (t LayoutTransformer) objects(ctx context.Context, store graph.Store, resolver *graph.Resolver, diag *Diagnostics, parent *graph.Node, objects []document.Tree) error {
	for _, obj := range objects {
		name := nameOr(obj.Attr("name"), nameOr(obj.Attr("type"), unnamedObject))
		objNode := graph.NewNode(name, graph.NodeLayoutObject, details(obj.Without("Object", "ObjectList")), obj.Attr("id"))
		if _, err := graph.Link(ctx, store, parent, objNode, graph.EdgeParent); err != nil {
			return err
		}

		if ref := obj.Map("FieldObj").String("Name"); ref != "" {
			if err := linkFieldReference(ctx, store, resolver, diag, objNode, ref); err != nil {
				return err
			}
		}

		if err := t.objects(ctx, store, resolver, diag, objNode, layoutObjects(obj, diag)); err != nil {
			return err
		}
	}
	return nil
}

// linkFieldReference resolves a "table::field" reference by field name and
// adds a UsedBy edge from the object to the field.
func linkFieldReference(ctx context.Context, store graph.Store, resolver *graph.Resolver, diag *Diagnostics, objNode *graph.Node, ref string) error {
	table, fieldName := splitQualified(ref)
	if fieldName == "" {
		diag.Add(KindMalformed, "layout object %q: field reference %q has no field name", objNode.Name, ref)
		return nil
	}

	candidates, err := resolver.ByTypeAndName(ctx, graph.NodeField, fieldName)
	if err != nil {
		return err
	}
	candidates, err = narrowToTable(ctx, resolver, table, candidates)
	if err != nil {
		return err
	}
	field := pick(diag, candidates, fmt.Sprintf("field reference %q", ref))
	if field == nil {
		diag.Add(KindUnresolved, "layout object %q: field %q not found", objNode.Name, ref)
		return nil
	}

	_, err = graph.Link(ctx, store, objNode, field, graph.EdgeUsedBy)
	return err
}
