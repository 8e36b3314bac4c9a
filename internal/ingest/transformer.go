// Package ingest turns a decoded design report into graph nodes and edges.
//
// Each top-level section kind has a Transformer. The Pipeline runs them in
// document order; a transformer sees the work of earlier sections only
// through the Resolver it is handed, so sections that cite other sections
// must come after them in the document.
package ingest

import (
	"context"

	"github.com/systemshift/ddrgraph/internal/document"
	"github.com/systemshift/ddrgraph/internal/server/graph"
)

// Section kinds understood by DefaultRegistry.
const (
	SectionBaseTables    = "BaseTableCatalog"
	SectionDirectory     = "BaseDirectoryCatalog"
	SectionRelationships = "RelationshipGraph"
	SectionLayouts       = "LayoutCatalog"
)

// Transformer converts one section kind. Transform returns an error only
// when the run cannot continue, which in practice means a storage
// failure; anything wrong with the document goes to diag.
type Transformer interface {
	Kind() string
	Transform(ctx context.Context, tree document.Tree, store graph.Store, resolver *graph.Resolver, diag *Diagnostics) error
}

// Registry maps section kinds to transformers.
type Registry struct {
	transformers map[string]Transformer
	kinds        []string
}

// NewRegistry returns a registry holding ts.
func NewRegistry(ts ...Transformer) *Registry {
	r := &Registry{transformers: make(map[string]Transformer)}
	for _, t := range ts {
		r.Register(t)
	}
	return r
}

// DefaultRegistry returns a registry with the four design report sections.
func DefaultRegistry() *Registry {
	return NewRegistry(
		BaseTableTransformer{},
		DirectoryTransformer{},
		RelationshipTransformer{},
		LayoutTransformer{},
	)
}

// Register adds t, replacing any transformer already registered for its
// kind.
func (r *Registry) Register(t Transformer) {
	if _, exists := r.transformers[t.Kind()]; !exists {
		r.kinds = append(r.kinds, t.Kind())
	}
	r.transformers[t.Kind()] = t
}

// Lookup returns the transformer for kind.
func (r *Registry) Lookup(kind string) (Transformer, bool) {
	t, ok := r.transformers[kind]
	return t, ok
}

// Kinds returns the registered kinds in registration order.
func (r *Registry) Kinds() []string {
	return append([]string(nil), r.kinds...)
}

// DirectoryTransformer accepts the directory catalog. The section carries
// nothing the graph models yet.
type DirectoryTransformer struct{}

func (DirectoryTransformer) Kind() string { return SectionDirectory }

func (DirectoryTransformer) Transform(context.Context, document.Tree, graph.Store, *graph.Resolver, *Diagnostics) error {
	return nil
}
