package graph

import "context"

// Resolver is a read-only view over a Store used during ingest to find
// nodes committed by earlier sections. It never writes.
type Resolver struct {
	store Store
}

// NewResolver returns a resolver reading from s.
func NewResolver(s Store) *Resolver {
	return &Resolver{store: s}
}

// ByExternalID returns every node carrying externalID, restricted to the
// given types when any are passed, in store order.
func (r *Resolver) ByExternalID(ctx context.Context, externalID string, types ...NodeType) ([]*Node, error) {
	if externalID == "" {
		return nil, nil
	}
	return r.store.FindNodes(ctx, NodeFilter{ExternalID: externalID, Types: types})
}

// First returns the first node carrying externalID, or nil when none does.
func (r *Resolver) First(ctx context.Context, externalID string, types ...NodeType) (*Node, error) {
	nodes, err := r.ByExternalID(ctx, externalID, types...)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

// ByTypeAndName returns every node of type t named name, in store order.
func (r *Resolver) ByTypeAndName(ctx context.Context, t NodeType, name string) ([]*Node, error) {
	return r.store.FindNodes(ctx, NodeFilter{Types: []NodeType{t}, Name: name})
}

// Children exposes the store's child traversal so callers can narrow
// ambiguous matches by structure.
func (r *Resolver) Children(ctx context.Context, nodeID int64) ([]Neighbor, error) {
	return r.store.Children(ctx, nodeID)
}

// Parents exposes the store's parent traversal.
func (r *Resolver) Parents(ctx context.Context, nodeID int64) ([]Neighbor, error) {
	return r.store.Parents(ctx, nodeID)
}
