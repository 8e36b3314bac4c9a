package graph

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a node or edge id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDanglingEdge is returned when an edge would reference a missing node.
	ErrDanglingEdge = errors.New("edge endpoint does not exist")
	// ErrInvalidType is returned for node or edge types outside the closed set.
	ErrInvalidType = errors.New("invalid type")
)

// Store defines the interface for graph storage backends.
// Both SQLite and Neo4j implement this interface.
//
// Every write is durable before the call returns. Deleting a node cascades
// to every edge that touches it.
type Store interface {
	// Lifecycle
	Close() error
	Reset(ctx context.Context) error
	SetEventEmitter(emitter func(Event))
	EventEmitter() func(Event)

	// Node operations
	InsertNode(ctx context.Context, node Node) (int64, error)
	UpdateNode(ctx context.Context, node Node) (bool, error)
	GetNode(ctx context.Context, id int64) (*Node, error)
	FindNodes(ctx context.Context, filter NodeFilter) ([]*Node, error)
	DeleteNode(ctx context.Context, id int64) (bool, error)

	// Edge operations
	InsertEdge(ctx context.Context, edge Edge) (int64, error)
	UpdateEdge(ctx context.Context, edge Edge) (bool, error)
	GetEdge(ctx context.Context, id int64) (*Edge, error)
	DeleteEdge(ctx context.Context, id int64) (bool, error)
	Edges(ctx context.Context) ([]*Edge, error)

	// Traversal, ordered by the id of the node on the other end
	Children(ctx context.Context, nodeID int64) ([]Neighbor, error)
	Parents(ctx context.Context, nodeID int64) ([]Neighbor, error)

	// Stats
	CountNodesByType(ctx context.Context) (map[NodeType]int, error)
	CountEdges(ctx context.Context) (int, error)
}

// Save inserts n if it has no id yet and updates it otherwise. On insert
// the assigned id is written back to n.
func Save(ctx context.Context, s Store, n *Node) error {
	if !n.Saved() {
		id, err := s.InsertNode(ctx, *n)
		if err != nil {
			return err
		}
		n.ID = id
		return nil
	}
	ok, err := s.UpdateNode(ctx, *n)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("updating node %d: %w", n.ID, ErrNotFound)
	}
	return nil
}

// Link connects from -> to with an edge of type t, saving either endpoint
// first if it has not been persisted yet.
func Link(ctx context.Context, s Store, from, to *Node, t EdgeType) (int64, error) {
	if !from.Saved() {
		if err := Save(ctx, s, from); err != nil {
			return 0, err
		}
	}
	if !to.Saved() {
		if err := Save(ctx, s, to); err != nil {
			return 0, err
		}
	}
	return s.InsertEdge(ctx, Edge{Type: t, FromID: from.ID, ToID: to.ID})
}
