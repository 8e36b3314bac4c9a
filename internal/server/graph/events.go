package graph

import (
	"time"

	"github.com/google/uuid"
)

// Event describes one committed write.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // node.created, node.updated, node.deleted, edge.created, edge.updated, edge.deleted
	Timestamp time.Time `json:"timestamp"`

	// Node event fields
	NodeID   int64    `json:"node_id,omitempty"`
	NodeType NodeType `json:"node_type,omitempty"`

	// Edge event fields
	EdgeID   int64    `json:"edge_id,omitempty"`
	EdgeType EdgeType `json:"edge_type,omitempty"`
	EdgeFrom int64    `json:"edge_from,omitempty"`
	EdgeTo   int64    `json:"edge_to,omitempty"`
}

// Event type constants
const (
	EventNodeCreated = "node.created"
	EventNodeUpdated = "node.updated"
	EventNodeDeleted = "node.deleted"
	EventEdgeCreated = "edge.created"
	EventEdgeUpdated = "edge.updated"
	EventEdgeDeleted = "edge.deleted"
)

func nodeEvent(typ string, id int64, nt NodeType) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      typ,
		Timestamp: time.Now(),
		NodeID:    id,
		NodeType:  nt,
	}
}

func edgeEvent(typ string, e Edge) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      typ,
		Timestamp: time.Now(),
		EdgeID:    e.ID,
		EdgeType:  e.Type,
		EdgeFrom:  e.FromID,
		EdgeTo:    e.ToID,
	}
}

// emitter holds the optional event callback shared by the backends.
type emitter struct {
	fn func(Event)
}

// SetEventEmitter sets the callback for emitting events
func (e *emitter) SetEventEmitter(fn func(Event)) {
	e.fn = fn
}

// EventEmitter returns the current callback, nil when none is set.
func (e *emitter) EventEmitter() func(Event) {
	return e.fn
}

func (e *emitter) emit(ev Event) {
	if e.fn != nil {
		e.fn(ev)
	}
}
