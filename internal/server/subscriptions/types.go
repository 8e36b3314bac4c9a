// Package subscriptions delivers batches of store events to webhooks.
//
// A Manager observes the events a store emits during an ingest run, keeps
// the ones each subscription's Pattern matches, and posts them as one
// Notification per subscription when the run is flushed.
package subscriptions

import (
	"time"

	"github.com/systemshift/ddrgraph/internal/server/graph"
)

// Pattern defines what events a subscription matches. Empty lists match
// everything.
type Pattern struct {
	EventTypes []string         `json:"event_types,omitempty" toml:"event_types"`
	NodeTypes  []graph.NodeType `json:"node_types,omitempty" toml:"node_types"`
	EdgeTypes  []graph.EdgeType `json:"edge_types,omitempty" toml:"edge_types"`
}

// Subscription is a standing pattern with a delivery target.
type Subscription struct {
	Name    string  `json:"name" toml:"name"`
	Pattern Pattern `json:"pattern" toml:"pattern"`
	Webhook string  `json:"webhook" toml:"webhook"`
}

// Notification is the payload posted to a webhook.
type Notification struct {
	ID           string        `json:"id"`
	Subscription string        `json:"subscription"`
	Source       string        `json:"source,omitempty"`
	Matched      int           `json:"matched"`
	Truncated    bool          `json:"truncated,omitempty"`
	Events       []graph.Event `json:"events"`
	SentAt       time.Time     `json:"sent_at"`
}
