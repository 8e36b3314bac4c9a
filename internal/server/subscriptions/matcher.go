package subscriptions

import (
	"fmt"
	"slices"
	"strings"

	"github.com/systemshift/ddrgraph/internal/server/graph"
)

var eventTypes = []string{
	graph.EventNodeCreated,
	graph.EventNodeUpdated,
	graph.EventNodeDeleted,
	graph.EventEdgeCreated,
	graph.EventEdgeUpdated,
	graph.EventEdgeDeleted,
}

// Match reports whether event satisfies every non-empty criterion of p.
// Node type criteria only apply to node events and edge type criteria
// only to edge events.
func (p Pattern) Match(event graph.Event) bool {
	if len(p.EventTypes) > 0 && !slices.Contains(p.EventTypes, event.Type) {
		return false
	}

	isNode := strings.HasPrefix(event.Type, "node.")
	if len(p.NodeTypes) > 0 && isNode && !slices.Contains(p.NodeTypes, event.NodeType) {
		return false
	}
	if len(p.EdgeTypes) > 0 && !isNode && !slices.Contains(p.EdgeTypes, event.EdgeType) {
		return false
	}

	return true
}

// Validate checks that every type named by p exists.
func (p Pattern) Validate() error {
	for _, et := range p.EventTypes {
		if !slices.Contains(eventTypes, et) {
			return fmt.Errorf("unknown event type %q", et)
		}
	}
	for _, nt := range p.NodeTypes {
		if _, err := graph.ParseNodeType(string(nt)); err != nil {
			return err
		}
	}
	for _, et := range p.EdgeTypes {
		if _, err := graph.ParseEdgeType(string(et)); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the subscription is deliverable.
func (s Subscription) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("subscription name is required")
	}
	if s.Webhook == "" {
		return fmt.Errorf("subscription %q: webhook URL is required", s.Name)
	}
	if err := s.Pattern.Validate(); err != nil {
		return fmt.Errorf("subscription %q: %w", s.Name, err)
	}
	return nil
}
