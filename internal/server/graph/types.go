package graph

import (
	"encoding/json"
	"fmt"
)

// NodeType classifies a node. The set is closed; ParseNodeType rejects
// anything outside it.
type NodeType string

// Node types
const (
	NodeUnknown      NodeType = "Unknown"
	NodeAccount      NodeType = "Account"
	NodeBaseTable    NodeType = "BaseTable"
	NodeField        NodeType = "Field"
	NodeRelTable     NodeType = "RelTable"
	NodeRelationship NodeType = "Relationship"
	NodeLayout       NodeType = "Layout"
	NodeLayoutObject NodeType = "LayoutObject"
)

// NodeTypes lists every node type in display order.
var NodeTypes = []NodeType{
	NodeBaseTable,
	NodeField,
	NodeRelTable,
	NodeRelationship,
	NodeLayout,
	NodeLayoutObject,
	NodeAccount,
	NodeUnknown,
}

// ParseNodeType converts a stored or user supplied string into a NodeType.
func ParseNodeType(s string) (NodeType, error) {
	for _, t := range NodeTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return NodeUnknown, fmt.Errorf("%w: node type %q", ErrInvalidType, s)
}

// EdgeType classifies an edge.
type EdgeType string

// Edge types
const (
	EdgeUnknown  EdgeType = "Unknown"
	EdgeParent   EdgeType = "Parent"
	EdgeIs       EdgeType = "Is"
	EdgeContains EdgeType = "Contains"
	EdgeUsedBy   EdgeType = "UsedBy"
)

// EdgeTypes lists every edge type.
var EdgeTypes = []EdgeType{EdgeUnknown, EdgeParent, EdgeIs, EdgeContains, EdgeUsedBy}

// ParseEdgeType converts a stored string into an EdgeType.
func ParseEdgeType(s string) (EdgeType, error) {
	for _, t := range EdgeTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return EdgeUnknown, fmt.Errorf("%w: edge type %q", ErrInvalidType, s)
}

// Details is the opaque payload attached to a node. The store never looks
// inside it; it is persisted as JSON and handed back verbatim.
type Details map[string]any

func (d Details) encode() (string, error) {
	if d == nil {
		return "{}", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshaling details: %w", err)
	}
	return string(b), nil
}

func decodeDetails(s string) (Details, error) {
	d := Details{}
	if s == "" {
		return d, nil
	}
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return nil, fmt.Errorf("unmarshaling details: %w", err)
	}
	if d == nil {
		d = Details{}
	}
	return d, nil
}

// Node is a typed vertex. ID is zero until the node has been saved.
type Node struct {
	ID         int64    `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Type       NodeType `json:"type" yaml:"type"`
	Details    Details  `json:"details" yaml:"details"`
	ExternalID string   `json:"external_id,omitempty" yaml:"external_id,omitempty"`
}

// NewNode builds an unsaved node.
func NewNode(name string, t NodeType, details Details, externalID string) *Node {
	if details == nil {
		details = Details{}
	}
	return &Node{Name: name, Type: t, Details: details, ExternalID: externalID}
}

// Saved reports whether the node has a store-assigned id.
func (n *Node) Saved() bool { return n.ID != 0 }

func (n *Node) String() string {
	return fmt.Sprintf("%s %q #%d", n.Type, n.Name, n.ID)
}

// Edge is a typed, directed connection between two saved nodes.
type Edge struct {
	ID     int64    `json:"id" yaml:"id"`
	Type   EdgeType `json:"type" yaml:"type"`
	FromID int64    `json:"from_id" yaml:"from_id"`
	ToID   int64    `json:"to_id" yaml:"to_id"`
}

// Neighbor is one row of a traversal: the node on the other end of the
// edge, the edge type and the edge id.
type Neighbor struct {
	Node     *Node    `json:"node"`
	EdgeType EdgeType `json:"edge_type"`
	EdgeID   int64    `json:"edge_id"`
}

// NodeFilter is a conjunction of optional predicates. The zero value
// matches every node.
type NodeFilter struct {
	Types        []NodeType
	Name         string // exact match
	NameContains string // substring match
	ExternalID   string
}
