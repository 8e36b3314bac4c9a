// Package document holds the generic tree a design report decodes into.
//
// A Tree follows the usual XML-to-map conventions: attributes are keys
// prefixed with "@", text content of an element that also carries
// attributes or children lives under "#text", an element repeated under
// the same parent becomes a []any, and an empty element is nil. Because a
// key holds a single map when the element occurs once and a list when it
// repeats, callers go through List (or Tree.Children) before iterating.
package document

// Tree is one decoded element. Values are string, Tree, []any or nil.
type Tree map[string]any

// TextKey holds the character data of an element that has attributes or
// child elements.
const TextKey = "#text"

// Section is one top-level child of the document: its element name and
// its decoded content.
type Section struct {
	Kind string
	Tree Tree
}

// Document is a decoded design report.
type Document struct {
	Root     string
	Sections []Section
}

// Kinds returns the section kinds in document order.
func (d *Document) Kinds() []string {
	kinds := make([]string, len(d.Sections))
	for i, s := range d.Sections {
		kinds[i] = s.Kind
	}
	return kinds
}

// List normalizes a value that may be absent, a single item or a
// sequence into a sequence.
func List(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		return x
	default:
		return []any{x}
	}
}

// asTree converts the map shapes a Tree may contain into a Tree.
func asTree(v any) (Tree, bool) {
	switch x := v.(type) {
	case Tree:
		return x, true
	case map[string]any:
		return Tree(x), true
	default:
		return nil, false
	}
}

// Map returns the child tree under key, or nil when it is absent or not a
// map.
func (t Tree) Map(key string) Tree {
	if t == nil {
		return nil
	}
	m, _ := asTree(t[key])
	return m
}

// String returns the text under key. A map value yields its #text.
func (t Tree) String(key string) string {
	if t == nil {
		return ""
	}
	switch x := t[key].(type) {
	case string:
		return x
	case Tree:
		s, _ := x[TextKey].(string)
		return s
	case map[string]any:
		s, _ := x[TextKey].(string)
		return s
	default:
		return ""
	}
}

// Attr returns the attribute name.
func (t Tree) Attr(name string) string {
	return t.String("@" + name)
}

// Has reports whether key is present, even with a nil value.
func (t Tree) Has(key string) bool {
	_, ok := t[key]
	return ok
}

// Children returns the map items under key. Items that are not maps (a
// bare string where an element was expected) are dropped and counted in
// dropped.
func (t Tree) Children(key string) (children []Tree, dropped int) {
	if t == nil {
		return nil, 0
	}
	for _, item := range List(t[key]) {
		if m, ok := asTree(item); ok {
			children = append(children, m)
			continue
		}
		if item != nil {
			dropped++
		}
	}
	return children, dropped
}

// Path follows keys through nested maps and returns the tree at the end,
// or nil when any step is missing.
func (t Tree) Path(keys ...string) Tree {
	cur := t
	for _, k := range keys {
		cur = cur.Map(k)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Without returns a shallow copy of t minus the given keys.
func (t Tree) Without(keys ...string) Tree {
	out := make(Tree, len(t))
	for k, v := range t {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}
