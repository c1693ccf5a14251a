// Package flatten turns XML or nested JSON trees into flat per-record mappings.
//
// Both formats are parsed into the same neutral Node tree first, so the
// extraction rules below apply identically to either input.
package flatten

// Node is one element of a parsed tree.
type Node struct {
	Tag      string
	Attrs    map[string]any
	Text     string
	Children []*Node

	// Repeated marks nodes that came from a JSON array; they always form a
	// repeated group even when the array holds a single element.
	Repeated bool

	// scalar marks a JSON array element that is not an object; value holds it.
	scalar bool
	value  any
}

// Mapping is the flat output for one extracted node.
type Mapping = map[string]any

// Find returns nodes with the given tag in document order. Matches are not
// searched for nested matches.
func (n *Node) Find(tag string) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		if cur.Tag == tag {
			out = append(out, cur)
			return
		}
		for _, c := range cur.Children {
			walk(c)
		}
	}
	walk(n)
	return out
}

// childGroup is every direct child sharing one tag, in document order.
type childGroup struct {
	tag   string
	nodes []*Node
}

func groupChildren(children []*Node) []childGroup {
	idx := make(map[string]int, len(children))
	var groups []childGroup
	for _, c := range children {
		i, ok := idx[c.Tag]
		if !ok {
			i = len(groups)
			idx[c.Tag] = i
			groups = append(groups, childGroup{tag: c.Tag})
		}
		groups[i].nodes = append(groups[i].nodes, c)
	}
	return groups
}
