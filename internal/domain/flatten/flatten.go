package flatten

import (
	"io"
	"maps"
	"strings"
)

// DefaultMaxDepth covers node, child, grandchild and great-grandchild.
const DefaultMaxDepth = 4

// shape is the per-tag decision taken for a group of sibling children.
type shape int

const (
	scalarLeaf shape = iota
	repeatedGroup
)

// Option configures an Extractor.
type Option func(*Extractor)

// WithRepeated forces the listed child tags to be treated as repeated
// groups, even when they occur once.
func WithRepeated(tags ...string) Option {
	return func(e *Extractor) {
		for _, t := range tags {
			if t != "" {
				e.repeated[t] = struct{}{}
			}
		}
	}
}

// WithMaxDepth overrides the level bound. Values below 1 are ignored.
func WithMaxDepth(depth int) Option {
	return func(e *Extractor) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// Extractor flattens selected nodes of a tree.
type Extractor struct {
	maxDepth int
	repeated map[string]struct{}
}

// NewExtractor builds an Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{maxDepth: DefaultMaxDepth, repeated: make(map[string]struct{})}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns one Mapping per node tagged tag, in document order.
func Extract(root *Node, tag string, opts ...Option) []Mapping {
	return NewExtractor(opts...).Extract(root, tag)
}

// ExtractXML parses r as XML and extracts every node tagged tag.
func ExtractXML(r io.Reader, tag string, opts ...Option) ([]Mapping, error) {
	root, err := ParseXML(r)
	if err != nil {
		return nil, err
	}
	return Extract(root, tag, opts...), nil
}

// ExtractJSON parses r as JSON and extracts every node tagged tag.
func ExtractJSON(r io.Reader, tag string, opts ...Option) ([]Mapping, error) {
	root, err := ParseJSON(r)
	if err != nil {
		return nil, err
	}
	return Extract(root, tag, opts...), nil
}

// Extract returns one Mapping per node tagged tag, in document order.
func (e *Extractor) Extract(root *Node, tag string) []Mapping {
	if root == nil {
		return nil
	}
	nodes := root.Find(tag)
	out := make([]Mapping, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, e.flatten(n, 1))
	}
	return out
}

func (e *Extractor) decide(g childGroup) shape {
	if len(g.nodes) > 1 || g.nodes[0].Repeated {
		return repeatedGroup
	}
	if _, ok := e.repeated[g.tag]; ok {
		return repeatedGroup
	}
	return scalarLeaf
}

func (e *Extractor) flatten(n *Node, level int) Mapping {
	b := newBuilder(n)
	if level >= e.maxDepth {
		return b.finish()
	}
	for _, g := range groupChildren(n.Children) {
		switch e.decide(g) {
		case repeatedGroup:
			for _, c := range g.nodes {
				b.appendRepeated(g.tag, e.childValue(c, level+1))
			}
		case scalarLeaf:
			b.setLeaf(g.tag, e.childValue(g.nodes[0], level+1))
		}
	}
	return b.finish()
}

func (e *Extractor) childValue(c *Node, level int) any {
	if c.scalar {
		return c.value
	}
	if c.Text != "" {
		m := make(Mapping, len(c.Attrs)+1)
		maps.Copy(m, c.Attrs)
		m[c.Tag] = c.Text
		return m
	}
	return e.flatten(c, level)
}

// builder accumulates the mapping of exactly one node.
type builder struct {
	m Mapping
}

func newBuilder(n *Node) *builder {
	m := make(Mapping, len(n.Attrs)+len(n.Children))
	maps.Copy(m, n.Attrs)
	return &builder{m: m}
}

func (b *builder) setLeaf(tag string, v any) {
	b.m[tag] = v
}

func (b *builder) appendRepeated(tag string, v any) {
	list, _ := b.m[tag].([]any)
	b.m[tag] = append(list, v)
}

func (b *builder) finish() Mapping {
	m := b.m
	b.m = nil
	return m
}

// Collapse rewrites XML shaped mappings into the shape JSON sources use.
// Plural wrappers become lists: {"courses": {"course": [...]}} turns into
// {"courses": [...]} and a lone {"titles": {"title": {...}}} into a
// one-element list. Text-only leaves {"objective": {"objective": "x"}}
// unwrap to "x". The input is not modified.
func Collapse(m Mapping) Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = collapseValue(k, v)
	}
	return out
}

func collapseValue(key string, v any) any {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 1 {
			for inner, iv := range t {
				if s, ok := iv.(string); ok && inner == key {
					return s
				}
				if strings.EqualFold(key, inner+"s") {
					if list, ok := iv.([]any); ok {
						return collapseList(inner, list)
					}
					return []any{collapseValue(inner, iv)}
				}
			}
		}
		return Collapse(t)
	case []any:
		return collapseList(key, t)
	default:
		return v
	}
}

func collapseList(key string, list []any) []any {
	out := make([]any, len(list))
	for i, it := range list {
		if m, ok := it.(map[string]any); ok {
			out[i] = Collapse(m)
			continue
		}
		out[i] = collapseValue(key, it)
	}
	return out
}
