package flatten

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"slices"
)

// ParseJSON reads a JSON document into a Node tree. Scalar members become
// attributes, object members become child nodes and array members become
// repeated child nodes that share the member name as tag.
func ParseJSON(r io.Reader) (*Node, error) {
	v, err := DecodeJSON(r)
	if err != nil {
		return nil, err
	}
	root := &Node{}
	switch t := v.(type) {
	case map[string]any:
		fillObject(root, t)
	case []any:
		appendArray(root, "", t)
	default:
		return nil, &MalformedTreeError{Format: "json", Err: errors.New("top level value must be an object or array")}
	}
	return root, nil
}

// DecodeJSON decodes a single JSON value keeping numbers as json.Number so
// identifiers such as "007" or 1.50 keep their textual form.
func DecodeJSON(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &MalformedTreeError{Format: "json", Offset: dec.InputOffset(), Err: err}
	}
	if dec.More() {
		return nil, &MalformedTreeError{Format: "json", Offset: dec.InputOffset(), Err: errors.New("trailing data after top level value")}
	}
	return v, nil
}

// DecodeJSONBytes is DecodeJSON over a byte slice.
func DecodeJSONBytes(b []byte) (any, error) {
	return DecodeJSON(bytes.NewReader(b))
}

func fillObject(n *Node, obj map[string]any) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		switch t := obj[k].(type) {
		case map[string]any:
			child := &Node{Tag: k}
			fillObject(child, t)
			n.Children = append(n.Children, child)
		case []any:
			appendArray(n, k, t)
		default:
			if n.Attrs == nil {
				n.Attrs = make(map[string]any)
			}
			n.Attrs[k] = t
		}
	}
}

func appendArray(n *Node, tag string, items []any) {
	for _, it := range items {
		child := &Node{Tag: tag, Repeated: true}
		if obj, ok := it.(map[string]any); ok {
			fillObject(child, obj)
		} else {
			child.scalar = true
			child.value = it
		}
		n.Children = append(n.Children, child)
	}
}
