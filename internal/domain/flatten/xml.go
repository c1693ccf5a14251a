package flatten

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// ParseXML reads a whole XML document into a Node tree rooted at the
// document element. Any syntax error yields a *MalformedTreeError.
func ParseXML(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true

	var (
		root  *Node
		stack []*Node
		text  [][]byte
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &MalformedTreeError{Format: "xml", Offset: dec.InputOffset(), Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Tag: t.Name.Local}
			if len(t.Attr) > 0 {
				n.Attrs = make(map[string]any, len(t.Attr))
				for _, a := range t.Attr {
					n.Attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, &MalformedTreeError{Format: "xml", Offset: dec.InputOffset(), Err: errors.New("multiple root elements")}
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
			text = append(text, nil)
		case xml.CharData:
			if len(text) > 0 {
				text[len(text)-1] = append(text[len(text)-1], t...)
			}
		case xml.EndElement:
			n := stack[len(stack)-1]
			n.Text = strings.TrimSpace(string(text[len(text)-1]))
			stack = stack[:len(stack)-1]
			text = text[:len(text)-1]
		}
	}

	if root == nil {
		return nil, &MalformedTreeError{Format: "xml", Err: errors.New("no root element")}
	}
	if len(stack) != 0 {
		return nil, &MalformedTreeError{Format: "xml", Offset: dec.InputOffset(), Err: io.ErrUnexpectedEOF}
	}
	return root, nil
}
