package ribx

import (
	"encoding/xml"
	"errors"
	"io"
	"sort"
	"strings"
)

// document is the read-only in-memory tree a single parse call works on.
type document struct {
	root *node
}

// node is a single element in the document tree. Line and column point
// at the opening '<' of the start tag in the original input.
type node struct {
	parent   *node
	name     xml.Name
	attrs    []xml.Attr
	children []*node
	content  string
	line     int
	column   int
}

// text returns the trimmed character data of the node.
func (n *node) text() string {
	return strings.TrimSpace(n.content)
}

// attr returns the value of the attribute with the given local name.
func (n *node) attr(local string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// childrenNamed returns the direct children matching name exactly,
// namespace included.
func (n *node) childrenNamed(name xml.Name) []*node {
	var matches []*node
	for _, child := range n.children {
		if child.name == name {
			matches = append(matches, child)
		}
	}
	return matches
}

// findAll walks the subtree rooted at n in document order and collects
// every element whose local name matches and whose namespace is either
// empty or the legacy GWSW namespace.
func (n *node) findAll(local string) []*node {
	var matches []*node
	if n.name.Local == local && (n.name.Space == "" || n.name.Space == ribxNamespace) {
		matches = append(matches, n)
	}
	for _, child := range n.children {
		matches = append(matches, child.findAll(local)...)
	}
	return matches
}

// parseTree reads an XML document into a tree. A well-formedness
// failure is returned as a single FATAL log entry; element-level
// checks never happen here.
func parseTree(r io.Reader) (*document, *LogEntry) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &LogEntry{Level: levelFatal, Message: err.Error()}
	}

	lines := newlineIndexOf(data)
	decoder := xml.NewDecoder(strings.NewReader(string(data)))
	doc := &document{}
	var current *node

	for {
		offset := decoder.InputOffset()
		token, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fatalEntry(err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			line, column := lines.locate(offset)
			if current == nil && doc.root != nil {
				return nil, &LogEntry{
					Line:    line,
					Column:  column,
					Level:   levelFatal,
					Message: "junk after document element",
				}
			}
			n := &node{
				parent: current,
				name:   t.Name,
				attrs:  make([]xml.Attr, len(t.Attr)),
				line:   line,
				column: column,
			}
			// Copy attributes to avoid referencing the token's memory.
			copy(n.attrs, t.Attr)
			if doc.root == nil {
				doc.root = n
			}
			if current != nil {
				current.children = append(current.children, n)
			}
			current = n

		case xml.CharData:
			if current != nil {
				current.content += string(t)
			}

		case xml.EndElement:
			if current != nil {
				current = current.parent
			}
		}
	}

	if doc.root == nil {
		return nil, &LogEntry{Level: levelFatal, Message: "document is empty or contains no root element"}
	}
	return doc, nil
}

// fatalEntry converts a decoder error into a FATAL log entry, keeping
// the syntax error's line when one is available.
func fatalEntry(err error) *LogEntry {
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &LogEntry{
			Line:    syntaxErr.Line,
			Level:   levelFatal,
			Message: syntaxErr.Msg,
		}
	}
	return &LogEntry{Level: levelFatal, Message: err.Error()}
}

// newlineIndex holds the byte offsets of every newline so a token
// offset can be mapped back to a line and column.
type newlineIndex []int64

func newlineIndexOf(data []byte) newlineIndex {
	var index newlineIndex
	for i, b := range data {
		if b == '\n' {
			index = append(index, int64(i))
		}
	}
	return index
}

// locate maps a byte offset to a 1-based line and column.
func (x newlineIndex) locate(offset int64) (line, column int) {
	i := sort.Search(len(x), func(i int) bool { return x[i] >= offset })
	line = i + 1
	start := int64(0)
	if i > 0 {
		start = x[i-1] + 1
	}
	return line, int(offset-start) + 1
}
