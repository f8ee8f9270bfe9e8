// Package doctree is a small query layer over markup documents. Extractors
// depend on Node so they can be driven by parsed HTML or by synthetic trees.
package doctree

import "strings"

// Node is an element in a document tree.
type Node interface {
	// Tag is the lower-case element name.
	Tag() string
	HasClass(name string) bool
	// Text is the concatenated text content of the node and its descendants.
	Text() string
	// Children are the element children, in document order.
	Children() []Node
	// NextSibling is the next element sibling, or nil.
	NextSibling() Node
	// FindAll returns descendants with the given tag in document order.
	FindAll(tag string) []Node
	// Find returns the first descendant with tag and, if class is not
	// empty, that class. It returns nil when nothing matches.
	Find(tag, class string) Node
}

// CleanText trims n's text and collapses internal whitespace runs.
func CleanText(n Node) string {
	if n == nil {
		return ""
	}
	return strings.Join(strings.Fields(n.Text()), " ")
}

func hasClass(classAttr, name string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == name {
			return true
		}
	}
	return false
}
