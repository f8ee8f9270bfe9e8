package doctree

import "strings"

// Element is an in-memory Node used to build documents by hand.
type Element struct {
	Name    string
	Class   string
	Content string
	Kids    []*Element

	parent *Element
}

// E builds an element. Each kid is either a *Element or a string, which is
// appended to the element's text content.
func E(tag, class string, kids ...any) *Element {
	el := &Element{Name: strings.ToLower(tag), Class: class}
	for _, k := range kids {
		switch v := k.(type) {
		case *Element:
			el.Append(v)
		case string:
			el.Content += v
		}
	}
	return el
}

// Append adds child as the last child of el.
func (el *Element) Append(child *Element) *Element {
	child.parent = el
	el.Kids = append(el.Kids, child)
	return el
}

func (el *Element) Tag() string { return el.Name }

func (el *Element) HasClass(name string) bool { return hasClass(el.Class, name) }

func (el *Element) Text() string {
	var sb strings.Builder
	el.writeText(&sb)
	return sb.String()
}

func (el *Element) writeText(sb *strings.Builder) {
	sb.WriteString(el.Content)
	for _, k := range el.Kids {
		k.writeText(sb)
	}
}

func (el *Element) Children() []Node {
	out := make([]Node, 0, len(el.Kids))
	for _, k := range el.Kids {
		out = append(out, k)
	}
	return out
}

func (el *Element) NextSibling() Node {
	if el.parent == nil {
		return nil
	}
	sibs := el.parent.Kids
	for i, k := range sibs {
		if k == el && i+1 < len(sibs) {
			return sibs[i+1]
		}
	}
	return nil
}

func (el *Element) FindAll(tag string) []Node {
	var out []Node
	el.walk(func(e *Element) bool {
		if e.Name == tag {
			out = append(out, e)
		}
		return true
	})
	return out
}

func (el *Element) Find(tag, class string) Node {
	var found *Element
	el.walk(func(e *Element) bool {
		if e.Name == tag && (class == "" || e.HasClass(class)) {
			found = e
			return false
		}
		return true
	})
	if found == nil {
		return nil
	}
	return found
}

// walk visits descendants depth first until fn returns false.
func (el *Element) walk(fn func(*Element) bool) bool {
	for _, k := range el.Kids {
		if !fn(k) || !k.walk(fn) {
			return false
		}
	}
	return true
}
