package doctree

import (
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/andybalholm/cascadia"
	"github.com/go-shiori/dom"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// htmlNode adapts an element *html.Node to Node.
type htmlNode struct {
	n *html.Node
}

// Parse parses an HTML document and returns its root element. The input
// encoding is taken from a BOM or meta tag, defaulting to windows-1252 for
// pages that are not valid UTF-8.
func Parse(r io.Reader) (Node, error) {
	utf8Reader, err := charset.NewReader(r, "text/html")
	if err != nil {
		return nil, fmt.Errorf("detect charset: %w", err)
	}
	doc, err := html.Parse(utf8Reader)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	root := dom.QuerySelector(doc, "html")
	if root == nil {
		return nil, fmt.Errorf("parse html: no root element")
	}
	return wrap(root), nil
}

// Title extracts the document title. An unusable page URL falls back to a
// placeholder since it is only used to resolve relative links.
func Title(r io.Reader, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		u = &url.URL{Scheme: "http", Host: "localhost", Path: "/"}
	}
	article, err := readability.FromReader(r, u)
	if err != nil {
		return "", fmt.Errorf("extract title: %w", err)
	}
	return article.Title, nil
}

func wrap(n *html.Node) Node {
	if n == nil {
		return nil
	}
	return htmlNode{n: n}
}

func wrapAll(ns []*html.Node) []Node {
	out := make([]Node, 0, len(ns))
	for _, n := range ns {
		out = append(out, htmlNode{n: n})
	}
	return out
}

func (h htmlNode) Tag() string { return dom.TagName(h.n) }

func (h htmlNode) HasClass(name string) bool { return hasClass(dom.ClassName(h.n), name) }

func (h htmlNode) Text() string { return dom.TextContent(h.n) }

func (h htmlNode) Children() []Node { return wrapAll(dom.Children(h.n)) }

func (h htmlNode) NextSibling() Node { return wrap(dom.NextElementSibling(h.n)) }

func (h htmlNode) FindAll(tag string) []Node {
	sel := selector(tag, "")
	if sel == nil {
		return nil
	}
	return wrapAll(cascadia.QueryAll(h.n, sel))
}

func (h htmlNode) Find(tag, class string) Node {
	sel := selector(tag, class)
	if sel == nil {
		return nil
	}
	return wrap(cascadia.Query(h.n, sel))
}

var (
	selectorsMu sync.Mutex
	selectors   = make(map[string]cascadia.Selector)
)

// selector compiles "tag" or "tag.class" once. It returns nil for names
// that are not valid selectors.
func selector(tag, class string) cascadia.Selector {
	src := tag
	if class != "" {
		src += "." + class
	}

	selectorsMu.Lock()
	defer selectorsMu.Unlock()
	if sel, ok := selectors[src]; ok {
		return sel
	}
	sel, err := cascadia.Compile(src)
	if err != nil {
		sel = nil
	}
	selectors[src] = sel
	return sel
}
