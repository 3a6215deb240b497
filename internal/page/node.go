// Package page exposes read-only DOM snapshots of the player page.
package page

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Marker attributes stamped by the snapshot script. They carry the computed
// state that plain markup cannot express.
const (
	AttrDisplay = "data-ytmp-display"
	AttrPaused  = "data-ytmp-paused"
	AttrEnded   = "data-ytmp-ended"
)

// Node is a read-only view of one DOM element
type Node interface {
	// Query returns the first descendant matching selector
	Query(selector string) (Node, bool)
	// QueryAll returns every descendant matching selector, in document order
	QueryAll(selector string) []Node
	// Text returns the element's text content
	Text() string
	// Attr returns an attribute value and whether it is present
	Attr(name string) (string, bool)
	// HasClass reports whether the element carries the class
	HasClass(name string) bool
	// Parent returns the parent element
	Parent() (Node, bool)
	// Visible reports whether the element is displayed
	Visible() bool
}

// Document is the root of a snapshot
type Document interface {
	Node
}

type selectionNode struct {
	sel *goquery.Selection
}

type document struct {
	selectionNode
}

// Parse builds a Document from HTML
func Parse(r io.Reader) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return &document{selectionNode{sel: doc.Selection}}, nil
}

// ParseString is Parse for an in-memory string
func ParseString(html string) (Document, error) {
	return Parse(strings.NewReader(html))
}

func (n selectionNode) Query(selector string) (Node, bool) {
	found := n.sel.Find(selector).First()
	if found.Length() == 0 {
		return nil, false
	}
	return selectionNode{sel: found}, true
}

func (n selectionNode) QueryAll(selector string) []Node {
	found := n.sel.Find(selector)
	nodes := make([]Node, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, selectionNode{sel: s})
	})
	return nodes
}

func (n selectionNode) Text() string {
	return n.sel.Text()
}

func (n selectionNode) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}

func (n selectionNode) HasClass(name string) bool {
	return n.sel.HasClass(name)
}

func (n selectionNode) Parent() (Node, bool) {
	p := n.sel.Parent()
	if p.Length() == 0 {
		return nil, false
	}
	return selectionNode{sel: p}, true
}

func (n selectionNode) Visible() bool {
	if _, hidden := n.sel.Attr("hidden"); hidden {
		return false
	}
	if v, ok := n.sel.Attr(AttrDisplay); ok && strings.EqualFold(strings.TrimSpace(v), "none") {
		return false
	}
	if style, ok := n.sel.Attr("style"); ok && inlineDisplayNone(style) {
		return false
	}
	return true
}

func inlineDisplayNone(style string) bool {
	for _, decl := range strings.Split(style, ";") {
		prop, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(prop), "display") {
			value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "!important"))
			if strings.EqualFold(value, "none") {
				return true
			}
		}
	}
	return false
}

// MediaState reads the stamped media markers of a <video>/<audio> element.
// known is false when the snapshot did not record the state.
func MediaState(n Node) (paused, ended, known bool) {
	p, ok := n.Attr(AttrPaused)
	if !ok {
		return false, false, false
	}
	e, _ := n.Attr(AttrEnded)
	return strings.EqualFold(p, "true"), strings.EqualFold(e, "true"), true
}
