package heuristics

import (
	"strings"

	"golang.org/x/net/html"

	"AccessibilityScanner/internal/dom"
)

// DefaultWindow is the number of characters kept on each side of the element's text.
const DefaultWindow = 50

var contextTags = []string{"div", "section", "article", "li", "a", "button", "p", "h1", "h2", "h3", "h4", "h5", "h6"}

// SmartContext returns the text a screen-reader user hears around the element: the
// collapsed text of the nearest block or interactive container, cut to window characters
// on each side of the element's own text (or alt). When the element's text cannot be found
// the first 2*window characters are returned.
func SmartContext(d *dom.Document, n *html.Node, window int) string {
	if n == nil {
		return ""
	}
	if window <= 0 {
		window = DefaultWindow
	}
	container := dom.Closest(n, contextTags...)
	if container == nil {
		container = dom.ParentElement(n)
	}
	if container == nil {
		return ""
	}

	full := []rune(d.VisibleText(container))
	target := d.VisibleText(n)
	if target == "" {
		target = strings.TrimSpace(dom.AttrOr(n, "alt", ""))
	}

	index := -1
	if target != "" {
		if byteIdx := strings.Index(string(full), target); byteIdx >= 0 {
			index = len([]rune(string(full)[:byteIdx]))
		}
	}
	if index < 0 {
		return string(full[:min(len(full), window*2)])
	}
	start := max(0, index-window)
	end := min(len(full), index+len([]rune(target))+window)
	return string(full[start:end])
}

// FunctionalContext describes the interactive ancestor an element sits in.
type FunctionalContext struct {
	Node       *html.Node
	ParentTag  string
	ParentText string
}

// IsFunctional reports whether an interactive container was found.
func (f FunctionalContext) IsFunctional() bool {
	return f.Node != nil
}

var functionalRoles = map[string]bool{"button": true, "link": true}

// Functional finds the closest a, button, [role=button] or [role=link], including n itself.
func Functional(d *dom.Document, n *html.Node) FunctionalContext {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		tag := dom.Tag(cur)
		if tag == "a" || tag == "button" || functionalRoles[strings.ToLower(dom.AttrOr(cur, "role", ""))] {
			return FunctionalContext{Node: cur, ParentTag: tag, ParentText: d.VisibleText(cur)}
		}
	}
	return FunctionalContext{}
}
