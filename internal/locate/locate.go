// Package locate resolves stored finding locators back to elements of a live document.
package locate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"AccessibilityScanner/internal/dom"
	"AccessibilityScanner/internal/heuristics"
)

// ErrNotFound is returned when neither the selector nor the structural fallback matches.
var ErrNotFound = errors.New("element not found")

var (
	leadingTag = regexp.MustCompile(`^([a-zA-Z0-9]+)`)
	nthOfType  = regexp.MustCompile(`:nth-of-type\((\d+)\)`)
	nthChild   = regexp.MustCompile(`:nth-child\((\d+)\)`)
)

// Result describes where a locator points.
type Result struct {
	// Top means the locator names the page as a whole; the reviewer is sent to the top.
	Top      bool
	Node     *html.Node
	TagName  string
	Selector string
	// Fallback is set when the element was re-matched by tag and position.
	Fallback bool
}

// IsPageLevel reports whether the selector addresses the document rather than an element.
func IsPageLevel(selector string) bool {
	switch strings.TrimSpace(selector) {
	case "", "outline", "document", "body":
		return true
	}
	return false
}

// Resolve finds the element a locator refers to.
func Resolve(d *dom.Document, selector string) (Result, error) {
	if IsPageLevel(selector) {
		return Result{Top: true, Selector: strings.TrimSpace(selector)}, nil
	}

	if n := heuristics.Query(d.Query().Get(0), selector); n != nil {
		return found(n, false), nil
	}

	if n := structural(d, selector); n != nil {
		return found(n, true), nil
	}
	return Result{}, fmt.Errorf("locate %q: %w", selector, ErrNotFound)
}

// structural re-matches the last path segment by tag name and position among visible
// elements of that tag.
func structural(d *dom.Document, selector string) *html.Node {
	parts := strings.Split(selector, " > ")
	last := parts[len(parts)-1]
	tag := leadingTag.FindStringSubmatch(last)
	if tag == nil {
		return nil
	}
	nth := nthOfType.FindStringSubmatch(last)
	if nth == nil {
		nth = nthChild.FindStringSubmatch(last)
	}
	if nth == nil {
		return nil
	}
	index, err := strconv.Atoi(nth[1])
	if err != nil || index < 1 {
		return nil
	}

	var candidates []*html.Node
	for _, n := range d.Find(strings.ToLower(tag[1])).Nodes {
		if !heuristics.IsHidden(d, n) {
			candidates = append(candidates, n)
		}
	}
	if index > len(candidates) {
		return nil
	}
	return candidates[index-1]
}

func found(n *html.Node, fallback bool) Result {
	return Result{
		Node:     n,
		TagName:  strings.ToUpper(dom.Tag(n)),
		Selector: heuristics.Selector(n),
		Fallback: fallback,
	}
}
