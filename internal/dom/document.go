package dom

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is a parsed page snapshot with a light cascade over UA defaults, <style> rules
// and inline styles. It is read-shared by all checkers of one audit pass.
type Document struct {
	doc       *goquery.Document
	rawURL    string
	parsedURL *url.URL
	rules     []rule
	stylesOff bool

	mu     sync.RWMutex
	styles map[*html.Node]Style
}

// Parse reads HTML and binds it to the page URL it was loaded from.
func Parse(r io.Reader, pageURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return New(doc, pageURL), nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(markup, pageURL string) (*Document, error) {
	return Parse(strings.NewReader(markup), pageURL)
}

// New wraps an already parsed goquery document.
func New(doc *goquery.Document, pageURL string) *Document {
	d := &Document{doc: doc, rawURL: pageURL}
	if parsed, err := url.Parse(pageURL); err == nil {
		d.parsedURL = parsed
	}
	d.rules = collectRules(doc)
	return d
}

// Query exposes the underlying goquery document.
func (d *Document) Query() *goquery.Document {
	return d.doc
}

// Find runs a CSS selector against the whole document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// URL returns the page address the snapshot was taken from.
func (d *Document) URL() string {
	return d.rawURL
}

// Hostname returns the host part of the page URL, or "".
func (d *Document) Hostname() string {
	if d.parsedURL == nil {
		return ""
	}
	return d.parsedURL.Hostname()
}

// Title returns the trimmed <title> text.
func (d *Document) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// Doctype reports the public identifier of the document type declaration.
func (d *Document) Doctype() (publicID string, present bool) {
	for _, root := range d.doc.Nodes {
		for c := root.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.DoctypeNode {
				continue
			}
			for _, a := range c.Attr {
				if a.Key == "public" {
					return a.Val, true
				}
			}
			return "", true
		}
	}
	return "", false
}

// IsHTML5 is true when the doctype carries no public identifier.
func (d *Document) IsHTML5() bool {
	public, _ := d.Doctype()
	return public == ""
}

// Root returns the <html> element.
func (d *Document) Root() *html.Node {
	return d.doc.Find("html").Get(0)
}

// Body returns the <body> element.
func (d *Document) Body() *html.Node {
	return d.doc.Find("body").Get(0)
}

// ElementByID returns the first element with the id, like getElementById.
func (d *Document) ElementByID(id string) *html.Node {
	if id == "" {
		return nil
	}
	var found *html.Node
	walk(d.doc.Get(0), func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && AttrOr(n, "id", "") == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Select wraps a single node in a selection bound to this document.
func (d *Document) Select(n *html.Node) *goquery.Selection {
	if n == nil {
		return d.doc.Selection.Slice(0, 0)
	}
	if n == d.doc.Get(0) {
		return d.doc.Selection
	}
	return d.doc.FindNodes(n)
}

// SetStylesDisabled switches <style> sheets off or on and returns the previous state.
// Inline style attributes keep applying, as with disabled document.styleSheets.
func (d *Document) SetStylesDisabled(off bool) bool {
	prev := d.stylesOff
	d.stylesOff = off
	d.Invalidate()
	return prev
}

// StylesDisabled reports the linear-view state.
func (d *Document) StylesDisabled() bool {
	return d.stylesOff
}

// Invalidate drops memoized computed styles after the tree or its styles were mutated.
func (d *Document) Invalidate() {
	d.mu.Lock()
	d.styles = nil
	d.mu.Unlock()
	d.rules = collectRules(d.doc)
}

func walk(n *html.Node, visit func(*html.Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}
