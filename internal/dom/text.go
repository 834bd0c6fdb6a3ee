package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Text approximates innerText: rendered text only, with line breaks around blocks.
// Callers usually collapse whitespace afterwards.
func (d *Document) Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	d.writeText(n, &b, true)
	return strings.TrimSpace(b.String())
}

// VisibleText is Text with whitespace collapsed.
func (d *Document) VisibleText(n *html.Node) string {
	return CollapseSpace(d.Text(n))
}

func (d *Document) writeText(n *html.Node, b *strings.Builder, root bool) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		tag := Tag(n)
		if tag == "br" {
			b.WriteByte('\n')
			return
		}
		display := d.Style(n).Get("display")
		if display == "none" && !root {
			return
		}
		block := display != "inline" && display != "inline-block" && display != ""
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			d.writeText(c, b, false)
		}
		if block {
			b.WriteByte('\n')
		}
		if display == "table-cell" {
			b.WriteByte('\t')
		}
		return
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			d.writeText(c, b, false)
		}
	}
}
