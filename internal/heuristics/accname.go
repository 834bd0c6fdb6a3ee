package heuristics

import (
	"strings"

	"golang.org/x/net/html"

	"AccessibilityScanner/internal/dom"
)

// AccessibleName is a light approximation of accessible name computation: aria-labelledby
// (one level, no recursion), aria-label, native markup (alt, button value), rendered text,
// then title. It returns "" when nothing applies.
func AccessibleName(d *dom.Document, n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}

	if ids, ok := dom.Attr(n, "aria-labelledby"); ok {
		var parts []string
		for _, id := range strings.Fields(ids) {
			target := d.ElementByID(id)
			if target == nil {
				parts = append(parts, "")
				continue
			}
			text := d.Text(target)
			if text == "" {
				text = dom.TextContent(target)
			}
			parts = append(parts, strings.TrimSpace(text))
		}
		if name := strings.TrimSpace(strings.Join(parts, " ")); name != "" {
			return name
		}
	}

	if label, ok := dom.Attr(n, "aria-label"); ok {
		if name := strings.TrimSpace(label); name != "" {
			return name
		}
	}

	tag := dom.Tag(n)
	inputType := strings.ToLower(dom.AttrOr(n, "type", "text"))
	switch {
	case tag == "img" || tag == "area":
		return dom.AttrOr(n, "alt", "")
	case tag == "input" && (inputType == "button" || inputType == "submit" || inputType == "reset"):
		return dom.AttrOr(n, "value", "")
	case tag == "input" && inputType == "image":
		if alt := dom.AttrOr(n, "alt", ""); alt != "" {
			return alt
		}
		return dom.AttrOr(n, "value", "")
	}

	text := d.Text(n)
	if text == "" {
		text = dom.TextContent(n)
	}
	if text = strings.TrimSpace(text); text != "" {
		return text
	}

	if title, ok := dom.Attr(n, "title"); ok {
		return strings.TrimSpace(title)
	}
	return ""
}
