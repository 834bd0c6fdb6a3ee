package heuristics

import (
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"AccessibilityScanner/internal/dom"
)

// Selector builds the locator string for an element. A unique id wins; otherwise the path
// walks up through tag names qualified with :nth-of-type when same-tag siblings exist, and
// stops below <body>/<html> or at the first ancestor with a unique id. The format is a wire
// contract with the review board's locate command.
func Selector(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	root := documentRoot(n)
	if id := dom.AttrOr(n, "id", ""); id != "" && uniqueID(root, id) {
		return "#" + CSSEscape(id)
	}

	var parts []string
	cur := n
	for cur != nil && cur.Type == html.ElementNode {
		if id := dom.AttrOr(cur, "id", ""); id != "" && uniqueID(root, id) {
			parts = append([]string{"#" + CSSEscape(id)}, parts...)
			break
		}
		part := dom.Tag(cur)
		count, index := sameTagPosition(cur)
		if count > 1 {
			part += ":nth-of-type(" + strconv.Itoa(index) + ")"
		}
		parts = append([]string{part}, parts...)

		cur = cur.Parent
		if cur == nil || cur.Type != html.ElementNode {
			break
		}
		if t := dom.Tag(cur); t == "html" || t == "body" {
			if first := firstMatch(root, strings.Join(parts, " > ")); first != nil && first != n && t == "body" {
				parts = append([]string{"body"}, parts...)
			}
			break
		}
	}
	return strings.Join(parts, " > ")
}

// Query resolves a locator against the document, returning the first match.
func Query(root *html.Node, selector string) *html.Node {
	return firstMatch(root, selector)
}

func firstMatch(root *html.Node, selector string) *html.Node {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil
	}
	return sel.MatchFirst(root)
}

func sameTagPosition(n *html.Node) (count, index int) {
	if n.Parent == nil {
		return 1, 1
	}
	for sib := n.Parent.FirstChild; sib != nil; sib = sib.NextSibling {
		if sib.Type != html.ElementNode || !strings.EqualFold(sib.Data, n.Data) {
			continue
		}
		count++
		if sib == n {
			index = count
		}
	}
	return count, index
}

func documentRoot(n *html.Node) *html.Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

func uniqueID(root *html.Node, id string) bool {
	count := 0
	var visit func(*html.Node)
	visit = func(c *html.Node) {
		if count > 1 {
			return
		}
		if c.Type == html.ElementNode && dom.AttrOr(c, "id", "") == id {
			count++
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			visit(k)
		}
	}
	visit(root)
	return count == 1
}

// CSSEscape follows the CSS.escape() serialization for identifiers.
func CSSEscape(ident string) string {
	var b strings.Builder
	runes := []rune(ident)
	for i, r := range runes {
		switch {
		case r == 0:
			b.WriteRune('�')
		case (r >= 0x1 && r <= 0x1f) || r == 0x7f:
			b.WriteString("\\" + strconv.FormatInt(int64(r), 16) + " ")
		case i == 0 && r >= '0' && r <= '9':
			b.WriteString("\\" + strconv.FormatInt(int64(r), 16) + " ")
		case i == 1 && r >= '0' && r <= '9' && runes[0] == '-':
			b.WriteString("\\" + strconv.FormatInt(int64(r), 16) + " ")
		case i == 0 && r == '-' && len(runes) == 1:
			b.WriteString("\\-")
		case r >= 0x80 || r == '-' || r == '_' ||
			(r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}
