package dom

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Box is the geometry that can be derived without layout: explicit sizes from CSS or
// presentational attributes, and offsets of positioned elements.
type Box struct {
	Width, Height float64
	Left, Top     float64
	SizeKnown     bool
	PositionKnown bool
}

// Empty reports a known zero-area box.
func (b Box) Empty() bool {
	return b.SizeKnown && b.Width == 0 && b.Height == 0
}

var sizedByAttr = map[string]bool{
	"img": true, "canvas": true, "svg": true, "video": true, "iframe": true, "embed": true,
	"object": true, "input": true,
}

// Box returns the element's known geometry.
func (d *Document) Box(n *html.Node) Box {
	var b Box
	if n == nil || n.Type != html.ElementNode {
		return b
	}
	s := d.Style(n)
	if s.Get("display") == "none" {
		b.SizeKnown = true
		return b
	}

	w, wok := s.Px("width")
	h, hok := s.Px("height")
	if sizedByAttr[Tag(n)] {
		if !wok {
			w, wok = attrPx(n, "width")
		}
		if !hok {
			h, hok = attrPx(n, "height")
		}
	}
	if wok && hok {
		b.Width, b.Height, b.SizeKnown = w, h, true
	}

	switch s.Get("position") {
	case "absolute", "fixed", "relative", "sticky":
		left, lok := s.Px("left")
		top, tok := s.Px("top")
		if lok || tok {
			b.Left, b.Top, b.PositionKnown = left, top, true
		}
	}
	return b
}

func attrPx(n *html.Node, key string) (float64, bool) {
	v, ok := Attr(n, key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "px"), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Gap estimates the horizontal distance between two adjacent inline-level siblings from
// their margins and any whitespace between them.
func (d *Document) Gap(a, b *html.Node) float64 {
	gap := mustPx(d.Style(a).Get("margin-right")) + mustPx(d.Style(b).Get("margin-left"))
	for c := a.NextSibling; c != nil && c != b; c = c.NextSibling {
		if c.Type == html.TextNode && c.Data != "" {
			gap += 4
			break
		}
	}
	return gap
}
