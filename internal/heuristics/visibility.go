package heuristics

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"AccessibilityScanner/internal/dom"
)

// IsHidden is true when the element or an ancestor is not rendered, or when the element
// has no size and is fully transparent. Visually hidden but announced text is not hidden;
// see IsImageReplacement.
func IsHidden(d *dom.Document, n *html.Node) bool {
	if n == nil {
		return true
	}
	style := d.Style(n)
	if style.Get("display") == "none" {
		return true
	}
	if d.Box(n).Empty() && style.Opacity() == 0 {
		return true
	}
	for p := dom.ParentElement(n); p != nil; p = dom.ParentElement(p) {
		if d.Style(p).Get("display") == "none" {
			return true
		}
	}
	return false
}

// IsImageReplacement detects screen-reader-only techniques: large negative text-indent,
// zero font-size, clip/clip-path with absolute positioning, and off-screen offsets.
func IsImageReplacement(d *dom.Document, n *html.Node) bool {
	if n == nil {
		return false
	}
	style := d.Style(n)

	if indent, ok := leadingInt(style.Get("text-indent")); ok && math.Abs(indent) > 500 {
		return true
	}
	if size, ok := leadingInt(style.Get("font-size")); ok && size == 0 {
		return true
	}

	absolute := style.Get("position") == "absolute"
	clip := normalizeClip(style.Get("clip"))
	clipped := clip == "rect(0,0,0,0)" || clip == "rect(1,1,1,1)"
	clipPath := strings.ReplaceAll(strings.ToLower(style.Get("clip-path")), " ", "")
	if absolute && (clipped || clipPath == "inset(50%)" || clipPath == "inset(100%)") {
		return true
	}

	if absolute {
		left, lok := leadingInt(style.Get("left"))
		top, tok := leadingInt(style.Get("top"))
		if (lok && left < -5000) || (tok && top < -5000) {
			return true
		}
	}
	return false
}

func normalizeClip(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	v = strings.ReplaceAll(v, "px", "")
	v = strings.ReplaceAll(v, ",", " ")
	open := strings.IndexByte(v, '(')
	closing := strings.LastIndexByte(v, ')')
	if open < 0 || closing < open {
		return v
	}
	return v[:open] + "(" + strings.Join(strings.Fields(v[open+1:closing]), ",") + ")"
}

// leadingInt mimics parseInt on a CSS length.
func leadingInt(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	end := 0
	for end < len(v) && (v[end] == '-' || v[end] == '+' || (v[end] >= '0' && v[end] <= '9')) {
		end++
	}
	n, err := strconv.Atoi(v[:end])
	if err != nil {
		return 0, false
	}
	return float64(n), true
}
