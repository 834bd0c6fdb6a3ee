package dom

import (
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Style is a computed style: property name to resolved value.
type Style map[string]string

// Get returns the property value or "".
func (s Style) Get(prop string) string {
	return s[prop]
}

// Px parses a length property as CSS pixels.
func (s Style) Px(prop string) (float64, bool) {
	return ParsePx(s[prop])
}

// Color parses a color property.
func (s Style) Color(prop string) (Color, bool) {
	return ParseColor(s[prop])
}

// FontWeight returns the numeric weight (400 when unknown).
func (s Style) FontWeight() int {
	w, err := strconv.Atoi(s["font-weight"])
	if err != nil {
		return 400
	}
	return w
}

// Opacity returns the opacity, 1 when unset.
func (s Style) Opacity() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s["opacity"]), 64)
	if err != nil {
		return 1
	}
	return v
}

// ParsePx reads "12px", "12", "-9999px", "0" as pixels. Other units are rejected.
func ParsePx(value string) (float64, bool) {
	v := strings.TrimSpace(strings.ToLower(value))
	if v == "" || v == "auto" || v == "none" || v == "normal" {
		return 0, false
	}
	v = strings.TrimSuffix(v, "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

const rootFontSize = 16.0

var inherited = []string{
	"color", "font-size", "font-weight", "font-style", "visibility", "cursor", "text-indent",
	"line-height", "text-align", "direction", "white-space",
}

var initialStyle = Style{
	"display":              "inline",
	"color":                Black.String(),
	"background-color":     "rgba(0, 0, 0, 0)",
	"background-image":     "none",
	"font-size":            "16px",
	"font-weight":          "400",
	"font-style":           "normal",
	"visibility":           "visible",
	"opacity":              "1",
	"position":             "static",
	"text-indent":          "0px",
	"text-decoration-line": "none",
	"outline-style":        "none",
	"outline-width":        "medium",
	"border-style":         "none",
	"border-width":         "0px",
	"order":                "0",
	"flex-direction":       "row",
	"clip":                 "auto",
	"clip-path":            "none",
	"cursor":               "auto",
}

var blockTags = map[string]string{
	"html": "block", "body": "block", "div": "block", "p": "block", "section": "block",
	"article": "block", "aside": "block", "header": "block", "footer": "block", "nav": "block",
	"main": "block", "h1": "block", "h2": "block", "h3": "block", "h4": "block", "h5": "block",
	"h6": "block", "ul": "block", "ol": "block", "li": "list-item", "form": "block",
	"fieldset": "block", "figure": "block", "figcaption": "block", "blockquote": "block",
	"pre": "block", "address": "block", "dl": "block", "dt": "block", "dd": "block", "hr": "block",
	"table": "table", "tr": "table-row", "td": "table-cell", "th": "table-cell",
	"caption": "table-caption", "thead": "table-header-group", "tbody": "table-row-group",
	"tfoot": "table-footer-group", "details": "block", "summary": "block", "legend": "block",
	"menu": "block", "video": "inline-block", "button": "inline-block", "input": "inline-block",
	"select": "inline-block", "textarea": "inline-block", "iframe": "inline-block",
	"canvas": "inline", "marquee": "inline-block",
	"head": "none", "script": "none", "style": "none", "template": "none", "title": "none",
	"meta": "none", "link": "none", "noscript": "none", "base": "none", "datalist": "none",
	"param": "none",
}

var headingSizes = map[string]string{
	"h1": "32px", "h2": "24px", "h3": "18.72px", "h4": "16px", "h5": "13.28px", "h6": "10.72px",
}

func uaDeclarations(n *html.Node) []declaration {
	tag := Tag(n)
	var out []declaration
	if display, ok := blockTags[tag]; ok {
		out = append(out, declaration{property: "display", value: display})
	}
	if tag == "dialog" && !HasAttr(n, "open") {
		out = append(out, declaration{property: "display", value: "none"})
	}
	if HasAttr(n, "hidden") {
		out = append(out, declaration{property: "display", value: "none"})
	}
	if tag == "audio" && !HasAttr(n, "controls") {
		out = append(out, declaration{property: "display", value: "none"})
	}
	if size, ok := headingSizes[tag]; ok {
		out = append(out,
			declaration{property: "font-size", value: size},
			declaration{property: "font-weight", value: "bold"})
	}
	switch tag {
	case "b", "strong", "th":
		out = append(out, declaration{property: "font-weight", value: "bolder"})
	case "small":
		out = append(out, declaration{property: "font-size", value: "smaller"})
	case "a":
		if HasAttr(n, "href") {
			out = append(out,
				declaration{property: "color", value: "rgb(0, 0, 238)"},
				declaration{property: "text-decoration-line", value: "underline"},
				declaration{property: "cursor", value: "pointer"})
		}
	case "u", "ins":
		out = append(out, declaration{property: "text-decoration-line", value: "underline"})
	case "input", "select", "textarea":
		t := strings.ToLower(AttrOr(n, "type", ""))
		if t != "hidden" && t != "image" && t != "checkbox" && t != "radio" {
			out = append(out,
				declaration{property: "border-style", value: "inset"},
				declaration{property: "border-width", value: "2px"},
				declaration{property: "background-color", value: "rgb(255, 255, 255)"})
		}
		if t == "hidden" {
			out = append(out, declaration{property: "display", value: "none"})
		}
	case "button":
		out = append(out,
			declaration{property: "border-style", value: "outset"},
			declaration{property: "border-width", value: "2px"},
			declaration{property: "background-color", value: "rgb(239, 239, 239)"})
	}
	return out
}

type weighted struct {
	declaration
	inline      bool
	specificity [3]int
	order       int
}

// Style computes the style of an element. Results are memoized until Invalidate.
func (d *Document) Style(n *html.Node) Style {
	if n == nil || n.Type != html.ElementNode {
		return copyStyle(initialStyle)
	}
	d.mu.RLock()
	s, ok := d.styles[n]
	d.mu.RUnlock()
	if ok {
		return s
	}
	s = d.compute(n)
	d.mu.Lock()
	if d.styles == nil {
		d.styles = make(map[*html.Node]Style)
	}
	d.styles[n] = s
	d.mu.Unlock()
	return s
}

func (d *Document) compute(n *html.Node) Style {
	parent := ParentElement(n)
	var parentStyle Style
	if parent != nil {
		parentStyle = d.Style(parent)
	} else {
		parentStyle = initialStyle
	}

	s := copyStyle(initialStyle)
	for _, prop := range inherited {
		if v, ok := parentStyle[prop]; ok {
			s[prop] = v
		}
	}

	for _, decl := range uaDeclarations(n) {
		s[decl.property] = decl.value
	}

	var matched []weighted
	if !d.stylesOff {
		for _, r := range d.rules {
			if !r.selector.Match(n) {
				continue
			}
			spec := r.selector.Specificity()
			for _, decl := range r.decls {
				matched = append(matched, weighted{declaration: decl, specificity: spec, order: r.order})
			}
		}
	}
	if inline, ok := Attr(n, "style"); ok {
		for _, decl := range parseDeclarations(inline) {
			matched = append(matched, weighted{declaration: decl, inline: true, order: math.MaxInt32})
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.important != b.important {
			return !a.important
		}
		if a.inline != b.inline {
			return !a.inline
		}
		if a.specificity != b.specificity {
			return lessSpecificity(a.specificity, b.specificity)
		}
		return a.order < b.order
	})
	for _, m := range matched {
		s[m.property] = m.value
	}

	for prop, v := range s {
		if strings.EqualFold(v, "inherit") {
			s[prop] = parentStyle[prop]
		}
	}

	parentSize, _ := ParsePx(parentStyle["font-size"])
	if parentSize == 0 && parent == nil {
		parentSize = rootFontSize
	}
	s["font-size"] = formatPx(resolveFontSize(s["font-size"], parentSize))
	s["font-weight"] = strconv.Itoa(resolveFontWeight(s["font-weight"], parentStyle.FontWeight()))
	if c, ok := ParseColor(s["color"]); ok {
		s["color"] = c.String()
	} else if strings.EqualFold(s["color"], "currentcolor") {
		s["color"] = parentStyle["color"]
	}
	if c, ok := ParseColor(s["background-color"]); ok {
		s["background-color"] = c.String()
	}
	if strings.EqualFold(s["outline-color"], "currentcolor") || s["outline-color"] == "" {
		s["outline-color"] = s["color"]
	}
	if strings.EqualFold(s["border-color"], "currentcolor") || s["border-color"] == "" {
		s["border-color"] = s["color"]
	}
	for _, prop := range []string{"text-indent", "left", "top", "width", "height", "outline-width", "border-width",
		"margin-left", "margin-right", "margin-top", "margin-bottom"} {
		if v, ok := s[prop]; ok {
			if px, ok := resolveLength(v, mustPx(s["font-size"])); ok {
				s[prop] = formatPx(px)
			}
		}
	}
	return s
}

// Declared reports whether an author stylesheet rule or the style attribute sets any of props
// on n. Shorthands count for the longhands they expand to.
func (d *Document) Declared(n *html.Node, props ...string) bool {
	if !d.stylesOff {
		for _, r := range d.rules {
			if r.selector.Match(n) && declaresAny(r.decls, props) {
				return true
			}
		}
	}
	if inline, ok := Attr(n, "style"); ok {
		return declaresAny(parseDeclarations(inline), props)
	}
	return false
}

func declaresAny(decls []declaration, props []string) bool {
	for _, decl := range decls {
		if slices.Contains(props, decl.property) {
			return true
		}
	}
	return false
}

func lessSpecificity(a, b [3]int) bool {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func copyStyle(src Style) Style {
	out := make(Style, len(src)+8)
	for k, v := range src {
		out[k] = v
	}
	return out
}

func mustPx(v string) float64 {
	px, _ := ParsePx(v)
	return px
}

func formatPx(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}

var fontKeywords = map[string]float64{
	"xx-small": 9, "x-small": 10, "small": 13, "medium": 16, "large": 18, "x-large": 24,
	"xx-large": 32, "xxx-large": 48,
}

func resolveFontSize(value string, parent float64) float64 {
	v := strings.ToLower(strings.TrimSpace(value))
	if px, ok := fontKeywords[v]; ok {
		return px
	}
	switch v {
	case "smaller":
		return parent / 1.2
	case "larger":
		return parent * 1.2
	}
	if px, ok := resolveLength(v, parent); ok {
		return px
	}
	if strings.HasSuffix(v, "%") {
		if f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64); err == nil {
			return parent * f / 100
		}
	}
	return parent
}

// resolveLength converts px, em, rem, pt and unitless zero to pixels.
func resolveLength(value string, fontSize float64) (float64, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	parse := func(suffix string, scale float64) (float64, bool) {
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, suffix), 64)
		if err != nil {
			return 0, false
		}
		return f * scale, true
	}
	switch {
	case strings.HasSuffix(v, "rem"):
		return parse("rem", rootFontSize)
	case strings.HasSuffix(v, "em"):
		return parse("em", fontSize)
	case strings.HasSuffix(v, "px"):
		return parse("px", 1)
	case strings.HasSuffix(v, "pt"):
		return parse("pt", 4.0/3.0)
	case v == "thin":
		return 1, true
	case v == "medium":
		return 3, true
	case v == "thick":
		return 5, true
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f == 0 {
		return 0, true
	}
	return 0, false
}

func resolveFontWeight(value string, parent int) int {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "normal", "":
		return 400
	case "bold":
		return 700
	case "bolder":
		switch {
		case parent < 350:
			return 400
		case parent < 550:
			return 700
		default:
			return 900
		}
	case "lighter":
		switch {
		case parent < 550:
			return 100
		case parent < 750:
			return 400
		default:
			return 700
		}
	}
	if w, err := strconv.Atoi(v); err == nil {
		return w
	}
	return 400
}
