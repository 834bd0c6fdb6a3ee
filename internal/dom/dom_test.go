package dom

import (
	"testing"
)

func mustParse(t *testing.T, markup string) *Document {
	t.Helper()
	doc, err := ParseString(markup, "https://example.org/page")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestStyleCascade(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `<html><head><style>
		/* comment */
		p { color: #333; font-size: 2em; }
		.note { color: red !important; }
		#lead { color: blue; }
		@media print { p { color: green; } }
	</style></head><body style="font-size: 10px">
		<p id="lead" class="note" style="color: black">text</p>
		<p id="plain">plain <b>bold</b></p>
	</body></html>`)

	lead := doc.Find("#lead").Get(0)
	style := doc.Style(lead)
	if got := style.Get("color"); got != "rgb(255, 0, 0)" {
		t.Fatalf("important rule should win, got %s", got)
	}
	if got := style.Get("font-size"); got != "20px" {
		t.Fatalf("unexpected font-size: %s", got)
	}

	plain := doc.Find("#plain").Get(0)
	if got := doc.Style(plain).Get("color"); got != "rgb(51, 51, 51)" {
		t.Fatalf("unexpected color: %s", got)
	}

	bold := doc.Find("#plain b").Get(0)
	bs := doc.Style(bold)
	if bs.FontWeight() != 700 {
		t.Fatalf("expected bold weight, got %d", bs.FontWeight())
	}
	if bs.Get("color") != "rgb(51, 51, 51)" {
		t.Fatalf("color should inherit, got %s", bs.Get("color"))
	}
}

func TestStylesDisabled(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `<style>div { display: none }</style><div id="a" style="color: red">x</div>`)
	n := doc.Find("#a").Get(0)
	if doc.Style(n).Get("display") != "none" {
		t.Fatalf("stylesheet should apply")
	}
	doc.SetStylesDisabled(true)
	if doc.Style(n).Get("display") != "block" {
		t.Fatalf("stylesheet should be ignored in linear view")
	}
	if doc.Style(n).Get("color") != "rgb(255, 0, 0)" {
		t.Fatalf("inline style should survive linear view")
	}
}

func TestShorthands(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `<a id="l" href="#" style="text-decoration: none; outline: 0; background: url(x.png) #fff no-repeat">x</a>
		<input id="i" style="border: none">`)

	s := doc.Style(doc.Find("#l").Get(0))
	if s.Get("text-decoration-line") != "none" {
		t.Fatalf("unexpected decoration: %s", s.Get("text-decoration-line"))
	}
	if s.Get("outline-style") != "none" {
		t.Fatalf("unexpected outline style: %s", s.Get("outline-style"))
	}
	if s.Get("background-image") != "url(x.png)" {
		t.Fatalf("unexpected background-image: %s", s.Get("background-image"))
	}
	if s.Get("background-color") != "rgb(255, 255, 255)" {
		t.Fatalf("unexpected background-color: %s", s.Get("background-color"))
	}

	in := doc.Style(doc.Find("#i").Get(0))
	if in.Get("border-style") != "none" {
		t.Fatalf("unexpected border style: %s", in.Get("border-style"))
	}
}

func TestBoxAndText(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `<div id="d">Hello <span style="display:none">secret</span><script>x()</script><p>world</p></div>
		<img id="img" src="a.png" width="40" height="20">
		<div id="abs" style="position:absolute; left:-9999px; width: 1px; height: 1px">off</div>`)

	if got := doc.VisibleText(doc.Find("#d").Get(0)); got != "Hello world" {
		t.Fatalf("unexpected text: %q", got)
	}

	box := doc.Box(doc.Find("#img").Get(0))
	if !box.SizeKnown || box.Width != 40 || box.Height != 20 {
		t.Fatalf("unexpected img box: %+v", box)
	}

	abs := doc.Box(doc.Find("#abs").Get(0))
	if !abs.PositionKnown || abs.Left != -9999 {
		t.Fatalf("unexpected abs box: %+v", abs)
	}
}

func TestParseColor(t *testing.T) {
	t.Parallel()

	cases := map[string]Color{
		"#fff":               {255, 255, 255, 1},
		"#000000":            {0, 0, 0, 1},
		"rgb(10, 20, 30)":    {10, 20, 30, 1},
		"rgba(0, 0, 0, 0)":   {0, 0, 0, 0},
		"rgb(255 0 0 / 50%)": {255, 0, 0, 0.5},
		"transparent":        {0, 0, 0, 0},
		"  Navy ":            {0, 0, 128, 1},
	}
	for in, want := range cases {
		got, ok := ParseColor(in)
		if !ok || got != want {
			t.Fatalf("ParseColor(%q) = %+v, %v", in, got, ok)
		}
	}
	if _, ok := ParseColor("url(a.png)"); ok {
		t.Fatalf("url should not parse as color")
	}
	if _, ok := ParseColor("100"); ok {
		t.Fatalf("bare digits should not parse as color")
	}
	if got, ok := ParseColor("hsl(0, 100%, 50%)"); !ok || got != (Color{255, 0, 0, 1}) {
		t.Fatalf("hsl red = %+v, %v", got, ok)
	}
}

func TestStylesheetStringsAndMedia(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `<html><head><style>
		.quote::before { content: "{"; }
		.quote { color: #00f; }
		@media screen { .wide { margin: 1px 2px; } }
		@media print { .quote { color: red; } }
		a:not(.x, .y) { text-decoration: none }
	</style></head><body>
		<p class="quote wide" style="background: url('a;b.png') #fff; outline-style:none">q</p>
		<a href="#">link</a>
	</body></html>`)

	p := doc.Find("p").Get(0)
	style := doc.Style(p)
	if got := style.Get("color"); got != "rgb(0, 0, 255)" {
		t.Fatalf("rule after a brace inside a string was lost, color=%s", got)
	}
	if got := style.Get("margin-left"); got != "2px" {
		t.Fatalf("screen media rule not applied, margin-left=%s", got)
	}
	if got := style.Get("background-color"); got != "rgb(255, 255, 255)" {
		t.Fatalf("inline background shorthand, got %s", got)
	}
	if got := style.Get("outline-style"); got != "none" {
		t.Fatalf("inline longhand without trailing semicolon, got %s", got)
	}

	a := doc.Find("a").Get(0)
	if got := doc.Style(a).Get("text-decoration-line"); got != "none" {
		t.Fatalf("selector list inside :not() should parse, got %s", got)
	}
}

func TestDoctype(t *testing.T) {
	t.Parallel()

	html5 := mustParse(t, `<!DOCTYPE html><html><body></body></html>`)
	if !html5.IsHTML5() {
		t.Fatalf("expected html5 doctype")
	}
	legacy := mustParse(t, `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd"><html><body></body></html>`)
	if legacy.IsHTML5() {
		t.Fatalf("expected legacy doctype")
	}
}
