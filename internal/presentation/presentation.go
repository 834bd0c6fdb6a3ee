// Package presentation holds reversible review views applied to a document snapshot: the
// image alt view and the linear (stylesheet-free) view.
package presentation

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"AccessibilityScanner/internal/dom"
)

// Toggle names accepted by Session.Set.
const (
	AltView    = "alt-view"
	LinearView = "linear-view"
)

const (
	overlayClass    = "abt-alt-overlay-element"
	originalOpacity = "data-original-opacity"
	imageSelector   = `img, [role="img"], svg`
)

// Restore reverts one applied view. Calling it more than once is harmless.
type Restore func()

// View mutates the document and returns the handle that undoes the mutation.
type View func(d *dom.Document) Restore

// With applies view, runs fn and reverts the view even when fn fails or panics.
func With(d *dom.Document, view View, fn func() error) error {
	restore := view(d)
	defer restore()
	return fn()
}

// ShowAltText dims every image-like element and overlays its text alternative.
func ShowAltText(d *dom.Document) Restore {
	d.Find("." + overlayClass).Remove()

	type saved struct {
		node  *html.Node
		style string
		had   bool
	}
	var dimmed []saved
	var overlays []*html.Node
	body := d.Body()

	for _, n := range d.Find(imageSelector).Nodes {
		if !dom.HasAttr(n, originalOpacity) {
			style, had := dom.Attr(n, "style")
			dimmed = append(dimmed, saved{node: n, style: style, had: had})
			opacity := inlineValue(style, "opacity")
			if opacity == "" {
				opacity = "1"
			}
			dom.SetAttr(n, originalOpacity, opacity)
			style = setInline(style, "opacity", "0.1")
			dom.SetAttr(n, "style", setInline(style, "filter", "grayscale(100%)"))
		}

		box := d.Box(n)
		if body == nil || box.Empty() {
			continue
		}
		overlay := newOverlay(altText(n), box)
		body.AppendChild(overlay)
		overlays = append(overlays, overlay)
	}
	d.Invalidate()

	var once sync.Once
	return func() {
		once.Do(func() {
			for _, o := range overlays {
				if o.Parent != nil {
					o.Parent.RemoveChild(o)
				}
			}
			for _, s := range dimmed {
				dom.RemoveAttr(s.node, originalOpacity)
				if s.had {
					dom.SetAttr(s.node, "style", s.style)
				} else {
					dom.RemoveAttr(s.node, "style")
				}
			}
			d.Invalidate()
		})
	}
}

// Linearize disables <style> sheets so content is read in source order.
func Linearize(d *dom.Document) Restore {
	prev := d.SetStylesDisabled(true)
	var once sync.Once
	return func() {
		once.Do(func() { d.SetStylesDisabled(prev) })
	}
}

func altText(n *html.Node) string {
	text := ""
	for _, key := range []string{"alt", "aria-label", "title"} {
		if v, ok := dom.Attr(n, key); ok && v != "" {
			text = v
			break
		}
	}
	if dom.Tag(n) == "svg" {
		for _, c := range dom.ElementChildren(n) {
			if dom.Tag(c) == "title" {
				text = dom.TextContent(c)
				break
			}
		}
	}
	return strings.TrimSpace(text)
}

func newOverlay(alt string, box dom.Box) *html.Node {
	label := "[ALT 없음]"
	background := "rgba(220, 38, 38, 0.9)"
	if alt != "" {
		label = "[ALT: " + alt + "]"
		background = "rgba(22, 163, 74, 0.9)"
	}
	style := "position: absolute; background-color: " + background +
		"; color: white; padding: 4px 8px; font-size: 12px; font-weight: bold; z-index: 2147483646; pointer-events: none"
	if box.PositionKnown {
		style += fmt.Sprintf("; top: %gpx; left: %gpx", box.Top, box.Left)
	}

	div := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Div,
		Data:     "div",
		Attr: []html.Attribute{
			{Key: "class", Val: overlayClass},
			{Key: "style", Val: style},
		},
	}
	div.AppendChild(&html.Node{Type: html.TextNode, Data: label})
	return div
}

func inlineValue(style, prop string) string {
	for _, part := range strings.Split(style, ";") {
		name, value, ok := strings.Cut(part, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), prop) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func setInline(style, prop, value string) string {
	var parts []string
	for _, part := range strings.Split(style, ";") {
		name, _, ok := strings.Cut(part, ":")
		if strings.TrimSpace(part) == "" || (ok && strings.EqualFold(strings.TrimSpace(name), prop)) {
			continue
		}
		parts = append(parts, strings.TrimSpace(part))
	}
	parts = append(parts, prop+": "+value)
	return strings.Join(parts, "; ")
}

// Exclusive runs fn while no audit pass touches the document.
type Exclusive interface {
	Exclusive(fn func() error) error
}

// Session tracks the views enabled on one document and keeps every mutation out of the way
// of audit passes.
type Session struct {
	doc    *dom.Document
	guard  Exclusive
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]Restore
}

var views = map[string]View{
	AltView:    ShowAltText,
	LinearView: Linearize,
}

// NewSession binds a session to doc. guard may be nil when nothing else reads the document.
func NewSession(doc *dom.Document, guard Exclusive, logger *slog.Logger) *Session {
	return &Session{doc: doc, guard: guard, logger: logger, active: map[string]Restore{}}
}

// Set enables or disables a named view. Enabling an active view is a no-op.
func (s *Session) Set(name string, enable bool) error {
	view, ok := views[name]
	if !ok {
		return fmt.Errorf("unknown view %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exclusive(func() error {
		restore, on := s.active[name]
		switch {
		case enable && !on:
			s.active[name] = view(s.doc)
		case !enable && on:
			restore()
			delete(s.active, name)
		}
		if s.logger != nil {
			s.logger.Info("view toggled", "view", name, "enabled", enable)
		}
		return nil
	})
}

// Active lists the enabled views.
func (s *Session) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.active))
	for name := range s.active {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Suspend reverts every active view, runs fn against the pristine document and re-applies
// the views afterwards. Audits run through here so overlays never become findings.
func (s *Session) Suspend(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.active))
	if err := s.exclusive(func() error {
		for name, restore := range s.active {
			restore()
			names = append(names, name)
		}
		return nil
	}); err != nil {
		return err
	}
	defer func() {
		_ = s.exclusive(func() error {
			for _, name := range names {
				s.active[name] = views[name](s.doc)
			}
			return nil
		})
	}()
	return fn()
}

// Read runs fn under the document guard.
func (s *Session) Read(fn func(d *dom.Document) error) error {
	return s.exclusive(func() error { return fn(s.doc) })
}

func (s *Session) exclusive(fn func() error) error {
	if s.guard == nil {
		return fn()
	}
	return s.guard.Exclusive(fn)
}
