// Package checks holds one checker per guideline. Each checker walks a parsed document and
// returns findings without the page context; the auditor stamps that afterwards.
package checks

import (
	"context"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"AccessibilityScanner/internal/dom"
	"AccessibilityScanner/internal/domain"
	"AccessibilityScanner/internal/heuristics"
	"AccessibilityScanner/internal/scanner"
)

// Selectors used for findings that describe the whole page rather than an element.
const (
	selectorDocument = "document"
	selectorBody     = "body"
)

var contextWindow atomic.Int64

// SetContextWindow changes how many characters of surrounding text each finding keeps on
// either side of its element. Non-positive values restore the default.
func SetContextWindow(n int) {
	contextWindow.Store(int64(n))
}

func window() int {
	if n := contextWindow.Load(); n > 0 {
		return int(n)
	}
	return heuristics.DefaultWindow
}

// checker adapts a plain scan function to scanner.Checker. Scan functions stop walking
// candidates once ctx is done; partial findings are discarded.
type checker struct {
	id   string
	scan func(ctx context.Context, d *dom.Document) []domain.Finding
}

func (c checker) Scan(ctx context.Context, d *dom.Document) ([]domain.Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	findings := c.scan(ctx, d)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return findings, nil
}

// RegisterAll adds every built-in checker to reg in guideline order.
func RegisterAll(reg *scanner.Registry) error {
	for _, c := range all() {
		if err := reg.Register(c.id, c); err != nil {
			return err
		}
	}
	return nil
}

func all() []checker {
	return []checker{
		{"1.1.1", scanNonText},
		{"1.2.1", scanCaptions},
		{"1.3.1", scanTables},
		{"1.3.2", scanReadingOrder},
		{"1.3.3", scanSensory},
		{"1.4.1", scanColorOnly},
		{"1.4.2", scanAutoplay},
		{"1.4.3", scanContrast},
		{"1.4.4", scanSeparation},
		{"2.1.1", scanKeyboard},
		{"2.1.2", scanFocusVisible},
		{"2.1.3", scanTargetSize},
		{"2.1.4", scanShortcuts},
		{"2.2.1", scanTiming},
		{"2.2.2", scanPauseStop},
		{"2.3.1", scanFlashing},
		{"2.4.1", scanBypass},
		{"2.4.2", scanPageTitle},
		{"2.4.3", scanLinkPurpose},
		{"2.4.4", scanFixedReference},
		{"2.5.1", scanPointerGestures},
		{"2.5.2", scanPointerCancel},
		{"2.5.3", scanLabelInName},
		{"2.5.4", scanMotion},
		{"3.1.1", scanLanguage},
		{"3.2.1", scanOnFocus},
		{"3.2.2", scanConsistentHelp},
		{"3.3.1", scanErrorIdentification},
		{"3.3.2", scanLabels},
		{"3.3.3", scanAuthentication},
		{"3.3.4", scanContextChange},
		{"4.1.1", scanMarkup},
		{"4.2.1", scanAria},
	}
}

// finding builds the element part of a finding for n.
func finding(d *dom.Document, n *html.Node, v domain.Verdict) domain.Finding {
	if v.Rules == nil {
		v.Rules = []string{}
	}
	return domain.Finding{
		Element: elementRef(n),
		Context: domain.Context{SmartContext: heuristics.SmartContext(d, n, window())},
		Verdict: v,
	}
}

// pageFinding builds a finding that is not tied to one element.
func pageFinding(selector, tagName string, v domain.Verdict) domain.Finding {
	if v.Rules == nil {
		v.Rules = []string{}
	}
	return domain.Finding{
		Element: domain.ElementRef{TagName: tagName, Selector: selector},
		Verdict: v,
	}
}

// guidance is the fallback finding that keeps a guideline answered when nothing on the
// page can be checked automatically.
func guidance(status domain.Status, message, rule string) domain.Finding {
	v := domain.Verdict{Status: status, Message: message, Rules: []string{}}
	if rule != "" {
		v.Rules = append(v.Rules, rule)
	}
	return pageFinding(selectorDocument, "DOCUMENT", v)
}

func elementRef(n *html.Node) domain.ElementRef {
	return domain.ElementRef{
		TagName:  strings.ToUpper(dom.Tag(n)),
		Selector: heuristics.Selector(n),
	}
}

func verdict(status domain.Status, message string, rules ...string) domain.Verdict {
	if rules == nil {
		rules = []string{}
	}
	return domain.Verdict{Status: status, Message: message, Rules: rules}
}

// resolveURL turns a src or href attribute into an absolute URL like the DOM properties do.
func resolveURL(d *dom.Document, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	base, err := url.Parse(d.URL())
	if err != nil || base.Scheme == "" {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

// visible keeps the nodes that are not hidden.
func visible(d *dom.Document, nodes []*html.Node) []*html.Node {
	out := nodes[:0:0]
	for _, n := range nodes {
		if !heuristics.IsHidden(d, n) {
			out = append(out, n)
		}
	}
	return out
}

func containsAny(haystack string, needles []string) (string, bool) {
	lower := strings.ToLower(haystack)
	for _, w := range needles {
		if strings.Contains(lower, strings.ToLower(w)) {
			return w, true
		}
	}
	return "", false
}

func matchedAll(haystack string, needles []string) []string {
	lower := strings.ToLower(haystack)
	var found []string
	for _, w := range needles {
		if strings.Contains(lower, strings.ToLower(w)) {
			found = append(found, w)
		}
	}
	return found
}

// each runs fn over the nodes of selector and drops candidates whose analysis panics. It
// stops at the first candidate after ctx is done.
func each(ctx context.Context, d *dom.Document, selector string, fn func(n *html.Node) []domain.Finding) []domain.Finding {
	var out []domain.Finding
	scanner.Each(ctx, d.Find(selector), func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			out = append(out, fn(n)...)
		}
	})
	return out
}
