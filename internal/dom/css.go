package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

type declaration struct {
	property  string
	value     string
	important bool
}

type rule struct {
	selector cascadia.Sel
	decls    []declaration
	order    int
}

// collectRules parses every <style> element in document order. Unsupported selectors and
// at-rules other than @media screen/all are skipped. A sheet that fails to tokenize keeps
// the rules parsed before the error.
func collectRules(doc *goquery.Document) []rule {
	var rules []rule
	order := 0
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		media, ok := s.Attr("media")
		if ok && !mediaApplies(media) {
			return
		}
		sheet, _ := parser.NewParser(s.Text()).ParseStylesheet()
		if sheet == nil {
			return
		}
		rules, order = appendRules(rules, sheet.Rules, order)
	})
	return rules
}

func appendRules(rules []rule, in []*css.Rule, order int) ([]rule, int) {
	for _, r := range in {
		if r.Kind == css.AtRule {
			if strings.EqualFold(r.Name, "@media") && mediaApplies(r.Prelude) {
				rules, order = appendRules(rules, r.Rules, order)
			}
			continue
		}
		group, err := cascadia.ParseGroup(r.Prelude)
		if err != nil {
			continue
		}
		decls := declarations(r.Declarations)
		for _, sel := range group {
			if sel.PseudoElement() != "" {
				continue
			}
			rules = append(rules, rule{selector: sel, decls: decls, order: order})
			order++
		}
	}
	return rules, order
}

func mediaApplies(media string) bool {
	m := strings.ToLower(strings.TrimSpace(media))
	return m == "" || m == "all" || m == "screen"
}

// parseDeclarations reads a style attribute. The text is wrapped in a block so the last
// declaration needs no trailing semicolon.
func parseDeclarations(text string) []declaration {
	decls, _ := parser.NewParser("{" + text + "}").ParseDeclarations()
	return declarations(decls)
}

func declarations(in []*css.Declaration) []declaration {
	var out []declaration
	for _, d := range in {
		prop := strings.ToLower(strings.TrimSpace(d.Property))
		value := strings.TrimSpace(d.Value)
		if prop == "" || value == "" {
			continue
		}
		for _, e := range expandShorthand(prop, value) {
			e.important = d.Important
			out = append(out, e)
		}
	}
	return out
}

// splitTopLevel splits text on sep outside parentheses and quotes.
func splitTopLevel(text string, sep byte) []string {
	var parts []string
	depth := 0
	var quote byte
	last := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			parts = append(parts, text[last:i])
			last = i + 1
		}
	}
	parts = append(parts, text[last:])
	return parts
}

// valueTokens splits a shorthand value on spaces outside parentheses.
func valueTokens(value string) []string {
	var tokens []string
	for _, t := range splitTopLevel(strings.ReplaceAll(value, "\t", " "), ' ') {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

var borderStyles = map[string]bool{
	"none": true, "hidden": true, "solid": true, "dashed": true, "dotted": true, "double": true,
	"groove": true, "ridge": true, "inset": true, "outset": true, "auto": true,
}

func expandShorthand(prop, value string) []declaration {
	switch prop {
	case "background":
		var out []declaration
		for _, tok := range valueTokens(value) {
			low := strings.ToLower(tok)
			switch {
			case strings.HasPrefix(low, "url(") || strings.Contains(low, "gradient("):
				out = append(out, declaration{property: "background-image", value: tok})
			case IsColorToken(tok):
				out = append(out, declaration{property: "background-color", value: tok})
			}
		}
		if strings.EqualFold(strings.TrimSpace(value), "none") {
			out = append(out, declaration{property: "background-color", value: "transparent"},
				declaration{property: "background-image", value: "none"})
		}
		return out
	case "border", "outline", "border-top", "border-right", "border-bottom", "border-left":
		prefix := prop
		if strings.HasPrefix(prop, "border-") {
			prefix = "border"
		}
		style, width, color := "none", "medium", ""
		if prefix == "outline" {
			color = "currentcolor"
		}
		for _, tok := range valueTokens(value) {
			low := strings.ToLower(tok)
			switch {
			case borderStyles[low]:
				style = low
			case IsColorToken(tok) || low == "currentcolor":
				color = tok
			default:
				width = low
			}
		}
		if style == "none" || style == "hidden" {
			width = "0px"
		}
		out := []declaration{
			{property: prefix + "-style", value: style},
			{property: prefix + "-width", value: width},
		}
		if color != "" {
			out = append(out, declaration{property: prefix + "-color", value: color})
		}
		out = append(out, declaration{property: prop, value: value})
		return out
	case "text-decoration":
		line := "none"
		for _, tok := range valueTokens(value) {
			switch low := strings.ToLower(tok); low {
			case "underline", "overline", "line-through", "none":
				line = low
			}
		}
		return []declaration{{property: "text-decoration-line", value: line}, {property: prop, value: value}}
	case "flex-flow":
		for _, tok := range valueTokens(value) {
			low := strings.ToLower(tok)
			if strings.HasPrefix(low, "row") || strings.HasPrefix(low, "column") {
				return []declaration{{property: "flex-direction", value: low}}
			}
		}
		return nil
	case "margin", "padding":
		tokens := valueTokens(value)
		if len(tokens) == 0 {
			return nil
		}
		top, right, bottom, left := tokens[0], tokens[0], tokens[0], tokens[0]
		switch len(tokens) {
		case 2:
			right, left = tokens[1], tokens[1]
			bottom = tokens[0]
		case 3:
			right, left = tokens[1], tokens[1]
			bottom = tokens[2]
		case 4:
			right, bottom, left = tokens[1], tokens[2], tokens[3]
		}
		return []declaration{
			{property: prop + "-top", value: top},
			{property: prop + "-right", value: right},
			{property: prop + "-bottom", value: bottom},
			{property: prop + "-left", value: left},
		}
	case "font":
		var out []declaration
		for _, tok := range valueTokens(value) {
			low := strings.ToLower(tok)
			switch {
			case low == "bold" || low == "bolder" || low == "lighter" || isNumericWeight(low):
				out = append(out, declaration{property: "font-weight", value: low})
			case low == "italic" || low == "oblique":
				out = append(out, declaration{property: "font-style", value: low})
			case strings.ContainsAny(low, "0123456789") && !isNumericWeight(low):
				size := strings.SplitN(low, "/", 2)[0]
				out = append(out, declaration{property: "font-size", value: size})
			}
		}
		return out
	}
	return []declaration{{property: prop, value: value}}
}

func isNumericWeight(s string) bool {
	switch s {
	case "100", "200", "300", "400", "500", "600", "700", "800", "900":
		return true
	}
	return false
}
