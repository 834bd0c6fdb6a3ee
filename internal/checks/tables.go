package checks

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"AccessibilityScanner/internal/dom"
	"AccessibilityScanner/internal/domain"
	"AccessibilityScanner/internal/heuristics"
)

func scanTables(ctx context.Context, d *dom.Document) []domain.Finding {
	return each(ctx, d, "table", func(n *html.Node) []domain.Finding {
		role := dom.AttrOr(n, "role", "")
		if role == "presentation" || role == "none" {
			return nil
		}
		if heuristics.IsHidden(d, n) && d.Box(n).Empty() {
			return nil
		}
		return []domain.Finding{analyzeTable(d, n)}
	})
}

// ownedBy keeps the nodes whose closest table is t, so nested tables do not leak in.
func ownedBy(t *html.Node, nodes []*html.Node) []*html.Node {
	var out []*html.Node
	for _, n := range nodes {
		if dom.Closest(n, "table") == t {
			out = append(out, n)
		}
	}
	return out
}

func analyzeTable(d *dom.Document, t *html.Node) domain.Finding {
	sel := d.Select(t)

	captionText := ""
	if caps := ownedBy(t, sel.Find("caption").Nodes); len(caps) > 0 {
		captionText = strings.TrimSpace(dom.TextContent(caps[0]))
	}
	if captionText == "" {
		captionText = strings.TrimSpace(dom.AttrOr(t, "aria-label", ""))
	}
	if captionText == "" {
		if ref := dom.AttrOr(t, "aria-labelledby", ""); ref != "" {
			if label := d.ElementByID(ref); label != nil {
				captionText = strings.TrimSpace(dom.TextContent(label))
			}
		}
	}
	hasCaption := captionText != ""

	headers := ownedBy(t, sel.Find(`th, [role="columnheader"], [role="rowheader"]`).Nodes)
	hasScope := false
	for _, h := range headers {
		if dom.HasAttr(h, "scope") {
			hasScope = true
			break
		}
	}
	summary := strings.TrimSpace(dom.AttrOr(t, "summary", ""))
	html5 := d.IsHTML5()

	v := verdict(domain.StatusPass, "표의 구조가 적절하게 구성되었습니다.")
	if !hasCaption {
		if !html5 && summary != "" {
			v.Message = "데이터 표에 <caption>은 없으나, summary 속성이 적절히 제공되었습니다."
		} else {
			v = verdict(domain.StatusFail,
				"데이터 표에 제목(<caption> 또는 ARIA label)이 누락되었습니다. 표의 내용을 요약하거나 제목을 제공해야 합니다.",
				"Rule 1.1 (Missing Caption)")
		}
	}

	if len(headers) == 0 {
		if v.Status == domain.StatusPass {
			v.Status = domain.StatusFail
			v.Message = "데이터 표에 제목 셀(<th>)이 존재하지 않습니다. 행이나 열의 성격을 정의해야 합니다."
		} else {
			v.Message += " 또한 제목 셀(<th>)도 발견되지 않았습니다."
		}
		v.Rules = append(v.Rules, "Rule 2.1 (Missing Headers)")
	}

	if len(headers) > 0 && !hasScope && !cellsUseHeaders(t, sel.Find("td").Nodes) {
		if v.Status == domain.StatusPass {
			v.Status = domain.StatusRecommendFix
			v.Message = "제목 셀(<th>)에 scope 속성을 사용하여 행/열 제목임을 명시할 것을 권장합니다."
			if rows, cols := tableDimensions(t, sel); rows > 3 && cols > 3 {
				v.Message += " 3x3을 넘는 복잡한 표는 headers/id 연결도 함께 검토하세요."
			}
		}
		v.Rules = append(v.Rules, "Rule 2.2 (Missing Semantic Association)")
	}

	if summary != "" && html5 {
		if v.Status == domain.StatusPass {
			v.Status = domain.StatusRecommendFix
			v.Message = "HTML5 표준에서는 summary 속성이 폐기되었습니다. <caption> 요소를 사용하세요."
		}
		v.Rules = append(v.Rules, "Rule 1.2 (Obsolete Summary)")
	}

	f := finding(d, t, v)
	f.Context.Details = map[string]any{
		"hasCaption":  hasCaption,
		"headerCount": len(headers),
		"captionText": captionText,
	}
	return f
}

func cellsUseHeaders(t *html.Node, cells []*html.Node) bool {
	for _, td := range ownedBy(t, cells) {
		if dom.HasAttr(td, "headers") {
			return true
		}
	}
	return false
}

// tableDimensions counts the table's own rows and the widest row's cells.
func tableDimensions(t *html.Node, sel *goquery.Selection) (rows, cols int) {
	for _, tr := range ownedBy(t, sel.Find("tr").Nodes) {
		rows++
		cells := 0
		for _, c := range dom.ElementChildren(tr) {
			if tag := dom.Tag(c); tag == "td" || tag == "th" {
				cells++
			}
		}
		cols = max(cols, cells)
	}
	return rows, cols
}
