package checks

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"AccessibilityScanner/internal/dom"
	"AccessibilityScanner/internal/domain"
	"AccessibilityScanner/internal/heuristics"
)

const ruleColorIndependence = "Rule 1.1 (Color Independence)"

func scanColorOnly(ctx context.Context, d *dom.Document) []domain.Finding {
	out := each(ctx, d, "a", func(n *html.Node) []domain.Finding {
		style := d.Style(n)
		underlined := strings.Contains(style.Get("text-decoration-line"), "underline") ||
			style.Get("border-style") != "none"
		if underlined || d.VisibleText(n) == "" {
			return nil
		}
		parent := dom.ParentElement(n)
		if parent == nil || style.Get("color") == d.Style(parent).Get("color") {
			return nil
		}
		return []domain.Finding{finding(d, n, verdict(domain.StatusNeedsReview,
			"링크가 밑줄 없이 색상으로만 구분되고 있습니다. 텍스트와 배경의 명도 대비가 충분하더라도, 색을 인지하지 못하는 사용자를 위해 밑줄 등 추가적인 시각적 구분이 권장됩니다.",
			ruleColorIndependence))}
	})

	out = append(out, each(ctx, d, "div, span, i, b", func(n *html.Node) []domain.Finding {
		bg, ok := d.Style(n).Color("background-color")
		if !ok || bg.A == 0 {
			return nil
		}
		if d.VisibleText(n) != "" || dom.AttrOr(n, "aria-label", "") != "" || dom.AttrOr(n, "title", "") != "" {
			return nil
		}
		box := d.Box(n)
		if !box.SizeKnown || (box.Width <= 0 && box.Height <= 0) {
			return nil
		}
		return []domain.Finding{finding(d, n, verdict(domain.StatusNeedsReview,
			"요소에 배경색은 있으나 텍스트나 레이블이 없습니다. 색상만으로 정보를 전달하고 있다면 패턴이나 텍스트를 추가하세요.",
			ruleColorIndependence))}
	})...)

	var charts []*html.Node
	out = append(out, each(ctx, d, `canvas, svg:not([role="img"]), .chart, [id*="chart"], .graph, [id*="graph"]`, func(n *html.Node) []domain.Finding {
		if heuristics.IsHidden(d, n) {
			return nil
		}
		for _, c := range charts {
			if dom.IsAncestor(c, n) {
				return nil
			}
		}
		box := d.Box(n)
		if !box.SizeKnown || box.Width <= 50 || box.Height <= 50 {
			return nil
		}
		charts = append(charts, n)
		return []domain.Finding{finding(d, n, verdict(domain.StatusNeedsReview,
			"그래프나 차트 등 시각적 정보를 담은 콘텐츠가 탐지되었습니다. 데이터의 계열이나 값을 구분할 때 색상뿐만 아니라 패턴, 모양, 레이블 등 색에 무관하게 인식할 수 있는 수단이 함께 제공되는지 검토하세요.",
			ruleColorIndependence))}
	})...)
	return out
}

// backgroundColor resolves the backdrop behind n: translucent layers are composited over
// their ancestors and the canvas is white.
func backgroundColor(d *dom.Document, n *html.Node) dom.Color {
	for cur := n; cur != nil; cur = dom.ParentElement(cur) {
		c, ok := d.Style(cur).Color("background-color")
		if !ok || c.A == 0 {
			continue
		}
		if c.Opaque() {
			return c
		}
		return heuristics.Blend(c, backgroundColor(d, dom.ParentElement(cur)))
	}
	return dom.White
}

func scanContrast(ctx context.Context, d *dom.Document) []domain.Finding {
	return each(ctx, d, "body *", func(n *html.Node) []domain.Finding {
		if !dom.HasDirectText(n) || heuristics.IsHidden(d, n) || heuristics.IsImageReplacement(d, n) {
			return nil
		}
		style := d.Style(n)
		fg, ok := style.Color("color")
		if !ok {
			return nil
		}
		bg := backgroundColor(d, n)
		ratio := heuristics.Contrast(fg, bg)
		size, _ := style.Px("font-size")
		weight := style.FontWeight()
		threshold := heuristics.ContrastThreshold(size, weight)
		if ratio >= threshold {
			return nil
		}
		f := finding(d, n, verdict(domain.StatusRecommendFix,
			fmt.Sprintf("텍스트와 배경의 명도 대비가 %.2f:1로, 기준치(%s:1)보다 낮습니다. (폰트: %spx, %d)",
				ratio, strconv.FormatFloat(threshold, 'f', -1, 64), strconv.FormatFloat(size, 'f', -1, 64), weight),
			"Rule 1.4.3 (Contrast Ratio)"))
		f.Context.Details = map[string]any{
			"color":           fg.String(),
			"backgroundColor": bg.String(),
			"ratio":           ratio,
		}
		return []domain.Finding{f}
	})
}

func scanSeparation(ctx context.Context, d *dom.Document) []domain.Finding {
	out := each(ctx, d, "input, select, textarea", func(n *html.Node) []domain.Finding {
		if heuristics.IsHidden(d, n) {
			return nil
		}
		style := d.Style(n)
		width, _ := style.Px("border-width")
		border := width > 0 && style.Get("border-style") != "none"
		bg, _ := style.Color("background-color")
		parentBg := dom.Transparent
		if p := dom.ParentElement(n); p != nil {
			parentBg, _ = d.Style(p).Color("background-color")
		}
		distinct := bg != parentBg && bg.A != 0
		if border || distinct {
			return nil
		}
		return []domain.Finding{finding(d, n, verdict(domain.StatusRecommendFix,
			"입력 필드가 배경과 시각적으로 잘 구분되지 않습니다. 테두리나 배경색을 달리하여 입력 영역을 명확히 구분하세요.",
			"Rule 1.4.4 (Visual Distinction)"))}
	})

	buttons := visible(d, d.Find("button").Nodes)
	for i := 0; i+1 < len(buttons); i++ {
		a, b := buttons[i], buttons[i+1]
		if dom.ParentElement(a) != dom.ParentElement(b) {
			continue
		}
		if dom.NextElement(a) != b {
			continue
		}
		if d.Gap(a, b) < 2 {
			out = append(out, finding(d, a, verdict(domain.StatusNeedsReview,
				"인접한 버튼 간의 간격이 매우 좁습니다. 시각적 구분선이나 충분한 여백이 있는지 확인하세요.",
				"Rule 1.4.4 (Visual Distinction)")))
		}
	}

	layout := pageFinding(selectorBody, "document", verdict(domain.StatusNeedsReview,
		"웹 페이지의 주요 영역(헤더, 본문, 사이드바 등)이 테두리, 구분선, 배경색 또는 여백을 통해 시각적으로 명확하게 구분되는지 확인하세요.",
		"Rule 1.4.4 (Layout Differentiation)"))
	layout.Context.SmartContext = "레이아웃 블록 구분 검토"
	return append(out, layout)
}
