package checks

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/net/html"

	"AccessibilityScanner/internal/dom"
	"AccessibilityScanner/internal/domain"
	"AccessibilityScanner/internal/heuristics"
)

func scanBypass(ctx context.Context, d *dom.Document) []domain.Finding {
	focusable := visible(d, d.Find(`a, button, input, select, textarea, [tabindex]:not([tabindex="-1"])`).Nodes)
	skipLinks := d.Find(`a[href^="#"]`).Nodes

	var valid []*html.Node
	for _, link := range skipLinks[:min(len(skipLinks), 5)] {
		if idx := slices.Index(focusable, link); idx >= 0 && idx < 5 {
			valid = append(valid, link)
		}
	}
	if len(valid) == 0 {
		f := pageFinding(selectorBody, "BODY", verdict(domain.StatusFail,
			"문서 최상단에 본문으로 바로가기(건너뛰기) 링크가 제공되지 않았습니다.",
			"Rule 2.4.1 (Missing Skip Link)"))
		f.Context.SmartContext = "문서 구조 검토"
		return []domain.Finding{f}
	}

	var out []domain.Finding
	for _, link := range valid {
		targetID := strings.TrimPrefix(dom.AttrOr(link, "href", ""), "#")
		target := d.ElementByID(targetID)
		v := verdict(domain.StatusPass, "건너뛰기 링크가 적절히 제공되었습니다.")
		switch {
		case target == nil && targetID != "":
			v = verdict(domain.StatusFail,
				fmt.Sprintf("건너뛰기 링크의 대상(id=\"%s\")이 문서에 존재하지 않습니다.", targetID),
				"Rule 2.4.1 (Invalid Target)")
		case target != nil && heuristics.IsHidden(d, target):
			v = verdict(domain.StatusRecommendFix,
				fmt.Sprintf("건너뛰기 링크의 대상(id=\"%s\")이 숨겨져 있어 초점을 받을 수 없을 수 있습니다.", targetID),
				"Rule 2.4.1 (Hidden Target)")
		case d.VisibleText(link) == "" && dom.AttrOr(link, "aria-label", "") == "":
			v = verdict(domain.StatusFail, "건너뛰기 링크의 텍스트가 제공되지 않았습니다.", "Rule 2.4.1 (Empty Link Text)")
		}
		out = append(out, finding(d, link, v))
	}
	return out
}

var meaninglessTitles = []string{
	"untitled", "document", "새 탭", "home", "main", "index", "index.html",
	"iframe", "content", "empty", "빈 페이지", "제목 없음",
}

func scanPageTitle(ctx context.Context, d *dom.Document) []domain.Finding {
	var out []domain.Finding

	title := d.Find("head title").First()
	pageTitle := strings.TrimSpace(title.Text())
	var v domain.Verdict
	switch {
	case title.Length() == 0 || pageTitle == "":
		v = verdict(domain.StatusFail, "페이지 제목(<title>)이 <head> 내에 존재하지 않거나 비어있습니다.")
	case slices.Contains(meaninglessTitles, strings.ToLower(pageTitle)):
		v = verdict(domain.StatusInappropriate, fmt.Sprintf("페이지 제목('%s')이 구체적이지 않거나 의미 없는 기본값입니다.", pageTitle))
	default:
		v = verdict(domain.StatusNeedsReview, fmt.Sprintf("페이지 제목('%s')이 존재합니다. 해당 문구가 페이지의 내용을 핵심적으로 설명하고 있는지 검토하세요.", pageTitle))
	}
	shown := pageTitle
	if shown == "" {
		shown = "(없음)"
	}
	titleFinding := pageFinding("title", "HEAD", v)
	titleFinding.Context.SmartContext = "현재 페이지 제목: " + shown
	out = append(out, titleFinding)

	out = append(out, each(ctx, d, "iframe, frame", func(n *html.Node) []domain.Finding {
		frameTitle := strings.TrimSpace(dom.AttrOr(n, "title", ""))
		var v domain.Verdict
		switch {
		case frameTitle == "":
			v = verdict(domain.StatusFail, "프레임(iframe)의 title 속성이 누락되었습니다.")
		case slices.Contains(meaninglessTitles, strings.ToLower(frameTitle)):
			v = verdict(domain.StatusInappropriate, fmt.Sprintf("프레임 제목('%s')이 프레임의 용도를 설명하기에 부적절합니다.", frameTitle))
		default:
			v = verdict(domain.StatusNeedsReview, fmt.Sprintf("프레임 제목('%s')이 프레임의 용도나 목적을 적절히 설명하고 있는지 검토하세요.", frameTitle))
		}
		return []domain.Finding{finding(d, n, v)}
	})...)

	h1 := verdict(domain.StatusPass, "페이지 내에 구조적 대주제(<h1>)가 존재합니다.")
	if d.Find("h1").Length() == 0 {
		h1 = verdict(domain.StatusNeedsReview, "페이지 내에 대주제(<h1>)가 존재하지 않습니다. 문서의 핵심 주제가 적절하게 식별되는지 검토하세요.")
	}
	h1Finding := pageFinding("h1", "BODY", h1)
	h1Finding.Context.SmartContext = "페이지 내 <h1> 존재 여부 검사"
	return append(out, h1Finding)
}

var vagueLinkWords = []string{"여기", "클릭", "더 보기", "자세히", "go", "link", "more", "click", "here"}

var bareURL = regexp.MustCompile(`(?i)^https?://`)

func scanLinkPurpose(ctx context.Context, d *dom.Document) []domain.Finding {
	return each(ctx, d, `a, [role="link"]`, func(n *html.Node) []domain.Finding {
		name := linkName(d, n)
		description := describedBy(d, n)

		var v domain.Verdict
		switch {
		case name == "":
			v = verdict(domain.StatusFail, "링크의 목적을 알 수 있는 텍스트(이름)가 제공되지 않았습니다.", "Rule 2.4.3 (Missing Link Name)")
		case slices.Contains(vagueLinkWords, strings.ToLower(name)) && description != "":
			v = verdict(domain.StatusNeedsReview,
				fmt.Sprintf("링크 이름('%s')은 모호하지만, aria-describedby를 통해 보조 설명이 제공되었습니다. 스크린리더의 '링크 목록' 탐색 시 의미가 전달되는지 검토가 필요합니다.", name),
				"Rule 2.4.3 (Described Vague Link)")
		case slices.Contains(vagueLinkWords, strings.ToLower(name)):
			v = verdict(domain.StatusInappropriate,
				fmt.Sprintf("링크 텍스트('%s')가 너무 모호하여 목적을 파악하기 어렵습니다.", name),
				"Rule 2.4.3 (Vague Link Text)")
		case bareURL.MatchString(name):
			v = verdict(domain.StatusRecommendFix,
				"링크 텍스트로 기계적인 URL이 노출되고 있습니다. 서술적인 문구로 대체를 권장합니다.",
				"Rule 2.4.3 (Raw URL Text)")
		default:
			v = verdict(domain.StatusPass, "적절한 링크 텍스트가 제공되었습니다.")
		}
		f := finding(d, n, v)
		if description != "" && v.Status == domain.StatusNeedsReview {
			f.Context.SmartContext += fmt.Sprintf("\n[참조 설명(aria-describedby)]: \"%s\"", description)
		}
		return []domain.Finding{f}
	})
}

// linkName follows the text, aria-label, title, then first image alt order.
func linkName(d *dom.Document, n *html.Node) string {
	if text := strings.TrimSpace(d.Text(n)); text != "" {
		return text
	}
	for _, key := range []string{"aria-label", "title"} {
		if v := strings.TrimSpace(dom.AttrOr(n, key, "")); v != "" {
			return v
		}
	}
	if img := d.Select(n).Find("img").First(); img.Length() > 0 {
		return strings.TrimSpace(dom.AttrOr(img.Nodes[0], "alt", ""))
	}
	return ""
}

func describedBy(d *dom.Document, n *html.Node) string {
	var parts []string
	for _, id := range strings.Fields(dom.AttrOr(n, "aria-describedby", "")) {
		if target := d.ElementByID(id); target != nil {
			if text := strings.TrimSpace(d.Text(target)); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, " ")
}

func scanFixedReference(ctx context.Context, d *dom.Document) []domain.Finding {
	out := each(ctx, d, `.page-number, .pg-num, [aria-label*="페이지"], [aria-label*="page"]`, func(n *html.Node) []domain.Finding {
		text := strings.TrimSpace(d.Text(n))
		f := finding(d, n, verdict(domain.StatusNeedsReview,
			fmt.Sprintf("페이지 번호 참조용으로 추정되는 요소('%s')가 탐지되었습니다. 페이지가 고정된 원본 매체(인쇄물, PDF 등)와 동일한 위치 정보를 제공하고 있는지 확인하세요.", text),
			"Rule 2.4.4 (Page Reference Detection)"))
		f.Context.SmartContext = fmt.Sprintf("Detected text: \"%s\"", text)
		return []domain.Finding{f}
	})
	if len(out) > 0 {
		return out
	}
	f := pageFinding(selectorBody, "document", verdict(domain.StatusNeedsReview,
		"페이지 번호가 있는 원본 매체(인쇄물, PDF 등)가 함께 제공되는 경우, 해당 매체의 고정된 참조 위치 정보를 온라인에서도 동일하게 제공하고 있는지 확인하세요.",
		"Rule 2.4.4 (Fixed Reference Location)"))
	f.Context.SmartContext = "원본 매체와의 참조 위치 일관성 검토"
	return []domain.Finding{f}
}
