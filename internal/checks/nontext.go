package checks

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"AccessibilityScanner/internal/dom"
	"AccessibilityScanner/internal/domain"
	"AccessibilityScanner/internal/heuristics"
	"AccessibilityScanner/internal/scanner"
)

var forbiddenWords = []string{"이미지", "사진", "아이콘", "그림", "스냅샷", "image", "photo", "icon"}

var backgroundURL = regexp.MustCompile(`url\(['"]?(.*?)['"]?\)`)

const (
	imageCandidates      = `img, area, input[type="image"], svg, [role="img"]`
	backgroundCandidates = "div, section, article, span, a, button"
)

func scanNonText(ctx context.Context, d *dom.Document) []domain.Finding {
	out := each(ctx, d, imageCandidates, func(n *html.Node) []domain.Finding {
		// svg children with role=img are reported through their svg root.
		if dom.Tag(n) != "svg" && dom.Closest(dom.ParentElement(n), "svg") != nil {
			return nil
		}
		return []domain.Finding{analyzeImage(d, n)}
	})
	out = append(out, each(ctx, d, backgroundCandidates, func(n *html.Node) []domain.Finding {
		bg := d.Style(n).Get("background-image")
		if !strings.Contains(bg, "url(") {
			return nil
		}
		return []domain.Finding{analyzeBackground(d, n, bg)}
	})...)
	return out
}

// imageName returns the accessible name and decorative state of an image-like node.
func imageName(n *html.Node) (name, source string, decorative bool) {
	tag := dom.Tag(n)
	role := dom.AttrOr(n, "role", "")
	switch {
	case tag == "svg":
		if label := strings.TrimSpace(dom.AttrOr(n, "aria-label", "")); label != "" {
			name, source = label, "aria-label"
		} else if title := svgTitle(n); title != "" {
			name, source = title, "title"
		}
		decorative = dom.AttrOr(n, "aria-hidden", "") == "true" || dom.AttrOr(n, "focusable", "") == "false"
	case tag == "input":
		for _, key := range []string{"alt", "aria-label", "title"} {
			if v := strings.TrimSpace(dom.AttrOr(n, key, "")); v != "" {
				name, source = v, key
				break
			}
		}
	default:
		for _, key := range []string{"alt", "aria-label"} {
			if v := strings.TrimSpace(dom.AttrOr(n, key, "")); v != "" {
				name, source = v, key
				break
			}
		}
		alt, hasAlt := dom.Attr(n, "alt")
		decorative = (hasAlt && strings.TrimSpace(alt) == "" && name == "") || role == "presentation" || role == "none"
	}
	return name, source, decorative
}

func svgTitle(n *html.Node) string {
	for _, c := range dom.ElementChildren(n) {
		if dom.Tag(c) == "title" {
			return strings.TrimSpace(dom.TextContent(c))
		}
	}
	return ""
}

func analyzeImage(d *dom.Document, n *html.Node) domain.Finding {
	tag := dom.Tag(n)
	name, source, decorative := imageName(n)
	fc := heuristics.Functional(d, n)
	smart := heuristics.SmartContext(d, n, window())
	similarity := 0.0
	if name != "" && smart != "" {
		similarity = heuristics.Similarity(name, smart)
	}

	missing := "대체 텍스트 속성(alt 등)이 누락되었습니다. 수정을 요청하세요."
	switch tag {
	case "input":
		missing = "이미지 버튼(input type='image')에 대체 텍스트(alt 등)가 누락되었습니다."
	case "svg":
		missing = "의미 있는 SVG 요소에 <title> 또는 aria-label이 제공되지 않았습니다."
	}
	forbidden, hasForbidden := containsAny(name, forbiddenWords)

	decorativeMessage := "장식용 요소로 올바르게 숨김 처리(alt='' 등) 되었습니다."
	if fc.IsFunctional() && fc.ParentText != "" {
		decorativeMessage = fmt.Sprintf("동일 링크/버튼 내에 텍스트(\"%s\")가 존재하여, 중복 방지를 위해 적절하게 비움 처리(alt=\"\")되었습니다.", fc.ParentText)
	}

	v := scanner.Evaluate(scanner.Pass("적절한 대체 텍스트가 제공되었습니다."), []scanner.Stage{
		{
			Rule:    "Rule 1.1 (Missing Alt)",
			Status:  domain.StatusFail,
			Message: missing,
			When:    func() bool { return !decorative && name == "" },
		},
		{
			Rule:    "Rule 4.2 (Functional Decorative)",
			Status:  domain.StatusFail,
			Message: "대화형 요소(링크/버튼) 내의 유일한 콘텐츠이나, 대체 텍스트가 비어있습니다(alt=''). 목적을 설명해야 합니다.",
			When:    func() bool { return decorative && fc.IsFunctional() && fc.ParentText == "" },
		},
		{
			Rule:    "Rule 2.1 (Forbidden Words)",
			Status:  domain.StatusRecommendFix,
			Message: fmt.Sprintf("대체 텍스트에 불필요한 단어('%s')가 포함되어 있습니다. 의미에 맞게 간결하게 수정 권고하세요.", forbidden),
			When:    func() bool { return hasForbidden },
		},
		{
			Rule:    "Rule 3.1 (High Similarity)",
			Status:  domain.StatusInappropriate,
			Message: "주변 정보와 동일하게 중복되어 스크린 리더 사용자에게 혼란을 줍니다. 장식용(alt='') 처리를 요청하세요.",
			When:    func() bool { return similarity > 0.9 },
		},
		{
			Rule:    "Rule 3.1 (Medium Similarity)",
			Status:  domain.StatusNeedsReview,
			Message: "주변 텍스트와 내용이 비슷합니다. 중복 여부를 확인 후 수정을 요청하세요.",
			When:    func() bool { return similarity > 0.6 && similarity <= 0.9 },
		},
		{
			Rule:    "Rule 4.1 (Functional Alt Check)",
			Status:  domain.StatusNeedsReview,
			Message: "대화형 요소 내 이미지입니다. 대체 텍스트가 시각적 설명이 아닌 기능/목적(예: '홈으로 이동')을 설명하는지 검토하세요.",
			When:    func() bool { return fc.IsFunctional() && !decorative },
		},
		{
			Status:  domain.StatusPass,
			Message: decorativeMessage,
			When:    func() bool { return decorative },
		},
	})
	v.Similarity = similarity

	f := finding(d, n, v)
	f.Element.Alt = name
	switch {
	case tag == "svg":
		f.Element.Src = "SVG Data"
	case dom.HasAttr(n, "src"):
		f.Element.Src = resolveURL(d, dom.AttrOr(n, "src", ""))
	}
	if source != "" {
		f.Element.Attributes = map[string]string{"sourceAttr": source}
	}
	f.Context = domain.Context{
		SmartContext: smart,
		IsFunctional: fc.IsFunctional(),
		ParentTag:    fc.ParentTag,
		ParentText:   fc.ParentText,
		IsDecorative: decorative,
	}
	return f
}

func analyzeBackground(d *dom.Document, n *html.Node, bg string) domain.Finding {
	src := ""
	if m := backgroundURL.FindStringSubmatch(bg); m != nil {
		src = resolveURL(d, m[1])
	}
	name := strings.TrimSpace(dom.AttrOr(n, "aria-label", ""))
	if name == "" {
		name = strings.TrimSpace(dom.AttrOr(n, "title", ""))
	}
	ir := false
	if name == "" && heuristics.IsImageReplacement(d, n) {
		name = d.VisibleText(n)
		ir = name != ""
	}

	v := verdict(domain.StatusNeedsReview,
		"배경 이미지로 구현된 요소입니다. 의미 있는 정보가 포함되어 있다면 대체 텍스트(aria-label 등) 제공 여부를 확인하세요.",
		"Rule 1.1 (Background Image)")
	switch {
	case ir:
		v = verdict(domain.StatusPass, fmt.Sprintf("배경 이미지 요소에 IR 기법으로 대체 텍스트(\"%s\")가 제공되었습니다.", name))
	case name != "":
		v = verdict(domain.StatusPass, "배경 이미지 요소에 대체 텍스트(aria-label 등)가 제공되었습니다.")
	}

	f := finding(d, n, v)
	f.Element.Src = src
	f.Element.Alt = name
	fc := heuristics.Functional(d, n)
	f.Context.IsFunctional = fc.IsFunctional()
	f.Context.ParentTag = fc.ParentTag
	f.Context.ParentText = fc.ParentText
	return f
}
