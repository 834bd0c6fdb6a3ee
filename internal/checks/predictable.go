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

var bcp47 = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z0-9]{2,8})*$`)

var commonLanguages = []string{
	"ko", "en", "ja", "zh", "fr", "de", "es", "it", "pt", "vi", "th", "ru",
	"ko-kr", "en-us", "ja-jp", "zh-cn", "zh-tw",
	"fr-fr", "de-de", "es-es", "it-it",
	"fr-ca", "es-mx", "pt-br",
	"vi-vn", "th-th", "ru-ru",
}

func scanLanguage(ctx context.Context, d *dom.Document) []domain.Finding {
	root := d.Root()
	lang, ok := dom.Attr(root, "lang")
	if !ok {
		lang, ok = dom.Attr(root, "xml:lang")
	}
	trimmed := strings.TrimSpace(lang)

	var v domain.Verdict
	switch {
	case !ok:
		v = verdict(domain.StatusFail, "<html> 요소에 lang(또는 xml:lang) 속성이 제공되지 않았습니다.", "Rule 3.1.1 (Missing lang attribute)")
	case trimmed == "":
		v = verdict(domain.StatusFail, "<html> 요소의 lang 속성값이 비어있습니다.", "Rule 3.1.1 (Empty lang attribute)")
	case !bcp47.MatchString(trimmed):
		v = verdict(domain.StatusFail,
			fmt.Sprintf("lang 속성값(\"%s\")이 올바른 BCP 47 언어 코드(예: ko, en-US) 형식이 아닙니다.", lang),
			"Rule 3.1.1 (Invalid lang format)")
	case !slices.Contains(commonLanguages, strings.ToLower(trimmed)):
		v = verdict(domain.StatusNeedsReview,
			fmt.Sprintf("lang 속성값(\"%s\")이 일반적인 언어 코드 목록에 없습니다. 오타나 비표준 코드인지, 그리고 페이지 본문 언어와 일치하는지 확인하세요.", lang),
			"Rule 3.1.1 (Uncommon lang code check)")
	default:
		v = verdict(domain.StatusNeedsReview,
			fmt.Sprintf("lang 속성값(\"%s\")이 유효합니다. 선언된 언어와 실제 페이지 본문의 주요 언어가 일치하는지 확인하세요.", lang),
			"Rule 3.1.1 (Manual Language Match Check)")
	}

	shown := lang
	if !ok || trimmed == "" {
		shown = "없음"
	}
	f := pageFinding("html", "HTML", v)
	f.Context.SmartContext = "lang: " + shown
	return []domain.Finding{f}
}

var newWindowWords = []string{"새창", "새 창", "new window"}

const ruleOnFocus = "Rule 3.2.1 (On Focus Context Change)"

func scanOnFocus(ctx context.Context, d *dom.Document) []domain.Finding {
	out := each(ctx, d, "button, a, input, select, textarea, [tabindex]", func(n *html.Node) []domain.Finding {
		if heuristics.IsHidden(d, n) {
			return nil
		}
		var fs []domain.Finding
		if dom.HasAttr(n, "onfocus") || dom.HasAttr(n, "onblur") || dom.HasAttr(n, "onchange") {
			fs = append(fs, finding(d, n, verdict(domain.StatusNeedsReview,
				"요소에 인라인 이벤트(onfocus/onblur/onchange)가 감지되었습니다. 요소에 초점이 가거나 입력값이 변경될 때 사용자가 예측하지 못한 창 열림, 양식 전송 등의 컨텍스트 변화가 발생하지 않는지 수동으로 확인하세요.",
				ruleOnFocus)))
		}
		if dom.Tag(n) == "a" && dom.AttrOr(n, "target", "") == "_blank" {
			hints := d.VisibleText(n) + " " + dom.AttrOr(n, "title", "") + " " + dom.AttrOr(n, "aria-label", "")
			if _, warned := containsAny(hints, newWindowWords); !warned {
				fs = append(fs, finding(d, n, verdict(domain.StatusRecommendFix,
					"새 창으로 열리는 링크입니다. 요소 활성화 시 컨텍스트가 변할 수 있으므로, 텍스트나 title 속성에 '새 창' 등의 사전 안내를 제공할 것을 권장합니다.",
					ruleOnFocus)))
			}
		}
		return fs
	})

	if auto := d.Find("[autofocus]").First(); auto.Length() > 0 {
		out = append(out, finding(d, auto.Nodes[0], verdict(domain.StatusNeedsReview,
			"페이지 로드 시 특정 요소에 자동으로 초점(autofocus)이 이동됩니다. 사용자가 원치 않는 컨텍스트 변화가 아닌지 확인하세요.",
			ruleOnFocus)))
	}
	if len(out) == 0 {
		out = append(out, guidance(domain.StatusNeedsReview,
			"초점 이동이나 값 변경만으로 컨텍스트가 바뀌는 인라인 핸들러는 탐지되지 않았습니다. 스크립트로 등록된 이벤트가 있다면 수동으로 확인하세요.",
			ruleOnFocus))
	}
	return out
}

var helpKeywords = []string{"faq", "고객센터", "도움말", "챗봇", "채팅", "문의", "연락처", "help", "contact", "support", "chat"}

func scanConsistentHelp(ctx context.Context, d *dom.Document) []domain.Finding {
	var found []*html.Node
	for _, n := range d.Find(`a, button, [role="button"], [role="link"]`).Nodes {
		if ctx.Err() != nil {
			return nil
		}
		if heuristics.IsHidden(d, n) {
			continue
		}
		hints := d.VisibleText(n) + " " + dom.AttrOr(n, "aria-label", "") + " " + dom.AttrOr(n, "title", "")
		if _, ok := containsAny(hints, helpKeywords); ok {
			found = append(found, n)
		}
	}

	if len(found) == 0 {
		f := pageFinding(selectorBody, "document", verdict(domain.StatusNotApplicable,
			"페이지 내에서 FAQ, 고객센터, 챗봇 등 명시적인 도움 정보 키워드가 탐지되지 않았습니다. 만약 이미지나 특이한 형태로 도움 정보가 존재한다면, 다른 페이지와 위치가 일관된지 확인하세요.",
			"Rule 3.2.2 (Help Keyword Not Found)"))
		f.Context.SmartContext = "도움말 관련 키워드 미탐지"
		return []domain.Finding{f}
	}

	first := found[0]
	text := strings.TrimSpace(d.VisibleText(first))
	if text == "" {
		text = strings.TrimSpace(dom.AttrOr(first, "aria-label", dom.AttrOr(first, "title", "")))
	}
	f := finding(d, first, verdict(domain.StatusNeedsReview,
		"[수동 검사 안내] 현재 페이지에서 도움말/문의 관련 요소가 탐지되었습니다. 이 웹사이트의 다른 페이지들에서도 이 요소가 동일한 상대적 순서와 위치(예: 하단 Footer, 우측 하단 플로팅)에 일관되게 제공되는지 수동으로 확인하세요.",
		"Rule 3.2.2 (Manual Consistency Check Required)"))
	f.Context.SmartContext = fmt.Sprintf("발견된 도움말 관련 키워드 텍스트: \"%s\" 외 %d건", text, len(found)-1)
	return []domain.Finding{f}
}

func scanContextChange(ctx context.Context, d *dom.Document) []domain.Finding {
	out := each(ctx, d, "[autofocus]", func(n *html.Node) []domain.Finding {
		if heuristics.IsHidden(d, n) {
			return nil
		}
		return []domain.Finding{finding(d, n, verdict(domain.StatusNeedsReview,
			"autofocus 속성이 사용되었습니다. 페이지가 로드될 때 사용자의 의지와 상관없이 초점이 이동하여 혼란을 줄 수 있으므로 사용을 지양하세요.",
			"Rule 3.3.4 (Autofocus Attribute)"))}
	})
	if len(out) == 0 {
		f := pageFinding(selectorBody, "BODY", verdict(domain.StatusNeedsReview,
			"페이지 진입 시 사용자의 의지와 무관하게 새 창이 열리거나 초점이 이동하는 기능이 있는지 수동으로 확인하세요.",
			"Rule 3.3.4 (Manual Context Change Review)"))
		f.Context.SmartContext = "자동 초점/리다이렉트 동작 검토"
		out = append(out, f)
	}
	return out
}
