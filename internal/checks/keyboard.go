package checks

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"AccessibilityScanner/internal/dom"
	"AccessibilityScanner/internal/domain"
	"AccessibilityScanner/internal/heuristics"
)

var interactiveTags = map[string]bool{
	"a": true, "button": true, "input": true, "select": true, "textarea": true, "details": true, "summary": true,
}

var closeWords = []string{"닫기", "close", "취소", "cancel"}

const ruleKeyboard = "Rule 1.1 (Keyboard Interaction)"

func tabIndex(n *html.Node) (int, bool) {
	raw, ok := dom.Attr(n, "tabindex")
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, true
	}
	return v, true
}

func hasKeyHandler(n *html.Node) bool {
	return dom.HasAttr(n, "onkeydown") || dom.HasAttr(n, "onkeypress") || dom.HasAttr(n, "onkeyup")
}

func scanKeyboard(ctx context.Context, d *dom.Document) []domain.Finding {
	return each(ctx, d, "*", func(n *html.Node) []domain.Finding {
		v, ok := keyboardVerdict(d, n)
		if !ok {
			return nil
		}
		f := finding(d, n, v)
		f.Context.Details = map[string]any{
			"tabindex": dom.AttrOr(n, "tabindex", ""),
			"role":     dom.AttrOr(n, "role", ""),
		}
		return []domain.Finding{f}
	})
}

func keyboardVerdict(d *dom.Document, n *html.Node) (domain.Verdict, bool) {
	tag := dom.Tag(n)
	role := dom.AttrOr(n, "role", "")
	interactive := interactiveTags[tag]
	click := dom.HasAttr(n, "onclick")
	index, hasIndex := tabIndex(n)

	if role == "dialog" || role == "alertdialog" || dom.AttrOr(n, "aria-modal", "") == "true" {
		if !hasCloseControl(d, n) {
			return verdict(domain.StatusNeedsReview,
				"모달 대화상자가 탐지되었으나, 내부에서 명확한 닫기 버튼(텍스트 '닫기', 'X' 등)을 찾을 수 없습니다. 사용자가 키보드(Esc 키 등)나 다른 수단으로 이 영역을 빠져나갈 수 있는지 반드시 확인하세요.",
				"Rule 3.1 (Modal Exit)"), true
		}
		return verdict(domain.StatusNeedsReview,
			"모달 대화상자가 탐지되었습니다. 닫기 버튼은 존재하나, 키보드 초점이 모달 내부에 정상적으로 갇히는지(Focus Trap)와 닫힌 후 원래 위치로 초점이 복귀하는지 수동으로 검토하세요.",
			"Rule 3.1 (Modal Trapping)"), true
	}

	switch {
	case !interactive && click && !hasIndex && role != "presentation" && role != "none":
		return verdict(domain.StatusFail,
			"요소에 클릭 이벤트가 있으나 키보드 포커스(tabindex)가 제공되지 않았습니다. 키보드만 사용하는 사용자는 이 기능을 실행할 수 없습니다.",
			ruleKeyboard), true
	case !interactive && click && hasIndex && role == "":
		return verdict(domain.StatusRecommendFix,
			"키보드로 접근은 가능하나, 요소의 역할(role='button' 등)이 명시되지 않았습니다. 스크린 리더 사용자를 위해 적절한 role 속성 추가를 권장합니다.",
			ruleKeyboard), true
	case interactive && hasIndex && index < 0 && dom.AttrOr(n, "aria-hidden", "") != "true" && !heuristics.IsHidden(d, n):
		return verdict(domain.StatusRecommendFix,
			"대화형 요소에 tabindex='-1'이 설정되어 키보드 포커스가 차단되었습니다. 의도적인 처리가 아니라면 수정을 권고합니다.",
			ruleKeyboard), true
	case hasIndex && index > 0:
		return verdict(domain.StatusRecommendFix,
			"tabindex가 0보다 크게 설정되어 자연스러운 탭 순서를 방해합니다. tabindex='0' 또는 마크업 순서 조정을 권장합니다.",
			ruleKeyboard), true
	case click && !interactive && !hasKeyHandler(n):
		return verdict(domain.StatusNeedsReview,
			"클릭 핸들러는 있으나 키보드 이벤트(keydown 등) 핸들러가 감지되지 않았습니다. Enter/Space 키로 작동하는지 확인하세요.",
			ruleKeyboard), true
	case interactive || click || hasIndex:
		return verdict(domain.StatusPass, "키보드 접근성이 보장된 요소입니다.", ruleKeyboard), true
	}
	return domain.Verdict{}, false
}

func hasCloseControl(d *dom.Document, n *html.Node) bool {
	for _, c := range d.Select(n).Find(`button, [role="button"], a[href]`).Nodes {
		text := strings.ToLower(strings.TrimSpace(dom.TextContent(c)))
		label := strings.ToLower(dom.AttrOr(c, "aria-label", "") + dom.AttrOr(c, "title", ""))
		if text == "x" || text == "×" || strings.Contains(label, "x") {
			return true
		}
		if _, ok := containsAny(text+label, closeWords); ok {
			return true
		}
	}
	return false
}

const focusableSelector = `a[href], button, input, select, textarea, [tabindex]:not([tabindex="-1"]), details, summary`

func scanFocusVisible(ctx context.Context, d *dom.Document) []domain.Finding {
	pageBg := dom.White
	if body := d.Body(); body != nil {
		pageBg = backgroundColor(d, body)
	}
	out := each(ctx, d, focusableSelector, func(n *html.Node) []domain.Finding {
		if heuristics.IsHidden(d, n) {
			return nil
		}
		style := d.Style(n)
		width, _ := style.Px("outline-width")
		styleNone := style.Get("outline-style") == "none"
		suppressed := (styleNone && d.Declared(n, "outline-style")) ||
			(width == 0 && d.Declared(n, "outline-width"))
		if suppressed {
			if customFocusStyle(style) {
				return nil
			}
			return []domain.Finding{focusFinding(d, n, verdict(domain.StatusRecommendFix,
				"요소의 outline이 제거(outline: none 또는 0)되었으나 이를 대체하는 초점 스타일(box-shadow, 테두리 등)이 확인되지 않습니다. 키보드 초점이 시각적으로 표시되도록 수정하세요.",
				"Rule 2.1.2 (Focus Visibility)"))}
		}
		if styleNone || width <= 0 || !d.Declared(n, "outline-style", "outline-color") {
			return nil
		}
		outline, ok := style.Color("outline-color")
		if !ok {
			return nil
		}
		if ratio := heuristics.Contrast(outline, pageBg); ratio < 3 {
			return []domain.Finding{focusFinding(d, n, verdict(domain.StatusNeedsReview,
				fmt.Sprintf("초점 테두리(outline)와 페이지 배경의 명도 대비가 %.2f:1로 3:1보다 낮습니다. 초점 표시가 충분히 식별되는지 확인하세요.", ratio),
				"Rule 2.1.2 (Focus Indicator Contrast)"))}
		}
		return nil
	})

	problematic := 0
	for _, n := range d.Find("[tabindex]").Nodes {
		if ctx.Err() != nil {
			return out
		}
		if index, _ := tabIndex(n); index > 0 && !earlyInDocument(d, n) {
			problematic++
		}
	}
	if problematic > 0 {
		out = append(out, focusPageFinding(domain.StatusRecommendFix,
			fmt.Sprintf("문서 중간/하단에 위치한 요소들에 양수 값의 tabindex(%d개)가 존재합니다. 이는 논리적인 초점 이동 순서를 방해할 수 있으므로, 가급적 DOM 구조를 통해 순서를 제어할 것을 권장합니다.", problematic)))
	}
	return append(out, focusPageFinding(domain.StatusNeedsReview,
		"[수동 검사 안내] 페이지에 진입한 후 키보드의 Tab 키를 눌러보세요. 모든 링크와 버튼을 이동할 때 초점(점선 테두리 등)이 화면에 명확하게 시각적으로 표시되는지 육안으로 확인해야 합니다."))
}

func customFocusStyle(style dom.Style) bool {
	if shadow := style.Get("box-shadow"); shadow != "" && shadow != "none" {
		return true
	}
	width, _ := style.Px("border-width")
	return width > 0 && style.Get("border-style") != "none"
}

// earlyInDocument reports whether every ancestor up to body sits among the first six
// children of its parent.
func earlyInDocument(d *dom.Document, n *html.Node) bool {
	body := d.Body()
	for cur := n; cur != nil && cur != body; cur = dom.ParentElement(cur) {
		if dom.SiblingIndex(cur) > 5 {
			return false
		}
	}
	return true
}

func focusFinding(d *dom.Document, n *html.Node, v domain.Verdict) domain.Finding {
	f := finding(d, n, v)
	style := d.Style(n)
	f.Context.Details = map[string]any{
		"tabindex": dom.AttrOr(n, "tabindex", ""),
		"outline":  strings.TrimSpace(style.Get("outline-style") + " " + style.Get("outline-width") + " " + style.Get("outline-color")),
	}
	return f
}

func focusPageFinding(status domain.Status, message string) domain.Finding {
	f := pageFinding(selectorDocument, "BODY", verdict(status, message, "Rule 2.1.2 (Focus Order)"))
	f.Context.SmartContext = "페이지 전체 초점 흐름 검사"
	return f
}

func scanTargetSize(ctx context.Context, d *dom.Document) []domain.Finding {
	out := each(ctx, d, `button, a, input, select, textarea, [role="button"], [role="link"], [role="menuitem"]`, func(n *html.Node) []domain.Finding {
		if dom.Tag(n) == "a" && d.Style(n).Get("display") == "inline" {
			return nil
		}
		if heuristics.IsHidden(d, n) {
			return nil
		}
		box := d.Box(n)
		if !box.SizeKnown {
			return nil
		}
		w, h := math.Round(box.Width), math.Round(box.Height)
		v := verdict(domain.StatusPass, fmt.Sprintf("터치 타겟 크기가 충분합니다. (%gx%gpx)", w, h))
		if box.Width > 0 && box.Height > 0 && (box.Width < 24 || box.Height < 24) {
			v = verdict(domain.StatusNeedsReview,
				fmt.Sprintf("터치 타겟 크기가 너무 작을 수 있습니다 (%gx%gpx). 모바일 환경인 경우 약 24px 이상인지 확인하세요.", w, h),
				"Rule 2.1.3 (Small Target Size)")
		}
		f := finding(d, n, v)
		f.Context.SmartContext = fmt.Sprintf("Size: %gx%gpx | %s", w, h, f.Context.SmartContext)
		return []domain.Finding{f}
	})
	if len(out) == 0 {
		out = append(out, guidance(domain.StatusNeedsReview,
			"크기를 정적으로 확인할 수 있는 대화형 요소가 없습니다. 버튼과 링크의 터치 영역이 24x24px 이상인지 실제 화면에서 확인하세요.",
			"Rule 2.1.3 (Manual Target Size Review)"))
	}
	return out
}

func scanShortcuts(ctx context.Context, d *dom.Document) []domain.Finding {
	out := each(ctx, d, "[onkeydown], [onkeypress], [onkeyup]", func(n *html.Node) []domain.Finding {
		if heuristics.IsHidden(d, n) {
			return nil
		}
		handlers := strings.ToLower(dom.AttrOr(n, "onkeydown", "") + dom.AttrOr(n, "onkeypress", "") + dom.AttrOr(n, "onkeyup", ""))
		if handlers == "" {
			return nil
		}
		if _, modified := containsAny(handlers, []string{"ctrlkey", "altkey", "metakey"}); modified {
			return nil
		}
		return []domain.Finding{finding(d, n, verdict(domain.StatusNeedsReview,
			"해당 요소에 특수키(Ctrl, Alt 등)를 확인하지 않는 키보드 이벤트 핸들러가 있습니다. 단일 문자 단축키로 작동하는 경우 제어 수단(끄기/변경)이 있는지 확인하세요.",
			"Rule 2.1.4 (Single Key Shortcut Suspected)"))}
	})
	page := pageFinding(selectorBody, "document", verdict(domain.StatusNeedsReview,
		"이 페이지에서 Ctrl, Alt 등 특수키 조합 없이 단일 문자(예: 'J', 'K', '?')만으로 작동하는 단축키가 있는지 확인하세요. 만약 있다면, 해당 단축키를 끄거나 재설정할 수 있는 수단을 제공해야 합니다.",
		"Rule 2.1.4 (Character Key Shortcuts)"))
	page.Context.SmartContext = "전역 단일 문자 단축키 사용 여부 검토"
	return append(out, page)
}
