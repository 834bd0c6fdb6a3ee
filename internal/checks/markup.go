package checks

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"AccessibilityScanner/internal/dom"
	"AccessibilityScanner/internal/domain"
	"AccessibilityScanner/internal/heuristics"
)

func scanMarkup(ctx context.Context, d *dom.Document) []domain.Finding {
	first := map[string]*html.Node{}
	counts := map[string]int{}
	var order []string
	for _, n := range d.Find("[id]").Nodes {
		if ctx.Err() != nil {
			return nil
		}
		id := strings.TrimSpace(dom.AttrOr(n, "id", ""))
		if id == "" {
			continue
		}
		if _, seen := first[id]; !seen {
			first[id] = n
		}
		counts[id]++
		if counts[id] == 2 {
			order = append(order, id)
		}
	}

	if len(order) == 0 {
		f := pageFinding(selectorBody, "BODY", verdict(domain.StatusNeedsReview,
			"[수동 검사 안내] 중복된 ID 속성은 발견되지 않았습니다. 단, 브라우저가 자동 보정한 태그 중첩 오류나 속성 중복 선언 등은 확장 프로그램이 완벽히 잡아낼 수 없으므로, W3C Nu HTML Checker 등 외부 도구를 이용해 최종 마크업 유효성을 검사하세요.",
			"Rule 4.1.1 (Manual Markup Review Required)"))
		f.Context.SmartContext = "마크업 유효성 검사"
		return []domain.Finding{f}
	}

	out := make([]domain.Finding, 0, len(order))
	for _, id := range order {
		out = append(out, finding(d, first[id], verdict(domain.StatusFail,
			fmt.Sprintf("문서 내에 중복된 ID 속성값(\"%s\")이 %d개 존재합니다. ID는 문서 내에서 유일해야 하며, 중복 시 aria-labelledby나 label 연결 등 보조기기의 탐색을 심각하게 방해합니다.", id, counts[id]),
			"Rule 4.1.1 (Duplicate ID)")))
	}
	return out
}

var focusRoles = map[string]bool{"button": true, "link": true, "checkbox": true, "switch": true, "tab": true, "menuitem": true}

var nativeFocus = map[string]bool{"a": true, "button": true, "input": true, "select": true, "textarea": true}

func scanAria(ctx context.Context, d *dom.Document) []domain.Finding {
	out := each(ctx, d, `[role="button"], [role="link"], [role="checkbox"], [role="switch"], [role="tab"], [role="dialog"], [role="menuitem"], [role="combobox"]`, func(n *html.Node) []domain.Finding {
		if heuristics.IsHidden(d, n) {
			return nil
		}
		role := dom.AttrOr(n, "role", "")
		v := verdict(domain.StatusNeedsReview,
			fmt.Sprintf("역할(role=\"%s\")이 부여된 커스텀 위젯입니다. 상태 변화가 스크린 리더에 잘 전달되고 키보드로 조작 가능한지 확인하세요.", role),
			"Rule 4.2.1 (Custom Widget Review)")
		if focusRoles[role] && !nativeFocus[dom.Tag(n)] && !dom.HasAttr(n, "tabindex") {
			v.Status = domain.StatusRecommendFix
			v.Message = fmt.Sprintf("역할(role=\"%s\")이 부여되었으나 초점을 받을 수 없습니다(tabindex 누락). 키보드 접근성이 심각하게 훼손되었을 가능성이 있습니다.", role)
			v.Rules = append(v.Rules, "Rule 4.2.1 (Missing Tabindex on Widget)")
		}
		f := finding(d, n, v)
		f.Context.SmartContext = "Role: " + role
		return []domain.Finding{f}
	})

	if len(out) == 0 {
		f := pageFinding(selectorBody, "BODY", verdict(domain.StatusNotApplicable,
			"페이지 내에 커스텀 ARIA 위젯(role='button' 등)이 발견되지 않았습니다. 일반적인 HTML 문서일 가능성이 높습니다.",
			"Rule 4.2.1 (No Custom Widgets)"))
		f.Context.SmartContext = "없음"
		return []domain.Finding{f}
	}

	f := pageFinding(selectorBody, "BODY", verdict(domain.StatusNeedsReview,
		fmt.Sprintf("[수동 검사 안내] 커스텀 ARIA 위젯이 총 %d개 발견되었습니다. 이 위젯들이 1) 키보드만으로 조작 가능한지, 2) 상태 변화(aria-expanded, aria-checked 등)가 스크린 리더에 정확히 전달되는지 수동으로 검토하세요.", len(out)),
		"Rule 4.2.1 (Manual ARIA Review)"))
	f.Context.SmartContext = "웹 애플리케이션 종합 검토"
	return append(out, f)
}
