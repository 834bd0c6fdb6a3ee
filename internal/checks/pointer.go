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
)

func scanPointerGestures(ctx context.Context, d *dom.Document) []domain.Finding {
	out := each(ctx, d, `[draggable="true"], .draggable, [role="slider"]`, func(n *html.Node) []domain.Finding {
		if heuristics.IsHidden(d, n) {
			return nil
		}
		f := finding(d, n, verdict(domain.StatusNeedsReview,
			"이 요소에 드래그, 핀치 줌, 스와이프 등 복잡한 제스처가 사용되었다면, 단일 포인터(탭, 클릭)만으로도 모든 기능을 수행할 수 있는 대체 수단(예: 이동 버튼, 확대/축소 버튼 등)이 제공되는지 확인하세요.",
			"Rule 2.5.1 (Single Pointer Support)"))
		f.Context.SmartContext = "복잡한 제스처(드래그, 스와이프 등)가 쓰였을 것으로 예상되는 요소입니다."
		return []domain.Finding{f}
	})
	out = append(out, each(ctx, d, "[ontouchstart], [ontouchmove]", func(n *html.Node) []domain.Finding {
		handlers := dom.AttrOr(n, "ontouchstart", "") + dom.AttrOr(n, "ontouchmove", "")
		if !strings.Contains(handlers, "preventDefault") {
			return nil
		}
		return []domain.Finding{finding(d, n, verdict(domain.StatusNeedsReview,
			"터치 이벤트 핸들러에서 기본 동작(preventDefault)을 막고 있습니다. 제스처 대신 단일 포인터로 같은 기능을 수행할 수 있는지 확인하세요.",
			"Rule 2.5.1 (Touch Gesture Handler)"))}
	})...)
	if len(out) == 0 {
		out = append(out, guidance(domain.StatusNeedsReview,
			"드래그나 다중 손가락 제스처가 필요한 요소는 탐지되지 않았습니다. 스크립트로 구현된 제스처가 있다면 단일 포인터 대체 수단이 있는지 확인하세요.",
			"Rule 2.5.1 (Manual Gesture Review)"))
	}
	return out
}

func scanPointerCancel(ctx context.Context, d *dom.Document) []domain.Finding {
	out := each(ctx, d, `a, button, [role="button"], [onclick], [onmousedown], [ontouchstart]`, func(n *html.Node) []domain.Finding {
		if heuristics.IsHidden(d, n) {
			return nil
		}
		down := dom.HasAttr(n, "onmousedown") || dom.HasAttr(n, "ontouchstart")
		up := dom.HasAttr(n, "onmouseup") || dom.HasAttr(n, "ontouchend") || dom.HasAttr(n, "onclick")
		if !down || up {
			return nil
		}
		f := finding(d, n, verdict(domain.StatusNeedsReview,
			"이 요소에는 누르는 즉시(onmousedown/ontouchstart) 기능이 실행될 가능성이 있는 인라인 핸들러가 포함되어 있습니다. 마우스 버튼을 떼기 전에 동작을 취소할 수 있는지 수동으로 확인하세요.",
			"Rule 2.5.2 (Pointer Abort)"))
		f.Context.SmartContext = "포인터 다운 이벤트 핸들러가 감지되었습니다."
		return []domain.Finding{f}
	})
	if len(out) == 0 {
		out = append(out, guidance(domain.StatusNeedsReview,
			"누르는 즉시 실행되는 인라인 핸들러는 탐지되지 않았습니다. 스크립트로 등록된 포인터 이벤트가 있다면 버튼을 뗄 때 실행되는지 확인하세요.",
			"Rule 2.5.2 (Manual Pointer Review)"))
	}
	return out
}

var labelPunctuation = regexp.MustCompile(`[.,!?'"(){}\[\]<>-]`)

func normalizeLabel(s string) string {
	s = labelPunctuation.ReplaceAllString(strings.ToLower(s), "")
	return dom.CollapseSpace(s)
}

func scanLabelInName(ctx context.Context, d *dom.Document) []domain.Finding {
	return each(ctx, d, `a, button, input[type="button"], input[type="submit"], input[type="reset"], [role="button"], [role="link"], label`, func(n *html.Node) []domain.Finding {
		if heuristics.IsHidden(d, n) {
			return nil
		}
		text := strings.TrimSpace(d.Text(n))
		if text == "" {
			return nil
		}
		if !dom.HasAttr(n, "aria-label") && !dom.HasAttr(n, "aria-labelledby") && !dom.HasAttr(n, "title") && !dom.HasAttr(n, "alt") {
			return nil
		}
		name := heuristics.AccessibleName(d, n)
		visibleLabel, accName := normalizeLabel(text), normalizeLabel(name)
		if visibleLabel == "" || accName == "" || strings.Contains(accName, visibleLabel) {
			return nil
		}
		f := finding(d, n, verdict(domain.StatusFail,
			fmt.Sprintf("시각적 레이블(\"%s\")이 프로그램적 네임(\"%s\")에 포함되어 있지 않습니다. 음성 제어 사용자의 혼란을 방지하기 위해 시각적 텍스트를 네임의 시작 부분에 포함하세요.", text, name),
			"Rule 2.5.3 (Label in Name)"))
		f.Context.SmartContext = fmt.Sprintf("Visual: \"%s\" / AccName: \"%s\"", text, name)
		return []domain.Finding{f}
	})
}

func scanMotion(ctx context.Context, d *dom.Document) []domain.Finding {
	f := guidance(domain.StatusNeedsReview,
		"[수동 검사 항목] 이 페이지(또는 앱)에서 기기를 흔들거나 기울이는 동작을 요구하는 기능이 있다면, 버튼 클릭 등 정적인 입력으로도 동일한 기능을 수행할 수 있는지 수동으로 점검하세요.",
		"Rule 2.5.4 (Manual Inspection Required)")
	f.Element = domain.ElementRef{TagName: "document", Selector: selectorBody}
	f.Context.SmartContext = "기기 동작(Motion/Orientation) 센서 사용 여부 전면 수동 검사"
	return []domain.Finding{f}
}
