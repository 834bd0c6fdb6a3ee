package checks

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"golang.org/x/net/html"

	"AccessibilityScanner/internal/dom"
	"AccessibilityScanner/internal/domain"
)

var refreshDelay = regexp.MustCompile(`^\d+`)

func scanTiming(ctx context.Context, d *dom.Document) []domain.Finding {
	v := verdict(domain.StatusNeedsReview,
		"페이지 내에 자동 새로고침(meta refresh) 이외의 시간 제한(세션 만료, 팝업 자동 닫힘 등)이 있다면, 사용자가 시간을 연장하거나 정지할 수 있는 수단이 제공되는지 수동으로 확인하세요.",
		"Rule 2.2.1 (Manual Review)")

	meta := d.Find(`meta[http-equiv="refresh"]`).First()
	if meta.Length() == 0 {
		f := pageFinding(selectorBody, "BODY", v)
		f.Context.SmartContext = "JavaScript 기반 타이머/시간 제한 수동 검토"
		return []domain.Finding{f}
	}

	n := meta.Nodes[0]
	if m := refreshDelay.FindString(dom.AttrOr(n, "content", "")); m != "" {
		if delay, err := strconv.Atoi(m); err == nil && delay > 0 {
			v.Status = domain.StatusFail
			v.Message = `<meta http-equiv="refresh"> 태그를 사용한 자동 새로고침/리다이렉트가 감지되었습니다. 사용자가 이를 제어할 수 없습니다.`
			v.Rules = append(v.Rules, "Rule 2.2.1 (Meta Refresh)")
		}
	}
	f := finding(d, n, v)
	f.Context.SmartContext = dom.AttrOr(n, "content", "")
	return []domain.Finding{f}
}

var pauseWords = []string{"정지", "멈춤", "pause", "stop"}

func scanPauseStop(ctx context.Context, d *dom.Document) []domain.Finding {
	out := each(ctx, d, "video, audio", func(n *html.Node) []domain.Finding {
		autoplay := dom.HasAttr(n, "autoplay")
		v := verdict(domain.StatusPass, "미디어 요소가 적절히 제공되었습니다.")
		switch {
		case autoplay && !dom.HasAttr(n, "controls"):
			v = verdict(domain.StatusFail,
				"자동 재생되는 미디어에 정지/제어 수단(controls)이 제공되지 않았습니다.",
				"Rule 2.2.2 (Autoplay without Controls)")
		case autoplay || dom.HasAttr(n, "loop"):
			v = verdict(domain.StatusNeedsReview,
				"자동 재생되거나 반복되는 미디어가 감지되었습니다. 3초 이상 지속되는 경우 사용자가 정지할 수 있는지 확인하세요.",
				"Rule 2.2.2 (Review Autoplay/Loop)")
		}
		return []domain.Finding{finding(d, n, v)}
	})

	out = append(out, each(ctx, d, `[class*="carousel"], [class*="slider"], [class*="swiper"], [role="marquee"], [role="timer"]`, func(n *html.Node) []domain.Finding {
		paused := false
		for _, c := range d.Select(n).Find(`button, [role="button"], a`).Nodes {
			if _, ok := containsAny(dom.TextContent(c)+" "+dom.AttrOr(c, "aria-label", ""), pauseWords); ok {
				paused = true
				break
			}
		}
		v := verdict(domain.StatusNeedsReview,
			"자동으로 갱신되는 슬라이더/캐러셀일 경우, 정지(Pause) 버튼이 제공되는지 수동으로 확인하세요.",
			"Rule 2.2.2 (Carousel Controls)")
		if paused {
			v.Status = domain.StatusPass
			v.Message = "슬라이더/캐러셀 내에 정지(Pause/Stop) 관련 컨트롤이 감지되었습니다."
		}
		return []domain.Finding{finding(d, n, v)}
	})...)

	if len(out) == 0 {
		f := pageFinding(selectorBody, "BODY", verdict(domain.StatusNeedsReview,
			"자동으로 변경되는 콘텐츠(슬라이더, 롤링 배너 등)가 있다면 정지/이전/다음 컨트롤이 제공되는지 확인하세요.",
			"Rule 2.2.2 (General Manual Review)"))
		f.Context.SmartContext = "자동 변경 콘텐츠 검토"
		out = append(out, f)
	}
	return out
}

func scanFlashing(ctx context.Context, d *dom.Document) []domain.Finding {
	out := each(ctx, d, "marquee, blink, video", func(n *html.Node) []domain.Finding {
		tag := dom.Tag(n)
		v := verdict(domain.StatusNeedsReview,
			"페이지 내에 동적 미디어 요소(비디오 등)가 감지되었습니다. 1초에 3회 이상 번쩍이는 콘텐츠가 포함되어 있는지 수동으로 확인하세요.",
			"Rule 2.3.1 (Manual Review)", "Rule 2.3.1 (Check Media Content)")
		if tag == "marquee" || tag == "blink" {
			v = verdict(domain.StatusFail,
				fmt.Sprintf("<%s> 태그가 사용되었습니다. 이 태그는 접근성을 심각하게 저해하며 최신 웹 표준에서 폐기되었으므로 사용을 금지합니다.", tag),
				"Rule 2.3.1 (Manual Review)", "Rule 2.3.1 (Deprecated Tags)")
		}
		return []domain.Finding{finding(d, n, v)}
	})
	if len(out) == 0 {
		f := pageFinding(selectorBody, "BODY", verdict(domain.StatusNeedsReview,
			"초당 3~50회의 주기로 번쩍이는 콘텐츠가 있는지 수동으로 검토하세요. (광과민성 발작 주의)",
			"Rule 2.3.1 (Manual Review)"))
		f.Context.SmartContext = "문서 전체 검토"
		out = append(out, f)
	}
	return out
}
