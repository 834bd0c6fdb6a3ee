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

var transcriptKeywords = []string{"대본", "원고", "자막", "transcript", "caption", "script"}

func scanCaptions(ctx context.Context, d *dom.Document) []domain.Finding {
	return each(ctx, d, `video, audio, iframe[src*="youtube"], iframe[src*="vimeo"]`, func(n *html.Node) []domain.Finding {
		return []domain.Finding{analyzeMedia(d, n)}
	})
}

func analyzeMedia(d *dom.Document, n *html.Node) domain.Finding {
	tag := dom.Tag(n)
	hasTrack := d.Select(n).Find(`track[kind="captions"], track[kind="subtitles"]`).Length() > 0
	smart := heuristics.SmartContext(d, n, 150)
	keywords := matchedAll(smart, transcriptKeywords)

	var v domain.Verdict
	switch {
	case tag == "iframe":
		if title := strings.TrimSpace(dom.AttrOr(n, "title", "")); title == "" {
			v = verdict(domain.StatusRecommendFix,
				"외부 영상 프레임(iframe)에 식별 가능한 title 속성이 누락되었습니다. (자막 제공 여부와 별개로 프레임 제목 제공 필요)",
				"Rule 3.1 (Missing Frame Title)")
		} else {
			v = verdict(domain.StatusNeedsReview,
				fmt.Sprintf("외부 플랫폼 영상(%s)이 감지되었습니다. 플레이어 내 자막 제공 여부 및 페이지 내 원고 포함 여부를 확인하세요.", title),
				"Rule 3.2 (External Player Check)")
		}
	case tag == "video" && dom.HasAttr(n, "muted") && dom.HasAttr(n, "autoplay"):
		v = verdict(domain.StatusPass,
			"소리가 없는 배경 영상으로 판단되어 자막 제공 대상에서 제외되었습니다.",
			"Rule 1.1 (Background Video)")
	case hasTrack:
		v = verdict(domain.StatusNeedsReview,
			"자막 트랙(<track>)이 탐지되었습니다. 실제 영상 내용과 자막이 일치하는지 확인하세요.",
			"Rule 2.1 (Track Detected)")
	case len(keywords) == 0:
		v = verdict(domain.StatusFail,
			"미디어 콘텐츠에 자막(<track>) 또는 설명 원고가 제공되지 않았습니다. 자막 제공을 요청하세요.",
			"Rule 2.2 (Missing Captions)")
	default:
		v = verdict(domain.StatusNeedsReview,
			fmt.Sprintf("자막 트랙은 없으나 주변 맥락에서 관련 키워드(%s)가 발견되었습니다. 실제 원고 제공 여부를 확인하세요.", strings.Join(keywords, ", ")),
			"Rule 2.3 (Manual Script Check)")
	}

	f := finding(d, n, v)
	f.Context.SmartContext = smart
	f.Element.Src = resolveURL(d, dom.AttrOr(n, "src", ""))
	if f.Element.Src == "" {
		f.Element.Src = "Source Injected/Custom Player"
	}
	f.Context.Details = map[string]any{"hasTrack": hasTrack, "foundKeywords": keywords}
	return f
}

func scanAutoplay(ctx context.Context, d *dom.Document) []domain.Finding {
	return each(ctx, d, `video, audio, iframe[src*="youtube.com"], iframe[src*="vimeo.com"]`, func(n *html.Node) []domain.Finding {
		v := verdict(domain.StatusNeedsReview,
			"미디어 요소가 감지되었습니다. 페이지 로드 시 소리가 자동으로 재생되는지, 그리고 이를 제어할 수 있는 수단이 있는지 수동으로 확인하세요.",
			"Rule 1.4.2 (Manual Audio Review)")
		if dom.HasAttr(n, "autoplay") && !dom.HasAttr(n, "muted") && !dom.HasAttr(n, "controls") {
			v = verdict(domain.StatusRecommendFix,
				"자동 재생되는 미디어에 정지 또는 음량 조절 수단(controls)이 보이지 않습니다. 3초 이상 재생되는 소리를 제어할 수 있는지 확인하세요.",
				"Rule 1.4.2 (Autoplay Without Controls)")
		}
		return []domain.Finding{finding(d, n, v)}
	})
}
