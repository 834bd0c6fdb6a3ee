package checks

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"AccessibilityScanner/internal/dom"
	"AccessibilityScanner/internal/domain"
	"AccessibilityScanner/internal/heuristics"
)

const ruleLogicalOrdering = "Rule 1.1 (Logical Ordering)"

// HeadingOutline is one entry of the page's heading outline.
type HeadingOutline struct {
	Level    int    `json:"level"`
	Text     string `json:"text"`
	Selector string `json:"selector"`
}

func scanReadingOrder(ctx context.Context, d *dom.Document) []domain.Finding {
	out := each(ctx, d, "body *", func(n *html.Node) []domain.Finding {
		style := d.Style(n)
		var fs []domain.Finding
		if order := style.Get("order"); order != "0" && order != "initial" && order != "" {
			fs = append(fs, finding(d, n, verdict(domain.StatusNeedsReview,
				fmt.Sprintf("CSS 'order' 속성(%s)이 사용되었습니다. 시각적 순서와 마크업 순서가 일치하여 논리적 맥락을 유지하는지 확인하세요.", order),
				ruleLogicalOrdering)))
		}
		if dir := style.Get("flex-direction"); dir == "row-reverse" || dir == "column-reverse" {
			fs = append(fs, finding(d, n, verdict(domain.StatusNeedsReview,
				fmt.Sprintf("Flex 방향이 '%s'로 설정되었습니다. 콘텐츠의 읽기 순서가 논리적인지 검토가 필요합니다.", dir),
				ruleLogicalOrdering)))
		}
		if dom.HasAttr(n, "aria-flowto") {
			fs = append(fs, finding(d, n, verdict(domain.StatusNeedsReview,
				"aria-flowto 속성이 사용되었습니다. 보조기술 사용자가 예상한 읽기 순서대로 작동하는지 확인하세요.",
				ruleLogicalOrdering)))
		}
		return fs
	})

	out = append(out, each(ctx, d, `table[role="presentation"], table[role="none"]`, func(n *html.Node) []domain.Finding {
		return []domain.Finding{finding(d, n, verdict(domain.StatusNeedsReview,
			"레이아웃용 표가 감지되었습니다. CSS 레이아웃(Flex/Grid)으로 전환을 권장하며, 제거 시에도 선형 구조가 유지되는지 확인하세요.",
			ruleLogicalOrdering))}
	})...)

	headings := d.Find("h1, h2, h3, h4, h5, h6").Nodes
	if len(headings) == 0 {
		return out
	}
	outline := make([]HeadingOutline, 0, len(headings))
	for _, h := range headings {
		level, _ := strconv.Atoi(dom.Tag(h)[1:])
		outline = append(outline, HeadingOutline{
			Level:    level,
			Text:     strings.TrimSpace(d.Text(h)),
			Selector: heuristics.Selector(h),
		})
	}
	summary := pageFinding("outline", "BODY", verdict(domain.StatusPass,
		fmt.Sprintf("페이지 내에 총 %d개의 헤딩이 존재합니다.", len(headings))))
	summary.Context = domain.Context{
		SmartContext: "페이지 헤딩 구조(Heading Outline) 분석 결과입니다.",
		Details:      map[string]any{"outline": outline},
	}
	out = append(out, summary)

	prev := 0
	for _, h := range outline {
		if prev > 0 && h.Level > prev+1 {
			f := pageFinding(h.Selector, fmt.Sprintf("H%d", h.Level), verdict(domain.StatusRecommendFix,
				"헤딩 수준을 순차적으로 사용하는 것을 권장합니다 (예: h1 -> h2 -> h3).",
				"Rule 1.2 (Heading Sequence)"))
			f.Context.SmartContext = fmt.Sprintf("이전 헤딩(H%d)에서 바로 H%d로 건너뛰었습니다.", prev, h.Level)
			out = append(out, f)
		}
		prev = h.Level
	}
	return out
}

var sensoryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(왼쪽|오른쪽|위쪽|아래쪽|상단|하단|옆|측면|앞|뒤)[\s\w]*(버튼|링크|아이콘|메뉴|항목|탭|클릭|누르|선택|참조|확인|사용)`),
	regexp.MustCompile(`(?i)(빨간|파란|노란|초록|검정|흰색|어두운|밝은)[\s\w]*(색|버튼|링크|아이콘|클릭|누르|항목)`),
	regexp.MustCompile(`(?i)(동그란|네모난|원형|사각형|둥근|모양|큰|작은)[\s\w]*(버튼|링크|아이콘|클릭|누르|항목)`),
	regexp.MustCompile(`(?i)(소리|신호음|비프|벨|음성)[\s\w]*(로|를|가|이|들리면|나면|확인)`),
}

func scanSensory(ctx context.Context, d *dom.Document) []domain.Finding {
	return each(ctx, d, "p, span, div, li, label, h1, h2, h3, h4, h5, h6", func(n *html.Node) []domain.Finding {
		text := directText(n)
		if text == "" {
			return nil
		}
		for _, p := range sensoryPatterns {
			if m := p.FindString(text); m != "" {
				return []domain.Finding{finding(d, n, verdict(domain.StatusNeedsReview,
					fmt.Sprintf("지시사항에 감각적 표현이 포함된 구문(\"%s\")이 탐지되었습니다. 시각이나 청각 등 특정 감각에만 의존하여 정보를 전달하고 있지 않은지 수동으로 검토하세요.", m),
					"Rule 1.3.3 (Sensory Characteristics)"))}
			}
		}
		return nil
	})
}

// directText joins the trimmed text children of n with single spaces.
func directText(n *html.Node) string {
	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			if t := strings.TrimSpace(c.Data); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, " ")
}
