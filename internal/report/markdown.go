// Package report renders reviewed findings as a Markdown document for QA hand-off.
package report

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"AccessibilityScanner/internal/domain"
)

// GuidelineLabel returns the display name of a guideline, or the id when unknown.
func GuidelineLabel(id string) string {
	if label, ok := guidelineLabels[id]; ok {
		return id + " " + label
	}
	return id
}

var guidelineLabels = map[string]string{
	"1.1.1": "적절한 대체 텍스트 제공",
	"1.2.1": "자막 제공",
	"1.3.1": "표의 구성",
	"1.3.2": "콘텐츠의 선형구조",
	"1.3.3": "명확한 지시사항 제공",
	"1.4.1": "색에 무관한 콘텐츠 인식",
	"1.4.2": "자동 재생 금지",
	"1.4.3": "텍스트 콘텐츠의 명도 대비",
	"1.4.4": "콘텐츠 간의 구분",
	"2.1.1": "키보드 사용 보장",
	"2.1.2": "초점 이동과 표시",
	"2.1.3": "조작 가능",
	"2.1.4": "문자 단축키",
	"2.2.1": "응답시간 조절",
	"2.2.2": "정지 기능 제공",
	"2.3.1": "깜빡임과 번쩍임 사용 제한",
	"2.4.1": "반복 영역 건너뛰기",
	"2.4.2": "제목 제공",
	"2.4.3": "적절한 링크 텍스트",
	"2.4.4": "고정된 참조 위치 정보",
	"2.5.1": "단일 포인터 입력 지원",
	"2.5.2": "포인터 입력 취소",
	"2.5.3": "레이블과 네임",
	"2.5.4": "동작기반 작동",
	"3.1.1": "기본 언어 표시",
	"3.2.1": "사용자 요구에 따른 실행",
	"3.2.2": "찾기 쉬운 도움 정보",
	"3.3.1": "오류 정정",
	"3.3.2": "레이블 제공",
	"3.3.3": "접근 가능한 인증",
	"3.3.4": "반복 입력 정보",
	"4.1.1": "마크업 오류 방지",
	"4.2.1": "웹 애플리케이션 접근성 준수",
}

// Summary counts findings by their current (reviewer-owned) status.
type Summary struct {
	Fail          int
	Inappropriate int
	RecommendFix  int
	NeedsReview   int
	Pass          int
	Total         int
}

// Summarize tallies findings by current status.
func Summarize(findings []domain.Finding) Summary {
	var s Summary
	for _, f := range findings {
		s.Total++
		switch current(f) {
		case domain.StatusFail:
			s.Fail++
		case domain.StatusInappropriate:
			s.Inappropriate++
		case domain.StatusRecommendFix:
			s.RecommendFix++
		case domain.StatusNeedsReview:
			s.NeedsReview++
		case domain.StatusPass:
			s.Pass++
		}
	}
	return s
}

// Markdown renders the review report: a summary block, then every non-Pass finding grouped
// by guideline in first-seen order.
func Markdown(findings []domain.Finding, date time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# 🛡️ ABT 접근성 진단 리포트 (%s)\n\n", date.Format("2006-01-02"))

	s := Summarize(findings)
	b.WriteString("## 📊 진단 요약\n")
	fmt.Fprintf(&b, "- **❌ 오류:** %d건\n", s.Fail)
	fmt.Fprintf(&b, "- **🚫 부적절:** %d건\n", s.Inappropriate)
	fmt.Fprintf(&b, "- **⚠️ 수정 권고:** %d건\n\n", s.RecommendFix)
	b.WriteString("---\n\n")

	var order []string
	groups := map[string][]domain.Finding{}
	for _, f := range findings {
		if current(f) == domain.StatusPass {
			continue
		}
		if _, ok := groups[f.GuidelineID]; !ok {
			order = append(order, f.GuidelineID)
		}
		groups[f.GuidelineID] = append(groups[f.GuidelineID], f)
	}

	for _, gid := range order {
		fmt.Fprintf(&b, "## 📘 %s\n\n", GuidelineLabel(gid))
		for _, f := range groups[gid] {
			status := current(f)
			fmt.Fprintf(&b, "### %s [%s] %s\n", icon(status), status, f.Element.Selector)
			fmt.Fprintf(&b, "- **진단 결과:** %s\n", f.Verdict.Message)
			if f.ReviewerComment != "" {
				fmt.Fprintf(&b, "- **QA 전문가 소견:** %s\n", f.ReviewerComment)
			}
			fmt.Fprintf(&b, "- **대상 요소:** `%s`\n", f.Element.TagName)
			fmt.Fprintf(&b, "- **주변 맥락:** *\"%s\"*\n\n", f.Context.SmartContext)
		}
	}

	b.WriteString("---\n*Generated by ABT (A11Y Browser Tester)*")
	return b.String()
}

// Digest is the short notification text sent after a scheduled pass.
func Digest(page domain.PageContext, findings []domain.Finding) string {
	s := Summarize(findings)
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n%s\n", page.PageTitle, page.URL)
	fmt.Fprintf(&b, "scan %d: 오류 %d, 부적절 %d, 수정 권고 %d, 검토 필요 %d (총 %d건)\n",
		page.ScanID, s.Fail, s.Inappropriate, s.RecommendFix, s.NeedsReview, s.Total)

	failing := map[string]int{}
	for _, f := range findings {
		if current(f) == domain.StatusFail {
			failing[f.GuidelineID]++
		}
	}
	ids := make([]string, 0, len(failing))
	for id := range failing {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		fmt.Fprintf(&b, "- %s: %d\n", GuidelineLabel(id), failing[id])
	}
	return b.String()
}

func current(f domain.Finding) domain.Status {
	if f.CurrentStatus != "" {
		return f.CurrentStatus
	}
	return f.Verdict.Status
}

func icon(status domain.Status) string {
	switch status {
	case domain.StatusFail:
		return "❌"
	case domain.StatusInappropriate:
		return "🚫"
	default:
		return "⚠️"
	}
}
