package domain

import "time"

// Status is the verdict category attached to a finding. Values are the labels the review
// board displays, so they travel over the wire unchanged.
type Status string

const (
	StatusPass          Status = "적절"
	StatusFail          Status = "오류"
	StatusInappropriate Status = "부적절"
	StatusRecommendFix  Status = "수정 권고"
	StatusNeedsReview   Status = "검토 필요"
	StatusNotApplicable Status = "N/A"
)

// StatusDetected marks the first history entry of a finding that arrived without a verdict.
const StatusDetected Status = "탐지"

var statusNames = map[Status]string{
	StatusPass:          "Pass",
	StatusFail:          "Fail",
	StatusInappropriate: "Inappropriate",
	StatusRecommendFix:  "RecommendFix",
	StatusNeedsReview:   "NeedsReview",
	StatusNotApplicable: "NotApplicable",
	StatusDetected:      "Detected",
}

var statusSeverity = map[Status]int{
	StatusPass:          0,
	StatusNotApplicable: 1,
	StatusNeedsReview:   2,
	StatusRecommendFix:  3,
	StatusInappropriate: 4,
	StatusFail:          5,
}

// Name returns the English identifier used in logs and metrics.
func (s Status) Name() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return string(s)
}

// Severity orders verdicts from Pass (0) to Fail (5). Unknown values rank as Pass.
func (s Status) Severity() int {
	return statusSeverity[s]
}

// Valid reports whether s is one of the verdict categories.
func (s Status) Valid() bool {
	_, ok := statusSeverity[s]
	return ok
}

// ParseStatus accepts either the wire label or the English name.
func ParseStatus(value string) (Status, bool) {
	for status, name := range statusNames {
		if value == string(status) || value == name {
			return status, true
		}
	}
	return "", false
}

// ElementRef identifies the originating node without retaining it.
type ElementRef struct {
	TagName    string            `json:"tagName"`
	Selector   string            `json:"selector"`
	Src        string            `json:"src,omitempty"`
	Alt        string            `json:"alt,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Context carries the heuristic evidence behind a verdict.
type Context struct {
	SmartContext string `json:"smartContext"`
	IsFunctional bool   `json:"isFunctional"`
	ParentTag    string `json:"parentTag,omitempty"`
	ParentText   string `json:"parentText,omitempty"`
	IsDecorative bool   `json:"isDecorative,omitempty"`
	// Details holds checker-specific evidence such as header counts or matched keywords.
	Details map[string]any `json:"details,omitempty"`
}

// DetailedError is a rule tag resolved against guideline metadata.
type DetailedError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Verdict is the checker's judgement for one candidate.
type Verdict struct {
	Status         Status          `json:"status"`
	Message        string          `json:"message"`
	Rules          []string        `json:"rules"`
	Similarity     float64         `json:"similarity,omitempty"`
	DetailedErrors []DetailedError `json:"detailed_errors,omitempty"`
}

// PageContext is shared by every finding of one audit pass.
type PageContext struct {
	URL       string    `json:"url"`
	PageTitle string    `json:"pageTitle"`
	Timestamp time.Time `json:"timestamp"`
	ScanID    int64     `json:"scanId"`
}

// GuidelineInfo is the optional metadata attached during enrichment.
type GuidelineInfo struct {
	Name                 string   `json:"name"`
	Principle            string   `json:"principle"`
	ComplianceCriteria   string   `json:"compliance_criteria"`
	DetailedDescriptions []string `json:"detailed_descriptions,omitempty"`
}

// HistoryEntry records one adjudication step.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
	Comment   string    `json:"comment"`
}

// Adjudication is the reviewer-owned part of a finding.
type Adjudication struct {
	CurrentStatus   Status         `json:"currentStatus"`
	ReviewerComment string         `json:"finalComment"`
	History         []HistoryEntry `json:"history"`
	ManualScore     *float64       `json:"manualScore,omitempty"`
}

// Finding is one audit observation for one element or for the whole document.
type Finding struct {
	ID            string         `json:"id"`
	GuidelineID   string         `json:"guideline_id"`
	Element       ElementRef     `json:"elementInfo"`
	Context       Context        `json:"context"`
	Verdict       Verdict        `json:"result"`
	Page          PageContext    `json:"pageInfo"`
	GuidelineInfo *GuidelineInfo `json:"guideline_info,omitempty"`
	Adjudication
}

// InitAdjudication seeds the review state from the verdict. Findings that already carry
// history keep it.
func (f *Finding) InitAdjudication(now time.Time) {
	if f.CurrentStatus == "" {
		f.CurrentStatus = f.Verdict.Status
		if f.CurrentStatus == "" {
			f.CurrentStatus = StatusNeedsReview
		}
	}
	if len(f.History) > 0 {
		return
	}
	status := f.Verdict.Status
	if status == "" {
		status = StatusDetected
	}
	comment := f.Verdict.Message
	if comment == "" {
		comment = "진단 데이터 수신"
	}
	f.History = []HistoryEntry{{Timestamp: now, Status: status, Comment: comment}}
}

// Adjudicate appends a reviewer decision to the history.
func (f *Finding) Adjudicate(status Status, comment string, now time.Time) {
	f.CurrentStatus = status
	if comment != "" {
		f.ReviewerComment = comment
	} else {
		comment = "상태 업데이트"
	}
	f.History = append(f.History, HistoryEntry{Timestamp: now, Status: status, Comment: comment})
}

// SessionSummary describes one stored audit session.
type SessionSummary struct {
	ScanID    int64     `json:"scanId"`
	URL       string    `json:"url"`
	PageTitle string    `json:"pageTitle"`
	Timestamp time.Time `json:"timestamp"`
	Findings  int       `json:"findings"`
	// Guidelines lists the guideline ids with at least one finding.
	Guidelines []string `json:"guidelines,omitempty"`
}
