package transport

import (
	"encoding/json"
	"fmt"

	"AccessibilityScanner/internal/domain"
)

// Message types exchanged between the audit engine and the review board.
const (
	TypeProgress = "SCAN_PROGRESS"
	TypeBatch    = "UPDATE_ABT_LIST_BATCH"
	TypeFinished = "SCAN_FINISHED"
	// TypeFinding carries a single finding; older engines send one message per finding.
	TypeFinding      = "UPDATE_ABT_LIST"
	TypeLocate       = "locate-element"
	TypeLocateResult = "locate-result"
	// TypeToggleView switches a review view (alt-view, linear-view) on the engine's document;
	// the engine answers with TypeViewState.
	TypeToggleView = "toggle-view"
	TypeViewState  = "view-state"
)

// Message is the envelope of every websocket frame. Fields irrelevant to Type stay empty.
type Message struct {
	Type        string           `json:"type"`
	GuidelineID string           `json:"guidelineId,omitempty"`
	Items       []domain.Finding `json:"items,omitempty"`
	Data        *domain.Finding  `json:"data,omitempty"`
	ScanID      int64            `json:"scanId,omitempty"`
	TotalIssues *int             `json:"totalIssues,omitempty"`
	Selector    string           `json:"selector,omitempty"`
	Found       *bool            `json:"found,omitempty"`
	Top         bool             `json:"top,omitempty"`
	TagName     string           `json:"tagName,omitempty"`
	View        string           `json:"view,omitempty"`
	Enabled     *bool            `json:"enabled,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// ProgressMessage announces the checker about to run.
func ProgressMessage(guidelineID string) Message {
	return Message{Type: TypeProgress, GuidelineID: guidelineID}
}

// BatchMessage carries the findings of one checker.
func BatchMessage(findings []domain.Finding) Message {
	return Message{Type: TypeBatch, Items: findings}
}

// FinishedMessage closes an audit pass.
func FinishedMessage(scanID int64, total int) Message {
	return Message{Type: TypeFinished, ScanID: scanID, TotalIssues: &total}
}

// LocateMessage asks the engine to bring an element into view.
func LocateMessage(selector string) Message {
	return Message{Type: TypeLocate, Selector: selector}
}

// ToggleViewMessage asks the engine to switch a review view.
func ToggleViewMessage(view string, enabled bool) Message {
	return Message{Type: TypeToggleView, View: view, Enabled: &enabled}
}

// Findings returns the findings carried by a batch or single-finding message.
func (m Message) Findings() []domain.Finding {
	switch m.Type {
	case TypeBatch:
		return m.Items
	case TypeFinding:
		if m.Data != nil {
			return []domain.Finding{*m.Data}
		}
	}
	return nil
}

// Decode parses one frame.
func Decode(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("decode message: missing type")
	}
	return m, nil
}
