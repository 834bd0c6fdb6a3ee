package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gowebpki/jcs"

	"AccessibilityScanner/internal/domain"
)

// ErrNotFound is returned when a finding or session does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidStatus is returned for adjudications outside the verdict categories.
var ErrInvalidStatus = errors.New("invalid status")

type naturalKey struct {
	ScanID       int64  `json:"scanId"`
	GuidelineID  string `json:"guideline_id"`
	Selector     string `json:"selector"`
	Src          string `json:"src"`
	Alt          string `json:"alt"`
	SmartContext string `json:"smartContext"`
	Message      string `json:"message"`
}

// DedupKey hashes the composite natural key of a finding. Two deliveries of the same
// observation within one session produce the same key.
func DedupKey(f domain.Finding) (string, error) {
	raw, err := json.Marshal(naturalKey{
		ScanID:       f.Page.ScanID,
		GuidelineID:  f.GuidelineID,
		Selector:     f.Element.Selector,
		Src:          f.Element.Src,
		Alt:          f.Element.Alt,
		SmartContext: f.Context.SmartContext,
		Message:      f.Verdict.Message,
	})
	if err != nil {
		return "", fmt.Errorf("marshal natural key: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize natural key: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
