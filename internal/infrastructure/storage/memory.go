package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"AccessibilityScanner/internal/domain"
	"AccessibilityScanner/internal/ports"
)

// MemoryStore keeps findings in process memory in arrival order.
type MemoryStore struct {
	mu    sync.RWMutex
	items []domain.Finding
	keys  map[int64]map[string]struct{}
	now   func() time.Time
}

var _ ports.FindingStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: map[int64]map[string]struct{}{}, now: time.Now}
}

// Ingest stores f unless a finding with the same natural key exists in its session.
func (s *MemoryStore) Ingest(ctx context.Context, f domain.Finding) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	key, err := DedupKey(f)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(f, key), nil
}

// IngestBatch applies Ingest to each finding under a single lock and returns how many were kept.
func (s *MemoryStore) IngestBatch(ctx context.Context, findings []domain.Finding) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	keys := make([]string, len(findings))
	for i, f := range findings {
		key, err := DedupKey(f)
		if err != nil {
			return 0, fmt.Errorf("finding %d: %w", i, err)
		}
		keys[i] = key
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	accepted := 0
	for i, f := range findings {
		if s.insert(f, keys[i]) {
			accepted++
		}
	}
	return accepted, nil
}

func (s *MemoryStore) insert(f domain.Finding, key string) bool {
	scan := f.Page.ScanID
	if s.keys[scan] == nil {
		s.keys[scan] = map[string]struct{}{}
	}
	if _, dup := s.keys[scan][key]; dup {
		return false
	}
	s.keys[scan][key] = struct{}{}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.InitAdjudication(s.now())
	s.items = append(s.items, f)
	return true
}

// Sessions lists stored audit sessions ordered by scan id.
func (s *MemoryStore) Sessions(ctx context.Context) ([]domain.SessionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return summarize(s.items), nil
}

// Findings returns the findings of one session in arrival order.
func (s *MemoryStore) Findings(ctx context.Context, scanID int64) ([]domain.Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Finding
	for _, f := range s.items {
		if f.Page.ScanID == scanID {
			out = append(out, f)
		}
	}
	return out, nil
}

// UpdateStatus records a reviewer decision.
func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status domain.Status, comment string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("update %s to %q: %w", id, status, ErrInvalidStatus)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Adjudicate(status, comment, s.now())
			return nil
		}
	}
	return fmt.Errorf("finding %s: %w", id, ErrNotFound)
}

// SetGuidelineScore stores a manual score on every finding of the guideline in the session.
func (s *MemoryStore) SetGuidelineScore(ctx context.Context, scanID int64, guidelineID string, score float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := false
	for i := range s.items {
		if s.items[i].Page.ScanID == scanID && s.items[i].GuidelineID == guidelineID {
			v := score
			s.items[i].ManualScore = &v
			matched = true
		}
	}
	if !matched {
		return fmt.Errorf("scan %d guideline %s: %w", scanID, guidelineID, ErrNotFound)
	}
	return nil
}

// ClearSession drops one session.
func (s *MemoryStore) ClearSession(ctx context.Context, scanID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = slices.DeleteFunc(s.items, func(f domain.Finding) bool { return f.Page.ScanID == scanID })
	delete(s.keys, scanID)
	return nil
}

// RemoveSession drops every session recorded for the page URL.
func (s *MemoryStore) RemoveSession(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.items {
		if f.Page.URL == url {
			delete(s.keys, f.Page.ScanID)
		}
	}
	s.items = slices.DeleteFunc(s.items, func(f domain.Finding) bool { return f.Page.URL == url })
	return nil
}

// Clear drops everything.
func (s *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.keys = map[int64]map[string]struct{}{}
	return nil
}

func summarize(items []domain.Finding) []domain.SessionSummary {
	index := map[int64]int{}
	var out []domain.SessionSummary
	for _, f := range items {
		i, ok := index[f.Page.ScanID]
		if !ok {
			i = len(out)
			index[f.Page.ScanID] = i
			out = append(out, domain.SessionSummary{
				ScanID:    f.Page.ScanID,
				URL:       f.Page.URL,
				PageTitle: f.Page.PageTitle,
				Timestamp: f.Page.Timestamp,
			})
		}
		out[i].Findings++
		if !slices.Contains(out[i].Guidelines, f.GuidelineID) {
			out[i].Guidelines = append(out[i].Guidelines, f.GuidelineID)
		}
	}
	slices.SortFunc(out, func(a, b domain.SessionSummary) int {
		switch {
		case a.ScanID < b.ScanID:
			return -1
		case a.ScanID > b.ScanID:
			return 1
		}
		return 0
	})
	return out
}
