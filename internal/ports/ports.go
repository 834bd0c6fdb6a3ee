package ports

import (
	"context"
	"time"

	"AccessibilityScanner/internal/dom"
	"AccessibilityScanner/internal/domain"
)

// DocumentSource loads a page snapshot for auditing.
type DocumentSource interface {
	Load(ctx context.Context, target string) (*dom.Document, error)
}

// Publisher delivers audit output to the review board.
type Publisher interface {
	Progress(ctx context.Context, guidelineID string) error
	Batch(ctx context.Context, findings []domain.Finding) error
	Finished(ctx context.Context, scanID int64, totalIssues int) error
}

// FindingStore keeps deduplicated findings grouped by audit session.
type FindingStore interface {
	Ingest(ctx context.Context, finding domain.Finding) (bool, error)
	IngestBatch(ctx context.Context, findings []domain.Finding) (int, error)
	Sessions(ctx context.Context) ([]domain.SessionSummary, error)
	Findings(ctx context.Context, scanID int64) ([]domain.Finding, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status, comment string) error
	SetGuidelineScore(ctx context.Context, scanID int64, guidelineID string, score float64) error
	ClearSession(ctx context.Context, scanID int64) error
	RemoveSession(ctx context.Context, url string) error
	Clear(ctx context.Context) error
}

// StandardsCatalog attaches guideline metadata to findings.
type StandardsCatalog interface {
	Enrich(finding *domain.Finding)
}

// Notifier streams audit digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when audits execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
