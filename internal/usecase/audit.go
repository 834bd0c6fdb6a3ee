package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"AccessibilityScanner/internal/dom"
	"AccessibilityScanner/internal/domain"
	"AccessibilityScanner/internal/ports"
	"AccessibilityScanner/internal/scanner"
)

// ErrCheckerTimeout is reported when a checker does not return within the configured limit.
var ErrCheckerTimeout = errors.New("checker timed out")

const (
	defaultCheckerTimeout = 10 * time.Second
	unknownURL            = "Unknown URL"
	untitledPage          = "Untitled Page"
)

// AuditorDeps wires the registry and driven adapters into the audit orchestrator.
type AuditorDeps struct {
	Registry       *scanner.Registry
	Publisher      ports.Publisher
	Store          ports.FindingStore
	Standards      ports.StandardsCatalog
	Logger         *slog.Logger
	Tracer         trace.Tracer
	Meter          metric.Meter
	CheckerTimeout time.Duration
	Now            func() time.Time
}

// AuditResult is the outcome of one audit pass.
type AuditResult struct {
	Page     domain.PageContext
	Findings []domain.Finding
	// Failed lists guideline ids whose checker errored, panicked or timed out.
	Failed []string
}

// Auditor runs every registered checker over a document, one pass at a time.
type Auditor struct {
	registry  *scanner.Registry
	publisher ports.Publisher
	store     ports.FindingStore
	standards ports.StandardsCatalog
	logger    *slog.Logger
	tracer    trace.Tracer
	timeout   time.Duration
	now       func() time.Time

	metrics *auditMetrics

	// mu serializes audit passes with document-mutating presentation toggles.
	mu         sync.Mutex
	lastScanID atomic.Int64
}

type auditMetrics struct {
	findings metric.Int64Counter
	faults   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewAuditor constructs the orchestration component.
func NewAuditor(deps AuditorDeps) (*Auditor, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("auditor: registry is required")
	}
	a := &Auditor{
		registry:  deps.Registry,
		publisher: deps.Publisher,
		store:     deps.Store,
		standards: deps.Standards,
		logger:    deps.Logger,
		tracer:    deps.Tracer,
		timeout:   deps.CheckerTimeout,
		now:       deps.Now,
	}
	if a.timeout <= 0 {
		a.timeout = defaultCheckerTimeout
	}
	if a.now == nil {
		a.now = time.Now
	}
	if deps.Meter != nil {
		m, err := newAuditMetrics(deps.Meter)
		if err != nil {
			return nil, err
		}
		a.metrics = m
	}
	return a, nil
}

func newAuditMetrics(meter metric.Meter) (*auditMetrics, error) {
	m := &auditMetrics{}
	var err error
	m.findings, err = meter.Int64Counter("audit.findings",
		metric.WithDescription("Findings produced per guideline"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("create findings counter: %w", err)
	}
	m.faults, err = meter.Int64Counter("audit.checker_faults",
		metric.WithDescription("Checkers that failed, panicked or timed out"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("create faults counter: %w", err)
	}
	m.duration, err = meter.Float64Histogram("audit.checker_duration",
		metric.WithDescription("Checker run time in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	return m, nil
}

// Exclusive runs fn while no audit pass is in progress.
func (a *Auditor) Exclusive(fn func() error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fn()
}

// RunAudit executes all checkers in registration order against doc. Checker faults are
// logged and skipped; only publisher, store or context failures abort the pass.
func (a *Auditor) RunAudit(ctx context.Context, doc *dom.Document) (AuditResult, error) {
	if doc == nil {
		return AuditResult{}, fmt.Errorf("run audit: nil document")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	page := a.pageContext(doc)
	entries := a.registry.Entries()
	result := AuditResult{Page: page}

	var span trace.Span
	if a.tracer != nil {
		ctx, span = a.tracer.Start(ctx, "audit.run", trace.WithAttributes(
			attribute.String("page.url", page.URL),
			attribute.Int64("audit.scan_id", page.ScanID),
			attribute.Int("audit.checkers", len(entries)),
		))
		defer span.End()
	}

	a.info("audit started", "url", page.URL, "scan_id", page.ScanID, "checkers", len(entries))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			a.fail(span, err)
			return result, fmt.Errorf("audit %d: %w", page.ScanID, err)
		}
		if a.publisher != nil {
			if err := a.publisher.Progress(ctx, entry.ID); err != nil {
				a.fail(span, err)
				return result, fmt.Errorf("publish progress %s: %w", entry.ID, err)
			}
		}

		findings, err := a.runChecker(ctx, entry, doc)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				a.fail(span, ctxErr)
				return result, fmt.Errorf("audit %d: %w", page.ScanID, ctxErr)
			}
			result.Failed = append(result.Failed, entry.ID)
			a.warn("checker failed", "guideline_id", entry.ID, "error", err)
			continue
		}
		a.debug("checker run", "guideline_id", entry.ID, "found", len(findings))
		if len(findings) == 0 {
			continue
		}

		now := a.now()
		for i := range findings {
			a.stamp(&findings[i], entry.ID, page, now)
		}
		if a.store != nil {
			if _, err := a.store.IngestBatch(ctx, findings); err != nil {
				a.fail(span, err)
				return result, fmt.Errorf("store findings %s: %w", entry.ID, err)
			}
		}
		if a.publisher != nil {
			if err := a.publisher.Batch(ctx, findings); err != nil {
				a.fail(span, err)
				return result, fmt.Errorf("publish findings %s: %w", entry.ID, err)
			}
		}
		result.Findings = append(result.Findings, findings...)
	}

	if a.publisher != nil {
		if err := a.publisher.Finished(ctx, page.ScanID, len(result.Findings)); err != nil {
			a.fail(span, err)
			return result, fmt.Errorf("publish completion: %w", err)
		}
	}
	if span != nil {
		span.SetAttributes(
			attribute.Int("audit.total_issues", len(result.Findings)),
			attribute.Int("audit.failed_checkers", len(result.Failed)),
		)
		span.SetStatus(codes.Ok, "")
	}
	a.info("audit finished", "scan_id", page.ScanID, "total_issues", len(result.Findings), "failed", len(result.Failed))
	return result, nil
}

type checkerOutcome struct {
	findings []domain.Finding
	err      error
}

func (a *Auditor) runChecker(ctx context.Context, entry scanner.Entry, doc *dom.Document) ([]domain.Finding, error) {
	started := time.Now()
	var span trace.Span
	if a.tracer != nil {
		ctx, span = a.tracer.Start(ctx, "audit.checker", trace.WithAttributes(
			attribute.String("guideline.id", entry.ID),
		))
		defer span.End()
	}

	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan checkerOutcome, 1)
	go func() {
		var out checkerOutcome
		out.err = scanner.Guard(func() error {
			var err error
			out.findings, err = entry.Checker.Scan(cctx, doc)
			return err
		})
		done <- out
	}()

	var out checkerOutcome
	select {
	case out = <-done:
	case <-cctx.Done():
		// The checker still holds the document; wait for it to observe cctx before the
		// next checker or a presentation toggle touches the tree.
		<-done
		out = checkerOutcome{err: cctx.Err()}
		if ctx.Err() == nil {
			out.err = fmt.Errorf("%s after %s: %w", entry.ID, a.timeout, ErrCheckerTimeout)
		}
	}

	attrs := metric.WithAttributes(attribute.String("guideline.id", entry.ID))
	if a.metrics != nil {
		a.metrics.duration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)
	}
	if out.err != nil {
		if span != nil {
			span.RecordError(out.err)
			span.SetStatus(codes.Error, out.err.Error())
		}
		if a.metrics != nil {
			a.metrics.faults.Add(ctx, 1, attrs)
		}
		return nil, out.err
	}
	if span != nil {
		span.SetAttributes(attribute.Int("guideline.findings", len(out.findings)))
	}
	if a.metrics != nil {
		a.metrics.findings.Add(ctx, int64(len(out.findings)), attrs)
	}
	return out.findings, nil
}

func (a *Auditor) stamp(f *domain.Finding, guidelineID string, page domain.PageContext, now time.Time) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.GuidelineID = guidelineID
	f.Page = page
	if a.standards != nil {
		a.standards.Enrich(f)
	}
	f.InitAdjudication(now)
}

func (a *Auditor) pageContext(doc *dom.Document) domain.PageContext {
	now := a.now()
	page := domain.PageContext{
		URL:       doc.URL(),
		PageTitle: doc.Title(),
		Timestamp: now,
		ScanID:    a.nextScanID(now),
	}
	if page.PageTitle == "" {
		page.PageTitle = doc.Hostname()
	}
	if page.PageTitle == "" {
		page.PageTitle = untitledPage
	}
	if page.URL == "" {
		page.URL = unknownURL
	}
	return page
}

// nextScanID derives the session id from the clock in milliseconds and keeps it strictly
// increasing within the process.
func (a *Auditor) nextScanID(now time.Time) int64 {
	candidate := now.UnixMilli()
	for {
		last := a.lastScanID.Load()
		next := candidate
		if next <= last {
			next = last + 1
		}
		if a.lastScanID.CompareAndSwap(last, next) {
			return next
		}
	}
}

func (a *Auditor) fail(span trace.Span, err error) {
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if a.logger != nil {
		a.logger.Error("audit aborted", "error", err)
	}
}

func (a *Auditor) info(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Info(msg, args...)
	}
}

func (a *Auditor) warn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}

func (a *Auditor) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
