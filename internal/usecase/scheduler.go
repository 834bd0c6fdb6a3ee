package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"AccessibilityScanner/internal/ports"
	"AccessibilityScanner/internal/report"
)

// SchedulerDeps wires the periodic re-audit job.
type SchedulerDeps struct {
	Driver   ports.Scheduler
	Auditor  *Auditor
	Source   ports.DocumentSource
	Notifier ports.Notifier
	Targets  []string
	Logger   *slog.Logger
}

// Scheduler wires the interval driver with the audit use case.
type Scheduler struct {
	driver   ports.Scheduler
	auditor  *Auditor
	source   ports.DocumentSource
	notifier ports.Notifier
	targets  []string
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring audits.
func NewScheduler(deps SchedulerDeps) *Scheduler {
	return &Scheduler{
		driver:   deps.Driver,
		auditor:  deps.Auditor,
		source:   deps.Source,
		notifier: deps.Notifier,
		targets:  deps.Targets,
		logger:   deps.Logger,
	}
}

// Start registers the audit job with the provided driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.auditor == nil || s.source == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if err := s.RunOnce(ctx); err != nil && s.logger != nil {
			s.logger.Error("scheduled audit failed", "trigger", trigger, "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// RunOnce audits every target once. Each target gets its own session; a failing target is
// reported and the remaining ones still run.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.auditor == nil || s.source == nil {
		return fmt.Errorf("scheduler: auditor and source are required")
	}
	var firstErr error
	for _, target := range s.targets {
		if err := s.auditTarget(ctx, target); err != nil {
			if s.logger != nil {
				s.logger.Warn("target audit failed", "target", target, "error", err)
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Scheduler) auditTarget(ctx context.Context, target string) error {
	doc, err := s.source.Load(ctx, target)
	if err != nil {
		return fmt.Errorf("load %s: %w", target, err)
	}

	result, err := s.auditor.RunAudit(ctx, doc)
	if err != nil {
		return fmt.Errorf("audit %s: %w", target, err)
	}

	if s.notifier == nil {
		return nil
	}
	digest := report.Digest(result.Page, result.Findings)
	if err := s.notifier.PublishDigest(ctx, digest); err != nil {
		return fmt.Errorf("notify %s: %w", target, err)
	}
	return nil
}

// Stop gracefully tears down the underlying driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
