package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"AccessibilityScanner/internal/checks"
	"AccessibilityScanner/internal/config"
	"AccessibilityScanner/internal/dom"
	"AccessibilityScanner/internal/infrastructure/scheduler"
	"AccessibilityScanner/internal/infrastructure/source"
	"AccessibilityScanner/internal/infrastructure/standards"
	"AccessibilityScanner/internal/infrastructure/storage"
	"AccessibilityScanner/internal/infrastructure/telegram"
	"AccessibilityScanner/internal/infrastructure/transport"
	"AccessibilityScanner/internal/locate"
	"AccessibilityScanner/internal/logging"
	"AccessibilityScanner/internal/ports"
	"AccessibilityScanner/internal/presentation"
	"AccessibilityScanner/internal/report"
	"AccessibilityScanner/internal/scanner"
	"AccessibilityScanner/internal/usecase"
)

const shutdownGrace = 5 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	registry  *scanner.Registry
	store     ports.FindingStore
	standards ports.StandardsCatalog
	source    ports.DocumentSource
	tracer    *sdktrace.TracerProvider
	closers   []func() error
}

// New builds the application: checker registry, finding store, guideline catalog and
// telemetry. Close releases what New opened.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	checks.SetContextWindow(cfg.Audit.ContextWindow)
	a.registry = scanner.NewRegistry(logging.Component(baseLogger, "registry"))
	if err := checks.RegisterAll(a.registry); err != nil {
		return nil, fmt.Errorf("register checkers: %w", err)
	}

	a.standards = loadStandards(cfg.Standards, logging.Component(baseLogger, "standards"))
	a.source = source.NewLoader(nil, logging.Component(baseLogger, "source"))

	store, closer, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.store = store
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	a.tracer = sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.Telemetry.ServiceName),
		)),
	)
	a.closers = append(a.closers, func() error {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return a.tracer.Shutdown(sctx)
	})

	baseLogger.Info("application ready",
		"checkers", a.registry.Len(),
		"storage", cfg.Storage.Driver,
		"standards", cfg.Standards.Path)
	return a, nil
}

// loadStandards falls back to the bundled catalog when no path is configured. A broken
// catalog file disables enrichment instead of stopping the application.
func loadStandards(cfg config.StandardsConfig, logger *slog.Logger) ports.StandardsCatalog {
	if cfg.Path == "" {
		return standards.Default()
	}
	catalog, err := standards.Load(cfg.Path)
	if err != nil {
		logger.Warn("guideline catalog unavailable, findings stay unenriched", "error", err)
		return nil
	}
	return catalog
}

func openStore(ctx context.Context, cfg config.StorageConfig) (ports.FindingStore, func() error, error) {
	switch cfg.Driver {
	case config.DriverRedis:
		store, err := storage.NewRedisStore(ctx, storage.RedisOptions{URL: cfg.RedisURL})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.DriverPostgres:
		db, err := storage.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		repo := storage.NewPostgresRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repo, db.Close, nil
	default:
		return storage.NewMemoryStore(), nil, nil
	}
}

// Store exposes the configured finding store.
func (a *Application) Store() ports.FindingStore {
	return a.store
}

// Auditor builds an orchestrator that publishes to pub. pub may be nil.
func (a *Application) Auditor(pub ports.Publisher) (*usecase.Auditor, error) {
	return usecase.NewAuditor(usecase.AuditorDeps{
		Registry:       a.registry,
		Publisher:      pub,
		Store:          a.store,
		Standards:      a.standards,
		Logger:         logging.Component(a.logger, "auditor"),
		Tracer:         a.tracer.Tracer("AccessibilityScanner/audit"),
		Meter:          otel.GetMeterProvider().Meter("AccessibilityScanner/audit"),
		CheckerTimeout: a.cfg.Audit.CheckerTimeout,
	})
}

// Scan loads target and audits it once, without a review board.
func (a *Application) Scan(ctx context.Context, target string) (usecase.AuditResult, error) {
	auditor, err := a.Auditor(nil)
	if err != nil {
		return usecase.AuditResult{}, err
	}
	doc, err := a.source.Load(ctx, target)
	if err != nil {
		return usecase.AuditResult{}, err
	}
	return auditor.RunAudit(ctx, doc)
}

// Engine connects to the relay, audits target and then keeps answering locate commands
// and view toggles from the board until ctx ends.
func (a *Application) Engine(ctx context.Context, target string) error {
	doc, err := a.source.Load(ctx, target)
	if err != nil {
		return err
	}

	var session *presentation.Session
	client, err := transport.Dial(ctx, a.cfg.Transport.RelayURL, transport.Handlers{
		Locate: func(_ context.Context, selector string) transport.Message {
			return locateReply(session, selector)
		},
		Toggle: func(_ context.Context, view string, enabled bool) error {
			return session.Set(view, enabled)
		},
	}, logging.Component(a.logger, "engine"))
	if err != nil {
		return err
	}
	defer client.Close()

	auditor, err := a.Auditor(client)
	if err != nil {
		return err
	}
	session = presentation.NewSession(doc, auditor, logging.Component(a.logger, "presentation"))

	listenErr := make(chan error, 1)
	go func() { listenErr <- client.Listen(ctx) }()

	if err := session.Suspend(func() error {
		_, err := auditor.RunAudit(ctx, doc)
		return err
	}); err != nil {
		return err
	}

	err = <-listenErr
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func locateReply(session *presentation.Session, selector string) transport.Message {
	var reply transport.Message
	if session == nil {
		reply.Error = "engine not ready"
		return reply
	}
	_ = session.Read(func(d *dom.Document) error {
		res, err := locate.Resolve(d, selector)
		found := err == nil
		reply.Found = &found
		if err != nil {
			reply.Error = err.Error()
			return nil
		}
		reply.Top = res.Top
		reply.TagName = res.TagName
		return nil
	})
	return reply
}

// Serve runs the relay and review API until ctx ends.
func (a *Application) Serve(ctx context.Context) error {
	relay := transport.NewRelay(a.store, logging.Component(a.logger, "relay"))
	server := &http.Server{
		Addr:              a.cfg.Transport.ListenAddr,
		Handler:           relay.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("relay listening", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("relay server: %w", err)
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		return fmt.Errorf("relay shutdown: %w", err)
	}
	return nil
}

// Watch re-audits the configured targets on the scheduler interval until ctx ends.
func (a *Application) Watch(ctx context.Context) error {
	if len(a.cfg.Scheduler.Targets) == 0 {
		return fmt.Errorf("watch: no scheduler targets configured")
	}
	auditor, err := a.Auditor(nil)
	if err != nil {
		return err
	}

	var notifier ports.Notifier
	tg := telegram.NewNotifier(telegram.Options{
		BotToken: a.cfg.Notifications.Telegram.BotToken,
		ChatID:   a.cfg.Notifications.Telegram.ChatID,
	})
	if tg.Enabled() {
		notifier = tg
	}

	driver := scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval, logging.Component(a.logger, "scheduler"))
	job := usecase.NewScheduler(usecase.SchedulerDeps{
		Driver:   driver,
		Auditor:  auditor,
		Source:   a.source,
		Notifier: notifier,
		Targets:  a.cfg.Scheduler.Targets,
		Logger:   logging.Component(a.logger, "watch"),
	})
	if err := job.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("watching targets", "targets", len(a.cfg.Scheduler.Targets), "interval", driver.Interval())

	<-ctx.Done()
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return job.Stop(sctx)
}

// Report writes the Markdown review report of one stored session.
func (a *Application) Report(ctx context.Context, scanID int64, w io.Writer) error {
	findings, err := a.store.Findings(ctx, scanID)
	if err != nil {
		return err
	}
	if len(findings) == 0 {
		return fmt.Errorf("scan %d: %w", scanID, storage.ErrNotFound)
	}
	_, err = io.WriteString(w, report.Markdown(findings, time.Now()))
	return err
}

// Close releases the store connection and flushes telemetry.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
