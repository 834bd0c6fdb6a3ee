package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"AccessibilityScanner/internal/domain"
	"AccessibilityScanner/internal/ports"
)

const findingsTable = "audit_findings"

// Schema creates the findings table. The unique constraint is the per-session dedup rule.
const Schema = `CREATE TABLE IF NOT EXISTS audit_findings (
    id             TEXT PRIMARY KEY,
    scan_id        BIGINT NOT NULL,
    dedup_key      TEXT NOT NULL,
    guideline_id   TEXT NOT NULL,
    url            TEXT NOT NULL,
    page_title     TEXT NOT NULL,
    scanned_at     TIMESTAMPTZ NOT NULL,
    current_status TEXT NOT NULL,
    manual_score   DOUBLE PRECISION,
    payload        JSONB NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (scan_id, dedup_key)
)`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository persists findings into Postgres.
type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.FindingStore = (*PostgresRepository)(nil)

// OpenPostgres opens a pooled connection with the lib/pq driver.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// EnsureSchema creates the findings table if needed.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ingest inserts f unless its natural key already exists in the session.
func (r *PostgresRepository) Ingest(ctx context.Context, f domain.Finding) (bool, error) {
	n, err := r.IngestBatch(ctx, []domain.Finding{f})
	return n == 1, err
}

// IngestBatch inserts all findings in one statement; conflicting rows are skipped.
func (r *PostgresRepository) IngestBatch(ctx context.Context, findings []domain.Finding) (int, error) {
	if len(findings) == 0 {
		return 0, nil
	}
	insert, err := insertFindings(findings, r.now())
	if err != nil {
		return 0, err
	}
	query, args, err := insert.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, fmt.Errorf("insert findings: duplicate id: %w", err)
		}
		return 0, fmt.Errorf("insert findings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func insertFindings(findings []domain.Finding, now time.Time) (sq.InsertBuilder, error) {
	b := psql.Insert(findingsTable).Columns(
		"id", "scan_id", "dedup_key", "guideline_id", "url", "page_title",
		"scanned_at", "current_status", "payload")
	for _, f := range findings {
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		f.InitAdjudication(now)
		key, err := DedupKey(f)
		if err != nil {
			return b, fmt.Errorf("finding %s: %w", f.ID, err)
		}
		payload, err := json.Marshal(f)
		if err != nil {
			return b, fmt.Errorf("marshal finding %s: %w", f.ID, err)
		}
		b = b.Values(f.ID, f.Page.ScanID, key, f.GuidelineID, f.Page.URL, f.Page.PageTitle,
			f.Page.Timestamp, string(f.CurrentStatus), payload)
	}
	return b.Suffix("ON CONFLICT (scan_id, dedup_key) DO NOTHING"), nil
}

// Sessions lists stored audit sessions ordered by scan id.
func (r *PostgresRepository) Sessions(ctx context.Context) ([]domain.SessionSummary, error) {
	query, args, err := selectSessions().ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionSummary
	for rows.Next() {
		var (
			s          domain.SessionSummary
			guidelines pq.StringArray
		)
		if err := rows.Scan(&s.ScanID, &s.URL, &s.PageTitle, &s.Timestamp, &s.Findings, &guidelines); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.Guidelines = guidelines
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func selectSessions() sq.SelectBuilder {
	return psql.Select("scan_id", "MIN(url)", "MIN(page_title)", "MIN(scanned_at)", "COUNT(*)",
		"ARRAY_AGG(DISTINCT guideline_id ORDER BY guideline_id)").
		From(findingsTable).
		GroupBy("scan_id").
		OrderBy("scan_id")
}

// Findings returns the findings of one session in arrival order.
func (r *PostgresRepository) Findings(ctx context.Context, scanID int64) ([]domain.Finding, error) {
	query, args, err := psql.Select("payload").
		From(findingsTable).
		Where(sq.Eq{"scan_id": scanID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var out []domain.Finding
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		var f domain.Finding
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("decode finding: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// UpdateStatus records a reviewer decision inside a row-locking transaction.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status domain.Status, comment string) error {
	if !status.Valid() {
		return fmt.Errorf("update %s to %q: %w", id, status, ErrInvalidStatus)
	}
	return r.modify(ctx, sq.Eq{"id": id}, func(f *domain.Finding) {
		f.Adjudicate(status, comment, r.now())
	})
}

// SetGuidelineScore stores a manual score on every finding of the guideline in the session.
func (r *PostgresRepository) SetGuidelineScore(ctx context.Context, scanID int64, guidelineID string, score float64) error {
	return r.modify(ctx, sq.Eq{"scan_id": scanID, "guideline_id": guidelineID}, func(f *domain.Finding) {
		v := score
		f.ManualScore = &v
	})
}

func (r *PostgresRepository) modify(ctx context.Context, where sq.Eq, fn func(*domain.Finding)) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := psql.Select("payload").From(findingsTable).Where(where).Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return fmt.Errorf("build select: %w", err)
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("lock findings: %w", err)
	}
	var findings []domain.Finding
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan finding: %w", err)
		}
		var f domain.Finding
		if err := json.Unmarshal(raw, &f); err != nil {
			_ = rows.Close()
			return fmt.Errorf("decode finding: %w", err)
		}
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("rows iteration: %w", err)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close rows: %w", err)
	}
	if len(findings) == 0 {
		return fmt.Errorf("findings %v: %w", where, ErrNotFound)
	}

	for _, f := range findings {
		fn(&f)
		update, err := updateFinding(f)
		if err != nil {
			return err
		}
		query, args, err := update.ToSql()
		if err != nil {
			return fmt.Errorf("build update: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update finding %s: %w", f.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func updateFinding(f domain.Finding) (sq.UpdateBuilder, error) {
	payload, err := json.Marshal(f)
	if err != nil {
		return sq.UpdateBuilder{}, fmt.Errorf("marshal finding %s: %w", f.ID, err)
	}
	b := psql.Update(findingsTable).
		Set("current_status", string(f.CurrentStatus)).
		Set("payload", payload).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": f.ID})
	if f.ManualScore != nil {
		b = b.Set("manual_score", *f.ManualScore)
	}
	return b, nil
}

// ClearSession drops one session.
func (r *PostgresRepository) ClearSession(ctx context.Context, scanID int64) error {
	return r.delete(ctx, psql.Delete(findingsTable).Where(sq.Eq{"scan_id": scanID}))
}

// RemoveSession drops every session recorded for the page URL.
func (r *PostgresRepository) RemoveSession(ctx context.Context, url string) error {
	return r.delete(ctx, psql.Delete(findingsTable).Where(sq.Eq{"url": url}))
}

// Clear drops everything.
func (r *PostgresRepository) Clear(ctx context.Context) error {
	return r.delete(ctx, psql.Delete(findingsTable))
}

// ClearSessions drops several sessions at once.
func (r *PostgresRepository) ClearSessions(ctx context.Context, scanIDs []int64) error {
	if len(scanIDs) == 0 {
		return nil
	}
	return r.delete(ctx, psql.Delete(findingsTable).Where(sq.Expr("scan_id = ANY(?)", pq.Int64Array(scanIDs))))
}

func (r *PostgresRepository) delete(ctx context.Context, b sq.DeleteBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete findings: %w", err)
	}
	return nil
}
