package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AccessibilityScanner/internal/domain"
	"AccessibilityScanner/internal/ports"
)

func sample(scanID int64, gid, selector, message string) domain.Finding {
	return domain.Finding{
		GuidelineID: gid,
		Element:     domain.ElementRef{TagName: "IMG", Selector: selector, Src: "https://example.com/a.png"},
		Context:     domain.Context{SmartContext: "주변 텍스트"},
		Verdict:     domain.Verdict{Status: domain.StatusFail, Message: message, Rules: []string{"Rule 1.1 (Missing Alt)"}},
		Page: domain.PageContext{
			URL:       "https://example.com/page",
			PageTitle: "Example",
			Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			ScanID:    scanID,
		},
	}
}

func TestDedupKey(t *testing.T) {
	a := sample(1, "1.1.1", "img", "alt 누락")
	b := a
	b.ID = "other-id"
	b.Verdict.Rules = []string{"something else"}

	ka, err := DedupKey(a)
	require.NoError(t, err)
	kb, err := DedupKey(b)
	require.NoError(t, err)
	assert.Equal(t, ka, kb, "id and rules are not part of the natural key")

	c := a
	c.Page.ScanID = 2
	kc, err := DedupKey(c)
	require.NoError(t, err)
	assert.NotEqual(t, ka, kc)

	d := a
	d.Context.SmartContext = "다른 맥락"
	kd, err := DedupKey(d)
	require.NoError(t, err)
	assert.NotEqual(t, ka, kd)
	assert.Len(t, ka, 64)
}

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), RedisOptions{
		URL:            fmt.Sprintf("redis://%s", mr.Addr()),
		ConnectTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) ports.FindingStore{
		"memory": func(t *testing.T) ports.FindingStore { return NewMemoryStore() },
		"redis":  func(t *testing.T) ports.FindingStore { return newRedisStore(t) },
	}

	for name, build := range stores {
		t.Run(name, func(t *testing.T) {
			t.Run("redelivery is dropped", func(t *testing.T) {
				ctx := context.Background()
				store := build(t)

				f := sample(100, "1.1.1", "img", "alt 누락")
				ok, err := store.Ingest(ctx, f)
				require.NoError(t, err)
				assert.True(t, ok)

				ok, err = store.Ingest(ctx, f)
				require.NoError(t, err)
				assert.False(t, ok)

				other := sample(200, "1.1.1", "img", "alt 누락")
				ok, err = store.Ingest(ctx, other)
				require.NoError(t, err)
				assert.True(t, ok, "the same observation in another session is kept")

				items, err := store.Findings(ctx, 100)
				require.NoError(t, err)
				require.Len(t, items, 1)
				assert.NotEmpty(t, items[0].ID)
				assert.Equal(t, domain.StatusFail, items[0].CurrentStatus)
				require.Len(t, items[0].History, 1)
				assert.Equal(t, "alt 누락", items[0].History[0].Comment)
			})

			t.Run("batch", func(t *testing.T) {
				ctx := context.Background()
				store := build(t)

				batch := []domain.Finding{
					sample(7, "1.1.1", "img:nth-of-type(1)", "a"),
					sample(7, "1.1.1", "img:nth-of-type(2)", "b"),
					sample(7, "1.1.1", "img:nth-of-type(1)", "a"),
					sample(7, "1.3.1", "table", "c"),
				}
				n, err := store.IngestBatch(ctx, batch)
				require.NoError(t, err)
				assert.Equal(t, 3, n)

				n, err = store.IngestBatch(ctx, batch)
				require.NoError(t, err)
				assert.Equal(t, 0, n)

				items, err := store.Findings(ctx, 7)
				require.NoError(t, err)
				require.Len(t, items, 3)
				assert.Equal(t, "img:nth-of-type(1)", items[0].Element.Selector)
				assert.Equal(t, "table", items[2].Element.Selector)

				sessions, err := store.Sessions(ctx)
				require.NoError(t, err)
				require.Len(t, sessions, 1)
				assert.Equal(t, int64(7), sessions[0].ScanID)
				assert.Equal(t, 3, sessions[0].Findings)
				assert.Equal(t, "https://example.com/page", sessions[0].URL)
				assert.ElementsMatch(t, []string{"1.1.1", "1.3.1"}, sessions[0].Guidelines)
			})

			t.Run("adjudication", func(t *testing.T) {
				ctx := context.Background()
				store := build(t)

				_, err := store.Ingest(ctx, sample(9, "1.1.1", "img", "a"))
				require.NoError(t, err)
				items, err := store.Findings(ctx, 9)
				require.NoError(t, err)
				id := items[0].ID

				require.NoError(t, store.UpdateStatus(ctx, id, domain.StatusPass, "장식 이미지로 확인"))
				require.NoError(t, store.UpdateStatus(ctx, id, domain.StatusNeedsReview, ""))

				err = store.UpdateStatus(ctx, id, domain.Status("bogus"), "")
				assert.ErrorIs(t, err, ErrInvalidStatus)
				err = store.UpdateStatus(ctx, "missing", domain.StatusPass, "")
				assert.ErrorIs(t, err, ErrNotFound)

				require.NoError(t, store.SetGuidelineScore(ctx, 9, "1.1.1", 0.5))
				assert.ErrorIs(t, store.SetGuidelineScore(ctx, 9, "2.1.1", 1), ErrNotFound)

				items, err = store.Findings(ctx, 9)
				require.NoError(t, err)
				got := items[0]
				assert.Equal(t, domain.StatusNeedsReview, got.CurrentStatus)
				assert.Equal(t, "장식 이미지로 확인", got.ReviewerComment)
				require.Len(t, got.History, 3)
				assert.Equal(t, "상태 업데이트", got.History[2].Comment)
				require.NotNil(t, got.ManualScore)
				assert.InDelta(t, 0.5, *got.ManualScore, 1e-9)
			})

			t.Run("session removal", func(t *testing.T) {
				ctx := context.Background()
				store := build(t)

				first := sample(1, "1.1.1", "img", "a")
				second := sample(2, "1.1.1", "img", "a")
				elsewhere := sample(3, "1.1.1", "img", "a")
				elsewhere.Page.URL = "https://example.com/other"
				_, err := store.IngestBatch(ctx, []domain.Finding{first, second, elsewhere})
				require.NoError(t, err)

				sessions, err := store.Sessions(ctx)
				require.NoError(t, err)
				assert.Len(t, sessions, 3, "historical sessions of a url coexist")

				require.NoError(t, store.ClearSession(ctx, 1))
				items, err := store.Findings(ctx, 1)
				require.NoError(t, err)
				assert.Empty(t, items)

				ok, err := store.Ingest(ctx, first)
				require.NoError(t, err)
				assert.True(t, ok, "clearing a session forgets its dedup keys")

				require.NoError(t, store.RemoveSession(ctx, "https://example.com/page"))
				sessions, err = store.Sessions(ctx)
				require.NoError(t, err)
				require.Len(t, sessions, 1)
				assert.Equal(t, int64(3), sessions[0].ScanID)

				require.NoError(t, store.Clear(ctx))
				sessions, err = store.Sessions(ctx)
				require.NoError(t, err)
				assert.Empty(t, sessions)
			})
		})
	}
}

func TestPostgresInsertQuery(t *testing.T) {
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	insert, err := insertFindings([]domain.Finding{
		sample(5, "1.1.1", "img", "a"),
		sample(5, "1.3.1", "table", "b"),
	}, now)
	require.NoError(t, err)

	query, args, err := insert.ToSql()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(query, "INSERT INTO audit_findings (id,scan_id,dedup_key,guideline_id,url,page_title,scanned_at,current_status,payload) VALUES ($1,"))
	assert.True(t, strings.HasSuffix(query, "ON CONFLICT (scan_id, dedup_key) DO NOTHING"))
	assert.Contains(t, query, "$18")
	require.Len(t, args, 18)
	assert.Equal(t, int64(5), args[1])
	assert.Equal(t, "1.3.1", args[12])
	assert.Equal(t, string(domain.StatusFail), args[7])
	assert.Contains(t, string(args[8].([]byte)), `"currentStatus":"오류"`)
}

func TestPostgresSessionAndUpdateQueries(t *testing.T) {
	query, _, err := selectSessions().ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT scan_id, MIN(url), MIN(page_title), MIN(scanned_at), COUNT(*), ARRAY_AGG(DISTINCT guideline_id ORDER BY guideline_id) FROM audit_findings GROUP BY scan_id ORDER BY scan_id",
		query)

	f := sample(5, "1.1.1", "img", "a")
	f.ID = "abc"
	score := 1.0
	f.ManualScore = &score
	update, err := updateFinding(f)
	require.NoError(t, err)
	query, args, err := update.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE audit_findings SET current_status = $1, payload = $2, updated_at = NOW(), manual_score = $3 WHERE id = $4", query)
	assert.Equal(t, "abc", args[3])
}

// failingEval fails the next script call before it reaches Redis.
type failingEval struct {
	armed atomic.Bool
}

func (h *failingEval) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *failingEval) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		name := cmd.Name()
		if (name == "evalsha" || name == "eval") && h.armed.CompareAndSwap(true, false) {
			err := errors.New("connection reset")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (h *failingEval) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisIngestRetryAfterFailedWrite(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	hook := &failingEval{}
	client.AddHook(hook)
	store := NewRedisStoreWithClient(client)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	f := sample(7, "1.1.1", "img", "alt 누락")

	hook.armed.Store(true)
	_, err := store.Ingest(ctx, f)
	require.ErrorContains(t, err, "connection reset")
	assert.False(t, mr.Exists(keysKey(7)), "failed ingest must not leave a claimed dedup key")

	accepted, err := store.Ingest(ctx, f)
	require.NoError(t, err)
	assert.True(t, accepted, "redelivery after a failed write is accepted")

	accepted, err = store.Ingest(ctx, f)
	require.NoError(t, err)
	assert.False(t, accepted)

	stored, err := store.Findings(ctx, 7)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "alt 누락", stored[0].Verdict.Message)

	sessions, err := store.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, []string{"1.1.1"}, sessions[0].Guidelines)
}

func TestRedisIngestBatchMixedSessions(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	batch := []domain.Finding{
		sample(1, "1.1.1", "img.a", "a"),
		sample(2, "1.1.1", "img.a", "a"),
		sample(1, "1.1.1", "img.a", "a"),
		sample(1, "2.4.2", "title", "b"),
	}
	n, err := store.IngestBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	one, err := store.Findings(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 2)
	two, err := store.Findings(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 1)
}
