package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"AccessibilityScanner/internal/domain"
	"AccessibilityScanner/internal/ports"
)

const redisPrefix = "abt:"

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379/0")
	URL            string
	ConnectTimeout time.Duration
}

// RedisStore keeps findings in Redis. Per-session dedup keys live in a set; SADD inside the
// ingest script decides acceptance across concurrent deliveries.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

var _ ports.FindingStore = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout
	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func sessionKey(scanID int64, part string) string {
	return fmt.Sprintf("%sscan:%d:%s", redisPrefix, scanID, part)
}

func keysKey(scanID int64) string       { return sessionKey(scanID, "keys") }
func itemsKey(scanID int64) string      { return sessionKey(scanID, "items") }
func metaKey(scanID int64) string       { return sessionKey(scanID, "meta") }
func guidelinesKey(scanID int64) string { return sessionKey(scanID, "guidelines") }
func findingKey(id string) string       { return redisPrefix + "finding:" + id }
func urlKey(url string) string          { return redisPrefix + "url:" + url }

const sessionsKey = redisPrefix + "sessions"

// Ingest stores f unless its natural key was already seen in the session.
func (s *RedisStore) Ingest(ctx context.Context, f domain.Finding) (bool, error) {
	n, err := s.IngestBatch(ctx, []domain.Finding{f})
	return n == 1, err
}

// ingestScript claims each dedup key and writes the finding in the same atomic step, so a
// failed write never leaves a claimed key behind. KEYS[1] is the session index; every
// finding then contributes six keys and eight arguments after the leading count.
var ingestScript = redis.NewScript(`
local accepted = {}
local n = tonumber(ARGV[1])
for i = 0, n - 1 do
  local k = 2 + i * 6
  local a = 2 + i * 8
  if redis.call('SADD', KEYS[k], ARGV[a]) == 1 then
    redis.call('SET', KEYS[k + 1], ARGV[a + 1])
    redis.call('RPUSH', KEYS[k + 2], ARGV[a + 2])
    redis.call('SADD', KEYS[k + 3], ARGV[a + 3])
    redis.call('HSET', KEYS[k + 4], 'url', ARGV[a + 4], 'title', ARGV[a + 5], 'timestamp', ARGV[a + 6])
    redis.call('ZADD', KEYS[1], ARGV[a + 7], ARGV[a + 7])
    redis.call('SADD', KEYS[k + 5], ARGV[a + 7])
    accepted[#accepted + 1] = i
  end
end
return accepted
`)

// IngestBatch stores the findings whose natural key is new to their session. Claims and
// writes run in one script, so the batch is either applied or left untouched.
func (s *RedisStore) IngestBatch(ctx context.Context, findings []domain.Finding) (int, error) {
	if len(findings) == 0 {
		return 0, nil
	}

	now := s.now()
	keys := make([]string, 0, 1+len(findings)*6)
	args := make([]any, 0, 1+len(findings)*8)
	keys = append(keys, sessionsKey)
	args = append(args, len(findings))
	for i, f := range findings {
		key, err := DedupKey(f)
		if err != nil {
			return 0, fmt.Errorf("finding %d: %w", i, err)
		}
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		f.InitAdjudication(now)
		payload, err := json.Marshal(f)
		if err != nil {
			return 0, fmt.Errorf("marshal finding %s: %w", f.ID, err)
		}
		scan := f.Page.ScanID
		keys = append(keys,
			keysKey(scan), findingKey(f.ID), itemsKey(scan),
			guidelinesKey(scan), metaKey(scan), urlKey(f.Page.URL))
		args = append(args,
			key, payload, f.ID, f.GuidelineID,
			f.Page.URL, f.Page.PageTitle, f.Page.Timestamp.Format(time.RFC3339Nano),
			strconv.FormatInt(scan, 10))
	}

	accepted, err := ingestScript.Run(ctx, s.client, keys, args...).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("store findings: %w", err)
	}
	return len(accepted), nil
}

// Sessions lists stored audit sessions ordered by scan id.
func (s *RedisStore) Sessions(ctx context.Context) ([]domain.SessionSummary, error) {
	members, err := s.client.ZRange(ctx, sessionsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	out := make([]domain.SessionSummary, 0, len(members))
	for _, m := range members {
		scan, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		meta, err := s.client.HGetAll(ctx, metaKey(scan)).Result()
		if err != nil {
			return nil, fmt.Errorf("session %d meta: %w", scan, err)
		}
		count, err := s.client.LLen(ctx, itemsKey(scan)).Result()
		if err != nil {
			return nil, fmt.Errorf("session %d size: %w", scan, err)
		}
		guidelines, err := s.client.SMembers(ctx, guidelinesKey(scan)).Result()
		if err != nil {
			return nil, fmt.Errorf("session %d guidelines: %w", scan, err)
		}
		slices.Sort(guidelines)
		ts, _ := time.Parse(time.RFC3339Nano, meta["timestamp"])
		out = append(out, domain.SessionSummary{
			ScanID:     scan,
			URL:        meta["url"],
			PageTitle:  meta["title"],
			Timestamp:  ts,
			Findings:   int(count),
			Guidelines: guidelines,
		})
	}
	return out, nil
}

// Findings returns the findings of one session in arrival order.
func (s *RedisStore) Findings(ctx context.Context, scanID int64) ([]domain.Finding, error) {
	ids, err := s.client.LRange(ctx, itemsKey(scanID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list session %d: %w", scanID, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = findingKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load session %d: %w", scanID, err)
	}

	out := make([]domain.Finding, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var f domain.Finding
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			return nil, fmt.Errorf("decode finding %s: %w", ids[i], err)
		}
		out = append(out, f)
	}
	return out, nil
}

// UpdateStatus records a reviewer decision.
func (s *RedisStore) UpdateStatus(ctx context.Context, id string, status domain.Status, comment string) error {
	if !status.Valid() {
		return fmt.Errorf("update %s to %q: %w", id, status, ErrInvalidStatus)
	}
	return s.modify(ctx, id, func(f *domain.Finding) {
		f.Adjudicate(status, comment, s.now())
	})
}

// SetGuidelineScore stores a manual score on every finding of the guideline in the session.
func (s *RedisStore) SetGuidelineScore(ctx context.Context, scanID int64, guidelineID string, score float64) error {
	findings, err := s.Findings(ctx, scanID)
	if err != nil {
		return err
	}
	matched := false
	for _, f := range findings {
		if f.GuidelineID != guidelineID {
			continue
		}
		matched = true
		if err := s.modify(ctx, f.ID, func(f *domain.Finding) {
			v := score
			f.ManualScore = &v
		}); err != nil {
			return err
		}
	}
	if !matched {
		return fmt.Errorf("scan %d guideline %s: %w", scanID, guidelineID, ErrNotFound)
	}
	return nil
}

// modify applies fn to a stored finding under optimistic locking.
func (s *RedisStore) modify(ctx context.Context, id string, fn func(*domain.Finding)) error {
	key := findingKey(id)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("finding %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load finding %s: %w", id, err)
		}
		var f domain.Finding
		if err := json.Unmarshal(raw, &f); err != nil {
			return fmt.Errorf("decode finding %s: %w", id, err)
		}
		fn(&f)
		payload, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("marshal finding %s: %w", id, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}, key)
	return err
}

// ClearSession drops one session.
func (s *RedisStore) ClearSession(ctx context.Context, scanID int64) error {
	ids, err := s.client.LRange(ctx, itemsKey(scanID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("list session %d: %w", scanID, err)
	}
	url, err := s.client.HGet(ctx, metaKey(scanID), "url").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("session %d meta: %w", scanID, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, findingKey(id))
		}
		pipe.Del(ctx, keysKey(scanID), itemsKey(scanID), metaKey(scanID), guidelinesKey(scanID))
		pipe.ZRem(ctx, sessionsKey, strconv.FormatInt(scanID, 10))
		if url != "" {
			pipe.SRem(ctx, urlKey(url), scanID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear session %d: %w", scanID, err)
	}
	return nil
}

// RemoveSession drops every session recorded for the page URL.
func (s *RedisStore) RemoveSession(ctx context.Context, url string) error {
	members, err := s.client.SMembers(ctx, urlKey(url)).Result()
	if err != nil {
		return fmt.Errorf("sessions of %s: %w", url, err)
	}
	for _, m := range members {
		scan, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		if err := s.ClearSession(ctx, scan); err != nil {
			return err
		}
	}
	if err := s.client.Del(ctx, urlKey(url)).Err(); err != nil {
		return fmt.Errorf("drop url index %s: %w", url, err)
	}
	return nil
}

// Clear drops every key owned by the store.
func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, redisPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete keys: %w", err)
	}
	return nil
}
