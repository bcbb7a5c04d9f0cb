package storage

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/docroute/docroute/internal/document"
)

// DefaultTimeout bounds every store operation.
const DefaultTimeout = 5 * time.Second

// Backend names accepted by Config.Backend.
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config selects and addresses the thread store backend.
type Config struct {
	Backend       string
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int
	DataDir       string
	Timeout       time.Duration
}

// LogEntry is one event in a thread's processing history.
type LogEntry struct {
	EventType string         `json:"event_type"`
	Timestamp string         `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

// Threads is the thread store used by the pipeline. Values are stored JSON
// encoded. Once open, the store never fails its callers: read errors are
// logged and reported as absent or empty, write errors are logged and dropped.
type Threads struct {
	backend Backend
	timeout time.Duration
	log     *slog.Logger
	now     func() time.Time
}

// Open connects to the configured backend, failing fast when it is
// unreachable.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Threads, error) {
	var (
		b   Backend
		err error
	)
	name := cfg.Backend
	if name == "" {
		name = BackendRedis
	}
	switch name {
	case BackendRedis:
		host := cfg.RedisHost
		if host == "" {
			host = "localhost"
		}
		port := cfg.RedisPort
		if port == 0 {
			port = 6379
		}
		pingCtx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.Timeout))
		defer cancel()
		b, err = OpenRedis(pingCtx, RedisOptions{
			Addr:     net.JoinHostPort(host, strconv.Itoa(port)),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case BackendSQLite:
		b, err = OpenSQLite(cfg.DataDir)
	default:
		return nil, errors.Newf("unknown store backend %q (want %s or %s)", cfg.Backend, BackendRedis, BackendSQLite)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s thread store", name)
	}
	return NewThreads(b, cfg.Timeout, log), nil
}

// NewThreads wraps an open backend. A zero timeout selects DefaultTimeout.
func NewThreads(b Backend, timeout time.Duration, log *slog.Logger) *Threads {
	if log == nil {
		log = slog.Default()
	}
	return &Threads{
		backend: b,
		timeout: timeoutOrDefault(timeout),
		log:     log,
		now:     time.Now,
	}
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	return d
}

// Store writes a single field.
func (t *Threads) Store(ctx context.Context, threadID, key string, value any) {
	t.StoreBulk(ctx, threadID, map[string]any{key: value})
}

// StoreBulk writes all fields in one backend operation.
func (t *Threads) StoreBulk(ctx context.Context, threadID string, fields map[string]any) {
	encoded := make(map[string]string, len(fields))
	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			t.log.Error("encoding thread field", "thread_id", threadID, "key", k, "error", err)
			return
		}
		encoded[k] = string(b)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	if err := t.backend.SetFields(ctx, threadID, encoded); err != nil {
		t.log.Error("storing thread fields", "thread_id", threadID, "fields", len(encoded), "error", err)
		return
	}
	t.log.Debug("stored thread fields", "thread_id", threadID, "fields", len(encoded))
}

// GetField returns the decoded value of key, or ok=false when it is absent or
// the store could not be read.
func (t *Threads) GetField(ctx context.Context, threadID, key string) (any, bool) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	raw, ok, err := t.backend.GetField(ctx, threadID, key)
	if err != nil {
		t.log.Error("reading thread field", "thread_id", threadID, "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return t.decode(threadID, key, raw), true
}

// GetAll returns every decoded field of the thread; empty when unknown.
func (t *Threads) GetAll(ctx context.Context, threadID string) map[string]any {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	out := make(map[string]any)
	fields, err := t.backend.GetFields(ctx, threadID)
	if err != nil {
		t.log.Error("reading thread", "thread_id", threadID, "error", err)
		return out
	}
	for k, raw := range fields {
		out[k] = t.decode(threadID, k, raw)
	}
	return out
}

// decode returns the JSON value of raw, or raw itself when it is not JSON.
func (t *Threads) decode(threadID, key, raw string) any {
	var v any
	if err := document.DecodeJSON([]byte(raw), &v); err != nil {
		t.log.Warn("thread field is not JSON", "thread_id", threadID, "key", key, "error", err)
		return raw
	}
	return document.NormalizeNumbers(v)
}

// AppendLog records an event with the current UTC time.
func (t *Threads) AppendLog(ctx context.Context, threadID, eventType string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	entry := LogEntry{
		EventType: eventType,
		Timestamp: t.now().UTC().Format(time.RFC3339Nano),
		Metadata:  metadata,
	}
	b, err := json.Marshal(entry)
	if err != nil {
		t.log.Error("encoding thread log entry", "thread_id", threadID, "event", eventType, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	if err := t.backend.AppendLog(ctx, threadID, string(b)); err != nil {
		t.log.Error("appending thread log", "thread_id", threadID, "event", eventType, "error", err)
	}
}

// GetLogs returns the thread's events, oldest first.
func (t *Threads) GetLogs(ctx context.Context, threadID string) []LogEntry {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	raw, err := t.backend.Logs(ctx, threadID)
	if err != nil {
		t.log.Error("reading thread logs", "thread_id", threadID, "error", err)
		return []LogEntry{}
	}
	out := make([]LogEntry, 0, len(raw))
	for _, r := range raw {
		var e LogEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			t.log.Warn("skipping malformed thread log entry", "thread_id", threadID, "error", err)
			continue
		}
		out = append(out, e)
	}
	return out
}

// Clear removes every field and log entry of the thread.
func (t *Threads) Clear(ctx context.Context, threadID string) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	if err := t.backend.Delete(ctx, threadID); err != nil {
		t.log.Error("clearing thread", "thread_id", threadID, "error", err)
		return
	}
	t.log.Info("cleared thread", "thread_id", threadID)
}

// Ping reports whether the backend is reachable.
func (t *Threads) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.backend.Ping(ctx)
}

// Close releases the backend connection.
func (t *Threads) Close() error {
	return t.backend.Close()
}
