// Package storage persists extraction records and event logs per
// conversation thread.
package storage

import (
	"context"

	"github.com/cockroachdb/errors"
)

// ErrStoreUnavailable marks failures to reach the backing store.
var ErrStoreUnavailable = errors.New("thread store unavailable")

// Backend is the raw key/value layout of the thread store. Field values and
// log entries are opaque strings; Threads handles their encoding.
type Backend interface {
	// SetFields upserts all fields of a thread in one operation.
	SetFields(ctx context.Context, threadID string, fields map[string]string) error
	// GetField returns one field; ok is false when it does not exist.
	GetField(ctx context.Context, threadID, key string) (value string, ok bool, err error)
	// GetFields returns every field of a thread, empty when unknown.
	GetFields(ctx context.Context, threadID string) (map[string]string, error)
	// AppendLog adds an entry at the end of the thread's log.
	AppendLog(ctx context.Context, threadID, entry string) error
	// Logs returns the thread's log entries, oldest first.
	Logs(ctx context.Context, threadID string) ([]string, error)
	// Delete removes the thread's fields and logs.
	Delete(ctx context.Context, threadID string) error
	Ping(ctx context.Context) error
	Close() error
}
