// Package extraction turns free text into validated structured values by
// calling a text-generation engine with a target JSON schema.
package extraction

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/docroute/docroute/internal/engine"
)

const (
	// MaxAttempts bounds the number of engine calls per extraction.
	MaxAttempts = 3
	// DefaultTimeout bounds one extraction including its retries.
	DefaultTimeout = 90 * time.Second

	initialBackoff = 500 * time.Millisecond
)

// ErrExtractionFailed is returned when no attempt produced a valid value.
var ErrExtractionFailed = errors.New("structured extraction failed")

// Options configures a Client.
type Options struct {
	Model string
	// Timeout bounds a whole Extract call. Zero selects DefaultTimeout.
	Timeout time.Duration
	// RatePerSecond limits engine calls across all extractions sharing the
	// client. Zero or negative disables limiting.
	RatePerSecond float64
	Logger        *slog.Logger
}

// Client is shared by every extractor. It is safe for concurrent use.
type Client struct {
	engine  engine.Engine
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	backoff time.Duration
	log     *slog.Logger
}

// New creates a Client calling eng.
func New(eng engine.Engine, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		engine:  eng,
		model:   opts.Model,
		timeout: timeout,
		limiter: rate.NewLimiter(limit, 1),
		backoff: initialBackoff,
		log:     log,
	}
}

// Model returns the model name sent with every request.
func (c *Client) Model() string { return c.model }

// Engine returns the underlying engine.
func (c *Client) Engine() engine.Engine { return c.engine }

// Result is a successful extraction. Attempts is 1 when the first reply was
// valid.
type Result[T any] struct {
	Value    T
	Attempts int
}

// Extract asks the engine to produce a T for userText. A reply that fails to
// decode is sent back with the validation error so the next attempt can
// correct it; transient engine failures are retried after a backoff. Other
// engine errors end the loop at once. Failure is reported as an error marked
// with ErrExtractionFailed that wraps the last cause.
func Extract[T any](ctx context.Context, c *Client, systemPrompt, userText string, schema *Schema[T]) (Result[T], error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := []engine.Message{
		{Role: engine.RoleSystem, Content: systemPrompt},
		{Role: engine.RoleUser, Content: userText},
	}
	target := &engine.Schema{Name: schema.Name(), Definition: schema.Definition()}

	var (
		lastErr  error
		attempts int
	)
	for attempts < MaxAttempts {
		if err := c.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}
		attempts++

		raw, err := c.engine.Chat(ctx, engine.Request{
			Model:       c.model,
			Messages:    messages,
			Schema:      target,
			Temperature: 0,
		})
		if err != nil {
			lastErr = err
			if ctx.Err() != nil || !engine.IsTransient(err) || attempts == MaxAttempts {
				break
			}
			c.log.Warn("extraction engine call failed, retrying",
				"schema", schema.Name(), "attempt", attempts, "error", err)
			if !sleep(ctx, c.backoff<<(attempts-1)) {
				break
			}
			continue
		}

		v, err := schema.Decode(raw)
		if err == nil {
			c.log.Debug("extraction succeeded", "schema", schema.Name(), "attempts", attempts)
			return Result[T]{Value: v, Attempts: attempts}, nil
		}
		lastErr = err
		c.log.Warn("extraction reply rejected", "schema", schema.Name(), "attempt", attempts, "error", err)
		messages = append(messages,
			engine.Message{Role: engine.RoleAssistant, Content: raw},
			engine.Message{Role: engine.RoleUser, Content: "The previous reply was rejected: " + err.Error() +
				". Reply again with a single JSON object that satisfies the schema."},
		)
	}

	if lastErr == nil {
		lastErr = ctx.Err()
	}
	err := errors.Wrapf(lastErr, "%s: gave up after %d attempt(s)", schema.Name(), attempts)
	return Result[T]{Attempts: attempts}, errors.Mark(err, ErrExtractionFailed)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
