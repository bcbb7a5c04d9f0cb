// Package enginetest provides an in-memory engine.Engine for tests.
package enginetest

import (
	"context"
	"sync"

	"github.com/docroute/docroute/internal/engine"
)

// Reply is one canned engine response.
type Reply struct {
	Content string
	Err     error
}

// Engine answers chat calls from a script of replies or from a function.
// Once the script is exhausted it fails with a 500 status error.
type Engine struct {
	mu       sync.Mutex
	replies  []Reply
	respond  func(engine.Request) (string, error)
	requests []engine.Request
	down     bool
}

// New returns an Engine replaying replies in order.
func New(replies ...Reply) *Engine {
	return &Engine{replies: replies}
}

// Func returns an Engine that answers every call with fn.
func Func(fn func(engine.Request) (string, error)) *Engine {
	return &Engine{respond: fn}
}

// Down returns an Engine whose IsRunning reports false.
func Down() *Engine {
	return &Engine{down: true}
}

func (e *Engine) Name() string { return "test" }

func (e *Engine) IsRunning(_ context.Context) bool { return !e.down }

func (e *Engine) Chat(ctx context.Context, req engine.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)
	if e.respond != nil {
		return e.respond(req)
	}
	if len(e.replies) == 0 {
		return "", &engine.StatusError{Engine: "test", StatusCode: 500, Body: "script exhausted"}
	}
	r := e.replies[0]
	e.replies = e.replies[1:]
	return r.Content, r.Err
}

// Requests returns a copy of every request received so far.
func (e *Engine) Requests() []engine.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.Request(nil), e.requests...)
}

// Calls returns the number of chat calls received.
func (e *Engine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}
