package engine

import "context"

// Engine abstracts a text-generation backend (a hosted OpenAI-compatible API
// such as Groq, or a local Ollama server). Extraction code depends on this
// interface instead of a concrete client.
type Engine interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Chat sends the request and returns the assistant's raw reply.
	// When req.Schema is set, JSON output conforming to it is requested.
	Chat(ctx context.Context, req Request) (string, error)

	// IsRunning reports whether the backend is reachable.
	IsRunning(ctx context.Context) bool
}

// ModelManager is implemented by engines that host models locally and can
// download missing ones.
type ModelManager interface {
	HasModel(ctx context.Context, name string) bool
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}
