package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrNotRunning is returned by EnsureReady when the backend does not answer.
var ErrNotRunning = errors.New("inference engine is not running")

// EnsureReady checks that the Engine is reachable. Engines that manage local
// models also get the model pulled when missing (progress written to w) and
// warmed up with a trivial chat so the first document does not pay the
// cold-load penalty.
func EnsureReady(ctx context.Context, e Engine, model string, w io.Writer) error {
	if !e.IsRunning(ctx) {
		hint := "check llm.base_url and the API key"
		if e.Name() == ProviderOllama {
			hint = "start it with: ollama serve"
		}
		return errors.WithHint(errors.Wrapf(ErrNotRunning, "%s", e.Name()), hint)
	}

	mm, ok := e.(ModelManager)
	if !ok || model == "" {
		return nil
	}

	if mm.HasModel(ctx, model) {
		fmt.Fprintf(w, "model %s: ready\n", model)
	} else {
		fmt.Fprintf(w, "model %s: pulling...\n", model)
		err := mm.PullModel(ctx, model, func(p PullProgress) {
			if p.Total > 0 {
				pct := float64(p.Completed) / float64(p.Total) * 100
				fmt.Fprintf(w, "  %s %.0f%%\n", p.Status, pct)
			} else {
				fmt.Fprintf(w, "  %s\n", p.Status)
			}
		})
		if err != nil {
			return errors.Wrapf(err, "pulling model %s", model)
		}
		fmt.Fprintf(w, "model %s: ready\n", model)
	}

	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	_, err := e.Chat(warmCtx, Request{
		Model:    model,
		Messages: []Message{{Role: RoleUser, Content: "ping"}},
	})
	if err != nil {
		fmt.Fprintf(w, "model %s: warm-up failed (non-fatal): %v\n", model, err)
	} else {
		fmt.Fprintf(w, "model %s: warm\n", model)
	}
	return nil
}
