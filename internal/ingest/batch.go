package ingest

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/docroute/docroute/internal/pipeline"
)

// DefaultConcurrency bounds parallel dispatches in a batch.
const DefaultConcurrency = 4

// Dispatcher processes one input under a thread id.
type Dispatcher interface {
	Dispatch(ctx context.Context, threadID, raw string) (pipeline.Outcome, error)
}

// Result is the outcome of one batch input. Err is set when the input could
// not be processed; the other inputs are unaffected.
type Result struct {
	Input   Input
	Outcome pipeline.Outcome
	Err     error
}

// Batch runs several inputs through a Dispatcher concurrently, each under its
// own thread id.
type Batch struct {
	dispatcher  Dispatcher
	concurrency int
	logger      *slog.Logger
}

// NewBatch creates a Batch. If concurrency is <= 0, it defaults to
// DefaultConcurrency.
func NewBatch(d Dispatcher, concurrency int) *Batch {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Batch{
		dispatcher:  d,
		concurrency: concurrency,
		logger:      slog.Default(),
	}
}

// Run dispatches every input and returns the results in input order. A
// failing input does not cancel the others.
func (b *Batch) Run(ctx context.Context, inputs []Input) []Result {
	results := make([]Result, len(inputs))
	var g errgroup.Group
	g.SetLimit(b.concurrency)

	for i, in := range inputs {
		g.Go(func() error {
			threadID := pipeline.NewThreadID()
			out, err := b.dispatcher.Dispatch(ctx, threadID, in.Content)
			if err != nil {
				b.logger.Warn("input failed", "source", in.Source, "thread_id", threadID, "error", err)
				out.ThreadID = threadID
			}
			results[i] = Result{Input: in, Outcome: out, Err: err}
			return nil
		})
	}
	g.Wait()
	return results
}

// Failed counts results with an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
