// Package classify detects the format and business intent of a raw input.
package classify

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/docroute/docroute/internal/document"
	"github.com/docroute/docroute/internal/extraction"
)

// ErrClassificationFailed is returned when the classifier could not produce a
// valid Classification. Callers must not persist anything in that case.
var ErrClassificationFailed = errors.New("classification failed")

var classificationSchema = extraction.NewSchema("Classification", document.Classification.Validate)

// Classifier labels raw inputs with a format, an intent and a confidence.
type Classifier struct {
	client *extraction.Client
	log    *slog.Logger
}

// New creates a Classifier backed by the shared extraction client.
func New(client *extraction.Client, log *slog.Logger) *Classifier {
	if log == nil {
		log = slog.Default()
	}
	return &Classifier{client: client, log: log}
}

// Classify returns the classification of raw. A low confidence is a valid
// result; only an unusable model reply is an error.
func (c *Classifier) Classify(ctx context.Context, raw string) (document.Classification, error) {
	c.log.Debug("classifying input", "input", preview(raw))

	res, err := extraction.Extract(ctx, c.client, systemPrompt, raw, classificationSchema)
	if err != nil {
		c.log.Error("classification failed", "error", err)
		return document.Classification{}, errors.Mark(errors.Wrap(err, "classify"), ErrClassificationFailed)
	}

	cl := res.Value
	c.log.Info("classification completed",
		"format", cl.Format, "intent", cl.Intent, "confidence", cl.Confidence, "attempts", res.Attempts)
	return cl, nil
}

const previewLen = 200

// preview truncates s for debug logging.
func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen]) + "..."
}
