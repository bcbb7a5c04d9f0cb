package extract

import (
	"context"
	"log/slog"

	"github.com/docroute/docroute/internal/document"
	"github.com/docroute/docroute/internal/extraction"
)

var emailExtractionSchema = extraction.NewSchema("EmailExtraction", document.EmailExtraction.Validate)

// EmailExtractor pulls sender, intent, urgency and a summary out of email text.
type EmailExtractor struct {
	client *extraction.Client
	log    *slog.Logger
}

// NewEmailExtractor creates an EmailExtractor backed by the shared client.
func NewEmailExtractor(client *extraction.Client, log *slog.Logger) *EmailExtractor {
	if log == nil {
		log = slog.Default()
	}
	return &EmailExtractor{client: client, log: log}
}

// Extract never fails: when no valid extraction can be obtained it returns
// document.FailedEmailExtraction.
func (x *EmailExtractor) Extract(ctx context.Context, raw string) document.EmailExtraction {
	x.log.Debug("extracting email", "input", preview(raw))

	res, err := extraction.Extract(ctx, x.client, emailSystemPrompt, raw, emailExtractionSchema)
	if err != nil {
		x.log.Error("email extraction failed", "error", err)
		return document.FailedEmailExtraction()
	}

	e := res.Value
	x.log.Info("email extraction completed",
		"sender", e.SenderEmail, "intent", e.Intent, "urgency", e.Urgency)
	return e
}

const previewLen = 200

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen]) + "..."
}
