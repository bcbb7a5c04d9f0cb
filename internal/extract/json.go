// Package extract pulls structured fields out of inputs whose format is
// already known.
package extract

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/docroute/docroute/internal/document"
	"github.com/docroute/docroute/internal/extraction"
)

// ErrJSONExtractionFailed is returned when the model call for a parseable
// JSON payload fails. Unparseable input is not an error.
var ErrJSONExtractionFailed = errors.New("JSON extraction failed")

var jsonExtractionSchema = extraction.NewSchema("JSONExtraction", document.JSONExtraction.Validate)

// JSONExtractor reformats JSON payloads into the per-intent payload layout.
type JSONExtractor struct {
	client *extraction.Client
	log    *slog.Logger
}

// NewJSONExtractor creates a JSONExtractor backed by the shared client.
func NewJSONExtractor(client *extraction.Client, log *slog.Logger) *JSONExtractor {
	if log == nil {
		log = slog.Default()
	}
	return &JSONExtractor{client: client, log: log}
}

// Extract parses raw, asks the model to reformat it and re-validates the
// result against the payload schema for the detected intent. Input that is
// not JSON yields a zero-confidence result without a model call. A payload
// that fails validation keeps the model's data and gains an anomaly.
func (x *JSONExtractor) Extract(ctx context.Context, raw string) (document.JSONExtraction, error) {
	x.log.Debug("extracting JSON payload", "input", preview(raw))

	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		x.log.Warn("input is not valid JSON", "error", err)
		return document.InvalidJSONExtraction(err), nil
	}

	res, err := extraction.Extract(ctx, x.client, jsonSystemPrompt, raw, jsonExtractionSchema)
	if err != nil {
		x.log.Error("JSON extraction failed", "error", err)
		return document.JSONExtraction{}, errors.Mark(errors.Wrap(err, "extract json"), ErrJSONExtractionFailed)
	}

	out := res.Value
	if out.ExtractedData == nil {
		out.ExtractedData = map[string]any{}
	}
	document.NormalizeNumbers(out.ExtractedData)
	if out.Anomalies == nil {
		out.Anomalies = []string{}
	}

	schema := document.PayloadSchemaFor(out.Intent)
	normalized, err := schema.Validate(out.ExtractedData)
	if err != nil {
		x.log.Warn("extracted data failed payload validation", "schema", schema.Name(), "error", err)
		out.Anomalies = append(out.Anomalies, "Validation errors: "+err.Error())
	} else {
		out.ExtractedData = normalized
	}

	x.log.Info("JSON extraction completed",
		"intent", out.Intent, "confidence", out.Confidence, "anomalies", len(out.Anomalies))
	return out, nil
}
