package document

import (
	"time"

	"github.com/google/uuid"
)

// AnomalyLowConfidence marks a record that was not routed because the
// classifier was unsure of the input.
const AnomalyLowConfidence = "low_classification_confidence"

// Record is the canonical, persisted representation of one processed input.
// It is built once by the dispatcher and never modified afterwards.
type Record struct {
	SourceID          string         `json:"source_id"`
	SourceType        Format         `json:"source_type"`
	Intent            Intent         `json:"intent"`
	Confidence        float64        `json:"confidence"`
	Timestamp         string         `json:"timestamp"`
	ThreadID          string         `json:"thread_id"`
	ExtractedFields   map[string]any `json:"extracted_fields"`
	AnomaliesDetected []string       `json:"anomalies_detected"`
}

// NewSourceID returns a fresh source id of the form "<format>_<uuid>".
func NewSourceID(f Format) string {
	return string(f) + "_" + uuid.New().String()
}

// Timestamp formats t as a UTC ISO-8601 string.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Fields flattens the record into one entry per top-level key, the layout
// written to the thread store. Nil collections are replaced with empty ones.
func (r Record) Fields() map[string]any {
	extracted := r.ExtractedFields
	if extracted == nil {
		extracted = map[string]any{}
	}
	anomalies := r.AnomaliesDetected
	if anomalies == nil {
		anomalies = []string{}
	}
	return map[string]any{
		"source_id":          r.SourceID,
		"source_type":        string(r.SourceType),
		"intent":             string(r.Intent),
		"confidence":         r.Confidence,
		"timestamp":          r.Timestamp,
		"thread_id":          r.ThreadID,
		"extracted_fields":   extracted,
		"anomalies_detected": anomalies,
	}
}
