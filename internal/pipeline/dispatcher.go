// Package pipeline routes a classified input to its format-specific
// extractor and persists the canonical record for the thread.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/docroute/docroute/internal/document"
)

// ConfidenceThreshold is the classifier confidence below which an input is
// held for manual review instead of being routed.
const ConfidenceThreshold = 0.7

// ErrUnsupportedFormat is returned when the classification names a format
// with no extraction path.
var ErrUnsupportedFormat = errors.New("unsupported input format")

// Thread log event types.
const (
	EventClassified    = "classified"
	EventLowConfidence = "low_confidence"
	EventRouted        = "routed"
	EventExtracted     = "extracted"
	EventPersisted     = "persisted"
	EventFailed        = "failed"
)

// Classifier labels raw input.
type Classifier interface {
	Classify(ctx context.Context, raw string) (document.Classification, error)
}

// JSONExtractor handles the JSON path.
type JSONExtractor interface {
	Extract(ctx context.Context, raw string) (document.JSONExtraction, error)
}

// EmailExtractor handles the email path. It never fails.
type EmailExtractor interface {
	Extract(ctx context.Context, raw string) document.EmailExtraction
}

// ThreadStore receives records and event logs. Implementations swallow
// their own errors.
type ThreadStore interface {
	StoreBulk(ctx context.Context, threadID string, fields map[string]any)
	AppendLog(ctx context.Context, threadID, eventType string, metadata map[string]any)
}

// Deps are the Dispatcher's collaborators. Metrics and Logger are optional.
type Deps struct {
	Classifier Classifier
	JSON       JSONExtractor
	Email      EmailExtractor
	Threads    ThreadStore
	Metrics    *Metrics
	Logger     *slog.Logger
}

// Dispatcher runs one input through classify, gate, route, extract,
// normalize and persist. It holds no per-input state and is safe for
// concurrent use with distinct thread ids.
type Dispatcher struct {
	classifier     Classifier
	jsonExtractor  JSONExtractor
	emailExtractor EmailExtractor
	threads        ThreadStore
	metrics        *Metrics
	log            *slog.Logger
	now            func() time.Time
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(d Deps) *Dispatcher {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		classifier:     d.Classifier,
		jsonExtractor:  d.JSON,
		emailExtractor: d.Email,
		threads:        d.Threads,
		metrics:        d.Metrics,
		log:            log,
		now:            time.Now,
	}
}

// NewThreadID returns a fresh thread identifier.
func NewThreadID() string {
	return uuid.New().String()
}

// routed is the normalized output of either extraction path.
type routed struct {
	sourceType document.Format
	fields     map[string]any
	anomalies  []string
	confidence float64
}

// Dispatch processes raw under threadID (a new id is generated when empty).
// Classification failure, JSON extraction failure and an unsupported format
// are returned as errors and leave no record behind. A low-confidence
// classification is not an error: the record is persisted with the
// low_classification_confidence anomaly and Outcome.LowConfidence set.
func (d *Dispatcher) Dispatch(ctx context.Context, threadID, raw string) (Outcome, error) {
	if threadID == "" {
		threadID = NewThreadID()
	}
	start := time.Now()
	log := d.log.With("thread_id", threadID)

	cl, err := d.classifier.Classify(ctx, raw)
	if err != nil {
		return Outcome{}, d.fail(ctx, log, threadID, "classify", "", "", start, err)
	}
	d.metrics.recordConfidence(cl.Confidence)
	d.threads.AppendLog(ctx, threadID, EventClassified, map[string]any{
		"format":     string(cl.Format),
		"intent":     string(cl.Intent),
		"confidence": cl.Confidence,
	})

	rec := document.Record{
		SourceID:  document.NewSourceID(cl.Format),
		Intent:    cl.Intent,
		Timestamp: document.Timestamp(d.now()),
		ThreadID:  threadID,
	}

	if cl.Confidence < ConfidenceThreshold {
		log.Warn("low classification confidence, routing to manual review",
			"confidence", cl.Confidence, "threshold", ConfidenceThreshold)
		rec.SourceType = cl.Format
		rec.Confidence = cl.Confidence
		rec.ExtractedFields = map[string]any{}
		rec.AnomaliesDetected = []string{document.AnomalyLowConfidence}
		d.threads.AppendLog(ctx, threadID, EventLowConfidence, map[string]any{
			"confidence": cl.Confidence,
			"threshold":  ConfidenceThreshold,
		})
		d.persist(ctx, log, rec)
		d.metrics.recordAnomalies(string(rec.SourceType), 1)
		d.metrics.recordDispatch(string(rec.SourceType), string(rec.Intent), outcomeLowConfidence, time.Since(start).Seconds())
		return Outcome{ThreadID: threadID, Classification: cl, Record: rec, LowConfidence: true}, nil
	}

	ext, err := d.route(ctx, log, threadID, cl, raw)
	if err != nil {
		return Outcome{}, d.fail(ctx, log, threadID, "extract", cl.Format, cl.Intent, start, err)
	}
	d.threads.AppendLog(ctx, threadID, EventExtracted, map[string]any{
		"source_type": string(ext.sourceType),
		"confidence":  ext.confidence,
		"anomalies":   len(ext.anomalies),
	})

	rec.SourceType = ext.sourceType
	rec.Confidence = ext.confidence
	rec.ExtractedFields = ext.fields
	rec.AnomaliesDetected = ext.anomalies
	d.persist(ctx, log, rec)

	d.metrics.recordAnomalies(string(rec.SourceType), len(rec.AnomaliesDetected))
	d.metrics.recordDispatch(string(rec.SourceType), string(rec.Intent), outcomeProcessed, time.Since(start).Seconds())
	log.Info("input processed", "source_type", rec.SourceType, "intent", rec.Intent,
		"confidence", rec.Confidence, "anomalies", len(rec.AnomaliesDetected))
	return Outcome{ThreadID: threadID, Classification: cl, Record: rec}, nil
}

// route selects the extraction path for the classified format.
func (d *Dispatcher) route(ctx context.Context, log *slog.Logger, threadID string, cl document.Classification, raw string) (routed, error) {
	var (
		path  document.Format
		input = raw
	)
	switch cl.Format {
	case document.FormatJSON:
		path = document.FormatJSON
	case document.FormatEmail:
		path = document.FormatEmail
	case document.FormatPDF:
		// PDF text that is itself a JSON document takes the JSON path.
		if normalized, ok := reencodeJSON(raw); ok {
			path, input = document.FormatJSON, normalized
		} else {
			path = document.FormatEmail
		}
	default:
		return routed{}, errors.WithHint(
			errors.Wrapf(ErrUnsupportedFormat, "%s with intent: %s", cl.Format, cl.Intent),
			"supported formats are pdf, json and email")
	}

	log.Debug("routing input", "format", cl.Format, "path", path)
	d.threads.AppendLog(ctx, threadID, EventRouted, map[string]any{
		"format": string(cl.Format),
		"path":   string(path),
	})

	if path == document.FormatJSON {
		res, err := d.jsonExtractor.Extract(ctx, input)
		if err != nil {
			return routed{}, err
		}
		return routed{
			sourceType: document.FormatJSON,
			fields:     nonNilMap(res.ExtractedData),
			anomalies:  nonNilSlice(res.Anomalies),
			confidence: res.Confidence,
		}, nil
	}

	res := d.emailExtractor.Extract(ctx, input)
	return routed{
		sourceType: document.FormatEmail,
		fields: map[string]any{
			"sender_email":      res.SenderEmail,
			"urgency":           string(res.Urgency),
			"extracted_summary": res.Summary,
		},
		anomalies:  []string{},
		confidence: res.Confidence,
	}, nil
}

func (d *Dispatcher) persist(ctx context.Context, log *slog.Logger, rec document.Record) {
	fields := rec.Fields()
	d.threads.StoreBulk(ctx, rec.ThreadID, fields)
	d.threads.AppendLog(ctx, rec.ThreadID, EventPersisted, map[string]any{
		"source_id": rec.SourceID,
		"fields":    len(fields),
	})
	log.Debug("record persisted", "source_id", rec.SourceID)
}

func (d *Dispatcher) fail(ctx context.Context, log *slog.Logger, threadID, stage string, format document.Format, intent document.Intent, start time.Time, err error) error {
	log.Error("dispatch failed", "stage", stage, "error", err)
	d.threads.AppendLog(ctx, threadID, EventFailed, map[string]any{
		"stage": stage,
		"error": err.Error(),
	})
	d.metrics.recordDispatch(string(format), string(intent), outcomeFailed, time.Since(start).Seconds())
	return err
}

// reencodeJSON reports whether s parses as JSON and returns it re-serialized.
func reencodeJSON(s string) (string, bool) {
	var v any
	if err := document.DecodeJSON([]byte(s), &v); err != nil {
		return "", false
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", false
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), true
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
