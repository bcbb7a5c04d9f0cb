package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docroute/docroute/internal/classify"
	"github.com/docroute/docroute/internal/document"
	"github.com/docroute/docroute/internal/engine"
	"github.com/docroute/docroute/internal/engine/enginetest"
	"github.com/docroute/docroute/internal/extract"
	"github.com/docroute/docroute/internal/extraction"
	"github.com/docroute/docroute/internal/storage"
)

// replies maps a schema name to the model reply returned for it.
type replies map[string]string

func (r replies) engine() *enginetest.Engine {
	return enginetest.Func(func(req engine.Request) (string, error) {
		if out, ok := r[req.Schema.Name]; ok {
			return out, nil
		}
		return "", &engine.StatusError{StatusCode: 400, Body: "no reply for " + req.Schema.Name}
	})
}

// wire assembles the real pipeline over eng and an in-memory SQLite store.
func wire(t *testing.T, eng engine.Engine) (*Dispatcher, *storage.Threads) {
	t.Helper()
	b, err := storage.OpenSQLite(storage.MemoryDSN)
	require.NoError(t, err)
	threads := storage.NewThreads(b, time.Second, quietLog)
	t.Cleanup(func() { threads.Close() })

	client := extraction.New(eng, extraction.Options{Model: "test"})
	d := NewDispatcher(Deps{
		Classifier: classify.New(client, quietLog),
		JSON:       extract.NewJSONExtractor(client, quietLog),
		Email:      extract.NewEmailExtractor(client, quietLog),
		Threads:    threads,
		Metrics:    NewMetrics(prometheus.NewRegistry()),
		Logger:     quietLog,
	})
	return d, threads
}

const invoiceJSON = `{"invoice_number":1234,"invoice_date":"2025-05-30","items":[{"description":"Widget A","quantity":10,"unit_price":15.0,"total_price":150.0}],"total_amount":150.0}`

func TestScenarioA_InvoiceJSON(t *testing.T) {
	d, threads := wire(t, replies{
		"Classification": `{"format":"json","intent":"invoice","confidence":0.97}`,
		"JSONExtraction": `{"intent":"invoice","extracted_data":` + invoiceJSON + `,"anomalies":[],"confidence":0.95}`,
	}.engine())

	out, err := d.Dispatch(context.Background(), "scenario-a", invoiceJSON)
	require.NoError(t, err)

	assert.Equal(t, document.FormatJSON, out.Record.SourceType)
	assert.Equal(t, document.IntentInvoice, out.Record.Intent)
	assert.Equal(t, []string{}, out.Record.AnomaliesDetected)
	_, err = document.PayloadSchemaFor(document.IntentInvoice).Validate(out.Record.ExtractedFields)
	assert.NoError(t, err, "extracted fields match the invoice schema")

	stored := threads.GetAll(context.Background(), "scenario-a")
	assert.Equal(t, "json", stored["source_type"])
	assert.Equal(t, 0.95, stored["confidence"])
	assert.Equal(t, []any{}, stored["anomalies_detected"])

	var events []string
	for _, e := range threads.GetLogs(context.Background(), "scenario-a") {
		events = append(events, e.EventType)
	}
	assert.Equal(t, []string{EventClassified, EventRouted, EventExtracted, EventPersisted}, events)
}

func TestScenarioB_ComplaintEmail(t *testing.T) {
	d, threads := wire(t, replies{
		"Classification":  `{"format":"email","intent":"complaint","confidence":0.93}`,
		"EmailExtraction": `{"sender_email":"jane@x.com","intent":"complaint","urgency":"high","confidence":0.9,"extracted_summary":"Defective blender, refund requested."}`,
	}.engine())

	out, err := d.Dispatch(context.Background(), "scenario-b",
		"From: jane@x.com\n\nThe blender I bought is defective. I want a full refund immediately.")
	require.NoError(t, err)

	fields := out.Record.ExtractedFields
	assert.Equal(t, "jane@x.com", fields["sender_email"])
	assert.Contains(t, []string{"high", "critical"}, fields["urgency"])

	stored := threads.GetAll(context.Background(), "scenario-b")
	assert.Equal(t, map[string]any{
		"sender_email":      "jane@x.com",
		"urgency":           "high",
		"extracted_summary": "Defective blender, refund requested.",
	}, stored["extracted_fields"])
}

func TestScenarioC_MalformedJSON(t *testing.T) {
	eng := enginetest.New()
	x := extract.NewJSONExtractor(extraction.New(eng, extraction.Options{}), quietLog)

	for range 3 {
		got, err := x.Extract(context.Background(), "{invoice_number: 123")
		require.NoError(t, err)
		assert.Zero(t, got.Confidence)
		assert.Equal(t, document.IntentOther, got.Intent)
		require.Len(t, got.Anomalies, 1)
		assert.Regexp(t, `^Invalid JSON: `, got.Anomalies[0])
	}
	assert.Zero(t, eng.Calls())
}

func TestScenarioD_ClassificationExhaustsRetries(t *testing.T) {
	d, threads := wire(t, replies{
		"Classification": `{"format":"spreadsheet","intent":"invoice","confidence":0.9}`,
	}.engine())

	_, err := d.Dispatch(context.Background(), "scenario-d", invoiceJSON)
	require.Error(t, err)
	assert.True(t, errors.Is(err, classify.ErrClassificationFailed))
	assert.True(t, errors.Is(err, extraction.ErrExtractionFailed))

	assert.Empty(t, threads.GetAll(context.Background(), "scenario-d"))
}

func TestScenario_LowConfidencePersistsForReview(t *testing.T) {
	d, threads := wire(t, replies{
		"Classification": `{"format":"email","intent":"other","confidence":0.42}`,
	}.engine())

	out, err := d.Dispatch(context.Background(), "review", "hmm")
	require.NoError(t, err)
	assert.True(t, out.LowConfidence)

	stored := threads.GetAll(context.Background(), "review")
	assert.Equal(t, map[string]any{}, stored["extracted_fields"])
	assert.Equal(t, []any{document.AnomalyLowConfidence}, stored["anomalies_detected"])
}
