package extract

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docroute/docroute/internal/document"
	"github.com/docroute/docroute/internal/engine"
	"github.com/docroute/docroute/internal/engine/enginetest"
	"github.com/docroute/docroute/internal/extraction"
)

func newClient(eng engine.Engine) *extraction.Client {
	return extraction.New(eng, extraction.Options{Model: "m"})
}

const invoiceInput = `{"invoice_number":12345,"invoice_date":"2025-05-30","items":[{"description":"Widget A","quantity":10,"unit_price":15.0,"total_price":150.0}],"total_amount":150.0}`

func TestJSONExtract_Invoice(t *testing.T) {
	eng := enginetest.New(enginetest.Reply{Content: `{
		"intent": "invoice",
		"extracted_data": ` + invoiceInput + `,
		"anomalies": [],
		"confidence": 0.93
	}`})

	got, err := NewJSONExtractor(newClient(eng), nil).Extract(context.Background(), invoiceInput)
	require.NoError(t, err)

	assert.Equal(t, document.IntentInvoice, got.Intent)
	assert.Equal(t, 0.93, got.Confidence)
	assert.Empty(t, got.Anomalies)
	assert.Equal(t, float64(12345), got.ExtractedData["invoice_number"])
	assert.Equal(t, 150.0, got.ExtractedData["total_amount"])
	items := got.ExtractedData["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Widget A", items[0].(map[string]any)["description"])

	req := eng.Requests()[0]
	assert.Equal(t, jsonSystemPrompt, req.Messages[0].Content)
	assert.Equal(t, invoiceInput, req.Messages[1].Content)
}

func TestJSONExtract_InvalidJSONSkipsModel(t *testing.T) {
	eng := enginetest.New()
	x := NewJSONExtractor(newClient(eng), nil)

	const raw = `{"invoice_number": 1,`
	var first document.JSONExtraction
	for i := range 3 {
		got, err := x.Extract(context.Background(), raw)
		require.NoError(t, err)

		assert.Equal(t, document.IntentOther, got.Intent)
		assert.Zero(t, got.Confidence)
		assert.Empty(t, got.ExtractedData)
		require.Len(t, got.Anomalies, 1)
		assert.Contains(t, got.Anomalies[0], "Invalid JSON: ")
		if i == 0 {
			first = got
			continue
		}
		assert.Equal(t, first, got, "call %d differs from the first", i+1)
	}
	assert.Equal(t, 0, eng.Calls())
}

func TestJSONExtract_LargeIntegersStayExact(t *testing.T) {
	const input = `{"invoice_number":12345678901234567,"invoice_date":"2025-05-30","items":[],"total_amount":"1999.50"}`
	eng := enginetest.New(enginetest.Reply{Content: `{
		"intent": "invoice",
		"extracted_data": ` + input + `,
		"anomalies": [],
		"confidence": 0.9
	}`})

	got, err := NewJSONExtractor(newClient(eng), nil).Extract(context.Background(), input)
	require.NoError(t, err)
	assert.Empty(t, got.Anomalies)
	assert.Equal(t, json.Number("12345678901234567"), got.ExtractedData["invoice_number"])
	assert.Equal(t, 1999.5, got.ExtractedData["total_amount"])

	out, err := json.Marshal(got.ExtractedData)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"invoice_number":12345678901234567`)
}

func TestJSONExtract_ValidationFailureKeepsData(t *testing.T) {
	eng := enginetest.New(enginetest.Reply{Content: `{
		"intent": "rfq",
		"extracted_data": {"rfq_number": "RFQ-9", "requested_items": ["bolts"]},
		"anomalies": ["deadline missing"],
		"confidence": 0.7
	}`})

	got, err := NewJSONExtractor(newClient(eng), nil).Extract(context.Background(), `{"rfq":"RFQ-9"}`)
	require.NoError(t, err)

	assert.Equal(t, document.IntentRFQ, got.Intent)
	assert.Equal(t, "RFQ-9", got.ExtractedData["rfq_number"])
	require.Len(t, got.Anomalies, 2)
	assert.Equal(t, "deadline missing", got.Anomalies[0])
	assert.Contains(t, got.Anomalies[1], "Validation errors: ")
	assert.Contains(t, got.Anomalies[1], "RFQData")
	assert.Contains(t, got.Anomalies[1], "requester_name: field required")
}

func TestJSONExtract_OtherIntentWrapsRawData(t *testing.T) {
	eng := enginetest.New(enginetest.Reply{Content: `{"intent":"regulation","extracted_data":{"article":"12"},"confidence":0.81}`})

	got, err := NewJSONExtractor(newClient(eng), nil).Extract(context.Background(), `{"article":"12"}`)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"raw_data": map[string]any{"article": "12"}}, got.ExtractedData)
	assert.Equal(t, []string{}, got.Anomalies)
}

func TestJSONExtract_ModelFailureIsError(t *testing.T) {
	eng := enginetest.New(enginetest.Reply{Err: &engine.StatusError{StatusCode: 400}})

	_, err := NewJSONExtractor(newClient(eng), nil).Extract(context.Background(), `{"a":1}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrJSONExtractionFailed))
}
