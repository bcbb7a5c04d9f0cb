package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docroute/docroute/internal/document"
	"github.com/docroute/docroute/internal/engine"
	"github.com/docroute/docroute/internal/engine/enginetest"
)

const rfqEmail = `From: procurement@techfirm.com

Dear Supplier,

We are requesting a quotation for 100 units of Widget B by June 20, 2025.`

func TestEmailExtract(t *testing.T) {
	eng := enginetest.New(enginetest.Reply{Content: `{
		"sender_email": "procurement@techfirm.com",
		"intent": "rfq",
		"urgency": "medium",
		"confidence": 0.9,
		"extracted_summary": "Quotation request for 100 units of Widget B."
	}`})

	got := NewEmailExtractor(newClient(eng), nil).Extract(context.Background(), rfqEmail)

	assert.Equal(t, document.EmailExtraction{
		SenderEmail: "procurement@techfirm.com",
		Intent:      document.IntentRFQ,
		Urgency:     document.UrgencyMedium,
		Confidence:  0.9,
		Summary:     "Quotation request for 100 units of Widget B.",
	}, got)
	assert.Equal(t, emailSystemPrompt, eng.Requests()[0].Messages[0].Content)
}

func TestEmailExtract_SoftFailure(t *testing.T) {
	invalidSender := enginetest.Reply{Content: `{"sender_email":"","intent":"other","urgency":"low","confidence":0.2,"extracted_summary":""}`}

	tests := []struct {
		name    string
		replies []enginetest.Reply
	}{
		{"engine error", []enginetest.Reply{{Err: &engine.StatusError{StatusCode: 401}}}},
		{"invalid sender every attempt", []enginetest.Reply{invalidSender, invalidSender, invalidSender}},
		{"unknown urgency", []enginetest.Reply{
			{Content: `{"sender_email":"a@b.com","intent":"rfq","urgency":"asap","confidence":0.9,"extracted_summary":"x"}`},
			{Content: `{"sender_email":"a@b.com","intent":"rfq","urgency":"asap","confidence":0.9,"extracted_summary":"x"}`},
			{Content: `{"sender_email":"a@b.com","intent":"rfq","urgency":"asap","confidence":0.9,"extracted_summary":"x"}`},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewEmailExtractor(newClient(enginetest.New(tt.replies...)), nil).Extract(context.Background(), "hello")
			assert.Equal(t, document.FailedEmailExtraction(), got)
		})
	}
}
