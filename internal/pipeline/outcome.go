package pipeline

import "github.com/docroute/docroute/internal/document"

// Outcome is the result of one successful Dispatch.
type Outcome struct {
	ThreadID       string
	Classification document.Classification
	Record         document.Record
	// LowConfidence is set when the input was held for manual review
	// instead of being routed to an extractor.
	LowConfidence bool
}

// Report is the summary printed for a processed input.
type Report struct {
	ThreadID       string               `json:"thread_id"`
	Classification ReportClassification `json:"classification"`
	Extraction     ReportExtraction     `json:"extraction"`
}

type ReportClassification struct {
	Format     document.Format `json:"format"`
	Intent     document.Intent `json:"intent"`
	Confidence float64         `json:"confidence"`
}

type ReportExtraction struct {
	ExtractedFields   map[string]any `json:"extracted_fields"`
	AnomaliesDetected []string       `json:"anomalies_detected"`
}

// Report builds the output object. Format and confidence are taken from the
// record, so a pdf input routed to the JSON path reports format json and the
// extraction confidence.
func (o Outcome) Report() Report {
	fields := o.Record.ExtractedFields
	if fields == nil {
		fields = map[string]any{}
	}
	anomalies := o.Record.AnomaliesDetected
	if anomalies == nil {
		anomalies = []string{}
	}
	return Report{
		ThreadID: o.ThreadID,
		Classification: ReportClassification{
			Format:     o.Record.SourceType,
			Intent:     o.Record.Intent,
			Confidence: o.Record.Confidence,
		},
		Extraction: ReportExtraction{
			ExtractedFields:   fields,
			AnomaliesDetected: anomalies,
		},
	}
}
