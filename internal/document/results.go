package document

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/cockroachdb/errors"
)

// Classification is the classifier's verdict on a raw input.
type Classification struct {
	Format     Format  `json:"format"`
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence" jsonschema:"minimum=0,maximum=1" jsonschema_description:"Confidence score for the classification"`
}

// Validate checks that every field holds a known value.
func (c Classification) Validate() error {
	var errs []error
	if !c.Format.Valid() {
		errs = append(errs, errors.Newf("format: unknown value %q", c.Format))
	}
	if !c.Intent.Valid() {
		errs = append(errs, errors.Newf("intent: unknown value %q", c.Intent))
	}
	if err := checkConfidence(c.Confidence); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Sentinel values returned by the email extractor when extraction fails.
const (
	UnknownSender      = "unknown@example.com"
	FailedEmailSummary = "Extraction failed as content is not an email."
)

// EmailExtraction holds the fields pulled out of an email body.
type EmailExtraction struct {
	SenderEmail string  `json:"sender_email" jsonschema_description:"Sender email address"`
	Intent      Intent  `json:"intent"`
	Urgency     Urgency `json:"urgency"`
	Confidence  float64 `json:"confidence" jsonschema:"minimum=0,maximum=1" jsonschema_description:"Confidence score for the extraction"`
	Summary     string  `json:"extracted_summary" jsonschema_description:"Brief summary extracted from the email"`
}

// FailedEmailExtraction is the zero-confidence result used in place of an error.
func FailedEmailExtraction() EmailExtraction {
	return EmailExtraction{
		SenderEmail: UnknownSender,
		Intent:      IntentOther,
		Urgency:     UrgencyLow,
		Confidence:  0,
		Summary:     FailedEmailSummary,
	}
}

// Validate checks the sender address syntax and the enumerated fields.
func (e EmailExtraction) Validate() error {
	var errs []error
	if err := ValidateEmailAddress(e.SenderEmail); err != nil {
		errs = append(errs, errors.Wrap(err, "sender_email"))
	}
	if !e.Intent.Valid() {
		errs = append(errs, errors.Newf("intent: unknown value %q", e.Intent))
	}
	if !e.Urgency.Valid() {
		errs = append(errs, errors.Newf("urgency: unknown value %q", e.Urgency))
	}
	if err := checkConfidence(e.Confidence); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateEmailAddress accepts a bare addr-spec whose domain has at least one dot.
func ValidateEmailAddress(s string) error {
	if s == "" {
		return errors.New("address is empty")
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return errors.Wrapf(err, "invalid address %q", s)
	}
	if addr.Address != s || addr.Name != "" {
		return errors.Newf("invalid address %q: display names are not allowed", s)
	}
	at := strings.LastIndexByte(s, '@')
	domain := s[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return errors.Newf("invalid address %q: domain %q is not fully qualified", s, domain)
	}
	return nil
}

// JSONExtraction is the result of reformatting a JSON payload.
type JSONExtraction struct {
	Intent        Intent         `json:"intent" jsonschema_description:"Intent of the JSON input"`
	ExtractedData map[string]any `json:"extracted_data,omitempty" jsonschema_description:"Extracted and reformatted data"`
	Anomalies     []string       `json:"anomalies,omitempty" jsonschema_description:"Flagged anomalies or missing fields"`
	Confidence    float64        `json:"confidence" jsonschema:"minimum=0,maximum=1" jsonschema_description:"Confidence score"`
}

// Validate checks the intent and confidence. ExtractedData is checked
// separately against the per-intent payload schema.
func (j JSONExtraction) Validate() error {
	var errs []error
	if !j.Intent.Valid() {
		errs = append(errs, errors.Newf("intent: unknown value %q", j.Intent))
	}
	if err := checkConfidence(j.Confidence); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// InvalidJSONExtraction is returned for input that is not parseable JSON.
func InvalidJSONExtraction(reason error) JSONExtraction {
	return JSONExtraction{
		Intent:        IntentOther,
		ExtractedData: map[string]any{},
		Anomalies:     []string{fmt.Sprintf("Invalid JSON: %v", reason)},
		Confidence:    0,
	}
}
