// Package document defines the data model shared by the classification,
// extraction and persistence stages: the closed format/intent/urgency
// enumerations, the per-stage results and the canonical record.
package document

import (
	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
)

// Format is the detected shape (or origin, for pdf) of an input document.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatJSON  Format = "json"
	FormatEmail Format = "email"
)

// Formats lists every known format in prompt order.
var Formats = []Format{FormatPDF, FormatJSON, FormatEmail}

// ParseFormat returns the Format named by s or an error for unknown values.
func ParseFormat(s string) (Format, error) {
	f := Format(s)
	if !f.Valid() {
		return "", errors.Newf("unknown format %q", s)
	}
	return f, nil
}

// Valid reports whether f is one of the known formats.
func (f Format) Valid() bool {
	switch f {
	case FormatPDF, FormatJSON, FormatEmail:
		return true
	}
	return false
}

func (Format) JSONSchema() *jsonschema.Schema {
	return enumSchema("Input format", Formats)
}

// Intent is the business purpose of a document.
type Intent string

const (
	IntentInvoice    Intent = "invoice"
	IntentRFQ        Intent = "rfq"
	IntentComplaint  Intent = "complaint"
	IntentRegulation Intent = "regulation"
	IntentOther      Intent = "other"
)

// Intents lists every known intent in prompt order.
var Intents = []Intent{IntentInvoice, IntentRFQ, IntentComplaint, IntentRegulation, IntentOther}

// ParseIntent returns the Intent named by s or an error for unknown values.
func ParseIntent(s string) (Intent, error) {
	i := Intent(s)
	if !i.Valid() {
		return "", errors.Newf("unknown intent %q", s)
	}
	return i, nil
}

// Valid reports whether i is one of the known intents.
func (i Intent) Valid() bool {
	switch i {
	case IntentInvoice, IntentRFQ, IntentComplaint, IntentRegulation, IntentOther:
		return true
	}
	return false
}

func (Intent) JSONSchema() *jsonschema.Schema {
	return enumSchema("Business intent of the input", Intents)
}

// Urgency ranks how quickly an email needs attention.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Urgencies lists every known urgency from lowest to highest.
var Urgencies = []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical}

// ParseUrgency returns the Urgency named by s or an error for unknown values.
func ParseUrgency(s string) (Urgency, error) {
	u := Urgency(s)
	if !u.Valid() {
		return "", errors.Newf("unknown urgency %q", s)
	}
	return u, nil
}

// Valid reports whether u is one of the known urgencies.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

func (Urgency) JSONSchema() *jsonschema.Schema {
	return enumSchema("Urgency of the email", Urgencies)
}

func enumSchema[T ~string](description string, values []T) *jsonschema.Schema {
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = string(v)
	}
	return &jsonschema.Schema{
		Type:        "string",
		Description: description,
		Enum:        enum,
	}
}

func checkConfidence(c float64) error {
	if c < 0 || c > 1 || c != c {
		return errors.Newf("confidence %v is outside [0, 1]", c)
	}
	return nil
}
