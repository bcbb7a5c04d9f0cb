package document

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// PayloadSchema validates the extracted_data mapping proposed by the model
// for one intent and returns it in normalized form.
type PayloadSchema interface {
	Name() string
	Validate(data map[string]any) (map[string]any, error)
}

// PayloadSchemaFor selects the payload schema for an intent. Regulation and
// other fall back to OtherData, which never fails.
func PayloadSchemaFor(intent Intent) PayloadSchema {
	switch intent {
	case IntentInvoice:
		return invoiceSchema
	case IntentRFQ:
		return rfqSchema
	case IntentComplaint:
		return complaintSchema
	case IntentRegulation, IntentOther:
		return otherSchema
	}
	return otherSchema
}

// ValidationError lists every problem found while validating a payload.
type ValidationError struct {
	Schema   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d validation error(s) for %s: %s", len(e.Problems), e.Schema, strings.Join(e.Problems, "; "))
}

type InvoiceItem struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
}

type InvoiceData struct {
	InvoiceNumber int           `json:"invoice_number"`
	InvoiceDate   string        `json:"invoice_date"`
	Items         []InvoiceItem `json:"items"`
	TotalAmount   float64       `json:"total_amount"`
}

type RFQData struct {
	RFQNumber      int      `json:"rfq_number"`
	RequesterName  string   `json:"requester_name"`
	RequestedItems []string `json:"requested_items"`
	Deadline       *string  `json:"deadline"`
}

type ComplaintData struct {
	ComplaintID   int     `json:"complaint_id"`
	CustomerName  string  `json:"customer_name"`
	ComplaintText string  `json:"complaint_text"`
	Urgency       *string `json:"urgency"`
}

type OtherData struct {
	RawData map[string]any `json:"raw_data"`
}

type payloadSchema struct {
	name     string
	validate func(data map[string]any) (map[string]any, error)
}

func (s payloadSchema) Name() string { return s.name }

func (s payloadSchema) Validate(data map[string]any) (map[string]any, error) {
	return s.validate(data)
}

var invoiceSchema = payloadSchema{
	name: "InvoiceData",
	validate: func(data map[string]any) (map[string]any, error) {
		return decodePayload("InvoiceData", coerceInvoice(data),
			[]string{"invoice_number", "invoice_date", "total_amount"},
			func(d *InvoiceData) []string {
				var problems []string
				problems = append(problems, invoiceItemsMissing(data)...)
				if d.TotalAmount < 0 {
					problems = append(problems, fmt.Sprintf("total_amount: must be >= 0, got %v", d.TotalAmount))
				}
				for i, item := range d.Items {
					if item.Quantity < 0 {
						problems = append(problems, fmt.Sprintf("items.%d.quantity: must be >= 0, got %d", i, item.Quantity))
					}
					if item.UnitPrice < 0 {
						problems = append(problems, fmt.Sprintf("items.%d.unit_price: must be >= 0, got %v", i, item.UnitPrice))
					}
					if item.TotalPrice < 0 {
						problems = append(problems, fmt.Sprintf("items.%d.total_price: must be >= 0, got %v", i, item.TotalPrice))
					}
				}
				if d.Items == nil {
					d.Items = []InvoiceItem{}
				}
				return problems
			})
	},
}

var rfqSchema = payloadSchema{
	name: "RFQData",
	validate: func(data map[string]any) (map[string]any, error) {
		return decodePayload("RFQData", rfqNumbers.coerce(data),
			[]string{"rfq_number", "requester_name"},
			func(d *RFQData) []string {
				if d.RequestedItems == nil {
					d.RequestedItems = []string{}
				}
				return nil
			})
	},
}

var complaintSchema = payloadSchema{
	name: "ComplaintData",
	validate: func(data map[string]any) (map[string]any, error) {
		return decodePayload("ComplaintData", complaintNumbers.coerce(data),
			[]string{"complaint_id", "customer_name", "complaint_text"},
			func(d *ComplaintData) []string { return nil })
	},
}

var (
	invoiceNumbers     = numericFields{ints: []string{"invoice_number"}, floats: []string{"total_amount"}}
	invoiceItemNumbers = numericFields{ints: []string{"quantity"}, floats: []string{"unit_price", "total_price"}}
	rfqNumbers         = numericFields{ints: []string{"rfq_number"}}
	complaintNumbers   = numericFields{ints: []string{"complaint_id"}}
)

// coerceInvoice applies the lax numeric rules to the invoice and each of
// its items.
func coerceInvoice(data map[string]any) map[string]any {
	out := invoiceNumbers.coerce(data)
	items, ok := out["items"].([]any)
	if !ok {
		return out
	}
	coerced := make([]any, len(items))
	for i, it := range items {
		if m, ok := it.(map[string]any); ok {
			coerced[i] = invoiceItemNumbers.coerce(m)
		} else {
			coerced[i] = it
		}
	}
	out["items"] = coerced
	return out
}

var otherSchema = payloadSchema{
	name: "OtherData",
	validate: func(data map[string]any) (map[string]any, error) {
		if data == nil {
			data = map[string]any{}
		}
		return map[string]any{"raw_data": data}, nil
	},
}

// decodePayload checks required keys, decodes data into T, runs the
// schema-specific checks and returns the normalized mapping. Integers are
// kept exact; one that float64 cannot hold stays a json.Number.
func decodePayload[T any](name string, data map[string]any, required []string, check func(*T) []string) (map[string]any, error) {
	problems := missingKeys("", data, required)

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, &ValidationError{Schema: name, Problems: append(problems, err.Error())}
	}

	var typed T
	if err := json.Unmarshal(raw, &typed); err != nil {
		problems = append(problems, describeDecodeError(err))
	} else {
		problems = append(problems, check(&typed)...)
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Schema: name, Problems: problems}
	}

	normalized, err := json.Marshal(typed)
	if err != nil {
		return nil, &ValidationError{Schema: name, Problems: []string{err.Error()}}
	}
	var out map[string]any
	if err := DecodeJSON(normalized, &out); err != nil {
		return nil, &ValidationError{Schema: name, Problems: []string{err.Error()}}
	}
	return NormalizeNumbers(out).(map[string]any), nil
}

// missingKeys reports required keys that are absent or null.
func missingKeys(prefix string, data map[string]any, required []string) []string {
	var problems []string
	for _, k := range required {
		if v, ok := data[k]; !ok || v == nil {
			problems = append(problems, fmt.Sprintf("%s%s: field required", prefix, k))
		}
	}
	return problems
}

func invoiceItemsMissing(data map[string]any) []string {
	items, ok := data["items"].([]any)
	if !ok {
		return nil
	}
	var problems []string
	for i, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		problems = append(problems, missingKeys(fmt.Sprintf("items.%d.", i), m,
			[]string{"description", "quantity", "unit_price", "total_price"})...)
	}
	return problems
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("%s: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)
	}
	return err.Error()
}
