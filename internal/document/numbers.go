package document

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// maxExactInt is the largest integer a float64 holds exactly.
const maxExactInt = 1 << 53

// DecodeJSON is json.Unmarshal with UseNumber: numbers that land in
// interface values arrive as json.Number with their literal intact.
func DecodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("invalid character after top-level value")
	}
	return nil
}

// NormalizeNumbers walks maps and slices produced by DecodeJSON and turns
// each json.Number into a float64 when the float64 encodes back to the same
// literal. Anything else (17-digit ids, 1e23, 1.50) stays a json.Number so
// it is written back unchanged.
func NormalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = NormalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = NormalizeNumbers(e)
		}
		return t
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t
		}
		if b, err := json.Marshal(f); err == nil && string(b) == t.String() {
			return f
		}
		return t
	default:
		return v
	}
}

// laxInt accepts the integer spellings a lenient model validator would: a
// decimal string ("1234", " 42 ") or a whole float (1234.0). Other values
// are returned as is and fail the typed decode.
func laxInt(v any) any {
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case json.Number:
		s = t.String()
	case float64:
		if t == math.Trunc(t) && math.Abs(t) <= maxExactInt {
			return json.Number(strconv.FormatInt(int64(t), 10))
		}
		return v
	default:
		return v
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return json.Number(strconv.FormatInt(n, 10))
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && math.Abs(f) <= maxExactInt {
		return json.Number(strconv.FormatInt(int64(f), 10))
	}
	return v
}

// laxFloat accepts a numeric string for a float field.
func laxFloat(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return v
	}
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64))
}

// numericFields names the int and float keys of one payload level.
type numericFields struct {
	ints   []string
	floats []string
}

// coerce returns a shallow copy of data with lax numeric spellings of the
// named fields replaced by JSON numbers.
func (n numericFields) coerce(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	for _, k := range n.ints {
		if v, ok := out[k]; ok && v != nil {
			out[k] = laxInt(v)
		}
	}
	for _, k := range n.floats {
		if v, ok := out[k]; ok && v != nil {
			out[k] = laxFloat(v)
		}
	}
	return out
}
