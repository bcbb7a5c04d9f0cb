package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
)

// ErrInvalidOutput marks model output that could not be decoded into the
// target type or failed its validation hook.
var ErrInvalidOutput = errors.New("model output does not match schema")

// Schema describes the structured value a model call must produce: a name,
// the JSON schema sent to the engine and a validation hook run after decoding.
type Schema[T any] struct {
	name       string
	definition json.RawMessage
	required   []string
	validate   func(T) error
}

// NewSchema reflects the JSON schema of T. validate may be nil.
func NewSchema[T any](name string, validate func(T) error) *Schema[T] {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	s := r.Reflect(new(T))
	s.Version = ""
	s.Title = name

	def, err := json.Marshal(s)
	if err != nil {
		// Reflected schemas are plain data; marshaling cannot fail.
		panic(fmt.Sprintf("extraction: marshaling schema %s: %v", name, err))
	}
	return &Schema[T]{
		name:       name,
		definition: def,
		required:   s.Required,
		validate:   validate,
	}
}

// Name returns the schema name.
func (s *Schema[T]) Name() string { return s.name }

// Definition returns the JSON schema document.
func (s *Schema[T]) Definition() json.RawMessage { return s.definition }

// Decode parses a model reply into T. A reply wrapped in a Markdown code
// fence is accepted. Every required property must be present and non-null,
// values must have the declared types, and the validation hook must pass.
func (s *Schema[T]) Decode(raw string) (T, error) {
	var zero T
	body := stripFence(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return zero, errors.Mark(errors.Wrap(err, "reply is not a JSON object"), ErrInvalidOutput)
	}
	var missing []string
	for _, key := range s.required {
		v, ok := fields[key]
		if !ok || string(v) == "null" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return zero, errors.Mark(errors.Newf("missing required field(s): %s", strings.Join(missing, ", ")), ErrInvalidOutput)
	}

	// Numbers inside free-form maps keep their literal.
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var v T
	if err := dec.Decode(&v); err != nil {
		return zero, errors.Mark(errors.Wrapf(err, "decoding %s", s.name), ErrInvalidOutput)
	}
	if s.validate != nil {
		if err := s.validate(v); err != nil {
			return zero, errors.Mark(errors.Wrapf(err, "validating %s", s.name), ErrInvalidOutput)
		}
	}
	return v, nil
}

// stripFence removes a surrounding ``` or ```json fence.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
