package schema

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"strconv"

	"github.com/buger/jsonparser"

	tserrors "github.com/Aman-CERP/textsearch/internal/errors"
)

// Document is a caller document parsed against a schema.
type Document struct {
	// Fields holds the typed values to index, keyed by engine field name.
	Fields map[string]any

	// Source is the JSON object of stored fields in schema order, with
	// each value copied verbatim from the input.
	Source []byte

	// Size is the length of the input document in bytes.
	Size int
}

// ParseDocument validates doc against the schema and converts it into
// typed engine values. Unknown keys, wrongly typed values and non-object
// input return ErrCodeDocumentInvalid. Missing fields and null values
// are allowed.
func (s *Schema) ParseDocument(doc []byte) (*Document, error) {
	doc = bytes.TrimSpace(doc)
	if !json.Valid(doc) || len(doc) == 0 || doc[0] != '{' {
		return nil, tserrors.New(tserrors.ErrCodeDocumentInvalid, "document must be a JSON object", nil)
	}

	values := make(map[string]any, len(s.fields)+2)
	raw := make(map[string][]byte, len(s.fields))

	err := jsonparser.ObjectEach(doc, func(key, value []byte, vt jsonparser.ValueType, _ int) error {
		name, err := jsonparser.ParseString(key)
		if err != nil {
			return tserrors.New(tserrors.ErrCodeDocumentInvalid, "invalid document key", err)
		}
		f, ok := s.Field(name)
		if !ok {
			return tserrors.Newf(tserrors.ErrCodeDocumentInvalid, "unknown field %q", name).
				WithDetail("field", name)
		}
		if _, dup := raw[name]; dup {
			return tserrors.Newf(tserrors.ErrCodeDocumentInvalid, "field %q appears more than once", name).
				WithDetail("field", name)
		}
		if vt == jsonparser.Null {
			raw[name] = nil
			return nil
		}

		v, err := convertValue(f, value, vt)
		if err != nil {
			return err
		}
		values[name] = v
		if f.Kind == KindJSON {
			values[QueryField(f)] = jsonLeaves(v)
		}
		if vt == jsonparser.String {
			raw[name] = quoteRaw(value)
		} else {
			raw[name] = value
		}
		return nil
	})
	if err != nil {
		var te *tserrors.Error
		if !stderrors.As(err, &te) {
			te = tserrors.New(tserrors.ErrCodeDocumentInvalid, "failed to parse document", err)
		}
		return nil, te
	}

	source, err := s.buildSource(raw)
	if err != nil {
		return nil, err
	}
	values[SourceField] = string(source)

	return &Document{
		Fields: values,
		Source: source,
		Size:   len(doc),
	}, nil
}

func convertValue(f FieldSpec, value []byte, vt jsonparser.ValueType) (any, error) {
	mismatch := func() error {
		return tserrors.Newf(tserrors.ErrCodeDocumentInvalid, "field %q expects %s, got %s", f.Name, f.Kind, vt).
			WithDetail("field", f.Name)
	}

	switch f.Kind {
	case KindUInt64:
		if vt != jsonparser.Number {
			return nil, mismatch()
		}
		n, err := strconv.ParseUint(string(value), 10, 64)
		if err != nil {
			return nil, tserrors.Newf(tserrors.ErrCodeDocumentInvalid, "field %q expects a non-negative integer, got %s", f.Name, value).
				WithDetail("field", f.Name)
		}
		// bleve numeric fields are float64; ids above 2^53 lose precision.
		return float64(n), nil
	case KindBool:
		if vt != jsonparser.Boolean {
			return nil, mismatch()
		}
		return jsonparser.ParseBoolean(value)
	case KindText:
		if vt != jsonparser.String {
			return nil, mismatch()
		}
		return jsonparser.ParseString(value)
	case KindJSON:
		if vt != jsonparser.Object {
			return nil, mismatch()
		}
		var obj map[string]any
		if err := json.Unmarshal(value, &obj); err != nil {
			return nil, tserrors.New(tserrors.ErrCodeDocumentInvalid, "invalid json field value", err)
		}
		return obj, nil
	}
	return nil, mismatch()
}

// buildSource writes the stored fields present in raw as one JSON object
// in schema order.
func (s *Schema) buildSource(raw map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, f := range s.fields {
		v, ok := raw[f.Name]
		if !ok || v == nil || !f.Stored() {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, tserrors.New(tserrors.ErrCodeInternal, "failed to encode field name", err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// jsonLeaves flattens the scalar leaves of a decoded JSON value into text.
func jsonLeaves(v any) []string {
	var out []string
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case map[string]any:
			for _, child := range t {
				walk(child)
			}
		case []any:
			for _, child := range t {
				walk(child)
			}
		case string:
			out = append(out, t)
		case float64:
			out = append(out, strconv.FormatFloat(t, 'f', -1, 64))
		case bool:
			out = append(out, strconv.FormatBool(t))
		}
	}
	walk(v)
	return out
}

// quoteRaw restores the quotes jsonparser strips from string values. The
// escaped content is kept as is, so the result matches the input bytes.
func quoteRaw(value []byte) []byte {
	out := make([]byte, 0, len(value)+2)
	out = append(out, '"')
	out = append(out, value...)
	return append(out, '"')
}

// RawValue returns the raw JSON of a top-level key in a source object,
// or false if the key is absent.
func RawValue(source []byte, name string) ([]byte, bool) {
	value, vt, _, err := jsonparser.Get(source, name)
	if err != nil || vt == jsonparser.NotExist {
		return nil, false
	}
	if vt == jsonparser.String {
		return quoteRaw(value), true
	}
	return value, true
}
