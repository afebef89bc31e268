package textsearch

import (
	"bytes"
	"encoding/json"

	"github.com/Aman-CERP/textsearch/internal/engine"
	tserrors "github.com/Aman-CERP/textsearch/internal/errors"
	"github.com/Aman-CERP/textsearch/internal/schema"
)

// checkReturnFields rejects return fields the schema does not store.
func (s *Session) checkReturnFields(returnFields []string) error {
	for _, name := range returnFields {
		f, ok := s.schema.Field(name)
		if !ok {
			return tserrors.Newf(tserrors.ErrCodeProjection, "the field does not exist: %q", name).
				WithDetail("field", name)
		}
		if !f.Stored() {
			return tserrors.Newf(tserrors.ErrCodeProjection, "return field %q is not a stored field", name).
				WithDetail("field", name)
		}
	}
	return nil
}

// projectDocuments renders each hit as a JSON object of its stored
// fields in schema order, restricted to returnFields when given.
func (s *Session) projectDocuments(hits []engine.Hit, returnFields []string) (*SearchOutput, error) {
	if err := s.checkReturnFields(returnFields); err != nil {
		return nil, err
	}

	out := &SearchOutput{Docs: make([]DocumentView, 0, len(hits))}
	for _, h := range hits {
		if h.Source == nil {
			return nil, missingSource(h)
		}
		if len(returnFields) == 0 {
			out.Docs = append(out.Docs, DocumentView{Data: string(h.Source)})
			continue
		}
		data, err := subset(h.Source, s.schema, returnFields)
		if err != nil {
			return nil, err
		}
		out.Docs = append(out.Docs, DocumentView{Data: string(data)})
	}
	return out, nil
}

// projectField renders the raw JSON of the return field of each hit.
// Without a declared return field the whole stored document is used.
func (s *Session) projectField(hits []engine.Hit) (*SearchOutput, error) {
	field := s.schema.Roles().ReturnField

	out := &SearchOutput{Docs: make([]DocumentView, 0, len(hits))}
	for _, h := range hits {
		if h.Source == nil {
			return nil, missingSource(h)
		}
		if field == "" {
			out.Docs = append(out.Docs, DocumentView{Data: string(h.Source)})
			continue
		}
		v, ok := schema.RawValue(h.Source, field)
		if !ok {
			return nil, tserrors.Newf(tserrors.ErrCodeProjection, "document %s has no stored value for %q", h.ID, field).
				WithDetail("doc_id", h.ID).
				WithDetail("field", field)
		}
		out.Docs = append(out.Docs, DocumentView{Data: string(v)})
	}
	return out, nil
}

// subset builds an object holding the named fields present in source, in
// schema order.
func subset(source []byte, s *schema.Schema, names []string) ([]byte, error) {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, f := range s.Fields() {
		if _, ok := want[f.Name]; !ok {
			continue
		}
		v, ok := schema.RawValue(source, f.Name)
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, tserrors.New(tserrors.ErrCodeProjection, "failed to encode field name", err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func missingSource(h engine.Hit) error {
	return tserrors.Newf(tserrors.ErrCodeProjection, "document %s has no stored source", h.ID).
		WithDetail("doc_id", h.ID)
}
