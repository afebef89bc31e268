// Package schema compiles caller-supplied JSON mappings into an immutable
// field schema and translates that schema into a bleve index mapping.
package schema

import (
	"fmt"
	"slices"
	"strings"
)

// SourceField is the hidden, stored, non-indexed field that keeps the raw
// JSON of every stored field. Field names starting with "_" are reserved
// for fields like this one.
const SourceField = "_source"

// jsonTextPrefix prefixes the hidden field holding the leaf values of a
// json field, so unqualified queries can target the field as a whole.
const jsonTextPrefix = "_json_"

// Kind is the value type of a field.
type Kind uint8

const (
	KindUInt64 Kind = iota + 1
	KindBool
	KindText
	KindJSON
)

// String returns the mapping name of the kind.
func (k Kind) String() string {
	switch k {
	case KindUInt64:
		return "u64"
	case KindBool:
		return "bool"
	case KindText:
		return "text"
	case KindJSON:
		return "json"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind maps a mapping type name to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "u64":
		return KindUInt64, true
	case "bool":
		return KindBool, true
	case "text":
		return KindText, true
	case "json":
		return KindJSON, true
	}
	return 0, false
}

// Options is a bitset of per-field indexing flags.
type Options uint8

const (
	OptStored Options = 1 << iota
	OptFast
	OptIndexed
	OptFullText
)

// Has reports whether all bits of f are set.
func (o Options) Has(f Options) bool {
	return o&f == f
}

// String lists the set flags using their mapping names.
func (o Options) String() string {
	var parts []string
	if o.Has(OptStored) {
		parts = append(parts, "stored")
	}
	if o.Has(OptFast) {
		parts = append(parts, "fast")
	}
	if o.Has(OptIndexed) {
		parts = append(parts, "indexed")
	}
	if o.Has(OptFullText) {
		parts = append(parts, "text")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// FieldSpec describes one compiled field.
type FieldSpec struct {
	Name    string
	Kind    Kind
	Options Options
}

// Stored reports whether the field's raw value is kept for projection.
func (f FieldSpec) Stored() bool { return f.Options.Has(OptStored) }

// Searchable reports whether the field has an inverted index.
func (f FieldSpec) Searchable() bool {
	return f.Options.Has(OptIndexed) || f.Options.Has(OptFullText) || f.Options.Has(OptFast)
}

// Roles declares which fields each read operation targets.
type Roles struct {
	// SearchFields are queried by search and aggregate.
	SearchFields []string

	// IDField is queried by find.
	IDField string

	// ReturnField is projected by find.
	ReturnField string
}

func (r Roles) clone() Roles {
	r.SearchFields = slices.Clone(r.SearchFields)
	return r
}

// Schema is an ordered, immutable set of fields plus declared roles.
type Schema struct {
	fields []FieldSpec
	byName map[string]int
	roles  Roles
}

func newSchema(fields []FieldSpec, roles Roles) *Schema {
	s := &Schema{
		fields: fields,
		byName: make(map[string]int, len(fields)),
		roles:  roles,
	}
	for i, f := range fields {
		s.byName[f.Name] = i
	}
	return s
}

// Fields returns a copy of the fields in mapping order.
func (s *Schema) Fields() []FieldSpec {
	return slices.Clone(s.fields)
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	i, ok := s.byName[name]
	if !ok {
		return FieldSpec{}, false
	}
	return s.fields[i], true
}

// Roles returns a copy of the declared roles.
func (s *Schema) Roles() Roles {
	return s.roles.clone()
}

// StoredFields returns the names of stored fields in mapping order.
func (s *Schema) StoredFields() []string {
	var names []string
	for _, f := range s.fields {
		if f.Stored() {
			names = append(names, f.Name)
		}
	}
	return names
}

// Equal reports whether two schemas have the same fields and roles.
func (s *Schema) Equal(other *Schema) bool {
	return len(s.Diff(other)) == 0
}

// Diff describes every difference between s and other, one line each.
// The result is empty when the schemas are equal.
func (s *Schema) Diff(other *Schema) []string {
	var diffs []string
	for _, f := range s.fields {
		o, ok := other.Field(f.Name)
		switch {
		case !ok:
			diffs = append(diffs, fmt.Sprintf("field %q removed", f.Name))
		case o.Kind != f.Kind:
			diffs = append(diffs, fmt.Sprintf("field %q type %s -> %s", f.Name, f.Kind, o.Kind))
		case o.Options != f.Options:
			diffs = append(diffs, fmt.Sprintf("field %q flags %s -> %s", f.Name, f.Options, o.Options))
		}
	}
	for _, o := range other.fields {
		if _, ok := s.Field(o.Name); !ok {
			diffs = append(diffs, fmt.Sprintf("field %q added", o.Name))
		}
	}
	if len(diffs) == 0 && !slices.Equal(fieldNames(s.fields), fieldNames(other.fields)) {
		diffs = append(diffs, "field order changed")
	}

	if !slices.Equal(s.roles.SearchFields, other.roles.SearchFields) {
		diffs = append(diffs, fmt.Sprintf("search role %v -> %v", s.roles.SearchFields, other.roles.SearchFields))
	}
	if s.roles.IDField != other.roles.IDField {
		diffs = append(diffs, fmt.Sprintf("id role %q -> %q", s.roles.IDField, other.roles.IDField))
	}
	if s.roles.ReturnField != other.roles.ReturnField {
		diffs = append(diffs, fmt.Sprintf("return role %q -> %q", s.roles.ReturnField, other.roles.ReturnField))
	}
	return diffs
}

// QueryField returns the engine field that unqualified query clauses
// against the named schema field are bound to.
func QueryField(f FieldSpec) string {
	if f.Kind == KindJSON {
		return jsonTextPrefix + f.Name
	}
	return f.Name
}

func fieldNames(fields []FieldSpec) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}
