package schema

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/buger/jsonparser"

	tserrors "github.com/Aman-CERP/textsearch/internal/errors"
)

// Mapping flag names accepted on a field definition.
var flagOptions = map[string]Options{
	"stored":  OptStored,
	"fast":    OptFast,
	"indexed": OptIndexed,
	"text":    OptFullText,
}

// Compile translates a JSON mapping into a Schema.
//
// Properties are read in the mapping's document order, so field order is
// stable across processes. Every failure is a config error the caller
// must fix; nothing is coerced.
func Compile(mapping []byte) (*Schema, error) {
	mapping = bytes.TrimSpace(mapping)
	if !json.Valid(mapping) || len(mapping) == 0 || mapping[0] != '{' {
		return nil, tserrors.New(tserrors.ErrCodeMappingMalformed, "mapping must be a JSON object", nil)
	}

	props, dataType, _, err := jsonparser.Get(mapping, "properties")
	if stderrors.Is(err, jsonparser.KeyPathNotFoundError) {
		return nil, tserrors.New(tserrors.ErrCodeMissingProperties, `mapping has no "properties"`, nil).
			WithSuggestion(`wrap field definitions in {"properties": {...}}`)
	}
	if err != nil {
		return nil, tserrors.New(tserrors.ErrCodeMappingMalformed, "failed to read properties", err)
	}
	if dataType != jsonparser.Object {
		return nil, tserrors.Newf(tserrors.ErrCodePropertiesNotObject, `"properties" must be an object, got %s`, dataType)
	}

	var fields []FieldSpec
	seen := make(map[string]struct{})
	err = jsonparser.ObjectEach(props, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		name, err := jsonparser.ParseString(key)
		if err != nil {
			return tserrors.New(tserrors.ErrCodeMappingMalformed, "invalid field name", err)
		}
		if _, dup := seen[name]; dup {
			return tserrors.Newf(tserrors.ErrCodeDuplicateField, "field %q is defined more than once", name).
				WithDetail("field", name)
		}
		seen[name] = struct{}{}

		if err := checkFieldName(name); err != nil {
			return err
		}

		spec, err := compileField(name, value, dataType)
		if err != nil {
			return err
		}
		fields = append(fields, spec)
		return nil
	})
	if err != nil {
		return nil, asConfigError(err)
	}

	s := newSchema(fields, Roles{})
	roles, err := compileRoles(mapping, s)
	if err != nil {
		return nil, err
	}
	s.roles = roles
	return s, nil
}

func checkFieldName(name string) error {
	switch {
	case name == "":
		return tserrors.New(tserrors.ErrCodeReservedFieldName, "field name must not be empty", nil)
	case strings.HasPrefix(name, "_"):
		return tserrors.Newf(tserrors.ErrCodeReservedFieldName, "field name %q is reserved: names must not start with '_'", name).
			WithDetail("field", name)
	case strings.Contains(name, "."):
		return tserrors.Newf(tserrors.ErrCodeReservedFieldName, "field name %q must not contain '.'", name).
			WithDetail("field", name).
			WithSuggestion("use a json field for nested values")
	}
	return nil
}

func compileField(name string, value []byte, dataType jsonparser.ValueType) (FieldSpec, error) {
	if dataType != jsonparser.Object {
		return FieldSpec{}, tserrors.Newf(tserrors.ErrCodeMissingFieldType, "field %q must be an object with a \"type\"", name).
			WithDetail("field", name)
	}

	spec := FieldSpec{Name: name}
	hasType := false
	err := jsonparser.ObjectEach(value, func(key, v []byte, vt jsonparser.ValueType, _ int) error {
		k := string(key)
		if k == "type" {
			if vt != jsonparser.String {
				return tserrors.Newf(tserrors.ErrCodeMissingFieldType, "field %q: \"type\" must be a string", name).
					WithDetail("field", name)
			}
			typeName, err := jsonparser.ParseString(v)
			if err != nil {
				return tserrors.New(tserrors.ErrCodeMappingMalformed, "invalid type string", err)
			}
			kind, ok := ParseKind(typeName)
			if !ok {
				return tserrors.Newf(tserrors.ErrCodeInvalidFieldType, "field %q: unknown type %q", name, typeName).
					WithDetail("field", name).
					WithSuggestion("use one of u64, text, json, bool")
			}
			spec.Kind = kind
			hasType = true
			return nil
		}

		opt, known := flagOptions[k]
		if !known {
			return tserrors.Newf(tserrors.ErrCodeInvalidFlag, "field %q: unknown flag %q", name, k).
				WithDetail("field", name)
		}
		if vt != jsonparser.Boolean {
			return tserrors.Newf(tserrors.ErrCodeInvalidFlag, "field %q: flag %q must be a boolean", name, k).
				WithDetail("field", name)
		}
		on, err := jsonparser.ParseBoolean(v)
		if err != nil {
			return tserrors.New(tserrors.ErrCodeInvalidFlag, "invalid boolean", err)
		}
		if on {
			spec.Options |= opt
		}
		return nil
	})
	if err != nil {
		return FieldSpec{}, err
	}
	if !hasType {
		return FieldSpec{}, tserrors.Newf(tserrors.ErrCodeMissingFieldType, "field %q has no \"type\"", name).
			WithDetail("field", name)
	}
	return spec, nil
}

// compileRoles reads the optional "roles" object and fills in defaults.
func compileRoles(mapping []byte, s *Schema) (Roles, error) {
	roles := defaultRoles(s)

	raw, dataType, _, err := jsonparser.Get(mapping, "roles")
	if stderrors.Is(err, jsonparser.KeyPathNotFoundError) || dataType == jsonparser.Null {
		return roles, nil
	}
	if err != nil {
		return Roles{}, tserrors.New(tserrors.ErrCodeMappingMalformed, "failed to read roles", err)
	}
	if dataType != jsonparser.Object {
		return Roles{}, tserrors.New(tserrors.ErrCodeRoleInvalid, `"roles" must be an object`, nil)
	}

	err = jsonparser.ObjectEach(raw, func(key, v []byte, vt jsonparser.ValueType, _ int) error {
		switch role := string(key); role {
		case "search":
			names, err := roleFieldList(role, v, vt)
			if err != nil {
				return err
			}
			for _, n := range names {
				f, err := roleField(s, role, n)
				if err != nil {
					return err
				}
				if !f.Searchable() {
					return tserrors.Newf(tserrors.ErrCodeRoleInvalid, "search role field %q is not indexed", n).
						WithDetail("field", n)
				}
			}
			roles.SearchFields = names
		case "id":
			name, err := roleString(role, v, vt)
			if err != nil {
				return err
			}
			f, err := roleField(s, role, name)
			if err != nil {
				return err
			}
			if !f.Searchable() || f.Kind == KindJSON {
				return tserrors.Newf(tserrors.ErrCodeRoleInvalid, "id role field %q must be an indexed u64, bool or text field", name).
					WithDetail("field", name)
			}
			roles.IDField = name
		case "return":
			name, err := roleString(role, v, vt)
			if err != nil {
				return err
			}
			f, err := roleField(s, role, name)
			if err != nil {
				return err
			}
			if !f.Stored() {
				return tserrors.Newf(tserrors.ErrCodeRoleInvalid, "return role field %q is not stored", name).
					WithDetail("field", name)
			}
			roles.ReturnField = name
		default:
			return tserrors.Newf(tserrors.ErrCodeRoleInvalid, "unknown role %q", role).
				WithSuggestion("roles are search, id and return")
		}
		return nil
	})
	if err != nil {
		return Roles{}, asConfigError(err)
	}
	return roles, nil
}

func defaultRoles(s *Schema) Roles {
	var roles Roles
	// Typed fields flagged text stay out: free text cannot match them.
	for _, f := range s.fields {
		if f.Options.Has(OptFullText) && (f.Kind == KindText || f.Kind == KindJSON) {
			roles.SearchFields = append(roles.SearchFields, f.Name)
		}
	}

	if f, ok := s.Field("gid"); ok && f.Searchable() && f.Kind != KindJSON {
		roles.IDField = f.Name
	} else {
		for _, f := range s.fields {
			if f.Kind == KindUInt64 && f.Options.Has(OptIndexed) {
				roles.IDField = f.Name
				break
			}
		}
	}

	if f, ok := s.Field("data"); ok && f.Stored() {
		roles.ReturnField = f.Name
	} else {
		for _, f := range s.fields {
			if f.Stored() {
				roles.ReturnField = f.Name
				break
			}
		}
	}
	return roles
}

func roleField(s *Schema, role, name string) (FieldSpec, error) {
	f, ok := s.Field(name)
	if !ok {
		return FieldSpec{}, tserrors.Newf(tserrors.ErrCodeRoleUnknownField, "%s role names unknown field %q", role, name).
			WithDetail("role", role).
			WithDetail("field", name)
	}
	return f, nil
}

func roleString(role string, v []byte, vt jsonparser.ValueType) (string, error) {
	if vt != jsonparser.String {
		return "", tserrors.Newf(tserrors.ErrCodeRoleInvalid, "%s role must be a field name", role)
	}
	name, err := jsonparser.ParseString(v)
	if err != nil {
		return "", tserrors.New(tserrors.ErrCodeRoleInvalid, "invalid role string", err)
	}
	return name, nil
}

func roleFieldList(role string, v []byte, vt jsonparser.ValueType) ([]string, error) {
	switch vt {
	case jsonparser.String:
		name, err := roleString(role, v, vt)
		if err != nil {
			return nil, err
		}
		return []string{name}, nil
	case jsonparser.Array:
		names := []string{}
		if string(bytes.TrimSpace(v)) == "[]" {
			return names, nil
		}
		var itemErr error
		_, err := jsonparser.ArrayEach(v, func(item []byte, it jsonparser.ValueType, _ int, _ error) {
			if itemErr != nil {
				return
			}
			name, err := roleString(role, item, it)
			if err != nil {
				itemErr = err
				return
			}
			names = append(names, name)
		})
		if itemErr != nil {
			return nil, itemErr
		}
		if err != nil {
			return nil, tserrors.New(tserrors.ErrCodeRoleInvalid, "invalid role list", err)
		}
		return names, nil
	default:
		return nil, tserrors.Newf(tserrors.ErrCodeRoleInvalid, "%s role must be a field name or a list of field names", role)
	}
}

// asConfigError keeps structured errors returned from parser callbacks and
// wraps anything else as a malformed mapping.
func asConfigError(err error) error {
	var te *tserrors.Error
	if stderrors.As(err, &te) {
		return te
	}
	return tserrors.New(tserrors.ErrCodeMappingMalformed, "failed to parse mapping", err)
}
