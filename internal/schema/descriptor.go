package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// DescriptorFile is the name of the schema descriptor inside an index directory.
const DescriptorFile = "schema.json"

const descriptorVersion = 1

type descriptor struct {
	Version int               `json:"version"`
	Fields  []fieldDescriptor `json:"fields"`
	Roles   roleDescriptor    `json:"roles"`
}

type fieldDescriptor struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Stored  bool   `json:"stored"`
	Fast    bool   `json:"fast"`
	Indexed bool   `json:"indexed"`
	Text    bool   `json:"text"`
}

type roleDescriptor struct {
	Search []string `json:"search"`
	ID     string   `json:"id,omitempty"`
	Return string   `json:"return,omitempty"`
}

// MarshalJSON encodes the schema as its on-disk descriptor.
func (s *Schema) MarshalJSON() ([]byte, error) {
	d := descriptor{
		Version: descriptorVersion,
		Fields:  make([]fieldDescriptor, 0, len(s.fields)),
		Roles: roleDescriptor{
			Search: s.roles.SearchFields,
			ID:     s.roles.IDField,
			Return: s.roles.ReturnField,
		},
	}
	if d.Roles.Search == nil {
		d.Roles.Search = []string{}
	}
	for _, f := range s.fields {
		d.Fields = append(d.Fields, fieldDescriptor{
			Name:    f.Name,
			Type:    f.Kind.String(),
			Stored:  f.Options.Has(OptStored),
			Fast:    f.Options.Has(OptFast),
			Indexed: f.Options.Has(OptIndexed),
			Text:    f.Options.Has(OptFullText),
		})
	}
	return json.Marshal(d)
}

// UnmarshalDescriptor decodes a descriptor written by MarshalJSON.
func UnmarshalDescriptor(data []byte) (*Schema, error) {
	var d descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse schema descriptor: %w", err)
	}
	if d.Version != descriptorVersion {
		return nil, fmt.Errorf("unsupported schema descriptor version %d", d.Version)
	}

	fields := make([]FieldSpec, 0, len(d.Fields))
	for _, fd := range d.Fields {
		kind, ok := ParseKind(fd.Type)
		if !ok {
			return nil, fmt.Errorf("schema descriptor: field %q has unknown type %q", fd.Name, fd.Type)
		}
		var opts Options
		if fd.Stored {
			opts |= OptStored
		}
		if fd.Fast {
			opts |= OptFast
		}
		if fd.Indexed {
			opts |= OptIndexed
		}
		if fd.Text {
			opts |= OptFullText
		}
		fields = append(fields, FieldSpec{Name: fd.Name, Kind: kind, Options: opts})
	}

	s := newSchema(fields, Roles{
		SearchFields: d.Roles.Search,
		IDField:      d.Roles.ID,
		ReturnField:  d.Roles.Return,
	})
	if len(s.byName) != len(fields) {
		return nil, fmt.Errorf("schema descriptor has duplicate field names")
	}
	return s, nil
}

// WriteDescriptor atomically writes the schema descriptor into dir.
func WriteDescriptor(dir string, s *Schema) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode schema descriptor: %w", err)
	}
	path := filepath.Join(dir, DescriptorFile)
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write schema descriptor %s: %w", path, err)
	}
	return nil
}

// ReadDescriptor loads the schema descriptor from dir.
func ReadDescriptor(dir string) (*Schema, error) {
	path := filepath.Join(dir, DescriptorFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema descriptor: %w", err)
	}
	return UnmarshalDescriptor(data)
}

// Mapping renders s as a mapping that compiles back to an equal schema.
// Roles are always written out so defaults are not re-derived.
func (s *Schema) Mapping() []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"properties":{`)
	for i, f := range s.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, _ := json.Marshal(f.Name)
		buf.Write(name)
		fmt.Fprintf(&buf, `:{"type":%q`, f.Kind.String())
		for _, flag := range []struct {
			key string
			opt Options
		}{
			{"stored", OptStored},
			{"fast", OptFast},
			{"indexed", OptIndexed},
			{"text", OptFullText},
		} {
			if f.Options.Has(flag.opt) {
				fmt.Fprintf(&buf, `,%q:true`, flag.key)
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteString(`},"roles":{`)

	search := s.roles.SearchFields
	if search == nil {
		search = []string{}
	}
	names, _ := json.Marshal(search)
	buf.WriteString(`"search":`)
	buf.Write(names)
	if s.roles.IDField != "" {
		id, _ := json.Marshal(s.roles.IDField)
		buf.WriteString(`,"id":`)
		buf.Write(id)
	}
	if s.roles.ReturnField != "" {
		ret, _ := json.Marshal(s.roles.ReturnField)
		buf.WriteString(`,"return":`)
		buf.Write(ret)
	}
	buf.WriteString(`}}`)
	return buf.Bytes()
}
