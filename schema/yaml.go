package schema

import (
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/pkg/errors"
)

// FieldSpec is the declarative form of a Field as written in YAML.
type FieldSpec struct {
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"`
	Column int    `yaml:"column"`
	Role   string `yaml:"role,omitempty"`
}

type document struct {
	Fields []FieldSpec `yaml:"fields"`
}

// ParseKind maps a declared kind name to a scalar kind.
func ParseKind(s string) (model.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "text":
		return model.KindString, nil
	case "float32", "float", "single":
		return model.KindFloat, nil
	case "bool", "boolean":
		return model.KindBool, nil
	default:
		return 0, errors.NewValidationError("kind", "must be string, float32 or bool", s)
	}
}

// FromSpecs builds a Schema from declarative field specs.
func FromSpecs(specs []FieldSpec) (*Schema, error) {
	fields := make([]Field, len(specs))
	for i, sp := range specs {
		kind, err := ParseKind(sp.Kind)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q", sp.Name)
		}
		fields[i] = Field{Name: sp.Name, Kind: kind, Column: sp.Column, Role: Role(strings.ToLower(sp.Role))}
	}
	return New(fields...)
}

// Specs returns the declarative form of s.
func (s *Schema) Specs() []FieldSpec {
	out := make([]FieldSpec, len(s.fields))
	for i, f := range s.fields {
		out[i] = FieldSpec{Name: f.Name, Kind: f.Kind.String(), Column: f.Column, Role: string(f.Role)}
	}
	return out
}

// Parse decodes a YAML schema document of the form
//
//	fields:
//	  - {name: VendorId, kind: string, column: 0}
//	  - {name: FareAmount, kind: float32, column: 6, role: label}
func Parse(data []byte) (*Schema, error) {
	var doc document
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse schema")
	}
	return FromSpecs(doc.Fields)
}

// Load reads a YAML schema file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read schema %s", path)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "schema %s", path)
	}
	return s, nil
}

// Marshal encodes s as a YAML schema document.
func (s *Schema) Marshal() ([]byte, error) {
	return yaml.Marshal(document{Fields: s.Specs()})
}
