// Package schema holds the field schema of an index: the logical fields a
// caller may reference, their backend types and the flags that drive field
// resolution, sorting, aggregation and mapping emission.
//
// A Schema is built once from FieldSpecs, validated, and then shared
// read-only. Entries live in an arena; children and parents refer to each
// other by FieldID, so there are no reference cycles.
package schema

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/searchkit/internal/errors"
)

// PathSeparator joins the names of nested fields.
const PathSeparator = "."

// Type is the backend type of a field.
type Type string

const (
	TypeText    Type = "text"
	TypeKeyword Type = "keyword"
	TypeLong    Type = "long"
	TypeInteger Type = "integer"
	TypeDouble  Type = "double"
	TypeFloat   Type = "float"
	TypeBoolean Type = "boolean"
	TypeDate    Type = "date"
	TypeNested  Type = "nested"
)

// IsNumeric reports whether values of t are numbers.
func (t Type) IsNumeric() bool {
	switch t {
	case TypeLong, TypeInteger, TypeDouble, TypeFloat:
		return true
	}
	return false
}

func (t Type) valid() bool {
	switch t {
	case TypeText, TypeKeyword, TypeLong, TypeInteger, TypeDouble, TypeFloat,
		TypeBoolean, TypeDate, TypeNested:
		return true
	}
	return false
}

// FieldID addresses a Field inside its Schema.
type FieldID int

// NoField is the parent of top-level fields.
const NoField FieldID = -1

// FieldSpec describes one field as written in configuration.
type FieldSpec struct {
	Name         string      `yaml:"name" json:"name"`
	Type         Type        `yaml:"type" json:"type"`
	Multilingual bool        `yaml:"multilingual,omitempty" json:"multilingual,omitempty"`
	Sortable     bool        `yaml:"sortable,omitempty" json:"sortable,omitempty"`
	Aggregatable bool        `yaml:"aggregatable,omitempty" json:"aggregatable,omitempty"`
	Analyzer     string      `yaml:"analyzer,omitempty" json:"analyzer,omitempty"`
	CopyTo       []string    `yaml:"copy_to,omitempty" json:"copy_to,omitempty"`
	MissingValue any         `yaml:"missing_value,omitempty" json:"missing_value,omitempty"`
	Fields       []FieldSpec `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// Field is a validated schema entry.
type Field struct {
	ID           FieldID
	Name         string
	Type         Type
	Multilingual bool
	Sortable     bool
	Aggregatable bool
	Analyzer     string
	CopyTo       []string

	// MissingValue is the value a document without this field is treated
	// as having when matching. Only false on boolean fields is honored.
	MissingValue any

	// Parent is NoField for top-level fields.
	Parent   FieldID
	Children []FieldID

	path string
}

// Path returns the dotted path from the root to this field.
func (f *Field) Path() string { return f.path }

// IsNested reports whether the field itself is a nested container.
func (f *Field) IsNested() bool { return f.Type == TypeNested }

// HasKeyword reports whether a text field carries an untokenized sibling.
func (f *Field) HasKeyword() bool {
	return f.Type == TypeText && (f.Sortable || f.Aggregatable)
}

// MissingIsFalse reports whether absent values of a boolean field count
// as false.
func (f *Field) MissingIsFalse() bool {
	b, ok := f.MissingValue.(bool)
	return f.Type == TypeBoolean && ok && !b
}

// Schema is an immutable arena of fields.
type Schema struct {
	// Version increases whenever the mapping changes incompatibly.
	Version int

	// Languages lists the language subtags multilingual fields are
	// indexed under.
	Languages []string

	fields []Field
	roots  []FieldID
	byPath map[string]FieldID
}

// New validates specs and builds a Schema.
func New(version int, languages []string, specs []FieldSpec) (*Schema, error) {
	s := &Schema{
		Version:   version,
		Languages: append([]string(nil), languages...),
		byPath:    make(map[string]FieldID),
	}
	for _, spec := range specs {
		id, err := s.add(spec, NoField)
		if err != nil {
			return nil, err
		}
		s.roots = append(s.roots, id)
	}
	for i := range s.fields {
		for _, target := range s.fields[i].CopyTo {
			if _, ok := s.byPath[target]; !ok {
				return nil, errors.Newf(errors.ErrCodeInvalidSchema,
					"field %q copies to unknown field %q", s.fields[i].path, target)
			}
		}
	}
	return s, nil
}

// MustNew is New for statically known schemas. It panics on error.
func MustNew(version int, languages []string, specs []FieldSpec) *Schema {
	s, err := New(version, languages, specs)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) add(spec FieldSpec, parent FieldID) (FieldID, error) {
	if spec.Name == "" {
		return NoField, errors.Newf(errors.ErrCodeInvalidSchema, "field without name")
	}
	if strings.Contains(spec.Name, PathSeparator) {
		return NoField, errors.Newf(errors.ErrCodeInvalidSchema,
			"field name %q must not contain %q", spec.Name, PathSeparator)
	}
	if !spec.Type.valid() {
		return NoField, errors.Newf(errors.ErrCodeInvalidSchema,
			"field %q has unknown type %q", spec.Name, spec.Type)
	}
	if len(spec.Fields) > 0 && spec.Type != TypeNested {
		return NoField, errors.Newf(errors.ErrCodeInvalidSchema,
			"field %q of type %s cannot have child fields", spec.Name, spec.Type)
	}
	if spec.Multilingual && spec.Type != TypeText {
		return NoField, errors.Newf(errors.ErrCodeInvalidSchema,
			"field %q: only text fields can be multilingual", spec.Name)
	}

	path := spec.Name
	if parent != NoField {
		path = s.fields[parent].path + PathSeparator + spec.Name
	}
	if _, dup := s.byPath[path]; dup {
		return NoField, errors.Newf(errors.ErrCodeInvalidSchema, "duplicate field %q", path)
	}

	id := FieldID(len(s.fields))
	s.fields = append(s.fields, Field{
		ID:           id,
		Name:         spec.Name,
		Type:         spec.Type,
		Multilingual: spec.Multilingual,
		Sortable:     spec.Sortable,
		Aggregatable: spec.Aggregatable,
		Analyzer:     spec.Analyzer,
		CopyTo:       append([]string(nil), spec.CopyTo...),
		MissingValue: spec.MissingValue,
		Parent:       parent,
		path:         path,
	})
	s.byPath[path] = id

	for _, child := range spec.Fields {
		cid, err := s.add(child, id)
		if err != nil {
			return NoField, err
		}
		s.fields[id].Children = append(s.fields[id].Children, cid)
	}
	return id, nil
}

// Field returns the entry with the given id.
func (s *Schema) Field(id FieldID) *Field {
	if id < 0 || int(id) >= len(s.fields) {
		return nil
	}
	return &s.fields[id]
}

// Lookup finds a field by its dotted path.
func (s *Schema) Lookup(path string) (*Field, bool) {
	id, ok := s.byPath[path]
	if !ok {
		return nil, false
	}
	return &s.fields[id], true
}

// Parent returns the parent of f, or nil for a top-level field.
func (s *Schema) Parent(f *Field) *Field {
	return s.Field(f.Parent)
}

// Roots returns the top-level fields in declaration order.
func (s *Schema) Roots() []*Field {
	out := make([]*Field, len(s.roots))
	for i, id := range s.roots {
		out[i] = &s.fields[id]
	}
	return out
}

// Children returns the child fields of f in declaration order.
func (s *Schema) Children(f *Field) []*Field {
	out := make([]*Field, len(f.Children))
	for i, id := range f.Children {
		out[i] = &s.fields[id]
	}
	return out
}

// NestedScope returns the path of the closest nested ancestor of f, or ""
// when f is not inside a nested container.
func (s *Schema) NestedScope(f *Field) string {
	for p := s.Parent(f); p != nil; p = s.Parent(p) {
		if p.IsNested() {
			return p.path
		}
	}
	return ""
}

// Len returns the number of fields, nested ones included.
func (s *Schema) Len() int { return len(s.fields) }

// String lists the field paths, for logs.
func (s *Schema) String() string {
	paths := make([]string, len(s.fields))
	for i := range s.fields {
		paths[i] = fmt.Sprintf("%s:%s", s.fields[i].path, s.fields[i].Type)
	}
	return fmt.Sprintf("schema v%d [%s]", s.Version, strings.Join(paths, ", "))
}
