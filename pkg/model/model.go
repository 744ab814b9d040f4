// Package model describes the object types persisted by the controller:
// their fields, defaults, keys, and the edit, case-folding, submode and
// delete policies the command layer enforces.
package model

import (
	"strings"
)

// FieldType is the storage type of a field
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeDPID    FieldType = "dpid"
	TypeHost    FieldType = "host"
)

func (t FieldType) valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeBoolean, TypeDPID, TypeHost:
		return true
	}
	return false
}

// CaseFold is the case policy applied when a value is captured
type CaseFold string

const (
	CaseNone  CaseFold = ""
	CaseLower CaseFold = "lower"
	CaseUpper CaseFold = "upper"
)

// DefaultPrimaryKey is the primary key field used when a type names none
const DefaultPrimaryKey = "id"

// KeySeparator joins the parts of a compound key
const KeySeparator = "|"

// Field describes one field of an object type
type Field struct {
	Name        string      `yaml:"name"`
	Type        FieldType   `yaml:"type"`
	Default     interface{} `yaml:"default"`
	NullAllowed bool        `yaml:"null-allowed"`
	Case        CaseFold    `yaml:"case"`
	References  string      `yaml:"references"` // foreign key target object type
	VerboseName string      `yaml:"verbose-name"`
	ReadOnly    bool        `yaml:"read-only"`
}

// Fold applies the field's case policy to s.
func (f *Field) Fold(s string) string {
	switch f.Case {
	case CaseLower:
		return strings.ToLower(s)
	case CaseUpper:
		return strings.ToUpper(s)
	}
	return s
}

// ObjectType is a named backend model.
type ObjectType struct {
	Name       string   `yaml:"name"`
	Title      string   `yaml:"title"`
	PrimaryKey string   `yaml:"primary-key"`
	KeyFields  []string `yaml:"key-fields"` // compound key parts, joined by KeySeparator
	Alias      string   `yaml:"alias"`      // object type holding aliases for this one
	Fields     []*Field `yaml:"fields"`

	// Policies. Submode defaults to enabled.
	NoSubmode         bool `yaml:"no-submode"`
	CascadeDelete     bool `yaml:"cascade-delete"`
	WeakCascadeDelete bool `yaml:"weak-cascade-delete"`

	fields map[string]*Field
}

// Field returns the named field.
func (t *ObjectType) Field(name string) (*Field, bool) {
	f, ok := t.fields[name]
	return f, ok
}

// HasField reports whether name is a field of t.
func (t *ObjectType) HasField(name string) bool {
	_, ok := t.fields[name]
	return ok
}

// FieldNames returns field names in declaration order.
func (t *ObjectType) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// SubmodeEnabled reports whether a config-submode may be entered for t.
func (t *ObjectType) SubmodeEnabled() bool {
	return !t.NoSubmode
}

// Editable reports whether the named field may be written by commands.
func (t *ObjectType) Editable(field string) bool {
	f, ok := t.fields[field]
	return ok && !f.ReadOnly
}

// IsKeyField reports whether field is the primary key or part of it.
func (t *ObjectType) IsKeyField(field string) bool {
	if field == t.PrimaryKey {
		return true
	}
	for _, k := range t.KeyFields {
		if k == field {
			return true
		}
	}
	return false
}

// BuildKey returns the primary key value for data. A bound primary key is
// used as-is; otherwise a compound key is assembled from the key fields.
// Key fields that do not allow null must be present.
func (t *ObjectType) BuildKey(data map[string]interface{}) (string, bool) {
	if v, ok := data[t.PrimaryKey]; ok && v != nil {
		return toString(v), true
	}
	if len(t.KeyFields) == 0 {
		return "", false
	}
	parts := make([]string, len(t.KeyFields))
	for i, k := range t.KeyFields {
		v := data[k]
		if v == nil {
			if f, ok := t.fields[k]; !ok || !f.NullAllowed {
				return "", false
			}
			continue
		}
		parts[i] = toString(v)
	}
	return strings.Join(parts, KeySeparator), true
}

// DefaultValue returns the declared default for field, or nil.
func (t *ObjectType) DefaultValue(field string) interface{} {
	if f, ok := t.fields[field]; ok {
		return f.Default
	}
	return nil
}

// NotDefaultValue reports whether value differs from the field's default.
// A null-allowed field is non-default whenever it is set; any other field
// only when a default is declared and the value differs from it.
func (t *ObjectType) NotDefaultValue(field string, value interface{}) bool {
	f, ok := t.fields[field]
	if !ok {
		return value != nil
	}
	v, err := f.Coerce(value)
	if err != nil {
		return true
	}
	if f.NullAllowed {
		return v != nil && v != f.Default
	}
	return f.Default != nil && v != nil && v != f.Default
}

// AllDefault reports whether every non-key field of row holds its default.
func (t *ObjectType) AllDefault(row map[string]interface{}) bool {
	for _, f := range t.Fields {
		if t.IsKeyField(f.Name) {
			continue
		}
		if t.NotDefaultValue(f.Name, row[f.Name]) {
			return false
		}
	}
	return true
}

// Normalize coerces the known fields of row to their Go types in place.
// Fields that fail to coerce or are unknown are left untouched.
func (t *ObjectType) Normalize(row map[string]interface{}) {
	for name, v := range row {
		f, ok := t.fields[name]
		if !ok {
			continue
		}
		if c, err := f.Coerce(v); err == nil {
			row[name] = c
		}
	}
}
