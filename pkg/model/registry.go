package model

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/ctlsh/pkg/util"
)

// Registry holds every known object type. Types and their policies are
// registered during start-up; after Seal the registry is read-only.
type Registry struct {
	types  map[string]*ObjectType
	order  []string
	sealed bool
}

// Reference is a foreign key from a child object type to a parent.
type Reference struct {
	Child   string // object type holding the foreign key
	Field   string // foreign key field in the child
	Cascade bool   // delete children when the parent is deleted
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*ObjectType)}
}

// LoadYAML registers every object type in a YAML list document.
func (r *Registry) LoadYAML(data []byte) error {
	var types []*ObjectType
	if err := yaml.Unmarshal(data, &types); err != nil {
		return fmt.Errorf("parsing object types: %w", err)
	}
	for _, t := range types {
		if err := r.Add(t); err != nil {
			return err
		}
	}
	return nil
}

// Add validates and registers an object type. Defaults are coerced to
// the field types and an implicit string primary key field is added when
// the type does not declare one.
func (r *Registry) Add(t *ObjectType) error {
	if r.sealed {
		return util.NewInternalError("object type %q registered after start-up", t.Name)
	}
	var vb util.ValidationBuilder
	if t.Name == "" {
		return util.NewDescriptionError("object type without a name")
	}
	if _, dup := r.types[t.Name]; dup {
		return util.NewDescriptionError("object type %q registered twice", t.Name)
	}
	if t.PrimaryKey == "" {
		t.PrimaryKey = DefaultPrimaryKey
	}

	t.fields = make(map[string]*Field, len(t.Fields)+1)
	for _, f := range t.Fields {
		if f.Name == "" {
			vb.AddErrorf("%s: field without a name", t.Name)
			continue
		}
		if _, dup := t.fields[f.Name]; dup {
			vb.AddErrorf("%s: field %q declared twice", t.Name, f.Name)
			continue
		}
		if f.Type == "" {
			f.Type = TypeString
		}
		if !f.Type.valid() {
			vb.AddErrorf("%s.%s: unknown type %q", t.Name, f.Name, f.Type)
		}
		switch f.Case {
		case CaseNone, CaseLower, CaseUpper:
		default:
			vb.AddErrorf("%s.%s: unknown case policy %q", t.Name, f.Name, f.Case)
		}
		def, err := f.Coerce(f.Default)
		if err != nil {
			vb.AddErrorf("%s.%s: default: %v", t.Name, f.Name, err)
		}
		f.Default = def
		t.fields[f.Name] = f
	}
	if _, ok := t.fields[t.PrimaryKey]; !ok {
		pk := &Field{Name: t.PrimaryKey, Type: TypeString}
		t.Fields = append([]*Field{pk}, t.Fields...)
		t.fields[pk.Name] = pk
	}
	for _, k := range t.KeyFields {
		vb.Add(t.HasField(k), fmt.Sprintf("%s: key field %q is not a field", t.Name, k))
	}
	if err := vb.Build(); err != nil {
		return err
	}

	r.types[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Validate checks cross-type references once every type is registered.
func (r *Registry) Validate() error {
	var vb util.ValidationBuilder
	for _, name := range r.order {
		t := r.types[name]
		for _, f := range t.Fields {
			if f.References != "" {
				vb.Add(r.types[f.References] != nil,
					fmt.Sprintf("%s.%s references unknown type %q", t.Name, f.Name, f.References))
			}
		}
		if t.Alias != "" {
			if _, err := r.AliasField(t.Name); err != nil {
				vb.AddErrorf("%v", err)
			}
		}
	}
	return vb.Build()
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.sealed = true
}

// Lookup returns the named object type.
func (r *Registry) Lookup(name string) (*ObjectType, bool) {
	t, ok := r.types[name]
	return t, ok
}

// Names returns the registered type names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Children returns the foreign key references pointing at parent, sorted
// by child type then field.
func (r *Registry) Children(parent string) []Reference {
	p, ok := r.types[parent]
	if !ok {
		return nil
	}
	var refs []Reference
	for _, name := range r.order {
		child := r.types[name]
		for _, f := range child.Fields {
			if f.References != parent {
				continue
			}
			refs = append(refs, Reference{
				Child:   child.Name,
				Field:   f.Name,
				Cascade: p.CascadeDelete || child.WeakCascadeDelete,
			})
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Child != refs[j].Child {
			return refs[i].Child < refs[j].Child
		}
		return refs[i].Field < refs[j].Field
	})
	return refs
}

// AliasField returns the field of objType's alias type that references
// objType. The alias type's primary key is the alias itself.
func (r *Registry) AliasField(objType string) (string, error) {
	t, ok := r.types[objType]
	if !ok || t.Alias == "" {
		return "", util.NewInternalError("%q has no alias type", objType)
	}
	alias, ok := r.types[t.Alias]
	if !ok {
		return "", util.NewDescriptionError("%s: alias type %q is not registered", objType, t.Alias)
	}
	for _, f := range alias.Fields {
		if f.References == objType {
			return f.Name, nil
		}
	}
	return "", util.NewDescriptionError("%s: alias type %q has no field referencing it", objType, t.Alias)
}

// The policy setters below mirror the per-type declarations in YAML for
// code that registers policies programmatically. They fail once sealed.

// DisableSubmode prevents config-submode entry for objType.
func (r *Registry) DisableSubmode(objType string) error {
	return r.mutate(objType, func(t *ObjectType) error {
		t.NoSubmode = true
		return nil
	})
}

// EnableCascadeDelete deletes objType's children when an instance is deleted.
func (r *Registry) EnableCascadeDelete(objType string) error {
	return r.mutate(objType, func(t *ObjectType) error {
		t.CascadeDelete = true
		return nil
	})
}

// EnableWeakCascadeDelete marks objType as a weak child: it may reference
// a missing parent, but is deleted along with the parent.
func (r *Registry) EnableWeakCascadeDelete(objType string) error {
	return r.mutate(objType, func(t *ObjectType) error {
		t.WeakCascadeDelete = true
		return nil
	})
}

// DisableEdit makes a field read-only for commands.
func (r *Registry) DisableEdit(objType, field string) error {
	return r.mutate(objType, func(t *ObjectType) error {
		f, ok := t.fields[field]
		if !ok {
			return util.NewDescriptionError("%s: no field %q", objType, field)
		}
		f.ReadOnly = true
		return nil
	})
}

// SetCaseFold sets the case policy of a field.
func (r *Registry) SetCaseFold(objType, field string, c CaseFold) error {
	return r.mutate(objType, func(t *ObjectType) error {
		f, ok := t.fields[field]
		if !ok {
			return util.NewDescriptionError("%s: no field %q", objType, field)
		}
		f.Case = c
		return nil
	})
}

func (r *Registry) mutate(objType string, fn func(*ObjectType) error) error {
	if r.sealed {
		return util.NewInternalError("policy change for %q after start-up", objType)
	}
	t, ok := r.types[objType]
	if !ok {
		return util.NewDescriptionError("unknown object type %q", objType)
	}
	return fn(t)
}
