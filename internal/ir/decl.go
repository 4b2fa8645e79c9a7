package ir

import (
	"fmt"
	"slices"
	"strings"
)

// Declaration kinds accepted by Registry.Declare.
const (
	KindScalar = "scalar"
	KindStruct = "struct"
	KindArray  = "array"
	KindUnion  = "union"
	KindCell   = "cell"
	KindEnum   = "enum"
	KindExtern = "extern"
)

// TypeDecl is the serializable form of a type declaration, shared by CUE
// type files and YAML scenarios.
type TypeDecl struct {
	Name  string `yaml:"name" json:"name"`
	Kind  string `yaml:"kind" json:"kind"`
	Size  uint64 `yaml:"size,omitempty" json:"size,omitempty"`
	Align uint64 `yaml:"align,omitempty" json:"align,omitempty"`

	// Array element type and length.
	Elem  string `yaml:"elem,omitempty" json:"elem,omitempty"`
	Count uint64 `yaml:"count,omitempty" json:"count,omitempty"`

	// Cell payload type.
	Inner string `yaml:"inner,omitempty" json:"inner,omitempty"`

	// Struct and union members.
	Fields []FieldDecl `yaml:"fields,omitempty" json:"fields,omitempty"`

	// Enum variant payload types and discriminant placement.
	Variants           []string `yaml:"variants,omitempty" json:"variants,omitempty"`
	Discriminant       string   `yaml:"discriminant,omitempty" json:"discriminant,omitempty"`
	DiscriminantOffset uint64   `yaml:"discriminant_offset,omitempty" json:"discriminant_offset,omitempty"`

	// Extern interior mutability.
	InteriorMutable bool `yaml:"interior_mutable,omitempty" json:"interior_mutable,omitempty"`
}

// FieldDecl is one member of a struct or union declaration.
type FieldDecl struct {
	Name   string `yaml:"name" json:"name"`
	Type   string `yaml:"type" json:"type"`
	Offset uint64 `yaml:"offset,omitempty" json:"offset,omitempty"`
}

// deps returns the type names a declaration refers to.
func (d TypeDecl) deps() []string {
	var deps []string
	switch d.Kind {
	case KindArray:
		deps = append(deps, d.Elem)
	case KindCell:
		deps = append(deps, d.Inner)
	case KindStruct, KindUnion:
		for _, f := range d.Fields {
			deps = append(deps, f.Type)
		}
	case KindEnum:
		deps = append(deps, d.Variants...)
		if d.Discriminant != "" {
			deps = append(deps, d.Discriminant)
		}
	}
	return deps
}

// Declare resolves declarations in dependency order and defines them.
// Declarations may appear in any order; unknown references and cycles fail.
func (r *Registry) Declare(decls []TypeDecl) error {
	pending := make(map[string]TypeDecl, len(decls))
	for _, d := range decls {
		if d.Name == "" {
			return fmt.Errorf("type declaration without name")
		}
		if _, dup := pending[d.Name]; dup {
			return fmt.Errorf("type %q declared twice", d.Name)
		}
		pending[d.Name] = d
	}

	for len(pending) > 0 {
		progressed := false
		// Sorted iteration keeps error messages and definition order deterministic.
		names := make([]string, 0, len(pending))
		for name := range pending {
			names = append(names, name)
		}
		slices.Sort(names)

		for _, name := range names {
			d := pending[name]
			if !r.depsDefined(d) {
				continue
			}
			l, err := r.build(d)
			if err != nil {
				return fmt.Errorf("type %q: %w", name, err)
			}
			if err := r.Define(l); err != nil {
				return err
			}
			delete(pending, name)
			progressed = true
		}

		if !progressed {
			var unresolved []string
			for _, name := range names {
				for _, dep := range pending[name].deps() {
					if _, known := r.layouts[TypeID(dep)]; !known {
						unresolved = append(unresolved, fmt.Sprintf("%s -> %s", name, dep))
					}
				}
			}
			return fmt.Errorf("unresolved type references (unknown or cyclic): %s", strings.Join(unresolved, ", "))
		}
	}
	return nil
}

func (r *Registry) depsDefined(d TypeDecl) bool {
	for _, dep := range d.deps() {
		if _, ok := r.layouts[TypeID(dep)]; !ok {
			return false
		}
	}
	return true
}

func (r *Registry) build(d TypeDecl) (*Layout, error) {
	id := TypeID(d.Name)
	switch d.Kind {
	case KindScalar:
		if d.Size == 0 {
			return nil, fmt.Errorf("scalar size must be positive")
		}
		return Primitive(id, d.Size), nil

	case KindStruct:
		fields, err := r.fields(d.Fields)
		if err != nil {
			return nil, err
		}
		for _, f := range fields {
			if f.Offset+f.Layout.Size > d.Size {
				return nil, fmt.Errorf("field %q [%d, %d) exceeds size %d", f.Name, f.Offset, f.Offset+f.Layout.Size, d.Size)
			}
		}
		return NewStruct(id, d.Size, d.Align, fields...), nil

	case KindArray:
		elem := r.layouts[TypeID(d.Elem)]
		l := NewArray(elem, d.Count)
		l.Type = id
		return l, nil

	case KindUnion:
		fields, err := r.fields(d.Fields)
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			return nil, fmt.Errorf("union must have at least one field")
		}
		return NewUnion(id, fields...), nil

	case KindCell:
		return NewCell(id, r.layouts[TypeID(d.Inner)]), nil

	case KindEnum:
		if len(d.Variants) == 0 {
			return nil, fmt.Errorf("enum must have at least one variant")
		}
		disc := r.layouts[TypeID(d.Discriminant)]
		if d.Discriminant == "" {
			disc = r.layouts[TypeU8]
		}
		variants := make([]*Layout, len(d.Variants))
		for i, v := range d.Variants {
			variants[i] = r.layouts[TypeID(v)]
		}
		return NewEnum(id, d.Size, d.Align, d.DiscriminantOffset, disc, variants...), nil

	case KindExtern:
		return NewExtern(id, d.Size, d.InteriorMutable), nil

	default:
		return nil, fmt.Errorf("unknown kind %q", d.Kind)
	}
}

func (r *Registry) fields(decls []FieldDecl) ([]Field, error) {
	fields := make([]Field, len(decls))
	for i, fd := range decls {
		if fd.Name == "" {
			return nil, fmt.Errorf("field %d without name", i)
		}
		fields[i] = Field{Name: fd.Name, Offset: fd.Offset, Layout: r.layouts[TypeID(fd.Type)]}
	}
	return fields, nil
}
