package ir

import (
	"fmt"
	"slices"
)

// LayoutProvider is the type-layout service keyed by type identity.
type LayoutProvider interface {
	Layout(id TypeID) (*Layout, error)
}

// Registry is the in-memory layout service.
//
// Definitions are content-addressed: defining the same TypeID twice is
// accepted only when both layouts hash identically.
type Registry struct {
	layouts map[TypeID]*Layout
	hashes  map[TypeID]string
}

// Builtin scalar type names registered by NewRegistry.
const (
	TypeU8    TypeID = "u8"
	TypeI8    TypeID = "i8"
	TypeU16   TypeID = "u16"
	TypeI16   TypeID = "i16"
	TypeU32   TypeID = "u32"
	TypeI32   TypeID = "i32"
	TypeU64   TypeID = "u64"
	TypeI64   TypeID = "i64"
	TypeBool  TypeID = "bool"
	TypeChar  TypeID = "char"
	TypeUsize TypeID = "usize"
	TypeIsize TypeID = "isize"
	TypePtr   TypeID = "ptr"
	TypeUnit  TypeID = "()"
)

// NewRegistry creates a registry preloaded with the builtin scalars.
// pointerSize sizes usize, isize, and ptr.
func NewRegistry(pointerSize uint64) *Registry {
	r := &Registry{
		layouts: make(map[TypeID]*Layout),
		hashes:  make(map[TypeID]string),
	}
	builtins := []*Layout{
		Primitive(TypeU8, 1), Primitive(TypeI8, 1),
		Primitive(TypeU16, 2), Primitive(TypeI16, 2),
		Primitive(TypeU32, 4), Primitive(TypeI32, 4),
		Primitive(TypeU64, 8), Primitive(TypeI64, 8),
		Primitive(TypeBool, 1), Primitive(TypeChar, 4),
		Primitive(TypeUsize, pointerSize), Primitive(TypeIsize, pointerSize),
		Primitive(TypePtr, pointerSize),
		NewStruct(TypeUnit, 0, 1),
	}
	for _, l := range builtins {
		// Builtins never conflict on a fresh registry.
		_ = r.Define(l)
	}
	return r
}

// Define registers a layout. Redefinition with a different shape fails.
func (r *Registry) Define(l *Layout) error {
	hash, err := LayoutHash(l)
	if err != nil {
		return fmt.Errorf("define %s: %w", l.Type, err)
	}
	if existing, ok := r.hashes[l.Type]; ok {
		if existing != hash {
			return fmt.Errorf("define %s: conflicting redefinition (have %s, got %s)", l.Type, existing[:12], hash[:12])
		}
		return nil
	}
	r.layouts[l.Type] = l
	r.hashes[l.Type] = hash
	return nil
}

// Layout returns the layout registered for id.
func (r *Registry) Layout(id TypeID) (*Layout, error) {
	l, ok := r.layouts[id]
	if !ok {
		return nil, fmt.Errorf("unknown type %q", id)
	}
	return l, nil
}

// MustLayout is like Layout but panics on unknown types.
// Use only in tests or for builtins.
func (r *Registry) MustLayout(id TypeID) *Layout {
	l, err := r.Layout(id)
	if err != nil {
		panic(err)
	}
	return l
}

// Hash returns the content hash recorded for id.
func (r *Registry) Hash(id TypeID) (string, bool) {
	h, ok := r.hashes[id]
	return h, ok
}

// IDs returns all registered type ids in sorted order.
func (r *Registry) IDs() []TypeID {
	ids := make([]TypeID, 0, len(r.layouts))
	for id := range r.layouts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
