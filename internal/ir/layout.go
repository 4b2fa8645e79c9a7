package ir

import "fmt"

// TypeID identifies a type in the layout service.
type TypeID string

// Layout is the static per-type memory description.
//
// INVARIANTS:
//   - Freeze is false whenever InteriorMutable is true
//   - For Arbitrary and Union placements, every field fits within Size
//   - A Union with zero fields describes a primitive (scalar leaf)
type Layout struct {
	Type  TypeID
	Size  uint64
	Align uint64

	// Sized is false for extern/unsized types whose dynamic size cannot be
	// determined without runtime metadata.
	Sized bool

	// Freeze reports that the type contains no interior-mutability wrapper
	// anywhere in its structure.
	Freeze bool

	// InteriorMutable marks the designated interior-mutability wrapper.
	InteriorMutable bool

	Fields   FieldPlacement
	Variants Variants
}

// FieldPlacement is a sealed interface describing how fields are arranged.
// Only Array, Arbitrary, and Union implement it.
type FieldPlacement interface {
	fieldPlacement()
}

// Array places Count elements of Elem at a regular stride.
type Array struct {
	Elem  *Layout
	Count uint64
}

func (Array) fieldPlacement() {}

// Stride returns the distance between consecutive elements.
func (a Array) Stride() uint64 { return a.Elem.Size }

// Field is a named member at an explicit byte offset.
type Field struct {
	Name   string
	Offset uint64
	Layout *Layout
}

// Arbitrary places each field at its own offset. Declaration order need not
// match memory order.
type Arbitrary struct {
	Fields []Field
}

func (Arbitrary) fieldPlacement() {}

// Union overlaps all fields at offset 0.
type Union struct {
	Fields []Field
}

func (Union) fieldPlacement() {}

// Variants is a sealed interface describing the variant scheme.
type Variants interface {
	variants()
}

// Single means the active variant is fixed statically.
type Single struct {
	Index int
}

func (Single) variants() {}

// Multiple means the active variant is chosen at runtime by a discriminant
// stored at DiscriminantOffset.
type Multiple struct {
	DiscriminantOffset uint64
	Discriminant       *Layout
	Variants           []*Layout
}

func (Multiple) variants() {}

// FieldCount returns the number of fields addressable by projection.
func (l *Layout) FieldCount() uint64 {
	switch f := l.Fields.(type) {
	case Array:
		return f.Count
	case Arbitrary:
		return uint64(len(f.Fields))
	case Union:
		return uint64(len(f.Fields))
	default:
		return 0
	}
}

// Field returns the byte offset and layout of field i.
// ok is false when i is out of range.
func (l *Layout) Field(i uint64) (offset uint64, layout *Layout, ok bool) {
	switch f := l.Fields.(type) {
	case Array:
		if i >= f.Count {
			return 0, nil, false
		}
		return i * f.Stride(), f.Elem, true
	case Arbitrary:
		if i >= uint64(len(f.Fields)) {
			return 0, nil, false
		}
		return f.Fields[i].Offset, f.Fields[i].Layout, true
	case Union:
		if i >= uint64(len(f.Fields)) {
			return 0, nil, false
		}
		return 0, f.Fields[i].Layout, true
	default:
		return 0, nil, false
	}
}

// IsPrimitive reports whether this is a scalar leaf (a union with no fields).
func (l *Layout) IsPrimitive() bool {
	u, ok := l.Fields.(Union)
	return ok && len(u.Fields) == 0
}

// IsMultiVariant reports whether the active variant is runtime-determined.
func (l *Layout) IsMultiVariant() bool {
	_, ok := l.Variants.(Multiple)
	return ok
}

func (l *Layout) String() string {
	return fmt.Sprintf("%s(size=%d, align=%d)", l.Type, l.Size, l.Align)
}

// Primitive creates a scalar leaf layout. Alignment equals size.
func Primitive(id TypeID, size uint64) *Layout {
	align := size
	if align == 0 {
		align = 1
	}
	return &Layout{
		Type:     id,
		Size:     size,
		Align:    align,
		Sized:    true,
		Freeze:   true,
		Fields:   Union{},
		Variants: Single{},
	}
}

// NewStruct creates an aggregate with explicitly placed fields.
func NewStruct(id TypeID, size, align uint64, fields ...Field) *Layout {
	freeze := true
	for _, f := range fields {
		freeze = freeze && f.Layout.Freeze
	}
	return &Layout{
		Type:     id,
		Size:     size,
		Align:    max(align, 1),
		Sized:    true,
		Freeze:   freeze,
		Fields:   Arbitrary{Fields: fields},
		Variants: Single{},
	}
}

// ArrayID names the array type of count elements of elem.
func ArrayID(elem TypeID, count uint64) TypeID {
	return TypeID(fmt.Sprintf("[%s; %d]", elem, count))
}

// NewArray creates a fixed-length array of elem.
func NewArray(elem *Layout, count uint64) *Layout {
	return &Layout{
		Type:     ArrayID(elem.Type, count),
		Size:     elem.Size * count,
		Align:    elem.Align,
		Sized:    true,
		Freeze:   elem.Freeze,
		Fields:   Array{Elem: elem, Count: count},
		Variants: Single{},
	}
}

// NewUnion creates a union whose fields all start at offset 0. The size is
// the largest field rounded up to the largest alignment.
func NewUnion(id TypeID, fields ...Field) *Layout {
	var size, align uint64 = 0, 1
	freeze := true
	for i := range fields {
		fields[i].Offset = 0
		size = max(size, fields[i].Layout.Size)
		align = max(align, fields[i].Layout.Align)
		freeze = freeze && fields[i].Layout.Freeze
	}
	return &Layout{
		Type:     id,
		Size:     alignUp(size, align),
		Align:    align,
		Sized:    true,
		Freeze:   freeze,
		Fields:   Union{Fields: fields},
		Variants: Single{},
	}
}

// NewCell creates the interior-mutability wrapper around inner.
func NewCell(id TypeID, inner *Layout) *Layout {
	return &Layout{
		Type:            id,
		Size:            inner.Size,
		Align:           inner.Align,
		Sized:           inner.Sized,
		Freeze:          false,
		InteriorMutable: true,
		Fields:          Arbitrary{Fields: []Field{{Name: "value", Offset: 0, Layout: inner}}},
		Variants:        Single{},
	}
}

// NewEnum creates a multi-variant type. Each variant layout describes the
// payload overlaid on the enum's storage; the discriminant lives at discOffset.
func NewEnum(id TypeID, size, align, discOffset uint64, disc *Layout, variants ...*Layout) *Layout {
	freeze := true
	for _, v := range variants {
		freeze = freeze && v.Freeze
	}
	return &Layout{
		Type:   id,
		Size:   size,
		Align:  max(align, 1),
		Sized:  true,
		Freeze: freeze,
		Fields: Arbitrary{Fields: []Field{{Name: "discriminant", Offset: discOffset, Layout: disc}}},
		Variants: Multiple{
			DiscriminantOffset: discOffset,
			Discriminant:       disc,
			Variants:           variants,
		},
	}
}

// NewExtern creates an opaque unsized type. declaredSize is the statically
// declared size used when the dynamic size cannot be computed.
func NewExtern(id TypeID, declaredSize uint64, interiorMutable bool) *Layout {
	return &Layout{
		Type:            id,
		Size:            declaredSize,
		Align:           1,
		Sized:           false,
		Freeze:          !interiorMutable,
		InteriorMutable: interiorMutable,
		Fields:          Union{},
		Variants:        Single{},
	}
}

func alignUp(n, align uint64) uint64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}
