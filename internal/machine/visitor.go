package machine

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/roach88/tagvm/internal/ir"
)

// RegionAction receives one contiguous region of a visited value.
// frozen is false for interior-mutable regions.
type RegionAction func(ptr Pointer, size uint64, frozen bool) error

// SizeAndAlignOf returns the dynamic size and alignment of p. ok is false
// when the layout is unsized and the size cannot be determined.
func (m *Machine) SizeAndAlignOf(p Place) (size, align uint64, ok bool) {
	if !p.Layout.Sized {
		return 0, 0, false
	}
	return p.Layout.Size, p.Layout.Align, true
}

// sizeOrStatic is the dynamic size of p, falling back to the declared
// layout size for unsized types.
func (m *Machine) sizeOrStatic(p Place) uint64 {
	if size, _, ok := m.SizeAndAlignOf(p); ok {
		return size
	}
	return p.Layout.Size
}

// VisitFreezeSensitive partitions the size bytes at p into frozen and
// interior-mutable regions and calls action on each non-empty region in
// increasing offset order. The reported regions cover [0, size) exactly.
//
// Memory is never read: multi-variant values that are not statically
// frozen are reported whole as interior-mutable, and unions are decided by
// their static type.
func (m *Machine) VisitFreezeSensitive(p Place, size uint64, action RegionAction) error {
	slog.Debug("visit freeze sensitive", "ptr", p.Ptr.String(), "type", string(p.Layout.Type), "size", size)
	if want := m.sizeOrStatic(p); size != want {
		bug("visit of %s with size %d, layout says %d", p.Layout.Type, size, want)
	}

	v := &freezeVisitor{m: m, end: p.Ptr, action: action}
	if err := v.visitValue(p); err != nil {
		return err
	}
	// Flush the trailing frozen remainder as a zero-sized cell at the end.
	return v.boundary(p.Ptr.WrappingOffset(size), 0)
}

// freezeVisitor carries the cursor for one VisitFreezeSensitive call.
// Everything before end has already been reported.
type freezeVisitor struct {
	m      *Machine
	end    Pointer
	action RegionAction
}

func (v *freezeVisitor) visitValue(p Place) error {
	l := p.Layout
	switch {
	case l.InteriorMutable:
		return v.cell(p)
	case l.Freeze:
		return nil
	case l.IsMultiVariant():
		return v.cell(p)
	default:
		return v.walkValue(p)
	}
}

func (v *freezeVisitor) walkValue(p Place) error {
	switch f := p.Layout.Fields.(type) {
	case ir.Union:
		if len(f.Fields) == 0 {
			return nil
		}
		return v.visitUnion(p, len(f.Fields))
	default:
		return v.visitAggregate(p)
	}
}

func (v *freezeVisitor) visitAggregate(p Place) error {
	switch f := p.Layout.Fields.(type) {
	case ir.Array:
		for i := range f.Count {
			if err := v.visitValue(p.Offset(i*f.Stride(), f.Elem)); err != nil {
				return err
			}
		}
		return nil
	case ir.Arbitrary:
		places := make([]Place, 0, len(f.Fields))
		for i := range uint64(len(f.Fields)) {
			sub, err := v.m.MplaceField(p, i)
			if err != nil {
				return err
			}
			places = append(places, sub)
		}
		slices.SortStableFunc(places, func(a, b Place) int {
			return cmp.Compare(a.Ptr.Offset, b.Ptr.Offset)
		})
		for _, sub := range places {
			if err := v.visitValue(sub); err != nil {
				return err
			}
		}
		return nil
	case ir.Union:
		bug("a union is not an aggregate we should ever visit")
	}
	bug("unknown field placement %T for %s", p.Layout.Fields, p.Layout.Type)
	return nil
}

// visitUnion reports the union whole, frozen or not according to its
// static type.
func (v *freezeVisitor) visitUnion(p Place, fields int) error {
	if fields == 0 {
		bug("union %s visited with no fields", p.Layout.Type)
	}
	if p.Layout.Freeze {
		return nil
	}
	return v.cell(p)
}

func (v *freezeVisitor) cell(p Place) error {
	size := v.m.sizeOrStatic(p)
	if size == 0 {
		return nil
	}
	return v.boundary(p.Ptr, size)
}

// boundary reports the frozen gap before ptr, then [ptr, ptr+size) as
// interior-mutable, and advances the cursor past it.
func (v *freezeVisitor) boundary(ptr Pointer, size uint64) error {
	if ptr.Alloc != v.end.Alloc || ptr.Tag != v.end.Tag {
		bug("region %s escapes visited value at %s", ptr, v.end)
	}
	if ptr.Offset < v.end.Offset {
		bug("region %s precedes cursor %s", ptr, v.end)
	}
	if gap := ptr.Offset - v.end.Offset; gap != 0 {
		if err := v.action(v.end, gap, true); err != nil {
			return err
		}
	}
	if size != 0 {
		if err := v.action(ptr, size, false); err != nil {
			return err
		}
	}
	v.end = ptr.WrappingOffset(size)
	return nil
}
