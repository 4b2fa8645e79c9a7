package machine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tagvm/internal/ir"
	"github.com/roach88/tagvm/internal/testutil"
)

type region struct {
	Offset uint64
	Size   uint64
	Frozen bool
}

// visitRegions runs the visitor over a fresh allocation of l and returns
// the reported regions relative to the value start.
func visitRegions(t *testing.T, m *Machine, l *ir.Layout) []region {
	t.Helper()
	p := heapPlace(m, l)
	var got []region
	err := m.VisitFreezeSensitive(p, l.Size, func(ptr Pointer, size uint64, frozen bool) error {
		require.Equal(t, p.Ptr.Alloc, ptr.Alloc)
		require.Equal(t, p.Ptr.Tag, ptr.Tag)
		got = append(got, region{Offset: ptr.Offset - p.Ptr.Offset, Size: size, Frozen: frozen})
		return nil
	})
	require.NoError(t, err)
	return got
}

// requirePartition asserts regions tile [0, size) without gaps or overlaps.
func requirePartition(t *testing.T, regions []region, size uint64) {
	t.Helper()
	var cursor uint64
	for _, r := range regions {
		require.Equal(t, cursor, r.Offset, "gap or overlap at %d", cursor)
		require.NotZero(t, r.Size, "zero-sized region reported")
		cursor += r.Size
	}
	require.Equal(t, size, cursor)
}

type layouts struct {
	u8, u32, u64, unit *ir.Layout
	cellU32, cellU8    *ir.Layout
}

func newLayouts(m *Machine) layouts {
	reg := m.Types()
	l := layouts{
		u8:   reg.MustLayout(ir.TypeU8),
		u32:  reg.MustLayout(ir.TypeU32),
		u64:  reg.MustLayout(ir.TypeU64),
		unit: reg.MustLayout(ir.TypeUnit),
	}
	l.cellU32 = ir.NewCell("Cell<u32>", l.u32)
	l.cellU8 = ir.NewCell("Cell<u8>", l.u8)
	return l
}

func TestVisitFreezeSensitive_CellInsideFrozenAggregate(t *testing.T) {
	m := newTestMachine(t, testutil.UnixTarget())
	l := newLayouts(m)
	s := ir.NewStruct("S", 24, 8,
		ir.Field{Name: "a", Offset: 0, Layout: l.u64},
		ir.Field{Name: "c", Offset: 8, Layout: l.cellU32},
		ir.Field{Name: "b", Offset: 12, Layout: l.u32},
		ir.Field{Name: "d", Offset: 16, Layout: l.u64},
	)

	got := visitRegions(t, m, s)
	assert.Equal(t, []region{
		{Offset: 0, Size: 8, Frozen: true},
		{Offset: 8, Size: 4, Frozen: false},
		{Offset: 12, Size: 12, Frozen: true},
	}, got)
	requirePartition(t, got, 24)
}

func TestVisitFreezeSensitive_ArbitraryFieldsSortedByOffset(t *testing.T) {
	m := newTestMachine(t, testutil.UnixTarget())
	l := newLayouts(m)
	// Declaration order differs from memory order.
	s := ir.NewStruct("Shuffled", 24, 8,
		ir.Field{Name: "tail", Offset: 20, Layout: l.cellU32},
		ir.Field{Name: "mid", Offset: 8, Layout: l.u64},
		ir.Field{Name: "head", Offset: 4, Layout: l.cellU32},
		ir.Field{Name: "first", Offset: 0, Layout: l.u32},
		ir.Field{Name: "gap", Offset: 16, Layout: l.u32},
	)

	got := visitRegions(t, m, s)
	assert.Equal(t, []region{
		{Offset: 0, Size: 4, Frozen: true},
		{Offset: 4, Size: 4, Frozen: false},
		{Offset: 8, Size: 12, Frozen: true},
		{Offset: 20, Size: 4, Frozen: false},
	}, got)
	requirePartition(t, got, 24)
}

func TestVisitFreezeSensitive_FullyFrozen(t *testing.T) {
	m := newTestMachine(t, testutil.UnixTarget())
	l := newLayouts(m)
	s := ir.NewStruct("Plain", 16, 8,
		ir.Field{Name: "a", Offset: 0, Layout: l.u64},
		ir.Field{Name: "b", Offset: 8, Layout: l.u64},
	)

	got := visitRegions(t, m, s)
	assert.Equal(t, []region{{Offset: 0, Size: 16, Frozen: true}}, got)
}

func TestVisitFreezeSensitive_WholeCell(t *testing.T) {
	m := newTestMachine(t, testutil.UnixTarget())
	l := newLayouts(m)

	got := visitRegions(t, m, l.cellU32)
	assert.Equal(t, []region{{Offset: 0, Size: 4, Frozen: false}}, got)
}

func TestVisitFreezeSensitive_CellIsNotRecursedInto(t *testing.T) {
	m := newTestMachine(t, testutil.UnixTarget())
	l := newLayouts(m)
	inner := ir.NewStruct("Inner", 8, 4,
		ir.Field{Name: "x", Offset: 0, Layout: l.u32},
		ir.Field{Name: "y", Offset: 4, Layout: l.cellU32},
	)
	outer := ir.NewCell("Cell<Inner>", inner)

	got := visitRegions(t, m, outer)
	assert.Equal(t, []region{{Offset: 0, Size: 8, Frozen: false}}, got)
}

func TestVisitFreezeSensitive_ArrayOfMixedElements(t *testing.T) {
	m := newTestMachine(t, testutil.UnixTarget())
	l := newLayouts(m)
	elem := ir.NewStruct("Pair", 2, 1,
		ir.Field{Name: "plain", Offset: 0, Layout: l.u8},
		ir.Field{Name: "cell", Offset: 1, Layout: l.cellU8},
	)
	arr := ir.NewArray(elem, 3)

	got := visitRegions(t, m, arr)
	assert.Equal(t, []region{
		{Offset: 0, Size: 1, Frozen: true},
		{Offset: 1, Size: 1, Frozen: false},
		{Offset: 2, Size: 1, Frozen: true},
		{Offset: 3, Size: 1, Frozen: false},
		{Offset: 4, Size: 1, Frozen: true},
		{Offset: 5, Size: 1, Frozen: false},
	}, got)
	requirePartition(t, got, 6)
}

func TestVisitFreezeSensitive_MultiVariantIsConservative(t *testing.T) {
	m := newTestMachine(t, testutil.UnixTarget())
	l := newLayouts(m)
	withCell := ir.NewStruct("Some", 8, 4,
		ir.Field{Name: "v", Offset: 4, Layout: l.cellU32},
	)
	none := ir.NewStruct("None", 8, 4)
	opt := ir.NewEnum("Option<Cell<u32>>", 8, 4, 0, l.u32, none, withCell)
	s := ir.NewStruct("Holder", 16, 8,
		ir.Field{Name: "n", Offset: 0, Layout: l.u64},
		ir.Field{Name: "opt", Offset: 8, Layout: opt},
	)

	got := visitRegions(t, m, s)
	assert.Equal(t, []region{
		{Offset: 0, Size: 8, Frozen: true},
		{Offset: 8, Size: 8, Frozen: false},
	}, got)
}

func TestVisitFreezeSensitive_FrozenEnumIsSkipped(t *testing.T) {
	m := newTestMachine(t, testutil.UnixTarget())
	l := newLayouts(m)
	e := ir.NewEnum("Ordering", 1, 1, 0, l.u8,
		ir.NewStruct("Less", 1, 1), ir.NewStruct("Greater", 1, 1))

	got := visitRegions(t, m, e)
	assert.Equal(t, []region{{Offset: 0, Size: 1, Frozen: true}}, got)
}

func TestVisitFreezeSensitive_UnionUsesStaticFreeze(t *testing.T) {
	m := newTestMachine(t, testutil.UnixTarget())
	l := newLayouts(m)

	mutable := ir.NewUnion("MaybeCell",
		ir.Field{Name: "cell", Layout: l.cellU32},
		ir.Field{Name: "raw", Layout: l.u32},
	)
	frozen := ir.NewUnion("Bits",
		ir.Field{Name: "word", Layout: l.u32},
		ir.Field{Name: "bytes", Layout: ir.NewArray(l.u8, 4)},
	)
	s := ir.NewStruct("Unions", 12, 4,
		ir.Field{Name: "frozen", Offset: 0, Layout: frozen},
		ir.Field{Name: "mutable", Offset: 4, Layout: mutable},
		ir.Field{Name: "pad", Offset: 8, Layout: l.u32},
	)

	got := visitRegions(t, m, s)
	assert.Equal(t, []region{
		{Offset: 0, Size: 4, Frozen: true},
		{Offset: 4, Size: 4, Frozen: false},
		{Offset: 8, Size: 4, Frozen: true},
	}, got)
}

func TestVisitFreezeSensitive_ZeroSizedCellReportsNothing(t *testing.T) {
	m := newTestMachine(t, testutil.UnixTarget())
	l := newLayouts(m)
	s := ir.NewStruct("Marker", 8, 4,
		ir.Field{Name: "a", Offset: 0, Layout: l.u32},
		ir.Field{Name: "marker", Offset: 4, Layout: ir.NewCell("Cell<()>", l.unit)},
		ir.Field{Name: "b", Offset: 4, Layout: l.u32},
	)

	got := visitRegions(t, m, s)
	assert.Equal(t, []region{{Offset: 0, Size: 8, Frozen: true}}, got)
}

func TestVisitFreezeSensitive_ZeroSizedValue(t *testing.T) {
	m := newTestMachine(t, testutil.UnixTarget())
	l := newLayouts(m)

	got := visitRegions(t, m, l.unit)
	assert.Empty(t, got)
}

func TestVisitFreezeSensitive_UnsizedFallsBackToDeclaredSize(t *testing.T) {
	m := newTestMachine(t, testutil.UnixTarget())
	opaque := ir.NewExtern("Opaque", 12, true)

	_, _, ok := m.SizeAndAlignOf(Place{Layout: opaque})
	assert.False(t, ok)

	got := visitRegions(t, m, opaque)
	assert.Equal(t, []region{{Offset: 0, Size: 12, Frozen: false}}, got)
}

func TestVisitFreezeSensitive_InteriorPlace(t *testing.T) {
	m := newTestMachine(t, testutil.UnixTarget())
	l := newLayouts(m)
	s := ir.NewStruct("S", 8, 4,
		ir.Field{Name: "a", Offset: 0, Layout: l.u32},
		ir.Field{Name: "c", Offset: 4, Layout: l.cellU32},
	)
	base := m.Memory().Allocate(16, 8, KindHeap)
	p := Place{Ptr: base.WrappingOffset(8), Layout: s}

	var got []region
	err := m.VisitFreezeSensitive(p, 8, func(ptr Pointer, size uint64, frozen bool) error {
		got = append(got, region{Offset: ptr.Offset, Size: size, Frozen: frozen})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []region{
		{Offset: 8, Size: 4, Frozen: true},
		{Offset: 12, Size: 4, Frozen: false},
	}, got)
}

func TestVisitFreezeSensitive_ActionErrorStops(t *testing.T) {
	m := newTestMachine(t, testutil.UnixTarget())
	l := newLayouts(m)
	s := ir.NewStruct("S", 24, 8,
		ir.Field{Name: "a", Offset: 0, Layout: l.u64},
		ir.Field{Name: "c", Offset: 8, Layout: l.cellU32},
		ir.Field{Name: "d", Offset: 16, Layout: l.u64},
	)
	p := heapPlace(m, s)
	boom := errors.New("retag failed")

	calls := 0
	err := m.VisitFreezeSensitive(p, s.Size, func(Pointer, uint64, bool) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestVisitFreezeSensitive_SizeMismatchIsBug(t *testing.T) {
	m := newTestMachine(t, testutil.UnixTarget())
	l := newLayouts(m)
	p := heapPlace(m, l.u64)

	requireBug(t, "layout says 8", func() {
		_ = m.VisitFreezeSensitive(p, 4, func(Pointer, uint64, bool) error { return nil })
	})
}

func TestVisitAggregate_UnionIsBug(t *testing.T) {
	m := newTestMachine(t, testutil.UnixTarget())
	l := newLayouts(m)
	u := ir.NewUnion("U", ir.Field{Name: "x", Layout: l.cellU32})
	p := heapPlace(m, u)
	v := &freezeVisitor{m: m, end: p.Ptr, action: func(Pointer, uint64, bool) error { return nil }}

	requireBug(t, "a union is not an aggregate we should ever visit", func() {
		_ = v.visitAggregate(p)
	})
}

func TestBoundary_OutOfOrderIsBug(t *testing.T) {
	m := newTestMachine(t, testutil.UnixTarget())
	p := m.Memory().Allocate(8, 1, KindHeap)
	v := &freezeVisitor{m: m, end: p.WrappingOffset(4), action: func(Pointer, uint64, bool) error { return nil }}

	requireBug(t, "precedes cursor", func() {
		_ = v.boundary(p, 2)
	})

	other := m.Memory().Allocate(8, 1, KindHeap)
	requireBug(t, "escapes visited value", func() {
		_ = v.boundary(other.WrappingOffset(6), 1)
	})
}
