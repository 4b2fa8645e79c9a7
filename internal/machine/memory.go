package machine

import (
	"encoding/binary"
	"log/slog"
	"math/rand/v2"
	"slices"
)

// AllocKind records what created an allocation.
type AllocKind uint8

const (
	// KindStack allocations back frame locals.
	KindStack AllocKind = iota
	// KindHeap allocations are created by guest allocator shims.
	KindHeap
	// KindStatic allocations live for the whole run.
	KindStatic
	// KindHost allocations hold data handed in from the host environment.
	KindHost
)

var allocKindNames = map[AllocKind]string{
	KindStack:  "stack",
	KindHeap:   "heap",
	KindStatic: "static",
	KindHost:   "host",
}

func (k AllocKind) String() string {
	if s, ok := allocKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Allocation is one contiguous block of guest memory.
type Allocation struct {
	ID    AllocID
	Kind  AllocKind
	Align uint64

	bytes []byte
	init  []bool
	// relocs maps byte offsets to pointers stored at that offset.
	relocs map[uint64]Pointer
	tags   map[Tag]struct{}
	live   bool
}

// Size returns the allocation size in bytes.
func (a *Allocation) Size() uint64 { return uint64(len(a.bytes)) }

// Live reports whether the allocation has not been deallocated.
func (a *Allocation) Live() bool { return a.live }

// Memory is the guest address space: an arena of tagged allocations.
type Memory struct {
	allocs      map[AllocID]*Allocation
	nextAlloc   AllocID
	nextTag     Tag
	pointerSize uint64
	order       binary.ByteOrder
	rng         *rand.ChaCha8
}

// NewMemory creates an empty address space. seed drives the deterministic
// random source used when the machine is isolated from the host.
func NewMemory(pointerSize uint64, order binary.ByteOrder, seed uint64) *Memory {
	var s [32]byte
	binary.LittleEndian.PutUint64(s[:8], seed)
	return &Memory{
		allocs:      make(map[AllocID]*Allocation),
		nextAlloc:   1,
		nextTag:     1,
		pointerSize: pointerSize,
		order:       order,
		rng:         rand.NewChaCha8(s),
	}
}

// PointerSize returns the target pointer width in bytes.
func (m *Memory) PointerSize() uint64 { return m.pointerSize }

// ByteOrder returns the target byte order.
func (m *Memory) ByteOrder() binary.ByteOrder { return m.order }

// Allocate creates a block of size bytes and returns its base pointer with
// a fresh tag. The contents start out uninitialized.
func (m *Memory) Allocate(size, align uint64, kind AllocKind) Pointer {
	id := m.nextAlloc
	m.nextAlloc++
	tag := m.newTag()
	m.allocs[id] = &Allocation{
		ID:     id,
		Kind:   kind,
		Align:  max(align, 1),
		bytes:  make([]byte, size),
		init:   make([]bool, size),
		relocs: make(map[uint64]Pointer),
		tags:   map[Tag]struct{}{tag: {}},
		live:   true,
	}
	slog.Debug("allocate", "alloc", id, "size", size, "kind", kind.String())
	return Pointer{Alloc: id, Tag: tag}
}

// Deallocate frees the allocation ptr points to. ptr must be the base
// pointer and carry a live tag.
func (m *Memory) Deallocate(ptr Pointer) error {
	a, err := m.lookup(ptr)
	if err != nil {
		return err
	}
	if ptr.Offset != 0 {
		return newError(ErrCodeProvenanceViolation, "deallocating %s which does not point to the start of its allocation", ptr)
	}
	a.live = false
	clear(a.tags)
	clear(a.relocs)
	slog.Debug("deallocate", "alloc", a.ID)
	return nil
}

// Retag derives a new pointer to the same location with a fresh live tag.
// The original tag stays live.
func (m *Memory) Retag(ptr Pointer) (Pointer, error) {
	a, err := m.lookup(ptr)
	if err != nil {
		return Pointer{}, err
	}
	tag := m.newTag()
	a.tags[tag] = struct{}{}
	ptr.Tag = tag
	return ptr, nil
}

// InvalidateTag revokes ptr's tag. Later accesses through any pointer
// carrying that tag are provenance violations.
func (m *Memory) InvalidateTag(ptr Pointer) error {
	a, err := m.lookup(ptr)
	if err != nil {
		return err
	}
	delete(a.tags, ptr.Tag)
	return nil
}

// Allocation returns the allocation with the given id.
func (m *Memory) Allocation(id AllocID) (*Allocation, bool) {
	a, ok := m.allocs[id]
	return a, ok
}

func (m *Memory) newTag() Tag {
	t := m.nextTag
	m.nextTag++
	return t
}

// lookup resolves ptr to a live allocation whose tag set admits ptr.Tag.
func (m *Memory) lookup(ptr Pointer) (*Allocation, error) {
	a, ok := m.allocs[ptr.Alloc]
	if !ok {
		return nil, newError(ErrCodeProvenanceViolation, "pointer %s refers to no allocation", ptr)
	}
	if !a.live {
		return nil, newError(ErrCodeProvenanceViolation, "pointer %s used after its allocation was freed", ptr)
	}
	if _, ok := a.tags[ptr.Tag]; !ok {
		return nil, newError(ErrCodeProvenanceViolation, "pointer %s carries invalidated tag %d", ptr, ptr.Tag)
	}
	return a, nil
}

// check validates an access of size bytes at ptr.
func (m *Memory) check(ptr Pointer, size uint64) (*Allocation, error) {
	a, err := m.lookup(ptr)
	if err != nil {
		return nil, err
	}
	if ptr.Offset > a.Size() || size > a.Size()-ptr.Offset {
		return nil, newError(ErrCodeOutOfBounds, "access of %d bytes at %s exceeds allocation of %d bytes", size, ptr, a.Size())
	}
	return a, nil
}

// ReadBytes returns a copy of n initialized, pointer-free bytes at ptr.
// Zero-sized reads succeed without touching memory.
func (m *Memory) ReadBytes(ptr Pointer, n uint64) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	a, err := m.check(ptr, n)
	if err != nil {
		return nil, err
	}
	lo, hi := ptr.Offset, ptr.Offset+n
	if i := slices.Index(a.init[lo:hi], false); i >= 0 {
		return nil, newError(ErrCodeUndefinedValue, "reading uninitialized byte at %s", ptr.WrappingOffset(uint64(i)))
	}
	if off, ok := a.relocIn(lo, hi, m.pointerSize); ok {
		return nil, newError(ErrCodeUnsupportedOperation, "unable to turn pointer at alloc%d+%d into raw bytes", a.ID, off)
	}
	return slices.Clone(a.bytes[lo:hi]), nil
}

// WriteBytes stores data at ptr, marking it initialized and dropping any
// pointers it overlaps. Zero-sized writes succeed without touching memory.
func (m *Memory) WriteBytes(ptr Pointer, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n := uint64(len(data))
	a, err := m.check(ptr, n)
	if err != nil {
		return err
	}
	a.clearRelocs(ptr.Offset, ptr.Offset+n, m.pointerSize)
	copy(a.bytes[ptr.Offset:], data)
	for i := range n {
		a.init[ptr.Offset+i] = true
	}
	return nil
}

// Copy moves size bytes from src to dst, preserving initialization and
// stored pointers.
func (m *Memory) Copy(src, dst Pointer, size uint64) error {
	if size == 0 {
		return nil
	}
	sa, err := m.check(src, size)
	if err != nil {
		return err
	}
	da, err := m.check(dst, size)
	if err != nil {
		return err
	}
	bytes := slices.Clone(sa.bytes[src.Offset : src.Offset+size])
	init := slices.Clone(sa.init[src.Offset : src.Offset+size])
	relocs := make(map[uint64]Pointer)
	for off, p := range sa.relocs {
		if off >= src.Offset && off+m.pointerSize <= src.Offset+size {
			relocs[off-src.Offset] = p
		}
	}
	da.clearRelocs(dst.Offset, dst.Offset+size, m.pointerSize)
	copy(da.bytes[dst.Offset:], bytes)
	copy(da.init[dst.Offset:], init)
	for off, p := range relocs {
		da.relocs[dst.Offset+off] = p
	}
	return nil
}

// readScalar loads size bytes at ptr. Uninitialized memory yields an
// undefined scalar rather than an error.
func (m *Memory) readScalar(ptr Pointer, size uint64) (Scalar, error) {
	a, err := m.check(ptr, size)
	if err != nil {
		return Scalar{}, err
	}
	lo, hi := ptr.Offset, ptr.Offset+size
	if slices.Contains(a.init[lo:hi], false) {
		return Undef(size), nil
	}
	if p, ok := a.relocs[lo]; ok && size == m.pointerSize {
		return FromPointer(p, size), nil
	}
	if off, ok := a.relocIn(lo, hi, m.pointerSize); ok {
		return Scalar{}, newError(ErrCodeUnsupportedOperation, "partial read of pointer at alloc%d+%d", a.ID, off)
	}
	return FromUint(m.decode(a.bytes[lo:hi]), size), nil
}

// writeScalar stores s at ptr. Writing an undefined scalar
// de-initializes the bytes.
func (m *Memory) writeScalar(ptr Pointer, s Scalar) error {
	size := s.Size()
	a, err := m.check(ptr, size)
	if err != nil {
		return err
	}
	lo, hi := ptr.Offset, ptr.Offset+size
	a.clearRelocs(lo, hi, m.pointerSize)
	switch s.kind {
	case scalarUndef:
		for i := lo; i < hi; i++ {
			a.init[i] = false
		}
		return nil
	case scalarPtr:
		if size != m.pointerSize {
			return newError(ErrCodeLayoutMismatch, "pointer stored in %d bytes, target pointers are %d", size, m.pointerSize)
		}
		m.encode(a.bytes[lo:hi], s.ptr.Offset)
		a.relocs[lo] = s.ptr
	default:
		m.encode(a.bytes[lo:hi], s.bits)
	}
	for i := lo; i < hi; i++ {
		a.init[i] = true
	}
	return nil
}

// ReadCStr reads bytes from ptr up to, not including, the first NUL.
func (m *Memory) ReadCStr(ptr Pointer) ([]byte, error) {
	a, err := m.check(ptr, 0)
	if err != nil {
		return nil, err
	}
	for end := ptr.Offset; end < a.Size(); end++ {
		if !a.init[end] {
			return nil, newError(ErrCodeUndefinedValue, "reading uninitialized byte at alloc%d+%d", a.ID, end)
		}
		if a.bytes[end] == 0 {
			return m.ReadBytes(ptr, end-ptr.Offset)
		}
	}
	return nil, newError(ErrCodeOutOfBounds, "string at %s is not NUL-terminated within its allocation", ptr)
}

// ReadWideStr reads u16 units from ptr up to, not including, the first 0.
func (m *Memory) ReadWideStr(ptr Pointer) ([]uint16, error) {
	var units []uint16
	for cur := ptr; ; cur = cur.WrappingOffset(2) {
		s, err := m.readScalar(cur, 2)
		if err != nil {
			if HasCode(err, ErrCodeOutOfBounds) {
				return nil, newError(ErrCodeOutOfBounds, "wide string at %s is not NUL-terminated within its allocation", ptr)
			}
			return nil, err
		}
		u, err := s.ToU16()
		if err != nil {
			return nil, err
		}
		if u == 0 {
			return units, nil
		}
		units = append(units, u)
	}
}

// FillRandom fills data from the seeded deterministic source.
func (m *Memory) FillRandom(data []byte) {
	// ChaCha8.Read never fails.
	_, _ = m.rng.Read(data)
}

func (m *Memory) encode(dst []byte, v uint64) {
	var buf [8]byte
	if m.order == binary.BigEndian {
		binary.BigEndian.PutUint64(buf[:], v)
		copy(dst, buf[8-len(dst):])
		return
	}
	binary.LittleEndian.PutUint64(buf[:], v)
	copy(dst, buf[:len(dst)])
}

func (m *Memory) decode(src []byte) uint64 {
	var buf [8]byte
	if m.order == binary.BigEndian {
		copy(buf[8-len(src):], src)
		return binary.BigEndian.Uint64(buf[:])
	}
	copy(buf[:], src)
	return binary.LittleEndian.Uint64(buf[:])
}

// relocIn reports the first stored pointer overlapping [lo, hi).
func (a *Allocation) relocIn(lo, hi, ptrSize uint64) (uint64, bool) {
	for off := range a.relocs {
		if off < hi && off+ptrSize > lo {
			return off, true
		}
	}
	return 0, false
}

func (a *Allocation) clearRelocs(lo, hi, ptrSize uint64) {
	for off := range a.relocs {
		if off < hi && off+ptrSize > lo {
			delete(a.relocs, off)
		}
	}
}
