package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tagvm/internal/ir"
	"github.com/roach88/tagvm/internal/osstr"
	"github.com/roach88/tagvm/internal/testutil"
)

// newTestMachine creates an isolated machine with a fixed run id.
func newTestMachine(t *testing.T, target ir.Target, opts ...Option) *Machine {
	t.Helper()
	opts = append([]Option{WithRunIDGenerator(NewFixedGenerator("run-test"))}, opts...)
	m, err := New(target, nil, opts...)
	require.NoError(t, err)
	return m
}

// requireBug runs fn and asserts it panics with a *Bug mentioning contains.
func requireBug(t *testing.T, contains string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a machine bug")
		b, ok := r.(*Bug)
		require.True(t, ok, "panic value %v is not *Bug", r)
		assert.Contains(t, b.Message, contains)
	}()
	fn()
}

// heapPlace allocates fresh storage for l.
func heapPlace(m *Machine, l *ir.Layout) Place {
	return Place{Ptr: m.Memory().Allocate(l.Size, l.Align, KindHeap), Layout: l}
}

func TestNew_RejectsInvalidTarget(t *testing.T) {
	target := testutil.UnixTarget()
	target.PointerSize = 3

	_, err := New(target, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid target")
}

func TestNew_Defaults(t *testing.T) {
	m := newTestMachine(t, testutil.UnixTarget())

	assert.True(t, m.Isolated())
	assert.Equal(t, "run-test", m.RunID())
	assert.Equal(t, uint64(8), m.PointerSize())
	assert.Equal(t, 0, m.StackDepth())
	assert.Nil(t, m.Frame())
	assert.Equal(t, osstr.Native().Name(), m.Host().Name())
}

func TestNew_Options(t *testing.T) {
	m := newTestMachine(t, testutil.UnixTarget(),
		WithCommunicate(true),
		WithHost(osstr.WideHost{}),
	)
	assert.False(t, m.Isolated())
	assert.Equal(t, osstr.ModelWide, m.Host().Name())
}

func TestNew_UsesProvidedRegistry(t *testing.T) {
	target := testutil.UnixTarget()
	reg := ir.NewRegistry(target.PointerSize)
	require.NoError(t, reg.Define(ir.NewStruct("Pair", 8, 4,
		ir.Field{Name: "a", Offset: 0, Layout: reg.MustLayout(ir.TypeU32)},
		ir.Field{Name: "b", Offset: 4, Layout: reg.MustLayout(ir.TypeU32)},
	)))

	m, err := New(target, reg, WithRunIDGenerator(NewFixedGenerator("r")))
	require.NoError(t, err)

	l, err := m.Types().Layout("Pair")
	require.NoError(t, err)
	assert.Equal(t, uint64(8), l.Size)
}

func TestDiagnostics_RecordedInOrder(t *testing.T) {
	sink := &MemorySink{}
	m := newTestMachine(t, testutil.UnixTarget(), WithDiagnostics(sink))

	require.Error(t, m.CheckNoIsolation("getenv"))
	_, err := m.GetLastError()
	require.Error(t, err)

	entries := sink.Entries()
	require.Len(t, entries, 2)

	assert.Equal(t, "run-test", entries[0].RunID)
	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Equal(t, ErrCodeUnsupportedInIsolation, entries[0].Code)
	assert.Equal(t, "getenv", entries[0].Op)
	assert.False(t, entries[0].Fatal)

	assert.Equal(t, int64(2), entries[1].Seq)
	assert.Equal(t, ErrCodeUndefinedValue, entries[1].Code)
	assert.Equal(t, "read_scalar", entries[1].Op)
}

func TestDiagnostics_NoSinkIsFine(t *testing.T) {
	m := newTestMachine(t, testutil.UnixTarget())
	err := m.CheckNoIsolation("getenv")
	assert.True(t, IsUnsupportedInIsolation(err))
}
