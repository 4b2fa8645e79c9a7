package machine

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"

	"github.com/roach88/tagvm/internal/ir"
	"github.com/roach88/tagvm/internal/osstr"
)

// DefaultMaxStackDepth bounds the call stack unless WithMaxStackDepth
// overrides it.
const DefaultMaxStackDepth = 1000

// Machine is the abstract machine state shared by all helpers: guest
// memory, the call stack, the target description, and host settings.
//
// A Machine is single-threaded. Callers must not invoke its methods from
// more than one goroutine at a time.
type Machine struct {
	target ir.Target
	types  *ir.Registry
	mem    *Memory
	host   osstr.Host

	stack []*Frame
	quota *StackQuota

	bodies      BodyProvider
	communicate bool
	entropy     io.Reader
	seed        uint64

	lastError Place

	clock *Clock
	runID string
	runs  RunIDGenerator
	diag  DiagnosticSink
}

// Option configures a Machine.
type Option func(*Machine)

// WithCommunicate disables isolation, letting shims reach the host
// (entropy, environment).
func WithCommunicate(on bool) Option {
	return func(m *Machine) {
		m.communicate = on
	}
}

// WithSeed seeds the deterministic random source used while isolated.
func WithSeed(seed uint64) Option {
	return func(m *Machine) {
		m.seed = seed
	}
}

// WithHost sets the host string model. Default: osstr.Native().
func WithHost(h osstr.Host) Option {
	return func(m *Machine) {
		m.host = h
	}
}

// WithEntropy replaces the host entropy source used when communication is
// enabled. Default: crypto/rand.
func WithEntropy(r io.Reader) Option {
	return func(m *Machine) {
		m.entropy = r
	}
}

// WithBodies sets the function-body lookup used by CallFunction.
func WithBodies(b BodyProvider) Option {
	return func(m *Machine) {
		m.bodies = b
	}
}

// WithDiagnostics routes machine errors to sink as they are surfaced.
func WithDiagnostics(sink DiagnosticSink) Option {
	return func(m *Machine) {
		m.diag = sink
	}
}

// WithMaxStackDepth bounds the number of live frames.
func WithMaxStackDepth(depth int) Option {
	return func(m *Machine) {
		m.quota = NewStackQuota(depth)
	}
}

// WithRunIDGenerator sets the run id source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(m *Machine) {
		m.runs = g
	}
}

// New creates a Machine for target. types supplies layouts; when nil a
// registry with only the builtin scalars is used.
func New(target ir.Target, types *ir.Registry, opts ...Option) (*Machine, error) {
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("invalid target: %w", err)
	}
	if types == nil {
		types = ir.NewRegistry(target.PointerSize)
	}

	m := &Machine{
		target:  target,
		types:   types,
		host:    osstr.Native(),
		quota:   NewStackQuota(DefaultMaxStackDepth),
		bodies:  Bodies{},
		entropy: rand.Reader,
		clock:   NewClock(),
		runs:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(m)
	}

	m.mem = NewMemory(target.PointerSize, target.ByteOrder(), m.seed)
	m.runID = m.runs.Generate()

	i32 := types.MustLayout(ir.TypeI32)
	m.lastError = Place{Ptr: m.mem.Allocate(i32.Size, i32.Align, KindStatic), Layout: i32}

	slog.Debug("machine created",
		"run_id", m.runID,
		"target", target.Name,
		"host", m.host.Name(),
		"communicate", m.communicate,
	)
	return m, nil
}

// Target returns the simulated platform description.
func (m *Machine) Target() ir.Target { return m.target }

// Types returns the layout registry.
func (m *Machine) Types() *ir.Registry { return m.types }

// Memory returns guest memory.
func (m *Machine) Memory() *Memory { return m.mem }

// Host returns the host string model.
func (m *Machine) Host() osstr.Host { return m.host }

// RunID returns the identifier stamped on this run's diagnostics.
func (m *Machine) RunID() string { return m.runID }

// Isolated reports whether host interaction is disabled.
func (m *Machine) Isolated() bool { return !m.communicate }

// PointerSize returns the target pointer width in bytes.
func (m *Machine) PointerSize() uint64 { return m.target.PointerSize }

// NullPointer returns the integer null scalar of pointer width.
func (m *Machine) NullPointer() Scalar {
	return FromUint(0, m.target.PointerSize)
}

// PointerScalar wraps p as a pointer-width scalar.
func (m *Machine) PointerScalar(p Pointer) Scalar {
	return FromPointer(p, m.target.PointerSize)
}

// surface tags err with op and reports it to the diagnostic sink when it
// is a MachineError.
func (m *Machine) surface(op string, err error) error {
	if err == nil {
		return nil
	}
	var me *MachineError
	if !errors.As(err, &me) {
		return err
	}
	if me.Op == "" {
		me.withOp(op)
	}
	slog.Debug("machine error", "op", me.Op, "code", string(me.Code), "message", me.Message)
	if m.diag != nil {
		m.diag.Record(Diagnostic{
			RunID:   m.runID,
			Seq:     m.clock.Next(),
			Code:    me.Code,
			Op:      me.Op,
			Message: me.Message,
			Fatal:   me.Fatal(),
			Details: maps.Clone(me.Details),
		})
	}
	return me
}
