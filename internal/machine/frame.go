package machine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/tagvm/internal/ir"
)

// CleanupKind selects what happens when a frame is popped.
type CleanupKind uint8

const (
	// CleanupGoto resumes the caller at ReturnBlock after the return value
	// is copied to the destination.
	CleanupGoto CleanupKind = iota
	// CleanupNone leaves the caller's location alone.
	CleanupNone
)

// StackPopCleanup is the policy applied to a frame when it returns.
type StackPopCleanup struct {
	Kind CleanupKind

	// ReturnBlock is the caller block to resume at, for CleanupGoto.
	ReturnBlock int

	// KeepLocals leaks the frame's local allocations instead of freeing
	// them, for CleanupNone.
	KeepLocals bool
}

// Goto returns a cleanup that resumes the caller at block.
func Goto(block int) StackPopCleanup {
	return StackPopCleanup{Kind: CleanupGoto, ReturnBlock: block}
}

// SourceLoc is the current execution position inside a frame.
type SourceLoc struct {
	Block     int
	Statement int
	Span      string
}

// DummySpan marks frames pushed without a calling frame.
const DummySpan = "<dummy>"

// Frame is one activation record.
type Frame struct {
	Body   *ir.Body
	Locals []Place

	// ReturnPlace receives local 0 when the frame is popped. nil discards
	// the return value.
	ReturnPlace *Place
	Cleanup     StackPopCleanup

	// CallSpan is the source location of the call that pushed this frame.
	CallSpan string
	Loc      SourceLoc
}

// LocalPlace returns the place backing local.
func (f *Frame) LocalPlace(local int) (Place, error) {
	if local < 0 || local >= len(f.Locals) {
		return Place{}, newError(ErrCodeIndexOutOfRange,
			"local %d out of range for %s with %d locals", local, f.Body.Name, len(f.Locals))
	}
	return f.Locals[local], nil
}

// StackQuota tracks frame depth against a limit.
type StackQuota struct {
	maxDepth int
}

// NewStackQuota creates a quota allowing maxDepth live frames.
func NewStackQuota(maxDepth int) *StackQuota {
	return &StackQuota{maxDepth: maxDepth}
}

// Check validates that one more frame fits on a stack of depth frames.
func (q *StackQuota) Check(depth int, callee string) error {
	if depth+1 > q.maxDepth {
		return &MachineError{
			Code:    ErrCodeStackExhausted,
			Message: fmt.Sprintf("pushing %s exceeds the maximum stack depth of %d", callee, q.maxDepth),
			Details: map[string]string{"depth": fmt.Sprint(depth), "limit": fmt.Sprint(q.maxDepth)},
		}
	}
	return nil
}

// MaxDepth returns the frame limit.
func (q *StackQuota) MaxDepth() int { return q.maxDepth }

// Frame returns the topmost frame, or nil on an empty stack.
func (m *Machine) Frame() *Frame {
	if len(m.stack) == 0 {
		return nil
	}
	return m.stack[len(m.stack)-1]
}

// StackDepth returns the number of live frames.
func (m *Machine) StackDepth() int { return len(m.stack) }

// PushFrame allocates storage for every local of body and makes the new
// frame topmost. Locals start out uninitialized.
func (m *Machine) PushFrame(body *ir.Body, span string, dest *Place, cleanup StackPopCleanup) (*Frame, error) {
	if err := m.quota.Check(len(m.stack), body.Name); err != nil {
		return nil, m.surface("push_frame", err)
	}
	f := &Frame{
		Body:        body,
		Locals:      make([]Place, len(body.Locals)),
		ReturnPlace: dest,
		Cleanup:     cleanup,
		CallSpan:    span,
	}
	for i, local := range body.Locals {
		ptr := m.mem.Allocate(local.Layout.Size, local.Layout.Align, KindStack)
		f.Locals[i] = Place{Ptr: ptr, Layout: local.Layout}
	}
	m.stack = append(m.stack, f)
	slog.Debug("push frame", "body", body.Name, "depth", len(m.stack), "span", span)
	return f, nil
}

// PopFrame removes the topmost frame, copying its return local to the
// destination and applying its cleanup policy.
func (m *Machine) PopFrame() error {
	f := m.Frame()
	if f == nil {
		bug("pop of an empty stack")
	}
	if f.ReturnPlace != nil && len(f.Locals) > 0 {
		ret := f.Locals[ir.ReturnLocal]
		if ret.Layout.Size != f.ReturnPlace.Layout.Size {
			return m.surface("pop_frame", newError(ErrCodeLayoutMismatch,
				"return value %s copied to %s", ret.Layout, f.ReturnPlace.Layout))
		}
		if err := m.mem.Copy(ret.Ptr, f.ReturnPlace.Ptr, ret.Layout.Size); err != nil {
			return m.surface("pop_frame", err)
		}
	}
	if f.Cleanup.Kind == CleanupGoto || !f.Cleanup.KeepLocals {
		for _, l := range f.Locals {
			if err := m.mem.Deallocate(l.Ptr); err != nil {
				return m.surface("pop_frame", err)
			}
		}
	}
	m.stack = m.stack[:len(m.stack)-1]
	if caller := m.Frame(); caller != nil && f.Cleanup.Kind == CleanupGoto {
		caller.Loc = SourceLoc{Block: f.Cleanup.ReturnBlock, Span: caller.Loc.Span}
	}
	slog.Debug("pop frame", "body", f.Body.Name, "depth", len(m.stack))
	return nil
}
