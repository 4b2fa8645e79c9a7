package machine

import (
	"log/slog"

	"github.com/roach88/tagvm/internal/ir"
)

// BodyProvider resolves a function instance to its body.
type BodyProvider interface {
	Body(instance string) (*ir.Body, error)
}

// Bodies is a map-backed BodyProvider.
type Bodies map[string]*ir.Body

// Body returns the body registered for instance.
func (b Bodies) Body(instance string) (*ir.Body, error) {
	body, ok := b[instance]
	if !ok {
		return nil, newError(ErrCodeUnresolvedPath, "no body for function %s", instance)
	}
	return body, nil
}

// CallFunction pushes a frame for target and writes args into its
// parameter locals in positional order. Execution of the body is left to
// the caller's step loop.
//
// The argument count must equal the callee's parameter count; any
// mismatch is a machine bug.
func (m *Machine) CallFunction(target string, args []Scalar, dest *Place, cleanup StackPopCleanup) error {
	body, err := m.bodies.Body(target)
	if err != nil {
		return m.surface("call_function", err)
	}

	span := DummySpan
	if caller := m.Frame(); caller != nil && caller.Loc.Span != "" {
		span = caller.Loc.Span
	}

	params := body.Args()
	switch {
	case len(args) > len(params):
		bug("callee %s has fewer arguments than expected", target)
	case len(args) < len(params):
		bug("callee %s has more arguments than expected", target)
	}

	frame, err := m.PushFrame(body, span, dest, cleanup)
	if err != nil {
		return err
	}

	for i, arg := range args {
		place, err := frame.LocalPlace(params[i])
		if err != nil {
			return m.surface("call_function", err)
		}
		if err := m.WriteScalar(arg, place); err != nil {
			return err
		}
	}

	slog.Debug("call function", "target", target, "args", len(args), "span", span)
	return nil
}
