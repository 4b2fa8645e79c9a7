package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/tagvm/internal/compiler"
	"github.com/roach88/tagvm/internal/ir"
	"github.com/roach88/tagvm/internal/machine"
	"github.com/roach88/tagvm/internal/osstr"
	"github.com/roach88/tagvm/internal/store"
)

// RunID is the fixed run identifier every scenario executes under, so
// traces and diagnostics are reproducible.
const RunID = "scenario-run"

// Harness executes scenario steps against one machine.
type Harness struct {
	m     *machine.Machine
	types *ir.Registry
	host  osstr.Host
	seq   int64
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh machine with a fresh in-memory diagnostics
// store. Machine errors raised by a step are recorded in the trace; only
// setup failures are returned as errors.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	target, err := compiler.LoadTarget(scenario.Target)
	if err != nil {
		return nil, err
	}
	types, err := compiler.BuildRegistry(target, scenario.Types)
	if err != nil {
		return nil, fmt.Errorf("failed to declare types: %w", err)
	}
	host, err := osstr.ByName(scenario.Host)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	run := store.Run{
		ID:        RunID,
		Target:    target.Name,
		Host:      host.Name(),
		Isolation: true,
		Seed:      scenario.Seed,
	}
	if err := st.WriteRun(ctx, run); err != nil {
		return nil, err
	}

	m, err := machine.New(*target, types,
		machine.WithHost(host),
		machine.WithSeed(scenario.Seed),
		machine.WithDiagnostics(store.NewSink(ctx, st)),
		machine.WithRunIDGenerator(machine.NewFixedGenerator(RunID)),
	)
	if err != nil {
		return nil, err
	}

	h := &Harness{m: m, types: types, host: host}
	result := NewResult()
	result.RunID = m.RunID()

	for i, step := range scenario.Steps {
		event, err := h.execute(step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d] (%s): %w", i, step.Kind, err)
		}
		slog.Debug("scenario step", "scenario", scenario.Name, "seq", event.Seq, "kind", event.Kind, "error", event.Error)
		result.Trace = append(result.Trace, event)
	}

	if result.Diagnostics, err = st.ReadDiagnostics(ctx, RunID); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// execute runs one step. Machine errors become the event's Error.
func (h *Harness) execute(step Step) (TraceEvent, error) {
	h.seq++
	event := TraceEvent{Seq: h.seq, Kind: step.Kind}

	var err error
	switch step.Kind {
	case StepRegions:
		event.Type = step.Type
		event.Regions, err = h.regions(step.Type)
	case StepCStrRoundTrip:
		event.Input = step.Value
		err = h.cStrRoundTrip(step, &event)
	case StepWideStrRoundTrip:
		event.Input = step.Value
		err = h.wideStrRoundTrip(step, &event)
	case StepPathToTarget:
		event.Input = step.Value
		err = h.pathToTarget(step, &event)
	case StepPathToHost:
		event.Input = step.Value
		err = h.pathToHost(step, &event)
	default:
		return event, fmt.Errorf("unknown step kind %q", step.Kind)
	}

	var me *machine.MachineError
	switch {
	case err == nil:
	case errors.As(err, &me):
		event.Error = string(me.Code)
	default:
		return event, err
	}
	return event, nil
}

func (h *Harness) regions(typeName string) ([]Region, error) {
	l, err := h.types.Layout(ir.TypeID(typeName))
	if err != nil {
		return nil, err
	}
	base := h.m.Memory().Allocate(l.Size, l.Align, machine.KindHeap)

	regions := []Region{}
	err = h.m.VisitFreezeSensitive(machine.Place{Ptr: base, Layout: l}, l.Size,
		func(ptr machine.Pointer, size uint64, frozen bool) error {
			regions = append(regions, Region{Offset: ptr.Offset - base.Offset, Size: size, Frozen: frozen})
			return nil
		})
	return regions, err
}

func (h *Harness) cStrRoundTrip(step Step, event *TraceEvent) error {
	s := osstr.FromString(h.host, step.Value)
	capacity := step.Capacity
	if capacity == 0 {
		b, err := s.Bytes()
		if err != nil {
			return err
		}
		capacity = uint64(len(b)) + 1
	}
	buf := h.m.Memory().Allocate(capacity, 1, machine.KindHeap)

	fits, n, err := h.m.WriteOsStrToCStr(s, h.m.PointerScalar(buf), capacity)
	event.Fits, event.Len = fits, n
	if err != nil || !fits {
		return err
	}
	back, err := h.m.ReadOsStrFromCStr(h.m.PointerScalar(buf))
	if err != nil {
		return err
	}
	event.Value = back.String()
	return nil
}

func (h *Harness) wideStrRoundTrip(step Step, event *TraceEvent) error {
	s := osstr.FromString(h.host, step.Value)
	capacity := step.Capacity
	if capacity == 0 {
		units, err := s.Units()
		if err != nil {
			return err
		}
		capacity = uint64(len(units)) + 1
	}
	place := h.m.WideStrPlace(machine.Pointer{}, capacity)
	place.Ptr = h.m.Memory().Allocate(place.Layout.Size, place.Layout.Align, machine.KindHeap)

	fits, n, err := h.m.WriteOsStrToWideStr(s, place, capacity)
	event.Fits, event.Len = fits, n
	if err != nil || !fits {
		return err
	}
	back, err := h.m.ReadOsStrFromWideStr(h.m.PointerScalar(place.Ptr))
	if err != nil {
		return err
	}
	event.Value = back.String()
	return nil
}

// pathToTarget writes a host path into a guest buffer in the target's
// encoding and reports the raw guest string.
func (h *Harness) pathToTarget(step Step, event *TraceEvent) error {
	s := osstr.FromString(h.host, step.Value)
	capacity := step.Capacity
	if capacity == 0 {
		n, err := targetLen(h.m.Target().Family, s)
		if err != nil {
			return err
		}
		capacity = n + 1
	}
	// Two bytes per unit covers both encodings.
	buf := h.m.Memory().Allocate(2*capacity, 2, machine.KindHeap)

	fits, n, err := h.m.WritePathToTargetStr(s, buf, capacity)
	event.Fits, event.Len = fits, n
	if err != nil || !fits {
		return err
	}
	raw, err := h.m.ReadOsStrFromTargetStr(h.m.PointerScalar(buf))
	if err != nil {
		return err
	}
	event.Value = raw.String()
	return nil
}

// pathToHost places a guest path in target memory and reads it back as a
// host path.
func (h *Harness) pathToHost(step Step, event *TraceEvent) error {
	ptr, err := h.m.AllocOsStrAsTargetStr(osstr.FromString(h.host, step.Value), machine.KindHeap)
	if err != nil {
		return err
	}
	hostPath, err := h.m.ReadPathFromTargetStr(h.m.PointerScalar(ptr))
	if err != nil {
		return err
	}
	event.Value = hostPath.String()
	return nil
}

// targetLen is the length of s in the units the target family stores.
func targetLen(family ir.Family, s osstr.OsString) (uint64, error) {
	if family == ir.FamilyWindows {
		units, err := s.Units()
		return uint64(len(units)), err
	}
	b, err := s.Bytes()
	return uint64(len(b)), err
}
