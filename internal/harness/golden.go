package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tagvm/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	Target       string
	Trace        []TraceEvent
	Diagnostics  []Diagnostic
}

// Diagnostic is the golden view of a recorded diagnostic. Messages are
// left out so wording changes do not churn golden files.
type Diagnostic struct {
	Seq  int64
	Code string
	Op   string
}

// NewTraceSnapshot builds the snapshot of a result.
func NewTraceSnapshot(scenario *Scenario, result *Result) TraceSnapshot {
	diags := make([]Diagnostic, len(result.Diagnostics))
	for i, d := range result.Diagnostics {
		diags[i] = Diagnostic{Seq: d.Seq, Code: string(d.Code), Op: d.Op}
	}
	return TraceSnapshot{
		ScenarioName: scenario.Name,
		Target:       scenario.Target,
		Trace:        result.Trace,
		Diagnostics:  diags,
	}
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization. Empty optional fields are left out.
func (s TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"seq":  event.Seq,
			"kind": event.Kind,
		}
		if event.Type != "" {
			eventMap["type"] = event.Type
			regions := make([]any, len(event.Regions))
			for j, r := range event.Regions {
				regions[j] = map[string]any{
					"offset": r.Offset,
					"size":   r.Size,
					"frozen": r.Frozen,
				}
			}
			eventMap["regions"] = regions
		}
		if event.Kind != StepRegions {
			eventMap["input"] = event.Input
		}
		if event.Fits {
			eventMap["fits"] = true
		}
		if event.Len != 0 {
			eventMap["len"] = event.Len
		}
		if event.Value != "" {
			eventMap["value"] = event.Value
		}
		if event.Error != "" {
			eventMap["error"] = event.Error
		}
		traceList[i] = eventMap
	}

	diagList := make([]any, len(s.Diagnostics))
	for i, d := range s.Diagnostics {
		diagList[i] = map[string]any{
			"seq":  d.Seq,
			"code": d.Code,
			"op":   d.Op,
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"target":        s.Target,
		"trace":         traceList,
		"diagnostics":   diagList,
	}
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails or an assertion does not hold.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against the scenario's golden file.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	snapshot := NewTraceSnapshot(scenario, result)
	traceJSON, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)
	return nil
}
