package harness

import "github.com/roach88/tagvm/internal/machine"

// Region is one contiguous range reported by the freeze-sensitive visitor,
// relative to the start of the visited value.
type Region struct {
	Offset uint64 `json:"offset"`
	Size   uint64 `json:"size"`
	Frozen bool   `json:"frozen"`
}

// TraceEvent records the outcome of one step.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Kind string `json:"kind"`

	// Type is the visited layout (regions steps).
	Type    string   `json:"type,omitempty"`
	Regions []Region `json:"regions,omitempty"`

	// Input is the host string a string or path step started from.
	Input string `json:"input,omitempty"`

	// Fits and Len report the write into the guest buffer; Len is in target
	// units and excludes the terminator.
	Fits bool   `json:"fits,omitempty"`
	Len  uint64 `json:"len,omitempty"`

	// Value is what came back: the string read from guest memory for
	// round trips and path_to_target, the host path for path_to_host.
	Value string `json:"value,omitempty"`

	// Error is the machine error code when the step failed.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every assertion held.
	Pass bool `json:"pass"`

	// RunID identifies the machine instance that produced the trace.
	RunID string `json:"run_id"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Diagnostics are the errors the machine surfaced, read back from the
	// diagnostics store in sequence order.
	Diagnostics []machine.Diagnostic `json:"diagnostics"`

	// Errors contains assertion failure messages.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Trace:       []TraceEvent{},
		Diagnostics: []machine.Diagnostic{},
		Errors:      []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
