package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tagvm/internal/ir"
)

// Scenario defines a machine conformance scenario: a target, a host string
// model, some type declarations, and the steps to run against them.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Target names a built-in target (see compiler.TargetNames).
	Target string `yaml:"target"`

	// Host selects the host string model: "narrow" or "wide". Scenarios
	// must name one so traces do not depend on the platform running them.
	Host string `yaml:"host"`

	// Seed feeds the machine's deterministic RNG.
	Seed uint64 `yaml:"seed,omitempty"`

	// Types declares the layouts used by regions steps.
	Types []ir.TypeDecl `yaml:"types,omitempty"`

	// Steps run in order; each produces one trace event.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one machine operation.
type Step struct {
	// Kind is one of the Step* constants.
	Kind string `yaml:"kind"`

	// Type names the layout a regions step visits.
	Type string `yaml:"type,omitempty"`

	// Value is the host string a string or path step starts from.
	Value string `yaml:"value,omitempty"`

	// Capacity is the destination buffer size in target units. Zero means
	// exactly enough for Value and its terminator.
	Capacity uint64 `yaml:"capacity,omitempty"`
}

// Step kinds.
const (
	StepRegions          = "regions"
	StepCStrRoundTrip    = "c_str_roundtrip"
	StepWideStrRoundTrip = "wide_str_roundtrip"
	StepPathToTarget     = "path_to_target"
	StepPathToHost       = "path_to_host"
)

// Assertion validates the trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a step of Kind produced Value (or Error)
	// - "trace_order": step kinds appear in order
	// - "trace_count": Kind appears exactly Count times
	// - "diagnostic_count": the run recorded exactly Count diagnostics
	Type string `yaml:"type"`

	Kind  string   `yaml:"kind,omitempty"`
	Value string   `yaml:"value,omitempty"`
	Error string   `yaml:"error,omitempty"`
	Count int      `yaml:"count,omitempty"`
	Kinds []string `yaml:"kinds,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains   = "trace_contains"
	AssertTraceOrder      = "trace_order"
	AssertTraceCount      = "trace_count"
	AssertDiagnosticCount = "diagnostic_count"
)

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes scenario YAML. Unknown fields are errors so typos
// in hand-written scenarios surface at load time.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := scenario.validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// stepRules maps each step kind to its field check. A nil check means the
// kind needs nothing beyond Kind.
var stepRules = map[string]func(Step) error{
	StepRegions: func(s Step) error {
		if s.Type == "" {
			return errors.New("type is required for regions")
		}
		return nil
	},
	StepCStrRoundTrip:    nil,
	StepWideStrRoundTrip: nil,
	StepPathToTarget:     nil,
	StepPathToHost:       nil,
}

// assertionRules maps each assertion type to its field check.
var assertionRules = map[string]func(Assertion) error{
	AssertTraceContains: func(a Assertion) error {
		return requireKind(a, AssertTraceContains)
	},
	AssertTraceOrder: func(a Assertion) error {
		if len(a.Kinds) == 0 {
			return errors.New("kinds list is required for trace_order")
		}
		return nil
	},
	AssertTraceCount: func(a Assertion) error {
		if err := requireKind(a, AssertTraceCount); err != nil {
			return err
		}
		return nonNegativeCount(a, AssertTraceCount)
	},
	AssertDiagnosticCount: func(a Assertion) error {
		return nonNegativeCount(a, AssertDiagnosticCount)
	},
}

func requireKind(a Assertion, typ string) error {
	if a.Kind == "" {
		return fmt.Errorf("kind is required for %s", typ)
	}
	return nil
}

func nonNegativeCount(a Assertion, typ string) error {
	if a.Count < 0 {
		return fmt.Errorf("count must be non-negative for %s", typ)
	}
	return nil
}

func (s *Scenario) validate() error {
	switch {
	case s.Name == "":
		return errors.New("name is required")
	case s.Target == "":
		return errors.New("target is required")
	case s.Host == "":
		return errors.New("host is required")
	case len(s.Steps) == 0:
		return errors.New("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Kind == "" {
			return fmt.Errorf("steps[%d]: kind is required", i)
		}
		check, ok := stepRules[step.Kind]
		if !ok {
			return fmt.Errorf("steps[%d]: unknown step kind %q", i, step.Kind)
		}
		if check == nil {
			continue
		}
		if err := check(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if a.Type == "" {
			return fmt.Errorf("assertions[%d]: type is required", i)
		}
		check, ok := assertionRules[a.Type]
		if !ok {
			return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
		}
		if err := check(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}
