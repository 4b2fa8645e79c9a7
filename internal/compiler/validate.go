package compiler

import (
	"fmt"
	"slices"

	"github.com/roach88/tagvm/internal/ir"
	"github.com/roach88/tagvm/internal/machine"
)

// Validation error codes (E100-E199)
const (
	ErrTargetNameEmpty      = "E101" // target name is required
	ErrTargetPointerSize    = "E102" // pointer size must be 2, 4, or 8
	ErrTargetSeparator      = "E103" // separator does not match the family
	ErrTargetMissingLibc    = "E104" // unix target lacks a required libc constant
	ErrTargetUnknownLibcTyp = "E105" // libc type refers to an unknown builtin
	ErrTargetFamily         = "E106" // unknown target family
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidateTarget checks a compiled target against the rules the machine
// relies on. Returns all errors found (does not fail-fast).
func ValidateTarget(t *ir.Target) []ValidationError {
	var errs []ValidationError

	if t.Name == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "target name is required",
			Code:    ErrTargetNameEmpty,
		})
	}

	switch t.PointerSize {
	case 2, 4, 8:
	default:
		errs = append(errs, ValidationError{
			Field:   "pointer_size",
			Message: fmt.Sprintf("unsupported pointer size %d", t.PointerSize),
			Code:    ErrTargetPointerSize,
		})
	}

	switch t.Family {
	case ir.FamilyUnix:
		if t.PathSeparator != '/' {
			errs = append(errs, separatorError(t, '/'))
		}
		for _, name := range machine.RequiredLibcConstants() {
			if _, ok := t.Libc[name]; !ok {
				errs = append(errs, ValidationError{
					Field:   "libc." + name,
					Message: fmt.Sprintf("unix target %s must define %s", t.Name, name),
					Code:    ErrTargetMissingLibc,
				})
			}
		}
	case ir.FamilyWindows:
		if t.PathSeparator != '\\' {
			errs = append(errs, separatorError(t, '\\'))
		}
	case "wasi":
	default:
		errs = append(errs, ValidationError{
			Field:   "family",
			Message: fmt.Sprintf("unknown family %q", t.Family),
			Code:    ErrTargetFamily,
		})
	}

	// Check libc types against the builtins every registry carries
	builtins := ir.NewRegistry(8).IDs()
	names := make([]string, 0, len(t.LibcTypes))
	for name := range t.LibcTypes {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if !slices.Contains(builtins, t.LibcTypes[name]) {
			errs = append(errs, ValidationError{
				Field:   "libc_types." + name,
				Message: fmt.Sprintf("unknown type %q", t.LibcTypes[name]),
				Code:    ErrTargetUnknownLibcTyp,
			})
		}
	}

	return errs
}

func separatorError(t *ir.Target, want byte) ValidationError {
	return ValidationError{
		Field:   "path_separator",
		Message: fmt.Sprintf("%s targets use %q, got %q", t.Family, want, t.PathSeparator),
		Code:    ErrTargetSeparator,
	}
}
