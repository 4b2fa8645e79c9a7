package machine

import (
	"errors"
	"fmt"
)

// MachineError represents a recoverable error detected while executing
// guest memory operations.
//
// Errors fall into two classes:
//   - Guest-triggerable: undefined reads, bad encodings, unsupported
//     operations. Surfaced to the shim layer as ordinary results.
//   - Internal consistency: layout mismatches and bad projections. These
//     indicate a bug in the dispatch layer; Fatal() reports true and the
//     current evaluation step must be abandoned.
//
// Invariant violations inside the machine itself are not errors at all;
// they panic with *Bug.
type MachineError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Op names the machine operation that failed, when known.
	Op string

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes machine errors.
type ErrorCode string

const (
	// ErrCodeUndefinedValue indicates a read of uninitialized memory.
	ErrCodeUndefinedValue ErrorCode = "UNDEFINED_VALUE"

	// ErrCodeLayoutMismatch indicates a value does not fit the target layout.
	ErrCodeLayoutMismatch ErrorCode = "LAYOUT_MISMATCH"

	// ErrCodeIndexOutOfRange indicates a field or local index beyond the layout.
	ErrCodeIndexOutOfRange ErrorCode = "INDEX_OUT_OF_RANGE"

	// ErrCodeInvalidEncoding indicates guest bytes that do not decode.
	ErrCodeInvalidEncoding ErrorCode = "INVALID_ENCODING"

	// ErrCodeUnsupportedTarget indicates the target family lacks the capability.
	ErrCodeUnsupportedTarget ErrorCode = "UNSUPPORTED_TARGET"

	// ErrCodeUnsupportedOperation indicates an operation the machine cannot perform.
	ErrCodeUnsupportedOperation ErrorCode = "UNSUPPORTED_OPERATION"

	// ErrCodeUnsupportedInIsolation indicates host interaction while isolated.
	ErrCodeUnsupportedInIsolation ErrorCode = "UNSUPPORTED_IN_ISOLATION"

	// ErrCodeProvenanceViolation indicates use of a dangling, freed, or
	// invalidated pointer tag.
	ErrCodeProvenanceViolation ErrorCode = "PROVENANCE_VIOLATION"

	// ErrCodeOutOfBounds indicates an access outside its allocation.
	ErrCodeOutOfBounds ErrorCode = "OUT_OF_BOUNDS"

	// ErrCodeUnresolvedPath indicates a symbolic path with no definition.
	ErrCodeUnresolvedPath ErrorCode = "UNRESOLVED_PATH"

	// ErrCodeStackExhausted indicates the frame depth quota was exceeded.
	ErrCodeStackExhausted ErrorCode = "STACK_EXHAUSTED"
)

// Error implements the error interface.
func (e *MachineError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, e.Message, e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Fatal reports whether the error signals an internal-consistency problem
// in the caller rather than a guest program defect.
func (e *MachineError) Fatal() bool {
	switch e.Code {
	case ErrCodeLayoutMismatch, ErrCodeIndexOutOfRange, ErrCodeUnresolvedPath:
		return true
	default:
		return false
	}
}

func newError(code ErrorCode, format string, args ...any) *MachineError {
	return &MachineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *MachineError) withOp(op string) *MachineError {
	e.Op = op
	return e
}

// HasCode reports whether err wraps a MachineError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var me *MachineError
	if errors.As(err, &me) {
		return me.Code == code
	}
	return false
}

// IsUndefinedValue returns true if err is an undefined-value read.
func IsUndefinedValue(err error) bool { return HasCode(err, ErrCodeUndefinedValue) }

// IsInvalidEncoding returns true if err is a string decoding failure.
func IsInvalidEncoding(err error) bool { return HasCode(err, ErrCodeInvalidEncoding) }

// IsUnsupportedInIsolation returns true if err was caused by isolation mode.
func IsUnsupportedInIsolation(err error) bool { return HasCode(err, ErrCodeUnsupportedInIsolation) }

// IsProvenanceViolation returns true if err is a pointer provenance violation.
func IsProvenanceViolation(err error) bool { return HasCode(err, ErrCodeProvenanceViolation) }

// IsFatal returns true if err carries an internal-consistency MachineError.
func IsFatal(err error) bool {
	var me *MachineError
	return errors.As(err, &me) && me.Fatal()
}

// Bug is the panic value for violated machine invariants. It terminates
// interpretation; recovering from it is only meaningful in tests.
type Bug struct {
	Message string
}

func (b *Bug) Error() string {
	return "machine invariant violated: " + b.Message
}

func bug(format string, args ...any) {
	panic(&Bug{Message: fmt.Sprintf(format, args...)})
}
