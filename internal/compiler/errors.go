package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError is a positioned error raised while turning CUE into target
// descriptions or type declarations. Field is the dotted CUE path of the
// offending value, or "cue" when evaluation failed before reaching one.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if !e.Pos.IsValid() {
		return e.Field + ": " + e.Message
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s",
		e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
}

// formatCUEError converts the first error of a CUE error list into a
// CompileError when it carries a position. Unpositioned errors pass through.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	list := errors.Errors(err)
	if len(list) == 0 {
		return err
	}

	first := list[0]
	pos := errors.Positions(first)
	if len(pos) == 0 {
		return err
	}

	field := strings.Join(first.Path(), ".")
	if field == "" {
		field = "cue"
	}
	format, args := first.Msg()
	return &CompileError{Field: field, Message: fmt.Sprintf(format, args...), Pos: pos[0]}
}
