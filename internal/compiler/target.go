package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/tagvm/internal/ir"
)

// CompileTarget parses a CUE value into a Target.
//
// The CUE value should be the target struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`target: "x86_64-linux": { ... }`)
//	t, err := CompileTarget(v.LookupPath(cue.MakePath(cue.Str("target"), cue.Str("x86_64-linux"))))
func CompileTarget(v cue.Value) (*ir.Target, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	t := &ir.Target{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		t.Name = labels[len(labels)-1].Unquoted()
	}

	var err error
	if t.OS, err = requiredString(v, "os"); err != nil {
		return nil, err
	}
	family, err := requiredString(v, "family")
	if err != nil {
		return nil, err
	}
	t.Family = ir.Family(family)

	sizeVal := v.LookupPath(cue.ParsePath("pointer_size"))
	if !sizeVal.Exists() {
		return nil, &CompileError{Field: "pointer_size", Message: "pointer_size is required", Pos: v.Pos()}
	}
	size, err := sizeVal.Uint64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	t.PointerSize = size

	endian, err := optionalString(v, "endian", "little")
	if err != nil {
		return nil, err
	}
	switch endian {
	case "little":
	case "big":
		t.BigEndian = true
	default:
		return nil, &CompileError{Field: "endian", Message: fmt.Sprintf("unknown endianness %q", endian), Pos: v.Pos()}
	}

	sep, err := optionalString(v, "path_separator", "/")
	if err != nil {
		return nil, err
	}
	if len(sep) != 1 {
		return nil, &CompileError{Field: "path_separator", Message: fmt.Sprintf("path separator must be one byte, got %q", sep), Pos: v.Pos()}
	}
	t.PathSeparator = sep[0]

	if t.Libc, err = parseLibc(v); err != nil {
		return nil, err
	}
	if t.LibcTypes, err = parseLibcTypes(v); err != nil {
		return nil, err
	}
	return t, nil
}

// parseLibc extracts the libc constant table.
func parseLibc(v cue.Value) (map[string]int64, error) {
	consts := make(map[string]int64)
	libcVal := v.LookupPath(cue.ParsePath("libc"))
	if !libcVal.Exists() {
		return consts, nil
	}
	iter, err := libcVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		n, err := iter.Value().Int64()
		if err != nil {
			return nil, &CompileError{
				Field:   "libc." + iter.Selector().Unquoted(),
				Message: "libc constants must be integers",
				Pos:     iter.Value().Pos(),
			}
		}
		consts[iter.Selector().Unquoted()] = n
	}
	return consts, nil
}

// parseLibcTypes extracts the libc type aliases.
func parseLibcTypes(v cue.Value) (map[string]ir.TypeID, error) {
	types := make(map[string]ir.TypeID)
	typesVal := v.LookupPath(cue.ParsePath("libc_types"))
	if !typesVal.Exists() {
		return types, nil
	}
	iter, err := typesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		id, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		types[iter.Selector().Unquoted()] = ir.TypeID(id)
	}
	return types, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field, def string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return def, nil
	}
	if d, ok := fv.Default(); ok {
		fv = d
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}
