package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/tagvm/internal/ir"
)

// CompileTypes parses a CUE `types` struct into declarations, one per
// field, in source order.
func CompileTypes(v cue.Value) ([]ir.TypeDecl, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var decls []ir.TypeDecl
	for iter.Next() {
		name := iter.Selector().Unquoted()
		d, err := compileTypeDecl(name, iter.Value())
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
	return decls, nil
}

func compileTypeDecl(name string, v cue.Value) (ir.TypeDecl, error) {
	var d ir.TypeDecl
	if !v.LookupPath(cue.ParsePath("kind")).Exists() {
		return d, &CompileError{
			Field:   fmt.Sprintf("types.%s.kind", name),
			Message: "kind is required",
			Pos:     v.Pos(),
		}
	}
	if err := v.Decode(&d); err != nil {
		return d, formatCUEError(err)
	}
	d.Name = name

	switch d.Kind {
	case ir.KindArray:
		if d.Elem == "" {
			return d, &CompileError{Field: fmt.Sprintf("types.%s.elem", name), Message: "array element type is required", Pos: v.Pos()}
		}
	case ir.KindCell:
		if d.Inner == "" {
			return d, &CompileError{Field: fmt.Sprintf("types.%s.inner", name), Message: "cell inner type is required", Pos: v.Pos()}
		}
	case ir.KindScalar, ir.KindStruct, ir.KindEnum, ir.KindExtern:
		if !v.LookupPath(cue.ParsePath("size")).Exists() {
			return d, &CompileError{Field: fmt.Sprintf("types.%s.size", name), Message: "size is required", Pos: v.Pos()}
		}
	}
	return d, nil
}
