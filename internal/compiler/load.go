package compiler

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/tagvm/internal/ir"
)

//go:embed targets.cue
var targetsSource string

//go:embed types_schema.cue
var typesSchemaSource string

// LoadTargets compiles the built-in target table.
func LoadTargets() (map[string]*ir.Target, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(targetsSource, cue.Filename("targets.cue"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	iter, err := v.LookupPath(cue.ParsePath("target")).Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	targets := make(map[string]*ir.Target)
	for iter.Next() {
		t, err := CompileTarget(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", iter.Selector().Unquoted(), err)
		}
		if errs := ValidateTarget(t); len(errs) > 0 {
			return nil, fmt.Errorf("target %s: %w", t.Name, errs[0])
		}
		targets[t.Name] = t
	}
	return targets, nil
}

// LoadTarget returns one built-in target by name.
func LoadTarget(name string) (*ir.Target, error) {
	targets, err := LoadTargets()
	if err != nil {
		return nil, err
	}
	t, ok := targets[name]
	if !ok {
		return nil, fmt.Errorf("unknown target %q (known: %v)", name, sortedKeys(targets))
	}
	return t, nil
}

// TargetNames lists the built-in targets in sorted order.
func TargetNames() ([]string, error) {
	targets, err := LoadTargets()
	if err != nil {
		return nil, err
	}
	return sortedKeys(targets), nil
}

// LoadTypes compiles a CUE type file against the declaration schema.
func LoadTypes(src, filename string) ([]ir.TypeDecl, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(typesSchemaSource, cue.Filename("types_schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	typesVal := unified.LookupPath(cue.ParsePath("types"))
	if !typesVal.Exists() {
		return nil, nil
	}
	return CompileTypes(typesVal)
}

// LoadTypesFile reads and compiles a CUE type file.
func LoadTypesFile(path string) ([]ir.TypeDecl, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read type file: %w", err)
	}
	return LoadTypes(string(data), path)
}

// BuildRegistry creates a registry for target and declares decls in it.
func BuildRegistry(target *ir.Target, decls []ir.TypeDecl) (*ir.Registry, error) {
	reg := ir.NewRegistry(target.PointerSize)
	if err := reg.Declare(decls); err != nil {
		return nil, err
	}
	for name, id := range target.LibcTypes {
		if _, err := reg.Layout(id); err != nil {
			return nil, fmt.Errorf("target %s: libc type %s: %w", target.Name, name, err)
		}
	}
	return reg, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
