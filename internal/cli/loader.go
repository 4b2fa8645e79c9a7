package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue/token"

	"github.com/roach88/tagvm/internal/compiler"
	"github.com/roach88/tagvm/internal/ir"
)

// Error code constants shared by all commands. Target validation codes
// (E101-E106) come from the compiler package.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No CUE files found
	ErrCodeLoadFailed    = "E004" // CUE load failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeUnknownTarget = "E006" // Target not in the built-in table
	ErrCodeWriteFailed   = "E007" // File write error

	ErrCodeDeclareFailed = "E201" // Type declarations do not resolve
	ErrCodeUnknownType   = "E202" // Type name not in the registry
	ErrCodeMachine       = "E203" // Machine operation failed
)

// LoadResult contains the declarations read from one file or a directory.
type LoadResult struct {
	Decls     []ir.TypeDecl
	Files     []string
	FileCount int
}

// LoadError represents an error that occurred while loading type files.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadTypeDecls reads type declarations from a .cue file or from every .cue
// file under a directory, in lexical path order. The first failing file
// stops the load.
func LoadTypeDecls(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("types path not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing types path: %v", err)}
	}

	files := []string{path}
	if info.IsDir() {
		files, err = FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
	}

	result := &LoadResult{Files: files, FileCount: len(files)}
	for _, f := range files {
		decls, err := compiler.LoadTypesFile(f)
		if err != nil {
			return nil, convertCompileError(err, f)
		}
		result.Decls = append(result.Decls, decls...)
	}
	return result, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	slices.Sort(files)
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, file string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeLoadFailed,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeLoadFailed,
		Message: fmt.Sprintf("%s: %v", file, err),
	}
}

// loadErrorCode returns the CLI error code carried by err.
func loadErrorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	return ErrCodeGeneric
}

// resolveTarget loads a built-in target, failing with ErrCodeUnknownTarget.
func resolveTarget(name string) (*ir.Target, error) {
	t, err := compiler.LoadTarget(name)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeUnknownTarget, Message: err.Error()}
	}
	return t, nil
}
