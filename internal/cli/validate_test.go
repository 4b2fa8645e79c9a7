package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runValidateCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateTypesDir(t *testing.T) {
	out, err := runValidateCmd(t, "text", "testdata/types", "--target", "x86_64-linux")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 4 type(s) valid for x86_64-linux")
}

func TestValidateSingleFileJSON(t *testing.T) {
	out, err := runValidateCmd(t, "json", "testdata/types/header.cue", "--target", "i686-linux")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, "i686-linux", resp.Data.Target)
	assert.Equal(t, 3, resp.Data.Types)
}

func TestValidateDefaultsToConfiguredTarget(t *testing.T) {
	out, err := runValidateCmd(t, "text", "testdata/types/header.cue")
	require.NoError(t, err)
	assert.Contains(t, out, "valid for")
}

func TestValidateNonExistentPath(t *testing.T) {
	out, err := runValidateCmd(t, "text", "/nonexistent/types", "--target", "x86_64-linux")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestValidateEmptyDirectory(t *testing.T) {
	out, err := runValidateCmd(t, "text", t.TempDir(), "--target", "x86_64-linux")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")
}

func TestValidateUnknownTarget(t *testing.T) {
	out, err := runValidateCmd(t, "text", "testdata/types", "--target", "pdp11-unix")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E006]")
	assert.Contains(t, out, "pdp11-unix")
}

func TestValidateUnresolvedReference(t *testing.T) {
	out, err := runValidateCmd(t, "text", "testdata/dangling", "--target", "x86_64-linux")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, ErrCodeDeclareFailed)
	assert.Contains(t, out, "node -> missing")
}

func TestValidateSchemaViolationJSON(t *testing.T) {
	dir := t.TempDir()
	bad := `types: thing: {kind: "blob", size: 4}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "thing.cue"), []byte(bad), 0644))

	out, err := runValidateCmd(t, "json", dir, "--target", "x86_64-linux")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeLoadFailed, resp.Error.Code)
}

func TestLoadTypeDeclsSortedFiles(t *testing.T) {
	result, err := LoadTypeDecls("testdata/types")
	require.NoError(t, err)
	assert.Equal(t, 2, result.FileCount)
	assert.Equal(t, []string{
		filepath.Join("testdata", "types", "header.cue"),
		filepath.Join("testdata", "types", "slot.cue"),
	}, result.Files)
	assert.Len(t, result.Decls, 4)
}
