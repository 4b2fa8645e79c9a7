package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tagvm/internal/ir"
)

func decodeRegions(t *testing.T, out string) RegionsResult {
	t.Helper()
	var resp struct {
		Status string        `json:"status"`
		Data   RegionsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestRegionsInteriorMutableField(t *testing.T) {
	out, err := execute(t, "--format", "json", "regions", "testdata/types", "header", "--target", "x86_64-linux")
	require.NoError(t, err)

	result := decodeRegions(t, out)
	assert.Equal(t, "header", result.Type)
	assert.Equal(t, uint64(24), result.Size)
	assert.False(t, result.Freeze)
	assert.NotEmpty(t, result.Hash)
	assert.Equal(t, []RegionInfo{
		{Offset: 0, Size: 8, Frozen: true},
		{Offset: 8, Size: 4, Frozen: false},
		{Offset: 12, Size: 12, Frozen: true},
	}, result.Regions)
}

func TestRegionsText(t *testing.T) {
	out, err := execute(t, "regions", "testdata/types", "header", "--target", "x86_64-linux")
	require.NoError(t, err)

	assert.Contains(t, out, "header on x86_64-linux: size 24, align 8, freeze false")
	assert.Contains(t, out, "[0, 8) frozen")
	assert.Contains(t, out, "[8, 12) interior-mutable")
	assert.Contains(t, out, "[12, 24) frozen")
}

func TestRegionsBuiltinScalar(t *testing.T) {
	out, err := execute(t, "--format", "json", "regions", "testdata/types", "usize", "--target", "i686-linux")
	require.NoError(t, err)

	result := decodeRegions(t, out)
	assert.Equal(t, uint64(4), result.Size)
	assert.True(t, result.Freeze)
	assert.Equal(t, []RegionInfo{{Offset: 0, Size: 4, Frozen: true}}, result.Regions)
}

func TestRegionsUnionUsesStaticFreeze(t *testing.T) {
	out, err := execute(t, "--format", "json", "regions", "testdata/types", "slot", "--target", "x86_64-linux")
	require.NoError(t, err)

	result := decodeRegions(t, out)
	assert.Equal(t, []RegionInfo{{Offset: 0, Size: 8, Frozen: false}}, result.Regions)
}

func TestRegionsUnknownType(t *testing.T) {
	out, err := execute(t, "regions", "testdata/types", "widget", "--target", "x86_64-linux")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E202]")
}

func TestRegionsDeclarationFailure(t *testing.T) {
	_, err := execute(t, "regions", "testdata/dangling", "node", "--target", "x86_64-linux")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeDeclareFailed)
}

func TestRegionsMissingArgs(t *testing.T) {
	_, err := execute(t, "regions", "testdata/types")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 2 arg")
}

func TestLayoutHash(t *testing.T) {
	types := ir.NewRegistry(8)

	hash, err := layoutHash(types, ir.TypeU32)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	_, err = layoutHash(types, "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no layout hash recorded for ghost")
}
