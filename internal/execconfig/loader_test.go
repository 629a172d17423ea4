package execconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsEmptyMap(t *testing.T) {
	dir := t.TempDir()

	overrides, err := Load(dir)
	require.NoError(t, err)
	assert.NotNil(t, overrides)
	assert.Empty(t, overrides)
}

func TestLoadDecodesStepBlocks(t *testing.T) {
	dir := t.TempDir()
	writeExecutionHCL(t, dir, `
step "fetch-accounts" {
  disabled = true
}

step "fetch-users" {
  batch_size  = 50
  concurrency = 2
}
`)

	overrides, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, overrides, 2)

	assert.Equal(t, StepExecutionOverride{Disabled: true}, overrides["fetch-accounts"])
	assert.Equal(t, StepExecutionOverride{BatchSize: 50, Concurrency: 2}, overrides["fetch-users"])
}

func TestLoadRejectsMalformedHCL(t *testing.T) {
	dir := t.TempDir()
	writeExecutionHCL(t, dir, `step "broken" {`)

	_, err := Load(dir)
	assert.Error(t, err)
}

func writeExecutionHCL(t *testing.T, dir, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(contents), 0o644))
}
