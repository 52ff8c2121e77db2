package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ReadFallsBackToDefaultsWhenNoDir(t *testing.T) {
	r := NewRegistry("")

	result, err := r.Read(TypeSecurity)
	require.NoError(t, err)
	assert.Equal(t, SourceDefault, result.Source)
	assert.Len(t, result.Rules, 10, "security defaults must be the fixed OWASP Top-10 baseline")
}

func TestRegistry_ReadStyleDefaults(t *testing.T) {
	r := NewRegistry("")
	result, err := r.Read(TypeStyle)
	require.NoError(t, err)
	assert.Equal(t, SourceDefault, result.Source)
	assert.NotEmpty(t, result.Rules)
}

func TestRegistry_ReadPrefersFileOverDefault(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`rules:
  - id: custom-1
    description: "No TODOs in production code"
    severity: minor
    category: custom
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.yaml"), content, 0o644))

	r := NewRegistry(dir)
	result, err := r.Read(TypeCustom)
	require.NoError(t, err)
	assert.Equal(t, SourceFile, result.Source)
	require.Len(t, result.Rules, 1)
	assert.Equal(t, "custom-1", result.Rules[0].ID)
}

func TestRegistry_ReadCustomDefaultsToEmpty(t *testing.T) {
	r := NewRegistry("")
	result, err := r.Read(TypeCustom)
	require.NoError(t, err)
	assert.Equal(t, SourceDefault, result.Source)
	assert.Empty(t, result.Rules)
}
