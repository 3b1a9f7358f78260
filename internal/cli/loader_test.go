package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeVectorTable(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644)
		require.NoError(t, err)
	}
	return dir
}

func TestLoadVectors(t *testing.T) {
	dir := writeVectorTable(t, map[string]string{
		"vectors.cue": `
vectors: [
	{name: "clock", priority: 100},
	{name: "disk", priority: 50, masked: true},
	{name: "keyboard", priority: 75},
]
`,
	})

	vectors, err := LoadVectors(dir)
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	assert.Equal(t, Vector{Name: "clock", Priority: 100}, vectors[0])
	assert.Equal(t, Vector{Name: "disk", Priority: 50, Masked: true}, vectors[1])
	assert.Equal(t, Vector{Name: "keyboard", Priority: 75}, vectors[2])
}

func TestLoadVectorsSplitAcrossFiles(t *testing.T) {
	dir := writeVectorTable(t, map[string]string{
		"base.cue": `
vectors: [
	{name: "clock", priority: 100},
	{name: "disk", priority: 50},
]
`,
	})

	vectors, err := LoadVectors(dir)
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
}

func TestLoadVectorsMissingDir(t *testing.T) {
	_, err := LoadVectors("/nonexistent/vector/dir")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoadVectorsNotADir(t *testing.T) {
	dir := writeVectorTable(t, map[string]string{"vectors.cue": `vectors: []`})

	_, err := LoadVectors(filepath.Join(dir, "vectors.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestLoadVectorsEmptyTable(t *testing.T) {
	dir := writeVectorTable(t, map[string]string{"vectors.cue": `vectors: []`})

	_, err := LoadVectors(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestLoadVectorsMissingList(t *testing.T) {
	dir := writeVectorTable(t, map[string]string{"other.cue": `something: 1`})

	_, err := LoadVectors(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vectors")
}

func TestLoadVectorsDuplicateName(t *testing.T) {
	dir := writeVectorTable(t, map[string]string{
		"vectors.cue": `
vectors: [
	{name: "clock", priority: 100},
	{name: "clock", priority: 10},
]
`,
	})

	_, err := LoadVectors(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoadVectorsMissingName(t *testing.T) {
	dir := writeVectorTable(t, map[string]string{
		"vectors.cue": `
vectors: [
	{priority: 100},
]
`,
	})

	_, err := LoadVectors(dir)
	require.Error(t, err)
}
