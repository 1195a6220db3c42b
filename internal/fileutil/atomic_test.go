package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAtomicCreatesParentAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	require.NoError(t, WriteAtomic(path, []byte("{}\n"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteIfMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "variables.yml")

	wrote, err := WriteIfMissing(path, []byte("first"))
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = WriteIfMissing(path, []byte("second"))
	require.NoError(t, err)
	assert.False(t, wrote)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}
