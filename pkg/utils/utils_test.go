package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashStrings(t *testing.T) {
	a := HashStrings([]string{"a", "b"})
	assert.Equal(t, a, HashStrings([]string{"a", "b"}))
	assert.NotEqual(t, a, HashStrings([]string{"ab"}))
	assert.NotEqual(t, a, HashStrings([]string{"b", "a"}))
	assert.Len(t, a, 16)
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	require.NoError(t, WriteFileAtomic(path, []byte("one")))
	require.NoError(t, WriteFileAtomic(path, []byte("two")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
