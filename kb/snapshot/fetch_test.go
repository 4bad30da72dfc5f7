package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchAbsolutePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	src, err := Fetch(context.Background(), path)
	require.NoError(t, err)
	defer src.Cleanup()

	assert.Equal(t, path, src.LocalPath)
	assert.Equal(t, path, src.OriginalInput)
	assert.False(t, src.Fetched)
}

func TestFetchRelativePath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kb.json"), []byte("{}"), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	src, err := Fetch(context.Background(), "kb.json")
	require.NoError(t, err)
	defer src.Cleanup()

	// macOS tempdirs resolve through symlinks, so compare the file
	// identity rather than the literal path.
	want, err := os.Stat(filepath.Join(dir, "kb.json"))
	require.NoError(t, err)
	got, err := os.Stat(src.LocalPath)
	require.NoError(t, err)
	assert.True(t, os.SameFile(want, got))
	assert.False(t, src.Fetched)
}

func TestFetchMissingLocalFile(t *testing.T) {
	_, err := Fetch(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.json")
}

func TestSourceCleanupIsIdempotent(t *testing.T) {
	calls := 0
	src := &Source{cleanup: func() { calls++ }}
	src.Cleanup()
	src.Cleanup()
	assert.Equal(t, 1, calls)
}
