package cdn

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestDistribute(t *testing.T) {
	base := t.TempDir()
	write(t, filepath.Join(base, FilesDir, "a.png"), "A")
	write(t, filepath.Join(base, FilesDir, "b.png"), "B")
	write(t, filepath.Join(base, "scp-wiki", "manifest.txt"),
		"https://cdn.example/1 a.png\n\nhttps://cdn.example/2 <BROKEN>\nhttps://cdn.example/3 b.png\ngarbage\n")
	write(t, filepath.Join(base, "scp-wiki", "b.png"), "already here")
	write(t, filepath.Join(base, "wl", "list.txt"), "https://cdn.example/1 a.png\n")
	write(t, filepath.Join(base, "wl", "notes.md"), "https://cdn.example/9 zzz.png\n")

	stats, err := NewDistributor(base, nil).Run()
	require.NoError(t, err)

	assert.Equal(t, Stats{Sites: 2, Manifests: 2, Copied: 2, Present: 1, Broken: 1, Malformed: 1}, stats)

	data, err := os.ReadFile(filepath.Join(base, "scp-wiki", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "A", string(data))

	data, err = os.ReadFile(filepath.Join(base, "scp-wiki", "b.png"))
	require.NoError(t, err)
	assert.Equal(t, "already here", string(data), "existing files are not overwritten")

	assert.FileExists(t, filepath.Join(base, "wl", "a.png"))
	assert.NoFileExists(t, filepath.Join(base, "wl", "zzz.png"))
}

func TestDistributeMissingSource(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, FilesDir), 0o755))
	write(t, filepath.Join(base, "site", "m.txt"), "u1 gone.png\nu2 <BROKEN>\n")

	stats, err := NewDistributor(base, nil).Run()
	assert.Error(t, err)
	assert.Equal(t, 1, stats.Broken)
	assert.Equal(t, 0, stats.Copied)
	assert.NoFileExists(t, filepath.Join(base, "site", "gone.png"))
}

func TestDistributeMissingBase(t *testing.T) {
	_, err := NewDistributor(filepath.Join(t.TempDir(), "nope"), nil).Run()
	assert.Error(t, err)
}

func TestFailedCopyLeavesNoPartialFile(t *testing.T) {
	base := t.TempDir()
	// a directory opens fine but fails on read, like a copy cut short
	require.NoError(t, os.MkdirAll(filepath.Join(base, FilesDir, "c.png"), 0o755))
	write(t, filepath.Join(base, "site", "m.txt"), "https://cdn.example/c c.png\n")

	stats, err := NewDistributor(base, nil).Run()
	require.Error(t, err)
	assert.Equal(t, 0, stats.Copied)
	assert.NoFileExists(t, filepath.Join(base, "site", "c.png"))

	entries, err := os.ReadDir(filepath.Join(base, "site"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the manifest remains")

	// once the source is fixed the next run copies it instead of counting it present
	require.NoError(t, os.Remove(filepath.Join(base, FilesDir, "c.png")))
	write(t, filepath.Join(base, FilesDir, "c.png"), "C")

	stats, err = NewDistributor(base, nil).Run()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Copied)
	assert.Equal(t, 0, stats.Present)

	data, err := os.ReadFile(filepath.Join(base, "site", "c.png"))
	require.NoError(t, err)
	assert.Equal(t, "C", string(data))
}
