package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestWalker_Walk(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b.pdf"), "b")
	touch(t, filepath.Join(root, "docs", "a.pdf"), "a")
	touch(t, filepath.Join(root, "docs", "UPPER.PDF"), "u")
	touch(t, filepath.Join(root, "docs", "notes.txt"), "n")
	touch(t, filepath.Join(root, ".ragqa", "cached.pdf"), "c")

	w := NewWalker([]string{"**/*.pdf", "**/*.PDF"}, []string{"**/.ragqa/**"})
	files, err := w.Walk(root)
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		r, err := filepath.Rel(root, f.Path)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Equal(t, []string{"b.pdf", "docs/UPPER.PDF", "docs/a.pdf"}, rel)
}

func TestWalker_SingleFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "report.bin")
	touch(t, path, "12345")

	files, err := NewWalker(nil, nil).Walk(path)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, int64(5), files[0].Size)
}

func TestWalker_Missing(t *testing.T) {
	_, err := NewWalker(nil, nil).Walk(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestOpenDocument(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doc.pdf")
	touch(t, path, "%PDF-1.4")

	f, size, err := OpenDocument(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, int64(8), size)

	_, _, err = OpenDocument(root)
	assert.Error(t, err)
}
