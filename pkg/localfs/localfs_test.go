package localfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel string, size int) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func relPaths(set *FileSet) []string {
	out := make([]string, 0, len(set.Files))
	for _, f := range set.Files {
		out = append(out, f.RelPath)
	}
	return out
}

func TestEnumerate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "photos/a.jpg", 10)
	writeFile(t, root, "photos/2024/b.jpg", 20)
	writeFile(t, root, "photos/README", 5)
	writeFile(t, root, "docs/c.txt", 7)

	set, err := Enumerate(root, filepath.Join(root, "photos"), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"photos/2024/b.jpg", "photos/a.jpg"}, relPaths(set))
	assert.Equal(t, 2, set.Count)
	assert.Equal(t, int64(30), set.TotalSize)
	for _, f := range set.Files {
		assert.True(t, filepath.IsAbs(f.AbsPath))
	}
}

func TestEnumerate_WholeRootAndExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", 1)
	writeFile(t, root, "cache/b.tmp", 1)
	writeFile(t, root, "keep/c.log", 1)

	set, err := Enumerate(root, root, Options{Exclude: []string{"cache/**", "**/*.log"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, relPaths(set))
}

func TestEnumerate_CustomInclude(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Makefile", 3)
	writeFile(t, root, "main.go", 3)

	set, err := Enumerate(root, root, Options{Include: "**"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Makefile", "main.go"}, relPaths(set))
}

func TestEnumerate_InvalidRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "file.txt", 1)
	other := t.TempDir()

	tests := []struct {
		name   string
		root   string
		target string
	}{
		{"missing root", filepath.Join(root, "nope"), root},
		{"missing target", root, filepath.Join(root, "nope")},
		{"target is a file", root, filepath.Join(root, "file.txt")},
		{"target outside root", root, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Enumerate(tt.root, tt.target, Options{})
			var rootErr *InvalidRootError
			assert.ErrorAs(t, err, &rootErr)
		})
	}
}

func TestEnumerate_InvalidPattern(t *testing.T) {
	root := t.TempDir()
	_, err := Enumerate(root, root, Options{Exclude: []string{"[unclosed"}})
	assert.Error(t, err)
}

func TestFileSet_TotalSizeGB(t *testing.T) {
	set := &FileSet{TotalSize: 2 << 30}
	assert.InDelta(t, 2.0, set.TotalSizeGB(), 0.0005)
}
