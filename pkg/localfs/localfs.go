// Package localfs enumerates the local files an archive run uploads.
package localfs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultInclude selects files whose name contains a dot. Names without an
// extension are skipped.
const DefaultInclude = "**/*.*"

// bytesPerGB is the divisor used for GB figures (binary gigabyte).
const bytesPerGB = 1 << 30

// File describes one local file.
type File struct {
	// AbsPath is the absolute path on disk.
	AbsPath string

	// RelPath is the slash-separated path relative to the archive root.
	RelPath string

	// Size is the file size in bytes.
	Size int64
}

// FileSet is the result of an enumeration.
type FileSet struct {
	Files     []File
	Count     int
	TotalSize int64
}

// TotalSizeGB returns the total size in gigabytes.
func (s *FileSet) TotalSizeGB() float64 {
	return float64(s.TotalSize) / bytesPerGB
}

// Options configures Enumerate.
type Options struct {
	// Include is matched against the path relative to the target directory.
	// Empty uses DefaultInclude.
	Include string

	// Exclude drops files whose path relative to the target matches any pattern.
	Exclude []string
}

// InvalidRootError reports an archive root or target that is unusable.
type InvalidRootError struct {
	Path   string
	Reason string
}

func (e *InvalidRootError) Error() string {
	return fmt.Sprintf("invalid archive path %q: %s", e.Path, e.Reason)
}

// Enumerate walks target (which must be root or a directory under it) and
// returns every regular file matched by opts, sorted by RelPath.
// Symlinks are not followed.
func Enumerate(root, target string, opts Options) (*FileSet, error) {
	absRoot, err := checkDir(root)
	if err != nil {
		return nil, err
	}
	absTarget, err := checkDir(target)
	if err != nil {
		return nil, err
	}
	if rel, err := filepath.Rel(absRoot, absTarget); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, &InvalidRootError{Path: target, Reason: "not inside archive root " + absRoot}
	}

	include := opts.Include
	if include == "" {
		include = DefaultInclude
	}
	for _, p := range append([]string{include}, opts.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
	}

	set := &FileSet{}
	err = filepath.WalkDir(absTarget, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}

		fromTarget, err := filepath.Rel(absTarget, path)
		if err != nil {
			return err
		}
		fromTarget = filepath.ToSlash(fromTarget)
		if !matches(include, fromTarget) || matchesAny(opts.Exclude, fromTarget) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		fromRoot, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}

		set.Files = append(set.Files, File{AbsPath: path, RelPath: filepath.ToSlash(fromRoot), Size: info.Size()})
		set.TotalSize += info.Size()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", absTarget, err)
	}

	sort.Slice(set.Files, func(i, j int) bool { return set.Files[i].RelPath < set.Files[j].RelPath })
	set.Count = len(set.Files)
	return set, nil
}

func checkDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &InvalidRootError{Path: path, Reason: err.Error()}
	}
	st, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &InvalidRootError{Path: path, Reason: "does not exist"}
		}
		return "", &InvalidRootError{Path: path, Reason: err.Error()}
	}
	if !st.IsDir() {
		return "", &InvalidRootError{Path: path, Reason: "not a directory"}
	}
	return abs, nil
}

func matches(pattern, rel string) bool {
	ok, err := doublestar.Match(pattern, rel)
	return err == nil && ok
}

func matchesAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if matches(p, rel) {
			return true
		}
	}
	return false
}
