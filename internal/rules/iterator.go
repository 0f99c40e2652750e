package rules

import (
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/lockwhz/iac-analytics-service/internal/logger"
)

// DefaultMaxDepth is the number of directory levels below the root that are searched.
const DefaultMaxDepth = 8

// DirectoryIterator lists the files under root ending with extension.
// The returned sequence is lazy and can be ranged over more than once.
type DirectoryIterator interface {
	Files(root, extension string) iter.Seq[string]
}

// FSIterator walks an fs.FS. When FS is nil the OS filesystem is walked from
// root and yielded paths are joined to root; otherwise root is a path inside FS.
type FSIterator struct {
	FS       fs.FS
	MaxDepth int
}

var _ DirectoryIterator = FSIterator{}

func (it FSIterator) Files(root, extension string) iter.Seq[string] {
	return func(yield func(string) bool) {
		fsys, start := it.FS, path.Clean(filepath.ToSlash(root))
		onDisk := fsys == nil
		if onDisk {
			fsys, start = os.DirFS(root), "."
		}
		maxDepth := it.MaxDepth
		if maxDepth <= 0 {
			maxDepth = DefaultMaxDepth
		}

		// Unreadable entries are skipped, a missing root yields nothing.
		_ = fs.WalkDir(fsys, start, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				logger.Log.Debugf("rules: skipping %s: %v", p, err)
				return nil
			}
			if d.IsDir() {
				if depth(start, p) > maxDepth {
					return fs.SkipDir
				}
				return nil
			}
			if path.Ext(d.Name()) != extension {
				return nil
			}
			out := p
			if onDisk {
				out = filepath.Join(root, filepath.FromSlash(p))
			}
			if !yield(out) {
				return fs.SkipAll
			}
			return nil
		})
	}
}

// depth counts the directory levels of p below start.
func depth(start, p string) int {
	rel := p
	if start != "." {
		rel = strings.TrimPrefix(strings.TrimPrefix(p, start), "/")
	}
	if rel == "" || rel == "." {
		return 0
	}
	return strings.Count(rel, "/") + 1
}
