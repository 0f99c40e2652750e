// Package rules discovers the custom rules installed in a local policy bundle.
package rules

import (
	"path/filepath"
	"strings"
)

const (
	// RuleExtension is the extension of rule source files.
	RuleExtension = ".rego"
	// LibraryFolder holds shared helpers, not rules.
	LibraryFolder = "lib"
)

// Scanner extracts rule identifiers from a bundle directory.
type Scanner struct {
	Iterator DirectoryIterator
}

func NewScanner(maxDepth int) *Scanner {
	return &Scanner{Iterator: FSIterator{MaxDepth: maxDepth}}
}

// GetCustomRuleIDs returns the parent folder name of every rule file under
// bundleRootPath. Each rule lives in a folder named after its public ID, so
// the folder name is the rule ID. Duplicates are kept.
func (s *Scanner) GetCustomRuleIDs(bundleRootPath string) []string {
	it := s.Iterator
	if it == nil {
		it = FSIterator{}
	}

	ids := []string{}
	for p := range it.Files(bundleRootPath, RuleExtension) {
		if inLibrary(p) {
			continue
		}
		ids = append(ids, filepath.Base(filepath.Dir(p)))
	}
	return ids
}

// inLibrary reports whether any segment of p is the library folder.
func inLibrary(p string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(filepath.Clean(p)), "/") {
		if seg == LibraryFolder {
			return true
		}
	}
	return false
}
