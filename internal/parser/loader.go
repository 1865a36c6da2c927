package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vyrodovalexey/nacmval/internal/nacm"
)

// SourceError reports that one configuration source failed to parse. The
// source is skipped; the remaining sources are still usable.
type SourceError struct {
	// Path is the file the failure occurred on.
	Path string

	// Err is the underlying parse or read error.
	Err error
}

// Error returns the error message.
func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *SourceError) Unwrap() error {
	return e.Err
}

// LoadFile loads and parses one configuration source.
func LoadFile(path string) (*nacm.Policy, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	data, err := os.ReadFile(absPath) //nolint:gosec // path is validated via filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read source file %s: %w", path, err)
	}

	policy, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source file %s: %w", path, err)
	}
	return policy, nil
}

// LoadFiles loads the given source files in the given order. Files that
// fail to parse are reported as SourceErrors and skipped; the returned
// slice holds the successfully parsed policies in input order.
func LoadFiles(paths []string) ([]*nacm.Policy, []*SourceError) {
	var policies []*nacm.Policy
	var failures []*SourceError
	for _, path := range paths {
		policy, err := LoadFile(path)
		if err != nil {
			failures = append(failures, &SourceError{Path: path, Err: err})
			continue
		}
		policies = append(policies, policy)
	}
	return policies, failures
}

// LoadDir loads every .xml source in the directory in alphabetical
// filename order. The returned error is non-nil only when the directory
// itself cannot be read; per-file failures are advisory SourceErrors.
func LoadDir(dir string) ([]*nacm.Policy, []*SourceError, error) {
	paths, err := SourcePaths(dir)
	if err != nil {
		return nil, nil, err
	}
	policies, failures := LoadFiles(paths)
	return policies, failures, nil
}

// SourcePaths returns the .xml files in the directory, sorted
// alphabetically by filename. Subdirectories are not descended into.
func SourcePaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), ".xml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
