// Package scanner finds the source files below a directory.
package scanner

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

type FileInfo struct {
	Path string
	Size int64
}

// Scanner collects the files below rootDir accepted by match.
type Scanner struct {
	rootDir string
	match   func(path string) bool
}

// New returns a scanner of rootDir. A nil match accepts every file.
func New(rootDir string, match func(path string) bool) *Scanner {
	return &Scanner{
		rootDir: rootDir,
		match:   match,
	}
}

// Extensions accepts files with one of the given extensions.
func Extensions(exts ...string) func(string) bool {
	return func(path string) bool {
		ext := strings.ToLower(filepath.Ext(path))
		for _, target := range exts {
			if ext == target {
				return true
			}
		}
		return false
	}
}

// Scan walks the tree below the root directory, skipping hidden
// directories. The root may also be a single file. Files come back in
// lexical order.
func (s *Scanner) Scan() ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.rootDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if s.match != nil && !s.match(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, FileInfo{Path: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
