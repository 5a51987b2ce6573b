// Package fsutil scans the local collection tree.
package fsutil

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchesIgnore returns true if the slash-normalized path matches any glob.
func MatchesIgnore(path string, globs []string) bool {
	normalized := filepath.ToSlash(path)
	for _, g := range globs {
		if g == "" {
			continue
		}
		ok, err := doublestar.Match(g, normalized)
		if err == nil && ok {
			return true
		}
	}
	return false
}

// ListFiles walks projectRoot/localRoot and returns every file whose name ends
// with one of suffixes, as slash paths rooted at localRoot (the form recorded
// in the cache), in lexical walk order. Ignore globs are matched against the
// same rooted path; a matching directory is pruned. Symlinks are not followed.
// A local root that does not exist yet is an empty listing, not an error.
func ListFiles(projectRoot, localRoot string, suffixes, ignoreGlobs []string) ([]string, error) {
	base := filepath.Join(projectRoot, localRoot)
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return nil, nil
	}
	var files []string
	err := filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return err
		}
		if path == base {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		rooted := filepath.ToSlash(filepath.Join(localRoot, rel))
		if MatchesIgnore(rooted, ignoreGlobs) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		// WalkDir never follows symlinks, so a link is only ever a leaf here.
		if d.Type()&os.ModeSymlink != 0 || d.IsDir() {
			return nil
		}
		if HasSuffix(rooted, suffixes) {
			files = append(files, rooted)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// HasSuffix reports whether path ends with one of the given suffixes.
func HasSuffix(path string, suffixes []string) bool {
	for _, s := range suffixes {
		if s != "" && strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
