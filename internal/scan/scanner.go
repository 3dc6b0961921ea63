// Package scan walks source roots for grammar files, extracts their metadata
// and decides which units are stale and must be regenerated.
package scan

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/parsekit/grambuild/internal/errs"
	"github.com/parsekit/grambuild/internal/logfields"
)

// Scanner lists the files under a source root that match at least one include
// pattern and no exclude pattern. Patterns are doublestar globs where `**`
// spans any number of directory segments. Symbolic links are followed.
type Scanner struct {
	Root     string
	Includes []string
	Excludes []string
}

// Scan returns the matching paths relative to the root. Order is
// deterministic for a fixed file-system snapshot but otherwise unspecified.
func (s *Scanner) Scan() ([]string, error) {
	fi, err := os.Stat(s.Root)
	if err != nil {
		return nil, errs.ConfigWrap(err, "source directory %q does not exist", s.Root)
	}
	if !fi.IsDir() {
		return nil, errs.Config("source directory %q is not a directory", s.Root)
	}

	seen := map[string]struct{}{}
	for _, pattern := range s.Includes {
		matches, err := doublestar.FilepathGlob(filepath.Join(s.Root, pattern),
			doublestar.WithFilesOnly())
		if err != nil {
			return nil, errs.ConfigWrap(err, "invalid include pattern %q", pattern)
		}
		for _, m := range matches {
			rel, err := filepath.Rel(s.Root, m)
			if err != nil {
				continue
			}
			seen[filepath.ToSlash(rel)] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
next:
	for rel := range seen {
		for _, pattern := range s.Excludes {
			if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
				slog.Debug("Excluded by pattern", logfields.Path(rel), slog.String("pattern", pattern))
				continue next
			}
		}
		out = append(out, filepath.FromSlash(rel))
	}
	sort.Strings(out)
	return out, nil
}

// statFile returns the file info when path exists and is a regular file.
func statFile(path string) (fs.FileInfo, bool) {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return nil, false
	}
	return fi, true
}
