// Package deps resolves generator tool dependencies to freshness timestamps.
// A generated parser is stale not only when its grammar changed but also when
// the generator distributable or a template override changed underneath it.
package deps

import (
	"archive/zip"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parsekit/grambuild/internal/logfields"
)

// Resolver looks up named resources on a tool search path. Entries are either
// directories or archive files (.zip/.jar); a resource found inside an
// archive contributes the archive's own last-modified time, a resource found
// under a directory contributes its file time.
type Resolver struct {
	SearchPath []string
}

// Lookup resolves one resource name (slash-separated, e.g.
// "manifest/generator/java") to a freshness timestamp. A resource that cannot
// be located contributes nothing and is reported false.
func (r *Resolver) Lookup(name string) (time.Time, bool) {
	for _, entry := range r.SearchPath {
		fi, err := os.Stat(entry)
		if err != nil {
			continue
		}
		if fi.IsDir() {
			if sub, err := os.Stat(filepath.Join(entry, filepath.FromSlash(name))); err == nil {
				return sub.ModTime(), true
			}
			continue
		}
		if isArchive(entry) && archiveContains(entry, name) {
			return fi.ModTime(), true
		}
	}
	return time.Time{}, false
}

// Latest returns the most recent timestamp among the named resources. Missing
// resources are logged as warnings and treated as older than everything.
func (r *Resolver) Latest(names ...string) time.Time {
	var latest time.Time
	if len(r.SearchPath) == 0 {
		slog.Debug("No tool path configured, dependency freshness not tracked")
		return latest
	}
	for _, name := range names {
		ts, ok := r.Lookup(name)
		if !ok {
			slog.Warn("No dependency found for resource; check tool path configuration",
				slog.String("resource", name))
			continue
		}
		slog.Debug("Dependency timestamp", slog.String("resource", name), slog.Time("mtime", ts))
		if ts.After(latest) {
			latest = ts
		}
	}
	return latest
}

func isArchive(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".jar":
		return true
	}
	return false
}

func archiveContains(archive, name string) bool {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		slog.Warn("Unreadable archive on tool path", logfields.Path(archive), logfields.Error(err))
		return false
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name == name || strings.HasPrefix(f.Name, name+"/") {
			return true
		}
	}
	return false
}

// Resources builds the canonical resource names whose timestamps feed the
// staleness evaluator: the generator core, the per-language generator and the
// per-language template overrides.
func Resources(langSubDir string) []string {
	names := []string{"manifest/generator/core"}
	if langSubDir != "" {
		names = append(names,
			"manifest/generator/"+langSubDir,
			"templates/"+langSubDir,
		)
	}
	return names
}
