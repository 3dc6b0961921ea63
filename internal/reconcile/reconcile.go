// Package reconcile merges generated output into the configured output
// locations without clobbering files the user owns. A file is copied only when
// no file with the same relative path already exists in an owned location, a
// configured output location or the destination itself.
package reconcile

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/parsekit/grambuild/internal/errs"
	"github.com/parsekit/grambuild/internal/logfields"
)

// Reconciler holds the per-run location sets. Both slices hold canonical
// absolute paths; compute Owned with OwnedLocations.
type Reconciler struct {
	// Owned are the user-owned source roots. A file found here always wins.
	Owned []string
	// OutputDirs are the configured output locations. A file found here was
	// placed by an earlier stage or run and also wins.
	OutputDirs []string
}

// OwnedLocations canonicalizes the declared source roots and drops the ones
// living under the run's own build-output tree, which the run may rewrite.
func OwnedLocations(sourceRoots []string, buildDir string) []string {
	buildDir = Canonical(buildDir)
	var owned []string
	for _, root := range sourceRoots {
		root = Canonical(root)
		if underDir(root, buildDir) {
			continue
		}
		owned = append(owned, root)
	}
	return owned
}

// Copy merges files from srcDir into destRoot/subPath. Only files whose name
// ends in one of exts are considered. Returns the number of files copied; a
// failed copy is a ProcessorError attributed to stage and unit.
func (r *Reconciler) Copy(stage, unit, srcDir, destRoot, subPath string, exts []string) (int, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(srcDir, "**", "*"), doublestar.WithFilesOnly())
	if err != nil {
		return 0, errs.ProcessorWrap(err, stage, unit, "enumerating generated output in %q", srcDir)
	}

	copied := 0
	for _, src := range matches {
		if !hasAnyExt(src, exts) {
			continue
		}
		rel, err := filepath.Rel(srcDir, src)
		if err != nil {
			return copied, errs.ProcessorWrap(err, stage, unit, "relativizing %q against %q", src, srcDir)
		}
		rel = filepath.Join(subPath, rel)

		dest := filepath.Join(destRoot, rel)
		if prior := r.existing(rel, dest); prior != "" {
			slog.Debug("Skipping generated file, user or prior version wins",
				logfields.Stage(stage),
				logfields.Unit(unit),
				logfields.Path(rel),
				slog.String("existing", prior))
			continue
		}

		if err := copyFile(src, dest); err != nil {
			return copied, errs.ProcessorWrap(err, stage, unit, "copying %q to %q", rel, destRoot)
		}
		slog.Debug("Reconciled generated file",
			logfields.Stage(stage),
			logfields.Unit(unit),
			logfields.Path(rel),
			logfields.Output(destRoot))
		copied++
	}
	return copied, nil
}

// OwnedContains reports whether dir lies inside one of the owned locations.
// The beside-the-grammar copy pass only runs when the grammar's directory is
// not user-owned territory.
func (r *Reconciler) OwnedContains(dir string) bool {
	dir = Canonical(dir)
	for _, owned := range r.Owned {
		if underDir(dir, owned) {
			return true
		}
	}
	return false
}

// existing returns the first pre-existing file for rel, consulting owned
// locations first, then configured output locations, then the destination.
func (r *Reconciler) existing(rel, dest string) string {
	for _, loc := range r.Owned {
		if p := filepath.Join(loc, rel); fileExists(p) {
			return p
		}
	}
	for _, loc := range r.OutputDirs {
		if p := filepath.Join(loc, rel); fileExists(p) {
			return p
		}
	}
	if fileExists(dest) {
		return dest
	}
	return ""
}

func hasAnyExt(path string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Canonical resolves path to an absolute, symlink-free form. Resolution
// failures fall back to the cleaned absolute path so that comparisons stay
// usable for not-yet-existing directories.
func Canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

func underDir(path, dir string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
