// Package templates materializes a template override pack: either a local
// directory used as-is, or a git repository cloned into the build directory.
// The materialized directory joins the dependency-freshness search path so a
// changed template forces regeneration.
package templates

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"

	"github.com/parsekit/grambuild/internal/errs"
	"github.com/parsekit/grambuild/internal/logfields"
)

// Materialize resolves source to a local directory. A git URL is cloned (or
// refreshed with a fresh clone) under buildDir/templates; anything else must
// be an existing directory.
func Materialize(ctx context.Context, source, buildDir string) (string, error) {
	if isGitURL(source) {
		return clone(ctx, source, filepath.Join(buildDir, "templates"))
	}

	info, err := os.Stat(source)
	if err != nil {
		return "", errs.ConfigWrap(err, "template pack %q is not accessible", source)
	}
	if !info.IsDir() {
		return "", errs.Config("template pack %q is not a directory", source)
	}
	return source, nil
}

func isGitURL(source string) bool {
	return strings.HasPrefix(source, "https://") ||
		strings.HasPrefix(source, "http://") ||
		strings.HasPrefix(source, "git@") ||
		strings.HasSuffix(source, ".git")
}

// clone fetches the pack into dir. A stale previous clone is discarded: packs
// are small and a fresh clone keeps the freshness timestamps honest.
func clone(ctx context.Context, url, dir string) (string, error) {
	if err := os.RemoveAll(dir); err != nil {
		return "", errs.ConfigWrap(err, "clearing template clone directory %q", dir)
	}

	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:   url,
		Depth: 1,
	})
	if err != nil {
		return "", errs.ConfigWrap(err, "cloning template pack %q", url)
	}

	if ref, err := repo.Head(); err == nil {
		slog.Info("Template pack cloned",
			slog.String("url", url),
			slog.String("commit", ref.Hash().String()[:8]),
			logfields.Path(dir))
	}
	return dir, nil
}
