package config

import (
	"os"

	"github.com/parsekit/grambuild/internal/errs"
)

// Validate checks the configuration after normalization and defaults. All
// problems are ConfigErrors and therefore subject to the abort/continue
// policy at the call site.
func Validate(c *Config) error {
	if len(c.SourceRoots) == 0 {
		return errs.Config("at least one source root must be configured")
	}
	if c.Stages.Generator.Tool == "" {
		return errs.Config("generator tool must be configured")
	}
	if c.Flavor == FlavorTreeGenerate && c.Stages.Preprocessor.Tool == "" {
		return errs.Config("preprocessor tool must be configured for the %s flavor", FlavorTreeGenerate)
	}

	if info, err := os.Stat(c.BaseDir); err != nil {
		return errs.ConfigWrap(err, "base directory %q is not accessible", c.BaseDir)
	} else if !info.IsDir() {
		return errs.Config("base directory %q is not a directory", c.BaseDir)
	}

	// Output locations may not exist yet, but an existing non-directory is
	// always a mistake.
	for _, dir := range c.OutputDirs() {
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			return errs.Config("output path %q exists but is not a directory", dir)
		}
	}
	if info, err := os.Stat(c.Abs(c.BuildDir)); err == nil && !info.IsDir() {
		return errs.Config("build directory path %q exists but is not a directory", c.Abs(c.BuildDir))
	}
	return nil
}
