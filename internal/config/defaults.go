package config

import "path/filepath"

// Pipeline flavors. Each family carries its own scanning and layout defaults.
const (
	FlavorGenerate     = "generate"
	FlavorTreeGenerate = "tree-generate"
)

// Per-family defaults mirroring the conventional project layout.
const (
	defaultBuildDir = ".grambuild"

	generateIncludes  = "**/*.gram"
	generateRoot      = "src/parser"
	generateOutput    = "generated-src/parser"
	generateTool      = "parsegen"
	generateOutputOpt = "OUTPUT_DIRECTORY"

	treeIncludes  = "**/*.tgram"
	treeRoot      = "src/tree"
	treeOutput    = "generated-src/tree"
	treeTool      = "treegen"
	treeOutputOpt = "TREE_OUTPUT_DIRECTORY"
)

// OutputDirOption returns the name of the single stage option the
// orchestrator substitutes with the intermediate directory.
func OutputDirOption(stageName string) string {
	if stageName == treeTool {
		return treeOutputOpt
	}
	return generateOutputOpt
}

func applyDefaults(c *Config) {
	if c.Flavor == "" {
		if c.Stages.Preprocessor != nil {
			c.Flavor = FlavorTreeGenerate
		} else {
			c.Flavor = FlavorGenerate
		}
	}
	if c.BaseDir == "" {
		c.BaseDir = "."
	}
	if c.BuildDir == "" {
		c.BuildDir = defaultBuildDir
	}
	if c.Jobs == 0 {
		c.Jobs = 1
	}
	if c.History == "" {
		c.History = filepath.Join(c.BuildDir, "history.db")
	}
	if c.Policies.OnMetadataError == "" {
		c.Policies.OnMetadataError = "first"
	}
	if c.Policies.OnProcessorError == "" {
		c.Policies.OnProcessorError = "first"
	}

	switch c.Flavor {
	case FlavorTreeGenerate:
		if c.Stages.Preprocessor == nil {
			c.Stages.Preprocessor = &StageConfig{}
		}
		if c.Stages.Preprocessor.Tool == "" {
			c.Stages.Preprocessor.Tool = treeTool
		}
		if c.Stages.Preprocessor.Output == "" {
			c.Stages.Preprocessor.Output = treeOutput
		}
		if len(c.SourceRoots) == 0 {
			c.SourceRoots = []string{treeRoot}
		}
		if len(c.Includes) == 0 {
			c.Includes = []string{treeIncludes}
		}
	default:
		if len(c.SourceRoots) == 0 {
			c.SourceRoots = []string{generateRoot}
		}
		if len(c.Includes) == 0 {
			c.Includes = []string{generateIncludes}
		}
	}

	if c.Stages.Generator.Tool == "" {
		c.Stages.Generator.Tool = generateTool
	}
	if c.Stages.Generator.Output == "" {
		c.Stages.Generator.Output = generateOutput
	}
}

// Abs resolves a configured path against the base directory.
func (c *Config) Abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.BaseDir, path)
}

// AbsSourceRoots returns the source roots resolved against the base directory.
func (c *Config) AbsSourceRoots() []string {
	out := make([]string, len(c.SourceRoots))
	for i, root := range c.SourceRoots {
		out[i] = c.Abs(root)
	}
	return out
}

// OutputDirs returns the resolved output directories in stage order.
func (c *Config) OutputDirs() []string {
	var out []string
	if c.Stages.Preprocessor != nil {
		out = append(out, c.Abs(c.Stages.Preprocessor.Output))
	}
	out = append(out, c.Abs(c.Stages.Generator.Output))
	return out
}
