// Package config loads, normalizes and validates the run configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/parsekit/grambuild/internal/errs"
)

// Config is the full run configuration as declared in grambuild.yaml.
type Config struct {
	// Flavor selects the pipeline family: FlavorGenerate (one stage) or
	// FlavorTreeGenerate (preprocessor feeding the generator).
	Flavor string `yaml:"flavor,omitempty"`
	// BaseDir anchors all relative paths in this file. Defaults to the
	// config file's directory.
	BaseDir string `yaml:"base_dir,omitempty"`

	SourceRoots []string `yaml:"source_roots,omitempty"`
	Includes    []string `yaml:"includes,omitempty"`
	Excludes    []string `yaml:"excludes,omitempty"`

	Stages   StagesConfig `yaml:"stages,omitempty"`
	Policies PolicyConfig `yaml:"policies,omitempty"`

	// GrammarEncoding is the IANA name of the grammar source encoding.
	// Empty means UTF-8 with a warning.
	GrammarEncoding string `yaml:"grammar_encoding,omitempty"`
	// TimestampSlackMS widens artifact-vs-source comparisons; negative
	// forces every unit stale.
	TimestampSlackMS int64 `yaml:"timestamp_slack_ms,omitempty"`

	BuildDir         string `yaml:"build_dir,omitempty"`
	KeepIntermediate bool   `yaml:"keep_intermediate,omitempty"`
	Skip             bool   `yaml:"skip,omitempty"`
	// Jobs bounds concurrent units; 1 processes sequentially.
	Jobs int `yaml:"jobs,omitempty"`

	// ToolPath is the search path for dependency-freshness lookups
	// (generator distributables, template archives).
	ToolPath []string `yaml:"toolpath,omitempty"`
	// Templates points at a template override pack: a local directory or a
	// git URL cloned into the build directory.
	Templates string `yaml:"templates,omitempty"`
	// History is the sqlite file run records are appended to.
	History string `yaml:"history,omitempty"`
}

// StagesConfig declares the external tools. Generator is always present;
// Preprocessor only for the tree-generate flavor.
type StagesConfig struct {
	Preprocessor *StageConfig `yaml:"preprocessor,omitempty"`
	Generator    StageConfig  `yaml:"generator"`
}

// StageConfig declares one external tool invocation template.
type StageConfig struct {
	Tool string `yaml:"tool,omitempty"`
	// Args are passed through verbatim apart from the recognized subset.
	Args []string `yaml:"args,omitempty"`
	// Output is the directory the stage's reconciled output lands in.
	Output string `yaml:"output,omitempty"`
	// CopyAnnotated also reconciles the transformed grammar the tool emits.
	// A preprocessor stage implies it; for the generator it is opt-in.
	CopyAnnotated bool `yaml:"copy_annotated,omitempty"`
}

// PolicyConfig holds the three escalation policy values.
type PolicyConfig struct {
	// AbortOnConfigError: abort the run (true, default) or log and skip the
	// whole execution (false).
	AbortOnConfigError *bool `yaml:"abort_on_config_error,omitempty"`
	// OnMetadataError and OnProcessorError take first, last or ignore.
	OnMetadataError  string `yaml:"on_metadata_error,omitempty"`
	OnProcessorError string `yaml:"on_processor_error,omitempty"`
}

// AbortOnConfig resolves the pointer with its default.
func (p PolicyConfig) AbortOnConfig() bool {
	return p.AbortOnConfigError == nil || *p.AbortOnConfigError
}

// Load reads the configuration file, expanding ${VAR} references after
// loading .env/.env.local into the process environment.
func Load(configPath string) (*Config, *NormalizationResult, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, errs.ConfigWrap(err, "reading configuration file %q", configPath)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, nil, errs.ConfigWrap(err, "parsing configuration file %q", configPath)
	}

	res := Normalize(&cfg)
	if cfg.BaseDir == "" {
		cfg.BaseDir = filepath.Dir(configPath)
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, res, err
	}
	return &cfg, res, nil
}

// loadEnvFiles loads the first .env file found. A missing file is normal.
func loadEnvFiles() {
	for _, path := range []string{".env", ".env.local"} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			fmt.Fprintf(os.Stderr, "Note: %s could not be loaded: %v\n", path, err)
			continue
		}
		return
	}
}

// Init writes a starter configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errs.Config("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Flavor:      FlavorGenerate,
		SourceRoots: []string{"src/parser"},
		Includes:    []string{"**/*.gram"},
		Stages: StagesConfig{
			Generator: StageConfig{
				Tool:   "parsegen",
				Args:   []string{"-STATIC=false"},
				Output: "generated-src/parser",
			},
		},
		Policies: PolicyConfig{
			OnMetadataError:  "first",
			OnProcessorError: "first",
		},
		GrammarEncoding: "UTF-8",
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return errs.ConfigWrap(err, "marshalling starter configuration")
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errs.ConfigWrap(err, "writing configuration file %q", configPath)
	}
	return nil
}
