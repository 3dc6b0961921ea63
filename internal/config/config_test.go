package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsekit/grambuild/internal/errs"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "grambuild.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesGenerateDefaults(t *testing.T) {
	base := t.TempDir()
	path := writeConfig(t, "base_dir: "+base+"\nstages:\n  generator:\n    tool: parsegen\n")

	cfg, res, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, FlavorGenerate, cfg.Flavor)
	assert.Equal(t, []string{"src/parser"}, cfg.SourceRoots)
	assert.Equal(t, []string{"**/*.gram"}, cfg.Includes)
	assert.Equal(t, "generated-src/parser", cfg.Stages.Generator.Output)
	assert.Equal(t, 1, cfg.Jobs)
	assert.Equal(t, "first", cfg.Policies.OnMetadataError)
	assert.True(t, cfg.Policies.AbortOnConfig())
	// Empty encoding is tolerated but called out.
	assert.NotEmpty(t, res.Warnings)
}

func TestLoadInfersTreeGenerateFromPreprocessor(t *testing.T) {
	base := t.TempDir()
	path := writeConfig(t, "base_dir: "+base+"\nstages:\n  preprocessor:\n    tool: treegen\n  generator:\n    tool: parsegen\n")

	cfg, _, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, FlavorTreeGenerate, cfg.Flavor)
	assert.Equal(t, []string{"src/tree"}, cfg.SourceRoots)
	assert.Equal(t, []string{"**/*.tgram"}, cfg.Includes)
	assert.Equal(t, "generated-src/tree", cfg.Stages.Preprocessor.Output)
	assert.Len(t, cfg.OutputDirs(), 2)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	base := t.TempDir()
	t.Setenv("GRAMBUILD_TEST_TOOL", "/opt/parsegen/bin/parsegen")
	path := writeConfig(t, "base_dir: "+base+"\nstages:\n  generator:\n    tool: ${GRAMBUILD_TEST_TOOL}\n")

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/parsegen/bin/parsegen", cfg.Stages.Generator.Tool)
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errs.IsConfig(err))
}

func TestNormalizeCoercesUnknownValues(t *testing.T) {
	cfg := &Config{
		Flavor:          "Tree-Generate",
		GrammarEncoding: "UTF-8",
		Policies: PolicyConfig{
			OnMetadataError:  "LAST",
			OnProcessorError: "sometimes",
		},
		Jobs: -3,
	}
	res := Normalize(cfg)

	assert.Equal(t, FlavorTreeGenerate, cfg.Flavor)
	assert.Equal(t, "last", cfg.Policies.OnMetadataError)
	assert.Equal(t, "first", cfg.Policies.OnProcessorError)
	assert.Equal(t, 1, cfg.Jobs)
	assert.NotEmpty(t, res.Warnings)
}

func TestNormalizeWarnsOnMissingEncoding(t *testing.T) {
	cfg := &Config{}
	res := Normalize(cfg)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "grammar_encoding")
}

func TestValidateRejectsNonDirectoryOutput(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "occupied"), []byte("x"), 0o644))
	path := writeConfig(t, "base_dir: "+base+"\nstages:\n  generator:\n    tool: parsegen\n    output: occupied\n")

	_, _, err := Load(path)
	require.Error(t, err)
	assert.True(t, errs.IsConfig(err))
}

func TestInitRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grambuild.yaml")

	require.NoError(t, Init(path, false))
	err := Init(path, false)
	require.Error(t, err)
	assert.True(t, errs.IsConfig(err))
	require.NoError(t, Init(path, true))

	cfg, _, loadErr := Load(path)
	require.NoError(t, loadErr)
	assert.Equal(t, "parsegen", cfg.Stages.Generator.Tool)
}

func TestOutputDirOption(t *testing.T) {
	assert.Equal(t, "TREE_OUTPUT_DIRECTORY", OutputDirOption("treegen"))
	assert.Equal(t, "OUTPUT_DIRECTORY", OutputDirOption("parsegen"))
}
