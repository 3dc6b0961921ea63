package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsekit/grambuild/internal/errs"
	"github.com/parsekit/grambuild/internal/lang"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o750))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func collectConfig(root, out string) CollectConfig {
	return CollectConfig{
		Scanner:   Scanner{Root: root, Includes: []string{"**/*.gram"}},
		Language:  lang.Java,
		Evaluator: &Evaluator{Targets: []Target{{Dir: out}}, Slack: 0},
	}
}

func TestCollectSplitsStaleAndCurrent(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeFile(t, root, "A.gram", "PARSER_BEGIN(AParser)\n")
	writeFile(t, root, "sub/B.gram", "package x.y;\nPARSER_BEGIN(BParser)\n")
	// B already generated, newer than its grammar.
	writeFile(t, out, filepath.Join("x", "y", "BParser.java"), "gen")

	res, err := Collect(collectConfig(root, out))
	require.NoError(t, err)
	require.Len(t, res.Stale, 1)
	require.Len(t, res.Current, 1)
	assert.Equal(t, "A.gram", res.Stale[0].Info.GrammarFile)
	assert.Empty(t, res.MetadataFailures)
}

func TestCollectFailFastAbortsOnFirstMetadataError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bad.gram", "no marker here\n")
	writeFile(t, root, "ok.gram", "PARSER_BEGIN(OK)\n")

	cfg := collectConfig(root, t.TempDir())
	cfg.FailFast = true
	_, err := Collect(cfg)
	require.Error(t, err)
	assert.True(t, errs.IsMetadata(err))
}

func TestCollectRecordsAndExcludesFailures(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bad.gram", "no marker here\n")
	writeFile(t, root, "ok.gram", "PARSER_BEGIN(OK)\n")

	res, err := Collect(collectConfig(root, t.TempDir()))
	require.NoError(t, err)
	assert.Len(t, res.MetadataFailures, 1)
	require.Len(t, res.Stale, 1)
	assert.Equal(t, "ok.gram", res.Stale[0].Info.GrammarFile)
}
