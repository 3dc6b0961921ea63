package scan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsekit/grambuild/internal/grammar"
)

func infoFor(main string) *grammar.Info {
	return &grammar.Info{
		SourceDir:         "/src",
		GrammarFile:       "A.gram",
		UnitName:          "AParser",
		MainGeneratedFile: main,
	}
}

func writeAt(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("gen"), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestNegativeSlackForcesRegeneration(t *testing.T) {
	out := t.TempDir()
	now := time.Now()
	writeAt(t, filepath.Join(out, "AParser.java"), now.Add(time.Hour))

	e := &Evaluator{Targets: []Target{{Dir: out}}, Slack: -1}
	d := e.Evaluate(infoFor("AParser.java"), now)
	assert.True(t, d.Stale)
}

func TestMissingArtifactIsStale(t *testing.T) {
	e := &Evaluator{Targets: []Target{{Dir: t.TempDir()}}, Slack: 0}
	d := e.Evaluate(infoFor("AParser.java"), time.Now())
	assert.True(t, d.Stale)
	assert.Equal(t, "no existing main generated file", d.Reason)
}

func TestGrammarNewerThanArtifactIsStale(t *testing.T) {
	out := t.TempDir()
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	writeAt(t, filepath.Join(out, "AParser.java"), base)

	e := &Evaluator{Targets: []Target{{Dir: out}}, Slack: 0}
	d := e.Evaluate(infoFor("AParser.java"), base.Add(10*time.Second))
	assert.True(t, d.Stale)
	assert.False(t, d.ArtifactTime.IsZero())
}

func TestArtifactNewerThanGrammarIsCurrent(t *testing.T) {
	out := t.TempDir()
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	writeAt(t, filepath.Join(out, "AParser.java"), base.Add(time.Minute))

	e := &Evaluator{Targets: []Target{{Dir: out}}, Slack: 0}
	d := e.Evaluate(infoFor("AParser.java"), base)
	assert.False(t, d.Stale)
}

func TestSlackAbsorbsSmallSkew(t *testing.T) {
	out := t.TempDir()
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	writeAt(t, filepath.Join(out, "AParser.java"), base)

	e := &Evaluator{Targets: []Target{{Dir: out}}, Slack: 30 * time.Second}
	d := e.Evaluate(infoFor("AParser.java"), base.Add(10*time.Second))
	assert.False(t, d.Stale, "10s skew within 30s slack must be current")
}

func TestDependencyNewerThanArtifactIsStale(t *testing.T) {
	out := t.TempDir()
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	writeAt(t, filepath.Join(out, "AParser.java"), base)

	e := &Evaluator{
		Targets:      []Target{{Dir: out}},
		Slack:        0,
		DependencyTS: base.Add(time.Minute),
	}
	d := e.Evaluate(infoFor("AParser.java"), base.Add(-time.Minute))
	assert.True(t, d.Stale)
}

func TestStaleInAnyOutputLocation(t *testing.T) {
	fresh := t.TempDir()
	empty := t.TempDir()
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	writeAt(t, filepath.Join(fresh, "AParser.java"), base.Add(time.Minute))

	e := &Evaluator{Targets: []Target{{Dir: fresh}, {Dir: empty}}, Slack: 0}
	d := e.Evaluate(infoFor("AParser.java"), base)
	assert.True(t, d.Stale, "unit must be stale when any output location misses the artifact")
}

func TestIntermediateTargetChecksPreprocessorArtifact(t *testing.T) {
	treeOut := t.TempDir()
	out := t.TempDir()
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	writeAt(t, filepath.Join(out, "AParser.java"), base.Add(time.Minute))

	info := infoFor("AParser.java")
	info.IntermediateFile = "A.gram"

	e := &Evaluator{Targets: []Target{{Dir: treeOut, Intermediate: true}, {Dir: out}}, Slack: 0}
	d := e.Evaluate(info, base)
	assert.True(t, d.Stale, "missing intermediate grammar must make the unit stale")

	writeAt(t, filepath.Join(treeOut, "A.gram"), base.Add(time.Minute))
	d = e.Evaluate(info, base)
	assert.False(t, d.Stale)
}

func TestIntermediateTargetSkippedWithoutIntermediateArtifact(t *testing.T) {
	out := t.TempDir()
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	writeAt(t, filepath.Join(out, "AParser.java"), base.Add(time.Minute))

	// Generator-only pipelines never carry an intermediate name; an
	// intermediate target contributes nothing then.
	e := &Evaluator{Targets: []Target{{Dir: t.TempDir(), Intermediate: true}, {Dir: out}}, Slack: 0}
	d := e.Evaluate(infoFor("AParser.java"), base)
	assert.False(t, d.Stale)
}

func TestNoMainArtifactNameIsConservativelyStale(t *testing.T) {
	e := &Evaluator{Targets: []Target{{Dir: t.TempDir()}}, Slack: 0}
	d := e.Evaluate(infoFor(""), time.Now())
	assert.True(t, d.Stale)
}
