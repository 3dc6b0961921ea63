package scan

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/parsekit/grambuild/internal/grammar"
	"github.com/parsekit/grambuild/internal/logfields"
)

// Decision records whether a unit must be regenerated, together with the
// evidence that led there. Computed once per run and never cached across runs.
type Decision struct {
	Stale        bool
	Reason       string
	GrammarTime  time.Time
	ArtifactTime time.Time // zero when no artifact was found
	Artifact     string    // absolute path of the artifact the decision hinged on
}

// Target is one output location a unit's pipeline writes to, together with
// which of the unit's artifacts is authoritative there.
type Target struct {
	Dir string
	// Intermediate selects the preprocessor's output grammar instead of the
	// generator's main artifact.
	Intermediate bool
}

// Evaluator decides staleness from the grammar's mtime, the relevant
// artifact's mtime in each target location, the most recent dependency
// timestamp (generator distributables, template overrides) and a signed slack
// delta. A negative slack forces regeneration unconditionally.
type Evaluator struct {
	Targets      []Target
	Slack        time.Duration
	DependencyTS time.Time
}

// Evaluate returns the build decision for one unit. The unit is stale when it
// is stale with respect to any of its target locations.
func (e *Evaluator) Evaluate(info *grammar.Info, grammarTime time.Time) Decision {
	if e.Slack < 0 {
		return Decision{Stale: true, Reason: "negative slack, regeneration forced", GrammarTime: grammarTime}
	}
	if info.MainGeneratedFile == "" {
		// No way to locate a main artifact; regenerate conservatively.
		return Decision{Stale: true, Reason: "no main artifact name for target", GrammarTime: grammarTime}
	}

	for _, target := range e.Targets {
		rel := info.MainGeneratedFile
		if target.Intermediate {
			if info.IntermediateFile == "" {
				continue
			}
			rel = info.IntermediateFile
		}
		artifact := filepath.Join(target.Dir, rel)
		fi, ok := statFile(artifact)
		if !ok {
			return Decision{
				Stale:       true,
				Reason:      "no existing main generated file",
				GrammarTime: grammarTime,
				Artifact:    artifact,
			}
		}
		artifactTime := fi.ModTime()
		slog.Debug("Comparing timestamps", logfields.Unit(info.GrammarFile),
			logfields.Path(artifact),
			slog.Time("grammar", grammarTime), slog.Time("artifact", artifactTime))
		if artifactTime.Add(e.Slack).Before(grammarTime) {
			return Decision{
				Stale:        true,
				Reason:       "grammar newer than main generated file",
				GrammarTime:  grammarTime,
				ArtifactTime: artifactTime,
				Artifact:     artifact,
			}
		}
		if !e.DependencyTS.IsZero() && artifactTime.Add(e.Slack).Before(e.DependencyTS) {
			return Decision{
				Stale:        true,
				Reason:       fmt.Sprintf("main generated file older than generator dependencies (%s)", e.DependencyTS.Format(time.RFC3339)),
				GrammarTime:  grammarTime,
				ArtifactTime: artifactTime,
				Artifact:     artifact,
			}
		}
	}

	return Decision{Stale: false, Reason: "up to date", GrammarTime: grammarTime}
}
