// Package pipeline drives one stale grammar through its configured generator
// stages and reconciles each stage's output. A pipeline has one stage (plain
// generation) or two (preprocessor feeding the generator).
package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/parsekit/grambuild/internal/errs"
	"github.com/parsekit/grambuild/internal/grammar"
	"github.com/parsekit/grambuild/internal/lang"
	"github.com/parsekit/grambuild/internal/logfields"
	"github.com/parsekit/grambuild/internal/reconcile"
	"github.com/parsekit/grambuild/internal/stage"
	"github.com/parsekit/grambuild/internal/workspace"
)

// Stage couples an invocation template with its runner and final destination.
type Stage struct {
	Config stage.Config
	Runner stage.Runner
	// OutputDir is the canonical directory the stage's reconciled output
	// lands in. For two-stage pipelines it is also where the next stage
	// resolves its input.
	OutputDir string
	// Extensions is the file-type filter for reconciliation, normally the
	// target language's extension set.
	Extensions []string
	// CopyAnnotated additionally reconciles the stage's transformed grammar
	// output. Always set for a preprocessor (its output grammar is the next
	// stage's input); optional for the generator. Never applies to the
	// beside-the-grammar pass, which would copy the grammar source itself.
	CopyAnnotated bool
}

// Pipeline processes units one at a time; a single value may be shared by
// concurrent goroutines since all fields are read-only after construction.
type Pipeline struct {
	Workspace  *workspace.Manager
	Reconciler *reconcile.Reconciler
	Stages     []Stage
}

// Run passes one unit through all stages. The returned error is a
// ProcessorError attributed to the failing stage; earlier stages' output has
// been reconciled and their intermediate directories torn down regardless.
func (p *Pipeline) Run(ctx context.Context, info *grammar.Info) error {
	current := info
	for i, st := range p.Stages {
		if err := ctx.Err(); err != nil {
			return errs.ProcessorWrap(err, st.Config.Name, info.GrammarFile, "run interrupted")
		}
		if err := p.runStage(ctx, st, info.GrammarFile, current); err != nil {
			return err
		}
		if i+1 < len(p.Stages) {
			// The preprocessor may rewrite or relocate the logical unit, so
			// the next stage re-derives the unit against the declared output.
			current = current.DeriveIntermediate(st.OutputDir)
			slog.Debug("Derived intermediate grammar",
				logfields.Unit(info.GrammarFile),
				logfields.Path(current.AbsoluteGrammarFile()))
		}
	}
	return nil
}

// runStage invokes the tool on the unit and reconciles the intermediate
// output. The intermediate directory is torn down in all paths once the
// stage's output has been reconciled (or the stage failed).
func (p *Pipeline) runStage(ctx context.Context, st Stage, unit string, current *grammar.Info) error {
	dir, err := p.Workspace.Intermediate(st.Config.Name)
	if err != nil {
		return errs.ProcessorWrap(err, st.Config.Name, unit, "preparing intermediate directory")
	}
	defer p.Workspace.Release(dir)

	input := current.AbsoluteGrammarFile()
	slog.Info("Running stage",
		logfields.Stage(st.Config.Name),
		logfields.Unit(unit),
		logfields.Path(input))
	if err := st.Runner.Run(ctx, st.Config, unit, dir, input); err != nil {
		return err
	}

	exts := st.Extensions
	if st.CopyAnnotated {
		exts = append(append([]string(nil), exts...), lang.IntermediateExt)
	}
	copied, err := p.Reconciler.Copy(st.Config.Name, unit, dir, st.OutputDir, current.SubDirectory, exts)
	if err != nil {
		return err
	}
	slog.Debug("Stage output reconciled",
		logfields.Stage(st.Config.Name),
		logfields.Unit(unit),
		logfields.Output(st.OutputDir),
		slog.Int("copied", copied))

	p.copyBesideGrammar(st, unit, current)
	return nil
}

// copyBesideGrammar preserves the legacy workflow of dropping hand-written
// files next to the grammar instead of declaring a separate source root. The
// grammar's own directory is treated as a pseudo-intermediate source when it
// is not user-owned territory; the pass is best-effort and never overrides a
// file reconciled from the stage's real output.
func (p *Pipeline) copyBesideGrammar(st Stage, unit string, current *grammar.Info) {
	grammarDir := filepath.Dir(current.AbsoluteGrammarFile())
	if p.Reconciler.OwnedContains(grammarDir) {
		return
	}
	copied, err := p.Reconciler.Copy(st.Config.Name, unit, grammarDir, st.OutputDir, current.SubDirectory, st.Extensions)
	if err != nil {
		slog.Warn("Copying files beside the grammar failed",
			logfields.Stage(st.Config.Name),
			logfields.Unit(unit),
			logfields.Error(err))
		return
	}
	if copied > 0 {
		slog.Debug("Copied files found beside the grammar",
			logfields.Stage(st.Config.Name),
			logfields.Unit(unit),
			slog.Int("copied", copied))
	}
}
