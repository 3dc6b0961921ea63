// Package orchestrator wires the scanner, the staleness evaluator, the stage
// pipeline and the escalation policies into one run: scan, filter, process
// every stale grammar, reconcile output and decide the final run status.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parsekit/grambuild/internal/config"
	"github.com/parsekit/grambuild/internal/deps"
	"github.com/parsekit/grambuild/internal/errs"
	"github.com/parsekit/grambuild/internal/grammar"
	"github.com/parsekit/grambuild/internal/history"
	"github.com/parsekit/grambuild/internal/lang"
	"github.com/parsekit/grambuild/internal/logfields"
	"github.com/parsekit/grambuild/internal/metrics"
	"github.com/parsekit/grambuild/internal/pipeline"
	"github.com/parsekit/grambuild/internal/policy"
	"github.com/parsekit/grambuild/internal/reconcile"
	"github.com/parsekit/grambuild/internal/scan"
	"github.com/parsekit/grambuild/internal/stage"
	"github.com/parsekit/grambuild/internal/templates"
	"github.com/parsekit/grambuild/internal/workspace"
)

// Orchestrator executes one configuration. Construct with New; the zero value
// is not usable.
type Orchestrator struct {
	cfg       *config.Config
	runner    stage.Runner
	recorder  metrics.Recorder
	store     history.Store
	extractor grammar.Extractor
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithRunner replaces the external-process stage runner (tests inject fakes).
func WithRunner(r stage.Runner) Option { return func(o *Orchestrator) { o.runner = r } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(o *Orchestrator) { o.recorder = r } }

// WithHistory sets the run-history store.
func WithHistory(s history.Store) Option { return func(o *Orchestrator) { o.store = s } }

// WithExtractor replaces the grammar metadata extractor.
func WithExtractor(ex grammar.Extractor) Option { return func(o *Orchestrator) { o.extractor = ex } }

// New builds an Orchestrator over a loaded, validated configuration.
func New(cfg *config.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		runner:   stage.ExecRunner{},
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Outcome values for a finished run.
const (
	OutcomeSuccess  = "success"
	OutcomeDegraded = "degraded" // failures swallowed by the ignore policy
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
)

// Result summarizes one run.
type Result struct {
	RunID     string
	Outcome   string
	Stale     int
	Current   int
	Succeeded int
	Failed    int
	// MetadataFailures counts units excluded during scanning.
	MetadataFailures int
}

// unitOutcome is what the processing loop reports per unit.
type unitOutcome struct {
	unit     scan.UnitDecision
	err      error
	duration time.Duration
}

// Run executes the whole orchestration. The returned error is non-nil when
// the escalation policies decide the run failed; the Result is returned in
// all cases except an aborting configuration error.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()[:8]
	start := time.Now()
	log := slog.With(logfields.RunID(runID))

	if o.cfg.Skip {
		log.Info("Skipping grammar processing as requested")
		return &Result{RunID: runID, Outcome: OutcomeSkipped}, nil
	}

	res, err := o.run(ctx, runID, log)
	if err != nil && errs.IsConfig(err) && !o.cfg.Policies.AbortOnConfig() {
		// Config errors are run-wide: under "continue" the whole execution is
		// skipped, not a single unit.
		log.Warn("Configuration problem, skipping execution", logfields.Error(err))
		return &Result{RunID: runID, Outcome: OutcomeSkipped}, nil
	}
	if res != nil {
		o.recorder.ObserveRunDuration(time.Since(start))
		o.recorder.IncRunOutcome(res.Outcome)
		o.appendHistory(ctx, res, start)
	}
	return res, err
}

// runSetup is everything run and Plan share before any unit is touched.
type runSetup struct {
	stages    []pipeline.Stage
	language  lang.Language
	encoding  string
	evaluator *scan.Evaluator
}

func (o *Orchestrator) prepare(ctx context.Context) (*runSetup, error) {
	stages, language, err := o.assembleStages()
	if err != nil {
		return nil, err
	}

	encoding := o.cfg.GrammarEncoding
	if enc := stages[len(stages)-1].Config.Encoding; enc != "" {
		encoding = enc
	}

	searchPath := make([]string, 0, len(o.cfg.ToolPath)+1)
	for _, p := range o.cfg.ToolPath {
		searchPath = append(searchPath, o.cfg.Abs(p))
	}
	if o.cfg.Templates != "" {
		dir, err := templates.Materialize(ctx, o.cfg.Templates, o.cfg.Abs(o.cfg.BuildDir))
		if err != nil {
			return nil, err
		}
		searchPath = append(searchPath, dir)
	}
	resolver := &deps.Resolver{SearchPath: searchPath}
	depTS := resolver.Latest(deps.Resources(language.SubDir)...)

	targets := make([]scan.Target, len(stages))
	for i, st := range stages {
		// Every stage but the last owns the intermediate hand-off artifact.
		targets[i] = scan.Target{Dir: st.OutputDir, Intermediate: i+1 < len(stages)}
	}
	return &runSetup{
		stages:   stages,
		language: language,
		encoding: encoding,
		evaluator: &scan.Evaluator{
			Targets:      targets,
			Slack:        time.Duration(o.cfg.TimestampSlackMS) * time.Millisecond,
			DependencyTS: depTS,
		},
	}, nil
}

// Plan scans without processing anything: the dry-run view of what a build
// would regenerate and why. Metadata failures are reported, never escalated.
type Plan struct {
	Stale            []scan.UnitDecision
	Current          []scan.UnitDecision
	MetadataFailures []error
}

func (o *Orchestrator) Plan(ctx context.Context) (*Plan, error) {
	setup, err := o.prepare(ctx)
	if err != nil {
		return nil, err
	}
	plan := &Plan{}
	for _, root := range o.cfg.AbsSourceRoots() {
		scanned, err := scan.Collect(scan.CollectConfig{
			Scanner:   scan.Scanner{Root: root, Includes: o.cfg.Includes, Excludes: o.cfg.Excludes},
			Language:  setup.language,
			Encoding:  setup.encoding,
			Extractor: o.extractor,
			Evaluator: setup.evaluator,
		})
		if err != nil {
			return nil, err
		}
		plan.Stale = append(plan.Stale, scanned.Stale...)
		plan.Current = append(plan.Current, scanned.Current...)
		plan.MetadataFailures = append(plan.MetadataFailures, scanned.MetadataFailures...)
	}
	return plan, nil
}

func (o *Orchestrator) run(ctx context.Context, runID string, log *slog.Logger) (*Result, error) {
	runStart := time.Now()
	setup, err := o.prepare(ctx)
	if err != nil {
		return nil, err
	}
	stages, language, encoding, evaluator := setup.stages, setup.language, setup.encoding, setup.evaluator
	log.Debug("Pipeline assembled",
		logfields.Language(language.Name), slog.Int("stages", len(stages)))

	metaMode, _ := policy.Parse(o.cfg.Policies.OnMetadataError)
	procMode, _ := policy.Parse(o.cfg.Policies.OnProcessorError)
	metaTracker := policy.NewTracker(metaMode)
	procTracker := policy.NewTracker(procMode)

	result := &Result{RunID: runID}
	var stale []scan.UnitDecision
	for _, root := range o.cfg.AbsSourceRoots() {
		log.Debug("Scanning source root", logfields.Root(root))
		scanned, err := scan.Collect(scan.CollectConfig{
			Scanner:   scan.Scanner{Root: root, Includes: o.cfg.Includes, Excludes: o.cfg.Excludes},
			Language:  language,
			Encoding:  encoding,
			Extractor: o.extractor,
			Evaluator: evaluator,
			FailFast:  metaMode == policy.First,
		})
		if err != nil {
			if errs.IsConfig(err) {
				return nil, err
			}
			// First policy: abort the scan, discarding partial results.
			return &Result{RunID: runID, Outcome: OutcomeFailed}, err
		}
		for _, failure := range scanned.MetadataFailures {
			metaTracker.Record(failure)
		}
		for range scanned.Current {
			o.recorder.IncUnitResult(o.cfg.Stages.Generator.Tool, metrics.ResultSkipped)
		}
		result.MetadataFailures += len(scanned.MetadataFailures)
		result.Current += len(scanned.Current)
		stale = append(stale, scanned.Stale...)
	}

	result.Stale = len(stale)
	o.recorder.SetStaleUnits(len(stale))
	if err := metaTracker.Resolve("grammar"); err != nil {
		// The "last" policy finishes the scan but forbids processing any
		// unit once a grammar could not be read.
		result.Outcome = OutcomeFailed
		return result, err
	}
	if len(stale) == 0 {
		log.Info("Nothing to process, all grammars are up to date",
			slog.Int("current", result.Current))
	}

	buildDir := o.cfg.Abs(o.cfg.BuildDir)
	p := &pipeline.Pipeline{
		Workspace: workspace.NewManager(buildDir, o.cfg.KeepIntermediate),
		Reconciler: &reconcile.Reconciler{
			Owned:      reconcile.OwnedLocations(o.cfg.AbsSourceRoots(), buildDir),
			OutputDirs: stageOutputDirs(stages),
		},
		Stages: stages,
	}

	outcomes := o.process(ctx, p, stale, procTracker)
	for _, out := range outcomes {
		o.recordUnit(ctx, runID, out)
		if out.err != nil {
			result.Failed++
		} else {
			result.Succeeded++
		}
	}

	log.Info("Run finished",
		slog.Int("successful", result.Succeeded),
		slog.Int("failed", result.Failed+result.MetadataFailures),
		logfields.DurationMS(time.Since(runStart).Seconds()*1000))

	return o.resolve(result, metaTracker, procTracker)
}

// process runs the stale units through the pipeline, sequentially or with a
// bounded worker pool. The First policy cancels outstanding work; Last and
// Ignore always run the batch to completion.
func (o *Orchestrator) process(ctx context.Context, p *pipeline.Pipeline, units []scan.UnitDecision, tracker *policy.Tracker) []unitOutcome {
	if len(units) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := o.cfg.Jobs
	if jobs < 1 {
		jobs = 1
	}
	if jobs > len(units) {
		jobs = len(units)
	}

	work := make(chan scan.UnitDecision)
	results := make(chan unitOutcome, len(units))

	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for unit := range work {
				if ctx.Err() != nil {
					// Batch aborted under the first policy; the unit is
					// never attempted and reports no outcome.
					continue
				}
				start := time.Now()
				err := p.Run(ctx, unit.Info)
				o.observeUnit(err, time.Since(start))
				if err != nil {
					slog.Error("Grammar processing failed",
						logfields.Unit(unit.Info.GrammarFile), logfields.Error(err))
					if tracker.Record(err) {
						cancel()
					}
				}
				results <- unitOutcome{unit: unit, err: err, duration: time.Since(start)}
			}
		}()
	}

feed:
	for _, unit := range units {
		select {
		case work <- unit:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()
	close(results)

	outcomes := make([]unitOutcome, 0, len(units))
	for out := range results {
		outcomes = append(outcomes, out)
	}
	// Units the aborted batch never attempted report no outcome but are
	// still visible in the metrics.
	for i := len(outcomes); i < len(units); i++ {
		o.recorder.IncUnitResult(o.cfg.Stages.Generator.Tool, metrics.ResultCanceled)
	}
	return outcomes
}

func (o *Orchestrator) observeUnit(err error, d time.Duration) {
	stageName := failedStage(err)
	if stageName == "" {
		stageName = o.cfg.Stages.Generator.Tool
	}
	o.recorder.ObserveStageDuration(stageName, d)
	if err != nil {
		o.recorder.IncUnitResult(stageName, metrics.ResultFailed)
	} else {
		o.recorder.IncUnitResult(stageName, metrics.ResultSuccess)
	}
}

// resolve consults the accumulated policy state once, after the batch.
func (o *Orchestrator) resolve(result *Result, metaTracker, procTracker *policy.Tracker) (*Result, error) {
	if err := metaTracker.Resolve("grammar"); err != nil {
		result.Outcome = OutcomeFailed
		return result, err
	}
	if err := procTracker.Resolve("processor"); err != nil {
		result.Outcome = OutcomeFailed
		return result, err
	}
	if result.Failed > 0 && procTracker.Mode() == policy.First {
		result.Outcome = OutcomeFailed
		failures := procTracker.Failures()
		return result, failures[0]
	}
	if result.MetadataFailures > 0 && metaTracker.Mode() == policy.First {
		result.Outcome = OutcomeFailed
		failures := metaTracker.Failures()
		return result, failures[0]
	}
	if metaTracker.Degraded() || procTracker.Degraded() {
		slog.Warn("Run degraded, failures were swallowed",
			logfields.Policy(string(policy.Ignore)))
		result.Outcome = OutcomeDegraded
		return result, nil
	}
	result.Outcome = OutcomeSuccess
	return result, nil
}

// assembleStages builds the immutable stage configs, checking two-stage
// consistency on encoding and language. The generator stage's effective
// language governs metadata extraction and reconciliation for the whole run.
func (o *Orchestrator) assembleStages() ([]pipeline.Stage, lang.Language, error) {
	gen := o.cfg.Stages.Generator
	genCfg, err := stage.Parse(gen.Tool, gen.Tool, gen.Args, config.OutputDirOption(gen.Tool))
	if err != nil {
		return nil, lang.Language{}, err
	}
	language := genCfg.EffectiveLanguage()

	var stages []pipeline.Stage
	if pre := o.cfg.Stages.Preprocessor; pre != nil {
		preCfg, err := stage.Parse(pre.Tool, pre.Tool, pre.Args, config.OutputDirOption(pre.Tool))
		if err != nil {
			return nil, lang.Language{}, err
		}
		if err := stage.CheckConsistent(preCfg, genCfg); err != nil {
			return nil, lang.Language{}, err
		}
		stages = append(stages, pipeline.Stage{
			Config:     preCfg,
			Runner:     o.runner,
			OutputDir:  o.stageOutputDir(preCfg, pre.Output),
			Extensions: language.AllExtensions(),
			// The preprocessor's output grammar is the hand-off artifact,
			// so it is always reconciled.
			CopyAnnotated: true,
		})
	}

	stages = append(stages, pipeline.Stage{
		Config:        genCfg,
		Runner:        o.runner,
		OutputDir:     o.stageOutputDir(genCfg, gen.Output),
		Extensions:    language.AllExtensions(),
		CopyAnnotated: gen.CopyAnnotated,
	})
	return stages, language, nil
}

// stageOutputDir resolves a stage's effective output directory. An output
// directory declared in the stage args wins over the configured one; both are
// canonicalized before any path comparison uses them.
func (o *Orchestrator) stageOutputDir(cfg stage.Config, configured string) string {
	dir := o.cfg.Abs(configured)
	if cfg.OutputDir != "" {
		dir = o.cfg.Abs(cfg.OutputDir)
		if dir != o.cfg.Abs(configured) {
			slog.Info("Stage output directory declared in stage args",
				logfields.Stage(cfg.Name), logfields.Output(dir))
		}
	}
	return reconcile.Canonical(dir)
}

// stageOutputDirs lists the effective output directories in stage order.
func stageOutputDirs(stages []pipeline.Stage) []string {
	out := make([]string, len(stages))
	for i, st := range stages {
		out[i] = st.OutputDir
	}
	return out
}

func (o *Orchestrator) recordUnit(ctx context.Context, runID string, out unitOutcome) {
	if o.store == nil {
		return
	}
	rec := history.UnitRecord{
		RunID:      runID,
		Unit:       out.unit.Info.GrammarFile,
		Decision:   out.unit.Decision.Reason,
		Outcome:    "success",
		DurationMS: out.duration.Milliseconds(),
	}
	if out.err != nil {
		rec.Outcome = "failed"
		rec.Detail = out.err.Error()
		rec.Stage = failedStage(out.err)
	}
	if err := o.store.AppendUnit(ctx, rec); err != nil {
		slog.Warn("Failed to record unit history", logfields.Error(err))
	}
}

func (o *Orchestrator) appendHistory(ctx context.Context, res *Result, start time.Time) {
	if o.store == nil {
		return
	}
	err := o.store.AppendRun(ctx, history.RunRecord{
		RunID:      res.RunID,
		StartedAt:  start,
		FinishedAt: time.Now(),
		Flavor:     o.cfg.Flavor,
		Outcome:    res.Outcome,
		Stale:      res.Stale,
		Succeeded:  res.Succeeded,
		Failed:     res.Failed + res.MetadataFailures,
	})
	if err != nil {
		slog.Warn("Failed to record run history", logfields.Error(err))
	}
}

// failedStage extracts the stage name from a processor error chain.
func failedStage(err error) string {
	var pe *errs.ProcessorError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}
