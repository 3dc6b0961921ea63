package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/parsekit/grambuild/internal/config"
	"github.com/parsekit/grambuild/internal/errs"
	"github.com/parsekit/grambuild/internal/history"
	"github.com/parsekit/grambuild/internal/logfields"
	"github.com/parsekit/grambuild/internal/metrics"
	"github.com/parsekit/grambuild/internal/orchestrator"
	"github.com/parsekit/grambuild/internal/report"
	"github.com/parsekit/grambuild/internal/watch"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"grambuild.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Jobs             int  `short:"j" help:"Override the number of parallel workers"`
		KeepIntermediate bool `help:"Keep intermediate stage directories for inspection"`
	} `cmd:"" help:"Regenerate stale grammar units"`

	Scan struct {
	} `cmd:"" help:"Show what a build would regenerate, without running anything"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Watch struct {
		Debounce    time.Duration `help:"Quiet period after a change before rebuilding" default:"500ms"`
		Interval    time.Duration `help:"Additionally rebuild on a fixed interval (0 disables)"`
		MetricsAddr string        `help:"Serve Prometheus metrics on this address (e.g. :9090)"`
	} `cmd:"" help:"Rebuild continuously when grammar sources change"`

	Report struct {
		Run    string `short:"r" help:"Run ID to report on (default: most recent run)"`
		Output string `short:"o" help:"HTML report output path" default:"grambuild-report.html"`
	} `cmd:"" help:"Render an HTML report from the run history"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	var err error
	switch ctx.Command() {
	case "build":
		err = runBuild()
	case "scan":
		err = runScan()
	case "init":
		err = runInit(CLI.Config, CLI.Init.Force)
	case "watch":
		err = runWatch()
	case "report":
		err = runReport()
	}
	if err != nil {
		slog.Error("Command failed", logfields.Error(err))
		if errs.IsConfig(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// loadConfig loads and normalizes the configuration, surfacing every
// normalization warning before any work starts.
func loadConfig() (*config.Config, error) {
	cfg, norm, err := config.Load(CLI.Config)
	if err != nil {
		return nil, err
	}
	for _, w := range norm.Warnings {
		slog.Warn("Configuration adjusted", slog.String("detail", w))
	}
	return cfg, nil
}

func runBuild() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if CLI.Build.Jobs > 0 {
		cfg.Jobs = CLI.Build.Jobs
	}
	if CLI.Build.KeepIntermediate {
		cfg.KeepIntermediate = true
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := history.NewSQLiteStore(cfg.Abs(cfg.History))
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := orchestrator.New(cfg, orchestrator.WithHistory(store)).Run(ctx)
	if err != nil {
		return err
	}
	slog.Info("Build complete",
		logfields.RunID(res.RunID),
		slog.String("outcome", res.Outcome),
		slog.Int("regenerated", res.Succeeded),
		slog.Int("up_to_date", res.Current))
	return nil
}

func runScan() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	plan, err := orchestrator.New(cfg).Plan(ctx)
	if err != nil {
		return err
	}
	for _, unit := range plan.Stale {
		fmt.Printf("stale    %s  (%s)\n", unit.Info.GrammarFile, unit.Decision.Reason)
	}
	for _, unit := range plan.Current {
		fmt.Printf("current  %s\n", unit.Info.GrammarFile)
	}
	for _, err := range plan.MetadataFailures {
		fmt.Printf("error    %v\n", err)
	}
	fmt.Printf("%d stale, %d current, %d unreadable\n",
		len(plan.Stale), len(plan.Current), len(plan.MetadataFailures))
	return nil
}

func runInit(configPath string, force bool) error {
	slog.Info("Initializing configuration", logfields.Path(configPath), slog.Bool("force", force))
	return config.Init(configPath, force)
}

func runWatch() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := history.NewSQLiteStore(cfg.Abs(cfg.History))
	if err != nil {
		return err
	}
	defer store.Close()

	opts := []orchestrator.Option{orchestrator.WithHistory(store)}
	if CLI.Watch.MetricsAddr != "" {
		reg := prom.NewRegistry()
		opts = append(opts, orchestrator.WithRecorder(metrics.NewPrometheusRecorder(reg)))
		srv := &http.Server{Addr: CLI.Watch.MetricsAddr, Handler: metrics.HTTPHandler(reg)}
		go func() {
			slog.Info("Serving metrics", slog.String("addr", CLI.Watch.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", logfields.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	w := &watch.Watcher{
		Roots:    cfg.AbsSourceRoots(),
		Debounce: CLI.Watch.Debounce,
		Interval: CLI.Watch.Interval,
		Rebuild: func(ctx context.Context) error {
			_, err := orchestrator.New(cfg, opts...).Run(ctx)
			return err
		},
	}
	slog.Info("Watching for grammar changes", slog.Any("roots", cfg.SourceRoots))
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	slog.Info("Watch stopped")
	return nil
}

func runReport() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := history.NewSQLiteStore(cfg.Abs(cfg.History))
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := selectRun(ctx, store, CLI.Report.Run)
	if err != nil {
		return err
	}
	units, err := store.UnitsByRun(ctx, run.RunID)
	if err != nil {
		return err
	}
	if err := report.Write(CLI.Report.Output, run, units); err != nil {
		return err
	}
	slog.Info("Report written",
		logfields.RunID(run.RunID), logfields.Path(CLI.Report.Output))
	return nil
}

func selectRun(ctx context.Context, store history.Store, runID string) (history.RunRecord, error) {
	if runID == "" {
		runs, err := store.RecentRuns(ctx, 1)
		if err != nil {
			return history.RunRecord{}, err
		}
		if len(runs) == 0 {
			return history.RunRecord{}, fmt.Errorf("no recorded runs; run a build first")
		}
		return runs[0], nil
	}
	runs, err := store.RecentRuns(ctx, 100)
	if err != nil {
		return history.RunRecord{}, err
	}
	for _, r := range runs {
		if r.RunID == runID {
			return r, nil
		}
	}
	return history.RunRecord{}, fmt.Errorf("run %q not found in history", runID)
}
