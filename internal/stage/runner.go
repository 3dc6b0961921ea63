package stage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/parsekit/grambuild/internal/errs"
	"github.com/parsekit/grambuild/internal/logfields"
)

// Runner invokes a single stage on one grammar. unit is the grammar's relative
// path, used only for error attribution.
type Runner interface {
	Run(ctx context.Context, cfg Config, unit, intermediateDir, inputFile string) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, cfg Config, unit, intermediateDir, inputFile string) error

func (f RunnerFunc) Run(ctx context.Context, cfg Config, unit, intermediateDir, inputFile string) error {
	return f(ctx, cfg, unit, intermediateDir, inputFile)
}

// ExecRunner runs the stage tool as an external process. Tool output is
// captured and logged rather than inherited, so parallel units don't
// interleave on the console.
type ExecRunner struct {
	// Timeout bounds one invocation. Zero means no per-invocation deadline.
	Timeout time.Duration
}

func (r ExecRunner) Run(ctx context.Context, cfg Config, unit, intermediateDir, inputFile string) error {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := cfg.CommandArgs(intermediateDir, inputFile)
	slog.Debug("Invoking stage tool",
		logfields.Stage(cfg.Name),
		logfields.Unit(unit),
		slog.String("tool", cfg.Tool),
		slog.String("args", strings.Join(args, " ")))

	// #nosec G204 -- tool and args come from the run configuration
	cmd := exec.CommandContext(ctx, cfg.Tool, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	start := time.Now()
	err := cmd.Run()
	logTool(cfg.Name, unit, outBuf.String(), errBuf.String())

	if err == nil {
		slog.Debug("Stage tool finished",
			logfields.Stage(cfg.Name),
			logfields.Unit(unit),
			logfields.DurationMS(time.Since(start).Seconds()*1000))
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return errs.ProcessorWrap(ctxErr, cfg.Name, unit, "tool %q interrupted", cfg.Tool)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return errs.Processor(cfg.Name, unit, "tool %q exited with code %d", cfg.Tool, exitErr.ExitCode())
	}
	return errs.ProcessorWrap(err, cfg.Name, unit, "tool %q could not be started", cfg.Tool)
}

// logTool forwards the captured tool output line by line. Generators report
// grammar diagnostics on stderr, so those lines go to the warn level.
func logTool(stage, unit, stdout, stderr string) {
	for _, line := range splitLines(stdout) {
		slog.Info(line, logfields.Stage(stage), logfields.Unit(unit))
	}
	for _, line := range splitLines(stderr) {
		slog.Warn(line, logfields.Stage(stage), logfields.Unit(unit))
	}
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
