// Package watch re-runs the orchestration whenever grammar sources change.
// File-system events are debounced so a burst of writes triggers one rebuild;
// an optional interval schedule forces periodic full rebuilds on top.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"github.com/parsekit/grambuild/internal/logfields"
)

// Rebuild is invoked for every triggered rebuild. Errors are logged and the
// watcher keeps running; watch mode never aborts on a failed build.
type Rebuild func(ctx context.Context) error

// Watcher triggers rebuilds from file events and an optional schedule.
type Watcher struct {
	// Roots are the directories watched recursively.
	Roots []string
	// Debounce collapses bursts of events. Zero uses a sensible default.
	Debounce time.Duration
	// Interval adds a periodic full rebuild; zero disables it.
	Interval time.Duration
	Rebuild  Rebuild
}

const defaultDebounce = 500 * time.Millisecond

// Run blocks until ctx is cancelled, rebuilding on changes. The initial
// rebuild runs before watching starts so the tree is current from the start.
func (w *Watcher) Run(ctx context.Context) error {
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	for _, root := range w.Roots {
		if err := addRecursive(fw, root); err != nil {
			return err
		}
	}

	trigger := make(chan struct{}, 1)
	if w.Interval > 0 {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		_, err = scheduler.NewJob(
			gocron.DurationJob(w.Interval),
			gocron.NewTask(func() { requestRebuild(trigger) }),
			gocron.WithName("periodic-rebuild"),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule periodic rebuild: %w", err)
		}
		scheduler.Start()
		defer func() { _ = scheduler.Shutdown() }()
	}

	w.build(ctx)

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				// New directories must join the watch set.
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					_ = addRecursive(fw, event.Name)
				}
			}
			slog.Debug("Source change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("File watcher error", logfields.Error(err))

		case <-timerC:
			timer = nil
			timerC = nil
			w.build(ctx)

		case <-trigger:
			w.build(ctx)
		}
	}
}

func (w *Watcher) build(ctx context.Context) {
	slog.Info("Rebuilding")
	if err := w.Rebuild(ctx); err != nil {
		slog.Error("Rebuild failed", logfields.Error(err))
	}
}

func requestRebuild(trigger chan struct{}) {
	select {
	case trigger <- struct{}{}:
	default: // one pending rebuild is enough
	}
}

// addRecursive watches root and every directory below it.
func addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to watch %q: %w", path, err)
		}
		if d.IsDir() {
			if err := fw.Add(path); err != nil {
				return fmt.Errorf("failed to watch %q: %w", path, err)
			}
		}
		return nil
	})
}
