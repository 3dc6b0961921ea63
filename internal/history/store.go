// Package history persists per-run and per-unit records so past runs can be
// inspected and rendered into reports.
package history

import (
	"context"
	"time"
)

// RunRecord summarizes one orchestration run.
type RunRecord struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Flavor     string
	// Outcome is success, degraded or failed.
	Outcome   string
	Stale     int
	Succeeded int
	Failed    int
}

// UnitRecord captures the fate of one grammar within a run.
type UnitRecord struct {
	RunID string
	Unit  string
	// Stage names the failing stage, empty on success.
	Stage string
	// Decision is the staleness reason the scan recorded.
	Decision string
	// Outcome is success, failed or skipped.
	Outcome    string
	Detail     string
	DurationMS int64
}

// Store persists and retrieves run history.
type Store interface {
	AppendRun(ctx context.Context, run RunRecord) error
	AppendUnit(ctx context.Context, unit UnitRecord) error

	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
	// UnitsByRun returns a run's unit records in insertion order.
	UnitsByRun(ctx context.Context, runID string) ([]UnitRecord, error)

	Close() error
}
