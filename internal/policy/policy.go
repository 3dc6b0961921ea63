// Package policy implements the three-tier error escalation rules that decide
// how metadata and processor failures affect the overall run: abort on the
// first failure, finish the batch and fail at the end, or swallow failures
// and succeed.
package policy

import (
	"fmt"
	"strings"
	"sync"
)

// Mode is one escalation policy value.
type Mode string

const (
	// First aborts on the first failure; remaining units are never attempted.
	First Mode = "first"
	// Last finishes the batch, then fails the run if anything failed.
	Last Mode = "last"
	// Ignore finishes the batch and reports success regardless of failures.
	Ignore Mode = "ignore"
)

// Parse normalizes a policy string. Unknown values fall back to First with
// ok=false so the caller can warn.
func Parse(value string) (Mode, bool) {
	switch Mode(strings.ToLower(value)) {
	case First:
		return First, true
	case Last:
		return Last, true
	case Ignore:
		return Ignore, true
	}
	return First, false
}

// Tracker accumulates failures for one error class across a batch. Once
// degraded it never returns to clean mid-batch; the accumulated flag, not the
// most recent unit's outcome, decides the final result. Safe for concurrent
// units.
type Tracker struct {
	mode Mode

	mu       sync.Mutex
	failures []error
}

// NewTracker builds a tracker for a class governed by mode.
func NewTracker(mode Mode) *Tracker {
	return &Tracker{mode: mode}
}

// Mode returns the governing policy value.
func (t *Tracker) Mode() Mode { return t.mode }

// Record registers a failure. It returns abort=true only under the First
// policy, telling the caller to stop the batch immediately.
func (t *Tracker) Record(err error) (abort bool) {
	t.mu.Lock()
	t.failures = append(t.failures, err)
	t.mu.Unlock()
	return t.mode == First
}

// Degraded reports whether any failure has been recorded.
func (t *Tracker) Degraded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.failures) > 0
}

// Failures returns the recorded failures in arrival order.
func (t *Tracker) Failures() []error {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]error, len(t.failures))
	copy(out, t.failures)
	return out
}

// Resolve is consulted once, after the batch. It returns a non-nil error when
// the accumulated state must fail the run (Last with failures); under Ignore
// the run stays successful and failures live on in the logs only.
func (t *Tracker) Resolve(class string) error {
	t.mu.Lock()
	n := len(t.failures)
	t.mu.Unlock()
	if n == 0 || t.mode != Last {
		return nil
	}
	return fmt.Errorf("%d %s error(s) encountered (see above), batch finished and leaving execution", n, class)
}
