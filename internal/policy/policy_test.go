package policy

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"first", First, true},
		{"LAST", Last, true},
		{"Ignore", Ignore, true},
		{"whenever", First, false},
		{"", First, false},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestFirstAbortsImmediately(t *testing.T) {
	tr := NewTracker(First)
	assert.True(t, tr.Record(errors.New("unit 2 failed")))
}

func TestLastAccumulatesAndResolvesFailure(t *testing.T) {
	tr := NewTracker(Last)
	assert.False(t, tr.Record(errors.New("unit 2 failed")))
	assert.True(t, tr.Degraded())
	assert.Error(t, tr.Resolve("processor"))
}

func TestIgnoreAccumulatesButResolvesClean(t *testing.T) {
	tr := NewTracker(Ignore)
	assert.False(t, tr.Record(errors.New("unit 2 failed")))
	assert.True(t, tr.Degraded())
	assert.NoError(t, tr.Resolve("processor"))
	assert.Len(t, tr.Failures(), 1)
}

func TestCleanTrackerResolvesClean(t *testing.T) {
	assert.NoError(t, NewTracker(Last).Resolve("metadata"))
}

func TestDegradedNeverResetsMidBatch(t *testing.T) {
	tr := NewTracker(Last)
	tr.Record(errors.New("early failure"))
	// Later successes do not touch the tracker; state stays degraded.
	assert.True(t, tr.Degraded())
}

func TestConcurrentRecords(t *testing.T) {
	tr := NewTracker(Ignore)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Record(errors.New("concurrent failure"))
		}()
	}
	wg.Wait()
	assert.Len(t, tr.Failures(), 32)
}
