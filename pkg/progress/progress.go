// Package progress tracks completion of one batch invocation.
package progress

import (
	"math"
	"sync"
)

// Snapshot is the tracker state observed at one Record call.
type Snapshot struct {
	Processed int
	Succeeded int
	Total     int

	// Percent is Processed/Total*100 rounded to three decimals.
	// An empty batch reports 100.
	Percent float64
}

// Tracker counts processed and succeeded items against a known total.
// Create one per invocation; the zero value is not usable.
type Tracker struct {
	mu        sync.Mutex
	total     int
	processed int
	succeeded int
}

// New returns a tracker for total items.
func New(total int) *Tracker {
	if total < 0 {
		total = 0
	}
	return &Tracker{total: total}
}

// Record counts one processed item and returns the state after the increment.
// Increment and read happen under one lock, so the percentages seen across
// calls are non-decreasing.
func (t *Tracker) Record(success bool) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.processed++
	if success {
		t.succeeded++
	}
	return t.snapshotLocked()
}

// Snapshot returns the current state without recording anything.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{
		Processed: t.processed,
		Succeeded: t.succeeded,
		Total:     t.total,
		Percent:   Percent(t.processed, t.total),
	}
}

// Percent returns processed/total*100 rounded to three decimals.
func Percent(processed, total int) float64 {
	if total <= 0 {
		return 100
	}
	return math.Round(float64(processed)/float64(total)*100*1000) / 1000
}
