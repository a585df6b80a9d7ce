package catalog

import (
	"context"
	"time"
)

// Timeouts is the maximum age of a record per collection and per slot.
// A zero or missing entry disables expiry for it.
type Timeouts struct {
	Collections map[Collection]time.Duration
	Slots       map[Slot]time.Duration
}

// UniformTimeouts returns the same ttl for every collection and slot.
func UniformTimeouts(ttl time.Duration) Timeouts {
	t := Timeouts{
		Collections: make(map[Collection]time.Duration),
		Slots:       make(map[Slot]time.Duration),
	}
	for _, c := range AllCollections() {
		t.Collections[c] = ttl
	}
	for _, s := range AllSlots() {
		t.Slots[s] = ttl
	}
	return t
}

// SweepResult describes one reaper pass.
type SweepResult struct {
	At       time.Time
	Removed  map[Collection]int
	Cleared  []Slot
	Duration time.Duration
}

// Total returns the number of records removed plus slots cleared.
func (r SweepResult) Total() int {
	n := len(r.Cleared)
	for _, v := range r.Removed {
		n += v
	}
	return n
}

// SweepRecorder receives the outcome of every sweep together with the
// collection sizes afterwards. The catalog wires InfluxDB here.
type SweepRecorder interface {
	RecordSweep(result SweepResult, counts map[string]int)
}

// Reaper expires records whose age exceeds their collection's timeout.
type Reaper struct {
	store    *Store
	timeouts Timeouts
	interval time.Duration
	recorder SweepRecorder
	logger   Logger
}

// NewReaper creates a reaper over store that sweeps every interval.
func NewReaper(store *Store, timeouts Timeouts, interval time.Duration) *Reaper {
	return &Reaper{
		store:    store,
		timeouts: timeouts,
		interval: interval,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the reaper.
func (r *Reaper) SetLogger(logger Logger) {
	r.logger = logger
}

// SetRecorder sets an optional sink for sweep statistics.
func (r *Reaper) SetRecorder(rec SweepRecorder) {
	r.recorder = rec
}

// Sweep runs one pass under the store's write lock. Records older than
// their timeout are removed, expired slots are reset to empty, and the
// store flushes once if anything changed.
func (r *Reaper) Sweep() SweepResult {
	start := time.Now()
	removed, cleared, at := r.store.sweep(r.timeouts)
	result := SweepResult{
		At:       at,
		Removed:  removed,
		Cleared:  cleared,
		Duration: time.Since(start),
	}

	if result.Total() > 0 {
		r.logger.Info("reaper removed stale records",
			"removed", result.Removed,
			"cleared_slots", result.Cleared,
		)
	} else {
		r.logger.Debug("reaper sweep found nothing stale")
	}

	if r.recorder != nil {
		r.recorder.RecordSweep(result, r.store.Stats())
	}
	return result
}

// Run sweeps every interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started", "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
