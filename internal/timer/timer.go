// Package timer accumulates per-phase wall time for the performance
// summary and the YAML report.
package timer

import "time"

// Key names one timed phase.
type Key int

const (
	Total Key = iota
	Force
	Neigh
	Comm
	Sort
	nKeys
)

func (k Key) String() string {
	switch k {
	case Total:
		return "total"
	case Force:
		return "force"
	case Neigh:
		return "neigh"
	case Comm:
		return "comm"
	case Sort:
		return "sort"
	}
	return "other"
}

// Timer is a set of accumulating stopwatches. Stamp-style usage mirrors
// the inner loop: call Stamp once, then StampTo after each phase.
type Timer struct {
	acc  [nKeys]time.Duration
	mark time.Time
}

// New creates a timer.
func New() *Timer {
	return &Timer{mark: time.Now()}
}

// Stamp resets the running mark.
func (t *Timer) Stamp() {
	t.mark = time.Now()
}

// StampTo charges the time since the last stamp to key and re-stamps.
func (t *Timer) StampTo(k Key) {
	now := time.Now()
	t.acc[k] += now.Sub(t.mark)
	t.mark = now
}

// Start returns a handle charging elapsed time to key on Stop.
func (t *Timer) Start(k Key) func() {
	begin := time.Now()
	return func() {
		t.acc[k] += time.Since(begin)
	}
}

// Seconds returns the accumulated time for key.
func (t *Timer) Seconds(k Key) float64 {
	return t.acc[k].Seconds()
}

// Other returns total time not accounted to force, neighbor or comm.
func (t *Timer) Other() float64 {
	return t.Seconds(Total) - t.Seconds(Force) - t.Seconds(Neigh) - t.Seconds(Comm)
}
