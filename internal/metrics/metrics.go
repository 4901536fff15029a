package metrics

import (
	"sync/atomic"
	"time"
)

type Counter struct {
	value atomic.Uint64
}

func (c *Counter) Inc() {
	c.value.Add(1)
}

func (c *Counter) Add(n uint64) {
	c.value.Add(n)
}

func (c *Counter) Load() uint64 {
	return c.value.Load()
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Histogram keeps count and total of observed durations.
type Histogram struct {
	count   atomic.Uint64
	totalNs atomic.Int64
	maxNs   atomic.Int64
}

func (h *Histogram) Observe(d time.Duration) {
	h.count.Add(1)
	h.totalNs.Add(int64(d))
	for {
		cur := h.maxNs.Load()
		if int64(d) <= cur || h.maxNs.CompareAndSwap(cur, int64(d)) {
			return
		}
	}
}

func (h *Histogram) Count() uint64 {
	return h.count.Load()
}

func (h *Histogram) Mean() time.Duration {
	n := h.count.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(h.totalNs.Load() / int64(n))
}

func (h *Histogram) Max() time.Duration {
	return time.Duration(h.maxNs.Load())
}

// Orders groups the order lifecycle counters.
type Orders struct {
	Transitions       Counter
	TransitionsFailed Counter
	BulkBatches       Counter
	BulkItems         Counter
	BulkItemsFailed   Counter
	BulkDuration      Histogram
}

type Snapshot struct {
	Transitions       uint64  `json:"transitions"`
	TransitionsFailed uint64  `json:"transitions_failed"`
	BulkBatches       uint64  `json:"bulk_batches"`
	BulkItems         uint64  `json:"bulk_items"`
	BulkItemsFailed   uint64  `json:"bulk_items_failed"`
	BulkMeanMillis    float64 `json:"bulk_mean_ms"`
	BulkMaxMillis     float64 `json:"bulk_max_ms"`
}

func (o *Orders) Snapshot() Snapshot {
	return Snapshot{
		Transitions:       o.Transitions.Load(),
		TransitionsFailed: o.TransitionsFailed.Load(),
		BulkBatches:       o.BulkBatches.Load(),
		BulkItems:         o.BulkItems.Load(),
		BulkItemsFailed:   o.BulkItemsFailed.Load(),
		BulkMeanMillis:    float64(o.BulkDuration.Mean()) / float64(time.Millisecond),
		BulkMaxMillis:     float64(o.BulkDuration.Max()) / float64(time.Millisecond),
	}
}
