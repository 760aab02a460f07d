// Package metrics aggregates per-session durations and outcomes.
package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector records per-session metrics in a thread-safe manner.
type Collector struct {
	mu           sync.Mutex
	hist         *hdrhistogram.Histogram
	successes    int64
	failures     int64
	minDuration  time.Duration
	maxDuration  time.Duration
	sumDuration  time.Duration
	errorsByDesc map[string]int64
}

// Stats represents aggregated session metrics.
type Stats struct {
	Total        int64         `json:"total"`
	Successes    int64         `json:"successes"`
	Failures     int64         `json:"failures"`
	MinDuration  time.Duration `json:"-"`
	MaxDuration  time.Duration `json:"-"`
	MeanDuration time.Duration `json:"-"`
	P50Duration  time.Duration `json:"-"`
	P90Duration  time.Duration `json:"-"`
	P99Duration  time.Duration `json:"-"`
	Elapsed      time.Duration `json:"-"`

	// JSON-friendly millisecond fields.
	MinDurationMs  float64        `json:"min_duration_ms"`
	MaxDurationMs  float64        `json:"max_duration_ms"`
	MeanDurationMs float64        `json:"mean_duration_ms"`
	P50DurationMs  float64        `json:"p50_duration_ms"`
	P90DurationMs  float64        `json:"p90_duration_ms"`
	P99DurationMs  float64        `json:"p99_duration_ms"`
	ElapsedMs      float64        `json:"elapsed_ms"`
	SessionsPerSec float64        `json:"sessions_per_sec"`
	Errors         map[string]int `json:"errors,omitempty"`
}

func NewCollector() *Collector {
	// Track session durations from 1ms up to 1h with 3 significant figures.
	h := hdrhistogram.New(1, 3_600_000, 3)
	return &Collector{
		hist:         h,
		errorsByDesc: make(map[string]int64),
	}
}

// RecordSession records a single session's duration and outcome. A non-empty
// errDesc marks the session as failed.
func (c *Collector) RecordSession(duration time.Duration, errDesc string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if duration > 0 {
		ms := duration.Milliseconds()
		if ms < c.hist.LowestTrackableValue() {
			ms = c.hist.LowestTrackableValue()
		}
		if ms > c.hist.HighestTrackableValue() {
			ms = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(ms)
	}
	c.sumDuration += duration

	if c.minDuration == 0 || duration < c.minDuration {
		c.minDuration = duration
	}
	if duration > c.maxDuration {
		c.maxDuration = duration
	}

	if errDesc == "" {
		c.successes++
	} else {
		c.failures++
		if len(errDesc) > 60 {
			errDesc = errDesc[:60]
		}
		c.errorsByDesc[errDesc]++
	}
}

// Stats computes and returns current aggregated statistics for the given
// wall-clock span.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.successes + c.failures
	stats := Stats{
		Total:       total,
		Successes:   c.successes,
		Failures:    c.failures,
		MinDuration: c.minDuration,
		MaxDuration: c.maxDuration,
	}

	if total > 0 {
		stats.MeanDuration = time.Duration(int64(c.sumDuration) / total)
	}
	if c.hist.TotalCount() > 0 {
		stats.P50Duration = time.Duration(c.hist.ValueAtQuantile(50)) * time.Millisecond
		stats.P90Duration = time.Duration(c.hist.ValueAtQuantile(90)) * time.Millisecond
		stats.P99Duration = time.Duration(c.hist.ValueAtQuantile(99)) * time.Millisecond
	}

	stats.MinDurationMs = float64(stats.MinDuration) / float64(time.Millisecond)
	stats.MaxDurationMs = float64(stats.MaxDuration) / float64(time.Millisecond)
	stats.MeanDurationMs = float64(stats.MeanDuration) / float64(time.Millisecond)
	stats.P50DurationMs = float64(stats.P50Duration) / float64(time.Millisecond)
	stats.P90DurationMs = float64(stats.P90Duration) / float64(time.Millisecond)
	stats.P99DurationMs = float64(stats.P99Duration) / float64(time.Millisecond)

	stats.Elapsed = elapsed
	stats.ElapsedMs = float64(elapsed) / float64(time.Millisecond)
	if elapsed > 0 && total > 0 {
		stats.SessionsPerSec = float64(total) / elapsed.Seconds()
	}

	if len(c.errorsByDesc) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByDesc))
		for k, v := range c.errorsByDesc {
			stats.Errors[k] = int(v)
		}
	}
	return stats
}
