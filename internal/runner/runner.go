// Package runner fans sessions out at a fixed concurrency level and gathers
// exactly one outcome per slot, then sequences levels into a sweep.
package runner

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"rtdrive/internal/metrics"
	"rtdrive/internal/session"
	"rtdrive/internal/summary"
	"rtdrive/internal/telemetry"
)

// Session is the unit of work a level multiplies. Implementations must
// confine their own failures to the returned outcome.
type Session interface {
	Run(ctx context.Context, id int) session.Outcome
}

// Options configure a Runner. Journal is required; Metrics and Tracer are
// optional run-wide sinks.
type Options struct {
	Stagger time.Duration
	Journal *telemetry.Writer
	Metrics *metrics.Collector
	Tracer  trace.Tracer

	// OnLevelStart, when set, is called before each level launches.
	OnLevelStart func(concurrency int)
}

// LevelResult reports one completed concurrency level.
type LevelResult struct {
	Concurrency int
	Elapsed     time.Duration
	Succeeded   int
	Failed      int
	Outcomes    []session.Outcome
	Stats       metrics.Stats
}

type Runner struct {
	sess Session
	opt  Options
}

func New(sess Session, opt Options) *Runner {
	return &Runner{sess: sess, opt: opt}
}

// RunLevel launches concurrency sessions, staggering launches when configured,
// and blocks until every one has resolved. It always returns exactly
// concurrency outcomes, indexed by launch order.
func (r *Runner) RunLevel(ctx context.Context, concurrency int) LevelResult {
	if r.opt.OnLevelStart != nil {
		r.opt.OnLevelStart(concurrency)
	}
	r.opt.Journal.Write(telemetry.Record{
		"level":       telemetry.LevelInfo,
		"event":       "run_level_start",
		"concurrency": concurrency,
	})

	if r.opt.Tracer != nil {
		var span trace.Span
		ctx, span = r.opt.Tracer.Start(ctx, "level",
			trace.WithAttributes(attribute.Int("driver.concurrency", concurrency)))
		defer span.End()
	}

	var limiter *rate.Limiter
	if r.opt.Stagger > 0 {
		limiter = rate.NewLimiter(rate.Every(r.opt.Stagger), 1)
	}

	started := time.Now()
	outcomes := make([]session.Outcome, concurrency)
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		if limiter != nil {
			// On cancellation the session still launches and observes the
			// cancelled context itself, keeping the outcome count exact.
			_ = limiter.Wait(ctx)
		}
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			outcomes[slot] = r.sess.Run(ctx, slot+1)
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(started)

	collector := metrics.NewCollector()
	result := LevelResult{
		Concurrency: concurrency,
		Elapsed:     elapsed,
		Outcomes:    outcomes,
	}
	for _, out := range outcomes {
		if out.OK {
			result.Succeeded++
		} else {
			result.Failed++
		}
		collector.RecordSession(out.Duration, out.Err)
		if r.opt.Metrics != nil {
			r.opt.Metrics.RecordSession(out.Duration, out.Err)
		}
	}
	result.Stats = collector.Stats(elapsed)

	r.opt.Journal.Write(telemetry.Record{
		"level":       telemetry.LevelInfo,
		"event":       "run_summary",
		"concurrency": concurrency,
		"elapsed_s":   elapsed.Seconds(),
		"success":     result.Succeeded,
		"error":       result.Failed,
		"p50_ms":      result.Stats.P50DurationMs,
		"p90_ms":      result.Stats.P90DurationMs,
		"p99_ms":      result.Stats.P99DurationMs,
	})
	r.opt.Journal.Write(telemetry.Record{
		"level":       telemetry.LevelInfo,
		"event":       "run_level_end",
		"concurrency": concurrency,
	})
	return result
}

// RunSweep executes the parsed levels in order, appending one summary row per
// level and reporting progress. Session failures within a level do not stop
// the sweep; only summary persistence errors or context cancellation do.
func (r *Runner) RunSweep(ctx context.Context, levels []int, sheet *summary.Writer, progress io.Writer) ([]LevelResult, error) {
	results := make([]LevelResult, 0, len(levels))
	for _, concurrency := range levels {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := r.RunLevel(ctx, concurrency)
		results = append(results, res)
		if sheet != nil {
			row := summary.Row{
				Concurrency: res.Concurrency,
				Elapsed:     res.Elapsed,
				Succeeded:   res.Succeeded,
				Failed:      res.Failed,
			}
			if err := sheet.Append(row); err != nil {
				return results, fmt.Errorf("append summary row: %w", err)
			}
		}
		if progress != nil {
			fmt.Fprintf(progress, "[level %d] Completed %d/%d in %.3fs (failed: %d)\n",
				res.Concurrency, res.Succeeded, res.Concurrency, res.Elapsed.Seconds(), res.Failed)
		}
	}
	return results, nil
}
