// Package session drives one logical realtime session end-to-end: connect,
// configure, interact, drain, close. A session always resolves to a single
// outcome; faults are converted to telemetry plus a failed outcome and never
// escape the runner.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"rtdrive/internal/realtime"
	"rtdrive/internal/telemetry"
	"rtdrive/internal/tracing"
)

// Scenario selects how a session interacts once connected.
type Scenario string

const (
	// ScenarioCompletion sends the prompt and consumes events until the
	// terminal response event arrives.
	ScenarioCompletion Scenario = "completion"
	// ScenarioHold keeps the connection open for a fixed duration while a
	// listener consumes events, then closes it intentionally.
	ScenarioHold Scenario = "hold"
	// ScenarioHydration is a completion run that additionally requires a
	// non-empty audio stream in the response.
	ScenarioHydration Scenario = "hydration"
)

// Outcome reports how a session ended. It is owned by the caller; nothing is
// shared with the runner after Run returns.
type Outcome struct {
	OK            bool
	Duration      time.Duration
	Err           string
	BytesReceived int
	TextChunks    int
}

// Options configure a Driver. One Driver serves every session in a run.
type Options struct {
	Realtime     realtime.Config
	Scenario     Scenario
	Prompt       string
	Modalities   []string
	Hold         time.Duration
	DrainTimeout time.Duration
	Tracer       trace.Tracer
}

// Driver runs sessions against the realtime endpoint, journaling lifecycle
// and server events as it goes.
type Driver struct {
	opt     Options
	journal *telemetry.Writer
}

func New(opt Options, journal *telemetry.Writer) *Driver {
	if opt.DrainTimeout <= 0 {
		opt.DrainTimeout = 5 * time.Second
	}
	if len(opt.Modalities) == 0 {
		opt.Modalities = []string{"text"}
	}
	if opt.Scenario == "" {
		opt.Scenario = ScenarioCompletion
	}
	return &Driver{opt: opt, journal: journal}
}

// Run drives one session to completion. It never panics or errors past its
// boundary: every fault becomes a session_error record and a failed outcome.
func (d *Driver) Run(ctx context.Context, id int) (out Outcome) {
	started := time.Now()

	if d.opt.Tracer != nil {
		var span trace.Span
		ctx, span = tracing.StartSessionSpan(ctx, d.opt.Tracer, id)
		// Registered before the recover handler so the span observes the
		// final outcome, panics included.
		defer func() {
			var err error
			if out.Err != "" {
				err = fmt.Errorf("%s", out.Err)
			}
			tracing.EndSpan(span, err)
		}()
	}

	defer func() {
		if r := recover(); r != nil {
			desc := fmt.Sprintf("panic: %v", r)
			d.journal.Write(telemetry.Record{
				"session_id": id,
				"level":      telemetry.LevelError,
				"event":      "session_error",
				"error":      desc,
			})
			out = Outcome{Duration: time.Since(started), Err: desc}
		}
	}()

	if d.opt.Scenario == ScenarioHold {
		return d.runHold(ctx, id)
	}
	return d.runCompletion(ctx, id)
}

// runCompletion implements the prompt-driven scenarios: send configuration
// and the user message, then consume events until the peer signals the
// response is done.
func (d *Driver) runCompletion(ctx context.Context, id int) Outcome {
	started := time.Now()
	d.journal.Write(telemetry.Record{
		"session_id": id,
		"level":      telemetry.LevelInfo,
		"event":      "session_start",
		"model":      d.opt.Realtime.Model,
	})

	var (
		bytesReceived int
		textChunks    int
		runErr        error
	)

	conn, err := realtime.Dial(ctx, d.opt.Realtime)
	if err != nil {
		return d.finishCompletion(id, started, 0, 0, err)
	}
	// Unblock a pending read if the run is cancelled.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	d.journal.Write(telemetry.Record{
		"session_id": id,
		"level":      telemetry.LevelDebug,
		"event":      "connected",
	})

	if err := conn.UpdateSession(d.opt.Modalities); err != nil {
		return d.finishCompletion(id, started, 0, 0, err)
	}
	d.journal.Write(telemetry.Record{
		"session_id": id,
		"level":      telemetry.LevelDebug,
		"event":      "session_update_sent",
		"modalities": d.opt.Modalities,
	})

	if err := conn.SendUserMessage(d.opt.Prompt); err != nil {
		return d.finishCompletion(id, started, 0, 0, err)
	}
	d.journal.Write(telemetry.Record{
		"session_id": id,
		"level":      telemetry.LevelDebug,
		"event":      "user_message_sent",
		"prompt":     d.opt.Prompt,
	})

	if err := conn.CreateResponse(); err != nil {
		return d.finishCompletion(id, started, 0, 0, err)
	}
	d.journal.Write(telemetry.Record{
		"session_id": id,
		"level":      telemetry.LevelDebug,
		"event":      "response_create_sent",
	})

loop:
	for {
		evt, err := conn.ReadEvent()
		if err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			runErr = err
			break
		}
		d.logEvent(id, evt)

		switch evt.Kind {
		case realtime.KindTextDelta:
			textChunks += len(strings.Fields(evt.Delta))
		case realtime.KindAudioDelta:
			bytesReceived += evt.AudioBytes()
		case realtime.KindError:
			runErr = fmt.Errorf("server error: %s", evt.ErrorMessage)
			break loop
		case realtime.KindDone:
			break loop
		}
	}

	if runErr == nil && d.opt.Scenario == ScenarioHydration && bytesReceived == 0 {
		runErr = fmt.Errorf("hydration check failed: response carried no audio")
	}
	return d.finishCompletion(id, started, bytesReceived, textChunks, runErr)
}

func (d *Driver) finishCompletion(id int, started time.Time, bytesReceived, textChunks int, runErr error) Outcome {
	out := Outcome{
		OK:            runErr == nil,
		Duration:      time.Since(started),
		BytesReceived: bytesReceived,
		TextChunks:    textChunks,
	}
	if runErr != nil {
		out.Err = runErr.Error()
		d.journal.Write(telemetry.Record{
			"session_id": id,
			"level":      telemetry.LevelError,
			"event":      "session_error",
			"error":      out.Err,
		})
	}
	rec := telemetry.Record{
		"session_id":        id,
		"level":             telemetry.LevelInfo,
		"event":             "session_end",
		"duration_ms":       out.Duration.Milliseconds(),
		"bytes_received":    bytesReceived,
		"text_token_chunks": textChunks,
		"success":           out.OK,
	}
	if out.Err != "" {
		rec["error"] = out.Err
	}
	d.journal.Write(rec)
	return out
}

// runHold implements the stress scenario: open the connection, let a listener
// consume whatever the peer sends, hold for the configured duration, then
// close intentionally and drain the listener with a bounded timeout.
func (d *Driver) runHold(ctx context.Context, id int) Outcome {
	started := time.Now()
	d.journal.Write(telemetry.Record{
		"session_id": id,
		"level":      telemetry.LevelInfo,
		"event":      "connection_attempt",
		"model":      d.opt.Realtime.Model,
	})

	conn, err := realtime.Dial(ctx, d.opt.Realtime)
	if err != nil {
		desc := err.Error()
		d.journal.Write(telemetry.Record{
			"session_id": id,
			"level":      telemetry.LevelError,
			"event":      "connection_error",
			"error":      desc,
		})
		d.writeConnectionClosed(id, started, false, "error")
		return Outcome{Duration: time.Since(started), Err: desc}
	}
	d.journal.Write(telemetry.Record{
		"session_id": id,
		"level":      telemetry.LevelInfo,
		"event":      "connection_opened",
	})

	var closing atomic.Bool
	stop := context.AfterFunc(ctx, func() {
		closing.Store(true)
		_ = conn.Close()
	})
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			evt, err := conn.ReadEvent()
			if err != nil {
				if !closing.Load() && ctx.Err() == nil {
					d.journal.Write(telemetry.Record{
						"session_id": id,
						"level":      telemetry.LevelError,
						"event":      "listener_error",
						"error":      err.Error(),
					})
				}
				return
			}
			d.logEvent(id, evt)
		}
	}()

	select {
	case <-time.After(d.opt.Hold):
	case <-ctx.Done():
	}

	d.journal.Write(telemetry.Record{
		"session_id": id,
		"level":      telemetry.LevelInfo,
		"event":      "connection_close_initiated",
		"reason":     "manual",
	})
	closing.Store(true)
	_ = conn.Close()

	select {
	case <-done:
	case <-time.After(d.opt.DrainTimeout):
		d.journal.Write(telemetry.Record{
			"session_id": id,
			"level":      telemetry.LevelWarn,
			"event":      "listener_timeout",
		})
	}

	stats := conn.Stats()
	d.writeConnectionClosed(id, started, true, "manual")
	return Outcome{
		OK:            true,
		Duration:      time.Since(started),
		BytesReceived: int(stats.BytesReceived),
	}
}

func (d *Driver) writeConnectionClosed(id int, started time.Time, success bool, reason string) {
	d.journal.Write(telemetry.Record{
		"session_id":    id,
		"level":         telemetry.LevelInfo,
		"event":         "connection_closed",
		"success":       success,
		"closed_reason": reason,
		"duration_ms":   time.Since(started).Milliseconds(),
	})
}

// logEvent journals one inbound server event as a trace record. Payloads that
// are not valid JSON are carried as an opaque string.
func (d *Driver) logEvent(id int, evt realtime.ServerEvent) {
	rec := telemetry.Record{
		"session_id": id,
		"level":      telemetry.LevelTrace,
		"event":      "rt_event",
		"type":       evt.Type,
	}
	if json.Valid(evt.Raw) {
		rec["payload"] = json.RawMessage(evt.Raw)
	} else {
		rec["raw"] = string(evt.Raw)
	}
	d.journal.Write(rec)
}
