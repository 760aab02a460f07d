// Package telemetry provides the append-only JSONL journal shared by all
// concurrent sessions. Writers serialize one record per line under a mutex so
// concurrent sessions never interleave mid-line.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// Record is a single journal entry: field name to value. Records are
// append-only; once written they are never merged or mutated.
type Record map[string]any

// Severity levels stamped on records under the "level" key.
const (
	LevelInfo  = "INFO"
	LevelDebug = "DEBUG"
	LevelTrace = "TRACE"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Writer appends records to a line-oriented journal. Safe for concurrent use.
// Write failures are best-effort: they are counted, not propagated, so a full
// disk never turns a healthy session into a failed one.
type Writer struct {
	mu      sync.Mutex
	f       *os.File
	runID   string
	dropped atomic.Int64
	closed  bool
}

// NewWriter opens (or creates) the journal at path in append mode and mints a
// run id stamped on every record written through it.
func NewWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open telemetry journal: %w", err)
	}
	return &Writer{f: f, runID: ulid.Make().String()}, nil
}

// RunID returns the run identifier stamped on every record.
func (w *Writer) RunID() string {
	return w.runID
}

// Write stamps ts and run_id if absent, serializes rec as one JSON line and
// appends it. Concurrent callers never produce torn lines.
func (w *Writer) Write(rec Record) {
	if rec == nil {
		return
	}
	if _, ok := rec["ts"]; !ok {
		rec["ts"] = NowISO()
	}
	if _, ok := rec["run_id"]; !ok {
		rec["run_id"] = w.runID
	}
	line, err := json.Marshal(rec)
	if err != nil {
		w.dropped.Add(1)
		return
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.dropped.Add(1)
		return
	}
	if _, err := w.f.Write(line); err != nil {
		w.dropped.Add(1)
	}
}

// Dropped reports how many records could not be written.
func (w *Writer) Dropped() int64 {
	return w.dropped.Load()
}

// Close flushes and releases the journal. Subsequent writes are dropped.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return fmt.Errorf("flush telemetry journal: %w", err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("close telemetry journal: %w", err)
	}
	return nil
}

// NowISO returns the current UTC time in ISO-8601 form, the timestamp format
// used for the ts field of every record.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
