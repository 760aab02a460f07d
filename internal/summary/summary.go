// Package summary maintains the row-oriented results table: one CSV row per
// completed concurrency level.
package summary

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Header is written once, only when the results file is new or empty.
const Header = "concurrency,elapsed_s,success,error"

// Row summarizes one completed concurrency level.
type Row struct {
	Concurrency int
	Elapsed     time.Duration
	Succeeded   int
	Failed      int
}

// Writer appends rows to a shared results file. A file lock guards each append
// so driver processes sharing the same results file never interleave rows.
type Writer struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
	f    *os.File
}

// NewWriter opens (or creates) the results table at path and writes the header
// if the file is empty.
func NewWriter(path string) (*Writer, error) {
	w := &Writer{path: path, lock: flock.New(path + ".lock")}
	if err := w.lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock results table: %w", err)
	}
	defer w.lock.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open results table: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat results table: %w", err)
	}
	if info.Size() == 0 {
		if _, err := fmt.Fprintln(f, Header); err != nil {
			f.Close()
			return nil, fmt.Errorf("write results header: %w", err)
		}
	}
	w.f = f
	return w, nil
}

// Append writes one data row and flushes it.
func (w *Writer) Append(row Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return fmt.Errorf("results table is closed")
	}
	if err := w.lock.Lock(); err != nil {
		return fmt.Errorf("lock results table: %w", err)
	}
	defer w.lock.Unlock()

	_, err := fmt.Fprintf(w.f, "%d,%.3f,%d,%d\n",
		row.Concurrency, row.Elapsed.Seconds(), row.Succeeded, row.Failed)
	if err != nil {
		return fmt.Errorf("append results row: %w", err)
	}
	return w.f.Sync()
}

// Close flushes and releases the results file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	if err != nil {
		return fmt.Errorf("close results table: %w", err)
	}
	return nil
}
