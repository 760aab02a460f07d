package summary_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rtdrive/internal/summary"
)

func readTable(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read results table: %v", err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// TestHeaderWrittenOnce verifies the header appears exactly once even when the
// table is reopened for a second run.
func TestHeaderWrittenOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.csv")

	w, err := summary.NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Append(summary.Row{Concurrency: 1, Elapsed: 1500 * time.Millisecond, Succeeded: 1}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	w2, err := summary.NewWriter(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := w2.Append(summary.Row{Concurrency: 3, Elapsed: 2 * time.Second, Succeeded: 2, Failed: 1}); err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	if err := w2.Close(); err != nil {
		t.Fatalf("Close after reopen: %v", err)
	}

	lines := readTable(t, path)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), lines)
	}
	if lines[0] != summary.Header {
		t.Fatalf("header = %q, want %q", lines[0], summary.Header)
	}
	if lines[1] != "1,1.500,1,0" {
		t.Fatalf("row 1 = %q", lines[1])
	}
	if lines[2] != "3,2.000,2,1" {
		t.Fatalf("row 2 = %q", lines[2])
	}
}

// TestRowsAppendInOrder verifies sequential appends land in call order.
func TestRowsAppendInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.csv")
	w, err := summary.NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	for _, level := range []int{1, 2, 5} {
		if err := w.Append(summary.Row{Concurrency: level, Elapsed: time.Second, Succeeded: level}); err != nil {
			t.Fatalf("Append level %d: %v", level, err)
		}
	}

	lines := readTable(t, path)
	want := []string{summary.Header, "1,1.000,1,0", "2,1.000,2,0", "5,1.000,5,0"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(lines))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

// TestAppendAfterCloseFails ensures a closed table rejects rows.
func TestAppendAfterCloseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.csv")
	w, err := summary.NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Append(summary.Row{Concurrency: 1}); err == nil {
		t.Fatal("expected error appending to closed table")
	}
}
