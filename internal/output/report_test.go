package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"rtdrive/internal/metrics"
	"rtdrive/internal/runner"
	"rtdrive/internal/session"
)

func sampleReport() Report {
	collector := metrics.NewCollector()
	collector.RecordSession(120*time.Millisecond, "")
	collector.RecordSession(300*time.Millisecond, "")
	collector.RecordSession(80*time.Millisecond, "dial tcp: connection refused")
	overall := collector.Stats(2 * time.Second)

	results := []runner.LevelResult{
		{
			Concurrency: 1,
			Elapsed:     500 * time.Millisecond,
			Succeeded:   1,
			Outcomes:    []session.Outcome{{OK: true}},
		},
		{
			Concurrency: 2,
			Elapsed:     time.Second,
			Succeeded:   1,
			Failed:      1,
			Outcomes:    []session.Outcome{{OK: true}, {Err: "dial tcp: connection refused"}},
		},
	}
	return Build("01TESTRUN", results, overall, "telemetry.jsonl", "summary.csv", 0)
}

func TestPrintReportHuman(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, sampleReport())
	out := buf.String()

	for _, want := range []string{
		"Session Sweep Results",
		"Run ID:            01TESTRUN",
		"Total Sessions:    3",
		"Failed:            1",
		"Level Breakdown:",
		"concurrency=2: success=1, error=1",
		"dial tcp: connection refused: 1",
		"telemetry.jsonl",
		"summary.csv",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "WARNING") {
		t.Errorf("unexpected dropped-telemetry warning:\n%s", out)
	}
}

func TestPrintReportWarnsOnDroppedTelemetry(t *testing.T) {
	report := sampleReport()
	report.DroppedTelemetry = 4

	var buf bytes.Buffer
	PrintReport(&buf, report)
	if !strings.Contains(buf.String(), "WARNING: 4 telemetry records were dropped") {
		t.Errorf("missing dropped-telemetry warning:\n%s", buf.String())
	}
}

func TestPrintJSONReport(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, sampleReport()); err != nil {
		t.Fatalf("PrintJSONReport: %v", err)
	}

	var decoded Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.RunID != "01TESTRUN" {
		t.Errorf("run_id = %q, want 01TESTRUN", decoded.RunID)
	}
	if len(decoded.Levels) != 2 {
		t.Errorf("levels = %d, want 2", len(decoded.Levels))
	}
	if decoded.Overall.Total != 3 {
		t.Errorf("overall total = %d, want 3", decoded.Overall.Total)
	}
}

func TestProgressReporterFormatting(t *testing.T) {
	collector := metrics.NewCollector()
	collector.RecordSession(50*time.Millisecond, "")

	var buf bytes.Buffer
	reporter := NewProgressReporter(collector, 20*time.Millisecond, &buf)
	reporter.Start()

	time.Sleep(60 * time.Millisecond)
	reporter.Stop()

	out := buf.String()
	if !strings.Contains(out, "Sessions:") {
		t.Errorf("expected 'Sessions:' in progress output, got %q", out)
	}
}

func TestProgressReporterStopWithoutStart(t *testing.T) {
	collector := metrics.NewCollector()
	reporter := NewProgressReporter(collector, 10*time.Millisecond, nil)
	reporter.Stop()
}
