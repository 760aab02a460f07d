// Package output renders sweep results for humans and machines.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"rtdrive/internal/metrics"
	"rtdrive/internal/runner"
)

// Report bundles everything the final summary carries.
type Report struct {
	RunID            string        `json:"run_id"`
	Levels           []LevelReport `json:"levels"`
	Overall          metrics.Stats `json:"overall"`
	TelemetryPath    string        `json:"telemetry_path"`
	SummaryPath      string        `json:"summary_path,omitempty"`
	DroppedTelemetry int64         `json:"dropped_telemetry,omitempty"`
}

// LevelReport is the per-level slice of a Report.
type LevelReport struct {
	Concurrency int           `json:"concurrency"`
	ElapsedS    float64       `json:"elapsed_s"`
	Succeeded   int           `json:"success"`
	Failed      int           `json:"error"`
	Stats       metrics.Stats `json:"stats"`
}

// Build assembles a Report from level results and the run-wide stats.
func Build(runID string, results []runner.LevelResult, overall metrics.Stats, telemetryPath, summaryPath string, dropped int64) Report {
	report := Report{
		RunID:            runID,
		Overall:          overall,
		TelemetryPath:    telemetryPath,
		SummaryPath:      summaryPath,
		DroppedTelemetry: dropped,
	}
	for _, res := range results {
		report.Levels = append(report.Levels, LevelReport{
			Concurrency: res.Concurrency,
			ElapsedS:    res.Elapsed.Seconds(),
			Succeeded:   res.Succeeded,
			Failed:      res.Failed,
			Stats:       res.Stats,
		})
	}
	return report
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, report Report) {
	fmt.Fprintln(w, "\n--- Session Sweep Results ---")
	fmt.Fprintf(w, "Run ID:            %s\n", report.RunID)
	fmt.Fprintf(w, "Total Sessions:    %d\n", report.Overall.Total)
	fmt.Fprintf(w, "Successful:        %d\n", report.Overall.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", report.Overall.Failures)
	fmt.Fprintf(w, "Duration:          %s\n", report.Overall.Elapsed)
	fmt.Fprintf(w, "Sessions/sec:      %.2f\n", report.Overall.SessionsPerSec)
	fmt.Fprintln(w, "\nSession Duration:")
	fmt.Fprintf(w, "  Min:             %s\n", report.Overall.MinDuration)
	fmt.Fprintf(w, "  Max:             %s\n", report.Overall.MaxDuration)
	fmt.Fprintf(w, "  Mean:            %s\n", report.Overall.MeanDuration)
	fmt.Fprintf(w, "  P50:             %s\n", report.Overall.P50Duration)
	fmt.Fprintf(w, "  P90:             %s\n", report.Overall.P90Duration)
	fmt.Fprintf(w, "  P99:             %s\n", report.Overall.P99Duration)

	if len(report.Levels) > 0 {
		fmt.Fprintln(w, "\nLevel Breakdown:")
		for _, lvl := range report.Levels {
			fmt.Fprintf(w, "  - concurrency=%d: success=%d, error=%d, elapsed=%.3fs, p99=%s\n",
				lvl.Concurrency, lvl.Succeeded, lvl.Failed, lvl.ElapsedS, lvl.Stats.P99Duration)
		}
	}

	if len(report.Overall.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		descs := make([]string, 0, len(report.Overall.Errors))
		for desc := range report.Overall.Errors {
			descs = append(descs, desc)
		}
		sort.Slice(descs, func(i, j int) bool {
			return report.Overall.Errors[descs[i]] > report.Overall.Errors[descs[j]]
		})
		for _, desc := range descs {
			fmt.Fprintf(w, "  - %s: %d\n", desc, report.Overall.Errors[desc])
		}
	}

	fmt.Fprintf(w, "\nTelemetry:         %s\n", report.TelemetryPath)
	if report.SummaryPath != "" {
		fmt.Fprintf(w, "Summary CSV:       %s\n", report.SummaryPath)
	}
	if report.DroppedTelemetry > 0 {
		fmt.Fprintf(w, "WARNING: %d telemetry records were dropped\n", report.DroppedTelemetry)
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
