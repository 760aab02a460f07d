package main

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"rtdrive/internal/config"
	"rtdrive/internal/session"
	"rtdrive/internal/telemetry"
)

func TestResolveLevels(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want []int
	}{
		{"hydrate forces single session", config.Config{Hydrate: true, Sessions: 9}, []int{1}},
		{"sweep spec wins over sessions", config.Config{Levels: "1,3", Sessions: 9}, []int{1, 3}},
		{"sessions when no sweep", config.Config{Sessions: 5}, []int{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveLevels(&tt.cfg)
			if err != nil {
				t.Fatalf("resolveLevels: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("resolveLevels() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveLevelsRejectsMalformedSweep(t *testing.T) {
	cfg := config.Config{Levels: "abc"}
	if _, err := resolveLevels(&cfg); err == nil {
		t.Fatal("expected error for malformed sweep")
	}
}

func TestResolveScenario(t *testing.T) {
	tests := []struct {
		name           string
		cfg            config.Config
		wantScenario   session.Scenario
		wantModalities []string
	}{
		{"hydrate", config.Config{Hydrate: true}, session.ScenarioHydration, []string{"text", "audio"}},
		{"hold", config.Config{Hold: time.Minute, Modalities: []string{"text"}}, session.ScenarioHold, []string{"text"}},
		{"completion", config.Config{Modalities: []string{"text"}}, session.ScenarioCompletion, []string{"text"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario, modalities := resolveScenario(&tt.cfg)
			if scenario != tt.wantScenario {
				t.Errorf("scenario = %q, want %q", scenario, tt.wantScenario)
			}
			if !reflect.DeepEqual(modalities, tt.wantModalities) {
				t.Errorf("modalities = %v, want %v", modalities, tt.wantModalities)
			}
		})
	}
}

func TestResolvePromptReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(path, []byte("  Describe the harbor.\n"), 0o644); err != nil {
		t.Fatalf("write prompt file: %v", err)
	}
	journal := newTestJournal(t)

	cfg := config.Config{Prompt: "fallback", PromptFile: path}
	if got := resolvePrompt(&cfg, journal); got != "Describe the harbor." {
		t.Errorf("resolvePrompt() = %q", got)
	}
}

func TestResolvePromptFallsBackOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	journal, journalPath := newTestJournalAt(t, dir)

	cfg := config.Config{Prompt: "fallback", PromptFile: filepath.Join(dir, "missing.txt")}
	if got := resolvePrompt(&cfg, journal); got != "fallback" {
		t.Errorf("resolvePrompt() = %q, want fallback", got)
	}
	if err := journal.Close(); err != nil {
		t.Fatalf("close journal: %v", err)
	}

	found := false
	for _, rec := range readJournal(t, journalPath) {
		if rec["event"] == "prompt_file_error" {
			found = true
			if rec["level"] != telemetry.LevelWarn {
				t.Errorf("prompt_file_error level = %v", rec["level"])
			}
		}
	}
	if !found {
		t.Fatal("prompt_file_error record not journaled")
	}
}

// TestRunRejectsInvalidConfigWithoutArtifacts ensures a config rejected by
// validation produces no journal or summary files.
func TestRunRejectsInvalidConfigWithoutArtifacts(t *testing.T) {
	t.Setenv("RTDRIVE_API_KEY", "")
	t.Setenv("AZURE_OPENAI_API_KEY", "")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "")

	dir := t.TempDir()
	telemetryPath := filepath.Join(dir, "telemetry.jsonl")
	summaryPath := filepath.Join(dir, "summary.csv")

	err := run([]string{"--output", telemetryPath, "--summary", summaryPath})
	if err == nil {
		t.Fatal("expected validation error for missing target")
	}
	if _, statErr := os.Stat(telemetryPath); !os.IsNotExist(statErr) {
		t.Errorf("telemetry journal created for rejected config")
	}
	if _, statErr := os.Stat(summaryPath); !os.IsNotExist(statErr) {
		t.Errorf("summary sheet created for rejected config")
	}
}

func TestRunHelpIsNotAnError(t *testing.T) {
	if err := run([]string{"--help"}); err != nil {
		t.Fatalf("run(--help) = %v", err)
	}
}

func newTestJournal(t *testing.T) *telemetry.Writer {
	t.Helper()
	journal, _ := newTestJournalAt(t, t.TempDir())
	return journal
}

func newTestJournalAt(t *testing.T, dir string) (*telemetry.Writer, string) {
	t.Helper()
	path := filepath.Join(dir, "telemetry.jsonl")
	journal, err := telemetry.NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	t.Cleanup(func() { journal.Close() })
	return journal, path
}

func readJournal(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer f.Close()
	var records []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("journal line does not parse: %v", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan journal: %v", err)
	}
	return records
}
