package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rtdrive/internal/config"
	"rtdrive/internal/dashboard"
	"rtdrive/internal/metrics"
	"rtdrive/internal/output"
	"rtdrive/internal/realtime"
	"rtdrive/internal/runner"
	"rtdrive/internal/session"
	"rtdrive/internal/summary"
	"rtdrive/internal/telemetry"
	"rtdrive/internal/tracing"
)

const progressInterval = time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run resolves configuration and drives the sweep. Session failures are data,
// not process failures: only configuration and IO problems produce an error.
func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	levels, err := resolveLevels(cfg)
	if err != nil {
		return err
	}

	stamp := time.Now().Format("20060102-150405")
	telemetryPath := cfg.Output
	if telemetryPath == "" {
		telemetryPath = fmt.Sprintf("telemetry-%s.jsonl", stamp)
	}
	summaryPath := cfg.Summary
	if summaryPath == "" {
		summaryPath = fmt.Sprintf("summary-%s.csv", stamp)
	}

	journal, err := telemetry.NewWriter(telemetryPath)
	if err != nil {
		return fmt.Errorf("open telemetry journal: %w", err)
	}
	defer journal.Close()

	sheet, err := summary.NewWriter(summaryPath)
	if err != nil {
		return fmt.Errorf("open summary sheet: %w", err)
	}
	defer sheet.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	prompt := resolvePrompt(cfg, journal)
	scenario, modalities := resolveScenario(cfg)

	driver := session.New(session.Options{
		Realtime: realtime.Config{
			TargetURL:        cfg.TargetURL,
			Model:            cfg.Model,
			APIKey:           cfg.APIKey,
			APIVersion:       cfg.APIVersion,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		Scenario:     scenario,
		Prompt:       prompt,
		Modalities:   modalities,
		Hold:         cfg.Hold,
		DrainTimeout: cfg.DrainTimeout,
		Tracer:       provider.Tracer(),
	}, journal)

	collector := metrics.NewCollector()
	opts := runner.Options{
		Stagger: cfg.Stagger,
		Journal: journal,
		Metrics: collector,
		Tracer:  provider.Tracer(),
	}

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(collector, dashboard.SweepConfig{
			TargetURL:  cfg.TargetURL,
			Model:      cfg.Model,
			Scenario:   string(cfg.Mode()),
			Levels:     levels,
			Stagger:    cfg.Stagger,
			Hold:       cfg.Hold,
			ConfigFile: cfg.ConfigFile,
		}, cancel)
		if err != nil {
			return err
		}
		opts.OnLevelStart = dash.SetLevel
		dash.Start()
		defer dash.Stop()
	}

	var progress *output.ProgressReporter
	if !cfg.JSONOutput && !cfg.Dashboard {
		progress = output.NewProgressReporter(collector, progressInterval, os.Stdout)
		progress.Start()
		defer func() {
			progress.Stop()
			fmt.Fprintln(os.Stdout)
		}()
	}

	journal.Write(telemetry.Record{
		"level":      telemetry.LevelInfo,
		"event":      "run_start",
		"target":     cfg.TargetURL,
		"model":      cfg.Model,
		"scenario":   string(cfg.Mode()),
		"levels":     levels,
		"stagger_ms": cfg.Stagger.Milliseconds(),
	})

	started := time.Now()
	r := runner.New(driver, opts)
	results, runErr := r.RunSweep(ctx, levels, sheet, os.Stderr)
	elapsed := time.Since(started)

	var succeeded, failed int
	for _, res := range results {
		succeeded += res.Succeeded
		failed += res.Failed
	}
	journal.Write(telemetry.Record{
		"level":     telemetry.LevelInfo,
		"event":     "run_end",
		"elapsed_s": elapsed.Seconds(),
		"success":   succeeded,
		"error":     failed,
		"dropped":   journal.Dropped(),
	})

	report := output.Build(journal.RunID(), results, collector.Stats(elapsed),
		telemetryPath, summaryPath, journal.Dropped())
	if cfg.JSONOutput {
		if err := output.PrintJSONReport(os.Stdout, report); err != nil {
			return err
		}
	} else {
		output.PrintReport(os.Stdout, report)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// resolveLevels turns the configuration into the ordered concurrency levels
// to run. Hydration always runs a single session.
func resolveLevels(cfg *config.Config) ([]int, error) {
	if cfg.Hydrate {
		return []int{1}, nil
	}
	if cfg.Levels != "" {
		return config.ParseLevels(cfg.Levels)
	}
	return []int{cfg.Sessions}, nil
}

// resolvePrompt reads the prompt file when configured, falling back to the
// inline prompt if the file cannot be read.
func resolvePrompt(cfg *config.Config, journal *telemetry.Writer) string {
	if cfg.PromptFile == "" {
		return cfg.Prompt
	}
	data, err := os.ReadFile(cfg.PromptFile)
	if err != nil {
		journal.Write(telemetry.Record{
			"level": telemetry.LevelWarn,
			"event": "prompt_file_error",
			"path":  cfg.PromptFile,
			"error": err.Error(),
		})
		return cfg.Prompt
	}
	return strings.TrimSpace(string(data))
}

func resolveScenario(cfg *config.Config) (session.Scenario, []string) {
	switch cfg.Mode() {
	case config.ModeHydrate:
		return session.ScenarioHydration, []string{"text", "audio"}
	case config.ModeHold:
		return session.ScenarioHold, cfg.Modalities
	default:
		return session.ScenarioCompletion, cfg.Modalities
	}
}
