package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rtdrive",
		Short:         "Concurrent realtime session stress and telemetry driver",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target flags
	flags.String("target", "", "Realtime endpoint URL (https:// endpoint or raw wss:// URL)")
	flags.String("model", "gpt-realtime", "Model/deployment name")
	flags.String("api-version", "2024-10-01-preview", "Realtime API version query parameter")

	// Payload flags
	flags.String("prompt", "What is the capital of Portugal?", "Prompt to send in each session")
	flags.String("prompt-file", "", "Path to a file whose entire contents will be used as the prompt")
	flags.StringSlice("modalities", []string{"text"}, "Response modalities to request (text, audio)")

	// Load control flags
	flags.IntP("sessions", "n", 5, "Number of concurrent sessions to run")
	flags.StringP("levels", "l", "", "Concurrency sweep spec: integers or ranges with optional step, e.g. '1,2,5,10-50:10'")
	flags.Duration("stagger", 0, "Delay between launching successive sessions within a level")
	flags.Duration("hold", 0, "Hold each connection open for this long, then close it (selects the stress scenario)")
	flags.Bool("hydrate", false, "Run a single audio hydration check instead of a load run")
	flags.Duration("drain-timeout", 5*time.Second, "Max time to wait for a session's event listener to drain after close")
	flags.Duration("handshake-timeout", 30*time.Second, "WebSocket handshake timeout")

	// Output flags
	flags.StringP("output", "o", "", "Path to the JSONL telemetry journal (default: telemetry-<ts>.jsonl)")
	flags.StringP("summary", "s", "", "Path to the summary CSV (default: summary-<ts>.csv)")
	flags.Bool("dashboard", false, "Show live terminal dashboard while the sweep runs")
	flags.Bool("json-output", false, "Emit the final report as JSON")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.Bool("trace", false, "Enable OpenTelemetry tracing")
	flags.String("trace-endpoint", "", "OTLP endpoint (falls back to OTEL_EXPORTER_OTLP_ENDPOINT)")
	flags.String("trace-protocol", "http", "OTLP transport: 'http' or 'grpc'")
	flags.String("trace-service-name", "", "Service name reported on spans")
	flags.Float64("trace-sample-rate", 1.0, "Trace sampling ratio between 0.0 and 1.0")
	flags.Bool("trace-insecure", false, "Use plaintext OTLP export")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("target") {
		val, err := fs.GetString("target")
		if err != nil {
			return err
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}
	if fs.Changed("model") {
		val, err := fs.GetString("model")
		if err != nil {
			return err
		}
		cfg.Model = strings.TrimSpace(val)
	}
	if fs.Changed("api-version") {
		val, err := fs.GetString("api-version")
		if err != nil {
			return err
		}
		cfg.APIVersion = strings.TrimSpace(val)
	}
	if fs.Changed("prompt") {
		val, err := fs.GetString("prompt")
		if err != nil {
			return err
		}
		cfg.Prompt = val
	}
	if fs.Changed("prompt-file") {
		val, err := fs.GetString("prompt-file")
		if err != nil {
			return err
		}
		cfg.PromptFile = strings.TrimSpace(val)
	}
	if fs.Changed("modalities") {
		val, err := fs.GetStringSlice("modalities")
		if err != nil {
			return err
		}
		cfg.Modalities = val
	}
	if fs.Changed("sessions") {
		val, err := fs.GetInt("sessions")
		if err != nil {
			return err
		}
		cfg.Sessions = val
	}
	if fs.Changed("levels") {
		val, err := fs.GetString("levels")
		if err != nil {
			return err
		}
		cfg.Levels = strings.TrimSpace(val)
	}
	if fs.Changed("stagger") {
		val, err := fs.GetDuration("stagger")
		if err != nil {
			return err
		}
		cfg.Stagger = val
	}
	if fs.Changed("hold") {
		val, err := fs.GetDuration("hold")
		if err != nil {
			return err
		}
		cfg.Hold = val
	}
	if fs.Changed("hydrate") {
		val, err := fs.GetBool("hydrate")
		if err != nil {
			return err
		}
		cfg.Hydrate = val
	}
	if fs.Changed("drain-timeout") {
		val, err := fs.GetDuration("drain-timeout")
		if err != nil {
			return err
		}
		cfg.DrainTimeout = val
	}
	if fs.Changed("handshake-timeout") {
		val, err := fs.GetDuration("handshake-timeout")
		if err != nil {
			return err
		}
		cfg.HandshakeTimeout = val
	}
	if fs.Changed("output") {
		val, err := fs.GetString("output")
		if err != nil {
			return err
		}
		cfg.Output = strings.TrimSpace(val)
	}
	if fs.Changed("summary") {
		val, err := fs.GetString("summary")
		if err != nil {
			return err
		}
		cfg.Summary = strings.TrimSpace(val)
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("trace") {
		val, err := fs.GetBool("trace")
		if err != nil {
			return err
		}
		cfg.Tracing.Enabled = val
	}
	if fs.Changed("trace-endpoint") {
		val, err := fs.GetString("trace-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("trace-protocol") {
		val, err := fs.GetString("trace-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("trace-service-name") {
		val, err := fs.GetString("trace-service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = strings.TrimSpace(val)
	}
	if fs.Changed("trace-sample-rate") {
		val, err := fs.GetFloat64("trace-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("trace-insecure") {
		val, err := fs.GetBool("trace-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	return nil
}
