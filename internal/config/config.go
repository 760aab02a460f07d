package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Mode selects the session scenario.
type Mode string

const (
	// ModeCompletion sends a prompt and waits for the terminal response event.
	ModeCompletion Mode = "completion"
	// ModeHold keeps each connection open for a fixed duration, then closes it.
	ModeHold Mode = "hold"
	// ModeHydrate runs a single audio+text session and verifies audio arrived.
	ModeHydrate Mode = "hydrate"
)

type Config struct {
	TargetURL        string        `mapstructure:"target"`
	Model            string        `mapstructure:"model"`
	APIKey           string        `mapstructure:"api_key"`
	APIVersion       string        `mapstructure:"api_version"`
	Prompt           string        `mapstructure:"prompt"`
	PromptFile       string        `mapstructure:"prompt_file"`
	Sessions         int           `mapstructure:"sessions"`
	Levels           string        `mapstructure:"levels"`
	Stagger          time.Duration `mapstructure:"stagger"`
	Hold             time.Duration `mapstructure:"hold"`
	Hydrate          bool          `mapstructure:"hydrate"`
	Modalities       []string      `mapstructure:"modalities"`
	DrainTimeout     time.Duration `mapstructure:"drain_timeout"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	Output           string        `mapstructure:"output"`
	Summary          string        `mapstructure:"summary"`
	Dashboard        bool          `mapstructure:"dashboard"`
	JSONOutput       bool          `mapstructure:"json_output"`
	ConfigFile       string        `mapstructure:"-"`
	Tracing          TracingConfig `mapstructure:"tracing"`
}

// TracingConfig configures the OpenTelemetry trace exporter.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "http" or "grpc"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
}

// Mode derives the session scenario from the configured knobs.
func (c Config) Mode() Mode {
	if c.Hydrate {
		return ModeHydrate
	}
	if c.Hold > 0 {
		return ModeHold
	}
	return ModeCompletion
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate checks the configuration before any session is launched. All
// problems are collected into a single ValidationError.
func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.TargetURL) == "" {
		issues = append(issues, "target is required (flag --target or AZURE_OPENAI_ENDPOINT)")
	}
	if c.Sessions < 1 {
		issues = append(issues, "sessions must be >= 1")
	}
	if c.Stagger < 0 {
		issues = append(issues, "stagger must be >= 0")
	}
	if c.Hold < 0 {
		issues = append(issues, "hold must be >= 0")
	}
	if c.DrainTimeout <= 0 {
		issues = append(issues, "drain-timeout must be > 0")
	}
	if c.HandshakeTimeout < 0 {
		issues = append(issues, "handshake-timeout must be >= 0")
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json-output are mutually exclusive")
	}
	if c.Hydrate && strings.TrimSpace(c.Levels) != "" {
		issues = append(issues, "hydrate runs a single session and cannot be combined with levels")
	}

	maxLevel := c.Sessions
	if strings.TrimSpace(c.Levels) != "" {
		levels, err := ParseLevels(c.Levels)
		if err != nil {
			issues = append(issues, fmt.Sprintf("levels: %v", err))
		} else {
			for _, level := range levels {
				if level > maxLevel {
					maxLevel = level
				}
			}
		}
	}
	if maxLevel > 500 {
		fmt.Fprintf(os.Stderr, "WARNING: High concurrency configured (%d sessions). Ensure you have authorization to stress the target system.\n", maxLevel)
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
		issues = append(issues, fmt.Sprintf("tracing sample_rate must be between 0.0 and 1.0, got %g", c.Tracing.SampleRate))
	}
	switch strings.ToLower(strings.TrimSpace(c.Tracing.Protocol)) {
	case "", "http", "grpc":
	default:
		issues = append(issues, fmt.Sprintf("tracing protocol must be 'http' or 'grpc', got %q", c.Tracing.Protocol))
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}
