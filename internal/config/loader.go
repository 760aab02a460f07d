// Package config provides configuration loading and parsing for rtdrive.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a
// Config. Flags override file settings; credentials fall back to environment
// variables so they never have to appear on the command line.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Model:            "gpt-realtime",
		APIVersion:       "2024-10-01-preview",
		Prompt:           "What is the capital of Portugal?",
		Sessions:         5,
		Stagger:          -1,
		Modalities:       []string{"text"},
		DrainTimeout:     5 * time.Second,
		HandshakeTimeout: 30 * time.Second,
		ConfigFile:       configPath,
		Tracing:          TracingConfig{Protocol: "http", SampleRate: 1.0},
	}

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}
	applyEnvFallbacks(cfg)

	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	if cfg.Model == "" {
		cfg.Model = "gpt-realtime"
	}
	// Stagger left unset: hold runs ramp up at 100ms, everything else launches
	// at once.
	if cfg.Stagger < 0 {
		if cfg.Hold > 0 {
			cfg.Stagger = 100 * time.Millisecond
		} else {
			cfg.Stagger = 0
		}
	}
	return cfg, nil
}

// applyEnvFallbacks fills credentials and endpoint from the environment when
// neither flags nor the config file provided them.
func applyEnvFallbacks(cfg *Config) {
	if cfg.APIKey == "" {
		if key := os.Getenv("RTDRIVE_API_KEY"); key != "" {
			cfg.APIKey = key
		} else if key := os.Getenv("AZURE_OPENAI_API_KEY"); key != "" {
			cfg.APIKey = key
		}
	}
	if strings.TrimSpace(cfg.TargetURL) == "" {
		cfg.TargetURL = strings.TrimSpace(os.Getenv("AZURE_OPENAI_ENDPOINT"))
	}
	if v := os.Getenv("AZURE_OPENAI_API_VERSION"); v != "" && cfg.APIVersion == "2024-10-01-preview" {
		cfg.APIVersion = v
	}
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "target"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "model"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("model: %w", err)
		}
		if val != "" {
			cfg.Model = strings.TrimSpace(val)
		}
	}
	if raw, ok := lookupSetting(settings, "apikey", "api_key", "api-key"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("apiKey: %w", err)
		}
		cfg.APIKey = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "apiversion", "api_version", "api-version"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("apiVersion: %w", err)
		}
		if val != "" {
			cfg.APIVersion = strings.TrimSpace(val)
		}
	}
	if raw, ok := lookupSetting(settings, "prompt"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("prompt: %w", err)
		}
		cfg.Prompt = val
	}
	if raw, ok := lookupSetting(settings, "promptfile", "prompt_file", "prompt-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("promptFile: %w", err)
		}
		cfg.PromptFile = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "modalities"); ok {
		vals, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("modalities: %w", err)
		}
		if len(vals) > 0 {
			cfg.Modalities = vals
		}
	}
	if raw, ok := lookupSetting(settings, "sessions"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("sessions: %w", err)
		}
		cfg.Sessions = val
	}
	if raw, ok := lookupSetting(settings, "levels"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("levels: %w", err)
		}
		cfg.Levels = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "stagger"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("stagger: %w", err)
		}
		cfg.Stagger = dur
	}
	if raw, ok := lookupSetting(settings, "hold"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("hold: %w", err)
		}
		cfg.Hold = dur
	}
	if raw, ok := lookupSetting(settings, "hydrate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("hydrate: %w", err)
		}
		cfg.Hydrate = val
	}
	if raw, ok := lookupSetting(settings, "draintimeout", "drain_timeout", "drain-timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("drainTimeout: %w", err)
		}
		cfg.DrainTimeout = dur
	}
	if raw, ok := lookupSetting(settings, "handshaketimeout", "handshake_timeout", "handshake-timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("handshakeTimeout: %w", err)
		}
		cfg.HandshakeTimeout = dur
	}
	if raw, ok := lookupSetting(settings, "output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		cfg.Output = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "summary"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		cfg.Summary = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		cfg.Dashboard = val
	}
	if raw, ok := lookupSetting(settings, "jsonoutput", "json_output", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("jsonOutput: %w", err)
		}
		cfg.JSONOutput = val
	}
	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		applyTracingSettings(&cfg.Tracing, tracing)
	}
	return nil
}

// tracingSettings carries the subset of TracingConfig present in a file.
type tracingSettings struct {
	enabled     *bool
	endpoint    *string
	protocol    *string
	serviceName *string
	sampleRate  *float64
	insecure    *bool
}

func parseTracing(value interface{}) (tracingSettings, error) {
	var out tracingSettings
	if value == nil {
		return out, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return out, err
	}
	if raw, ok := lookupSetting(entry, "enabled"); ok {
		val, err := asBool(raw)
		if err != nil {
			return out, fmt.Errorf("enabled: %w", err)
		}
		out.enabled = &val
	}
	if raw, ok := lookupSetting(entry, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return out, fmt.Errorf("endpoint: %w", err)
		}
		trimmed := strings.TrimSpace(val)
		out.endpoint = &trimmed
	}
	if raw, ok := lookupSetting(entry, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return out, fmt.Errorf("protocol: %w", err)
		}
		lowered := strings.ToLower(strings.TrimSpace(val))
		out.protocol = &lowered
	}
	if raw, ok := lookupSetting(entry, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return out, fmt.Errorf("service_name: %w", err)
		}
		trimmed := strings.TrimSpace(val)
		out.serviceName = &trimmed
	}
	if raw, ok := lookupSetting(entry, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return out, fmt.Errorf("sample_rate: %w", err)
		}
		out.sampleRate = &val
	}
	if raw, ok := lookupSetting(entry, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return out, fmt.Errorf("insecure: %w", err)
		}
		out.insecure = &val
	}
	return out, nil
}

func applyTracingSettings(dst *TracingConfig, src tracingSettings) {
	if src.enabled != nil {
		dst.Enabled = *src.enabled
	}
	if src.endpoint != nil {
		dst.Endpoint = *src.endpoint
	}
	if src.protocol != nil {
		dst.Protocol = *src.protocol
	}
	if src.serviceName != nil {
		dst.ServiceName = *src.serviceName
	}
	if src.sampleRate != nil {
		dst.SampleRate = *src.sampleRate
	}
	if src.insecure != nil {
		dst.Insecure = *src.insecure
	}
}
