package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills unset numeric knobs with their standard values.
func applyDefaults(cfg *Config) {
	if cfg.Capture.Mode == "" {
		cfg.Capture.Mode = ModeStreaming
	}
	if cfg.Capture.TargetSampleRate == 0 {
		cfg.Capture.TargetSampleRate = 16000
	}
	if cfg.Capture.ChunkSamples == 0 {
		cfg.Capture.ChunkSamples = 4096
	}
	if cfg.Capture.MaxDurationMs == 0 {
		cfg.Capture.MaxDurationMs = 60000
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if !cfg.Capture.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("capture.mode %q is invalid; valid values: streaming, batch", cfg.Capture.Mode))
	}
	if cfg.Capture.TargetSampleRate < 8000 {
		errs = append(errs, fmt.Errorf("capture.target_sample_rate %d is below the 8000 Hz minimum", cfg.Capture.TargetSampleRate))
	}
	if cfg.Capture.ChunkSamples <= 0 {
		errs = append(errs, fmt.Errorf("capture.chunk_samples must be positive, got %d", cfg.Capture.ChunkSamples))
	}
	if cfg.Capture.MaxDurationMs <= 0 {
		errs = append(errs, fmt.Errorf("capture.max_duration_ms must be positive, got %d", cfg.Capture.MaxDurationMs))
	}
	if cfg.Capture.SilenceThreshold < 0 || cfg.Capture.SilenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("capture.silence_threshold %g is outside [0, 1]", cfg.Capture.SilenceThreshold))
	}

	switch cfg.Capture.Mode {
	case ModeStreaming:
		if cfg.Backend.TokenURL == "" {
			errs = append(errs, errors.New("backend.token_url is required in streaming mode"))
		}
		if cfg.Backend.StreamURL == "" {
			errs = append(errs, errors.New("backend.stream_url is required in streaming mode"))
		}
	case ModeBatch:
		if cfg.Backend.BatchURL == "" {
			errs = append(errs, errors.New("backend.batch_url is required in batch mode"))
		}
	}

	return errors.Join(errs...)
}
