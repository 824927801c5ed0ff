// Package config provides the configuration schema and loader for the
// dictation pipeline.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Mode selects the transcription transport strategy.
type Mode string

const (
	// ModeStreaming sends audio over a persistent duplex channel and yields
	// incremental partial/final transcripts.
	ModeStreaming Mode = "streaming"

	// ModeBatch records a bounded clip and transcribes it with one HTTP
	// round trip.
	ModeBatch Mode = "batch"
)

// IsValid reports whether m is a recognised mode.
func (m Mode) IsValid() bool {
	return m == ModeStreaming || m == ModeBatch
}

// Config is the root configuration structure, typically loaded from a YAML
// file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Capture CaptureConfig `yaml:"capture"`
	Backend BackendConfig `yaml:"backend"`
}

// ServerConfig holds process-level settings.
type ServerConfig struct {
	// MetricsAddr is the TCP address the /metrics endpoint listens on.
	// Empty disables the metrics server.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// CaptureConfig tunes the capture pipeline.
type CaptureConfig struct {
	// Mode selects the default transport strategy.
	Mode Mode `yaml:"mode"`

	// TargetSampleRate is the rate audio is resampled to before transport,
	// in Hz. Default 16000.
	TargetSampleRate int `yaml:"target_sample_rate"`

	// ChunkSamples is the number of samples per encoded transport unit.
	// Default 4096.
	ChunkSamples int `yaml:"chunk_samples"`

	// MaxDurationMs bounds a batch recording in milliseconds. Default 60000.
	MaxDurationMs int `yaml:"max_duration_ms"`

	// SilenceThreshold is the RMS energy a batch recording must cross at
	// least once to count as speech. Zero uses the gate default.
	SilenceThreshold float64 `yaml:"silence_threshold"`

	// MinPayloadBytes is the smallest encoded payload worth a transcription
	// request.
	MinPayloadBytes int `yaml:"min_payload_bytes"`

	// Vocabulary lists custom terms (names, jargon) the backend tends to
	// mishear. Final transcripts are corrected against it phonetically.
	Vocabulary []string `yaml:"vocabulary"`
}

// MaxDuration returns the batch bound as a [time.Duration].
func (c CaptureConfig) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationMs) * time.Millisecond
}

// BackendConfig describes the transcription backend endpoints.
type BackendConfig struct {
	// TokenURL is the HTTP endpoint issuing short-lived streaming session
	// tokens.
	TokenURL string `yaml:"token_url"`

	// StreamURL is the WebSocket endpoint for the streaming channel.
	StreamURL string `yaml:"stream_url"`

	// BatchURL is the HTTP endpoint accepting multipart batch recordings.
	BatchURL string `yaml:"batch_url"`

	// APIKey authenticates requests to the backend.
	APIKey string `yaml:"api_key"`
}
