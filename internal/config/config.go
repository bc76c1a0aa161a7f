// Package config provides the configuration schema, loader, and provider registry
// for the SignSpeak server.
package config

import (
	"fmt"
	"strconv"

	"github.com/MrWong99/signspeak/internal/recognize"
	"github.com/MrWong99/signspeak/internal/reconstruct"
	"github.com/MrWong99/signspeak/pkg/provider/frames"
)

// LogLevel controls log verbosity for the SignSpeak server.
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

// Defaults applied by [Config.ApplyDefaults].
const (
	DefaultListenAddr     = ":8000"
	DefaultUploadDir      = "temp"
	DefaultMaxUploadBytes = 256 << 20
	DefaultLanguage       = "tl"
	DefaultServiceName    = "signspeak"
	DefaultFramesProvider = "ffmpeg"
	DefaultHandsProvider  = "all"
)

// Config is the root configuration structure for SignSpeak.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Upload      UploadConfig      `yaml:"upload"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Lexicon     LexiconConfig     `yaml:"lexicon"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings for the HTTP server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8000").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. It is the only setting applied on reload.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// UploadConfig bounds video uploads.
type UploadConfig struct {
	// TempDir receives uploaded videos and their extracted frames. Created on
	// startup if missing.
	TempDir string `yaml:"temp_dir"`

	// MaxBytes is the largest accepted request body.
	MaxBytes int64 `yaml:"max_bytes"`
}

// PipelineConfig tunes sentence reconstruction.
type PipelineConfig struct {
	WindowSize     int                        `yaml:"window_size"`
	MaxTokenLength int                        `yaml:"max_token_length"`
	Capitalization reconstruct.Capitalization `yaml:"capitalization"`

	// Language is the BCP-47 tag whose casing rules the assembler uses.
	Language string `yaml:"language"`
}

// LexiconConfig selects the dictionary.
type LexiconConfig struct {
	// Path to a YAML lexicon. Empty selects the built-in Tagalog lexicon.
	Path string `yaml:"path"`
}

// ProvidersConfig declares which provider implementation to use for each
// recognition stage. Each field selects a named provider registered in the
// [Registry]. Leaving Classifier empty disables video recognition; label
// reconstruction keeps working.
type ProvidersConfig struct {
	Frames             ProviderEntry `yaml:"frames"`
	Hands              ProviderEntry `yaml:"hands"`
	Classifier         ProviderEntry `yaml:"classifier"`
	ClassifierFallback ProviderEntry `yaml:"classifier_fallback"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "ffmpeg", "onnx").
	Name string `yaml:"name"`

	// Command is the command line of an external helper, split with shell
	// quoting rules.
	Command string `yaml:"command"`

	// Model is the path to model weights, if the provider needs any.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// Configured reports whether the entry names a provider.
func (e ProviderEntry) Configured() bool { return e.Name != "" }

// StringOption returns Options[key] as a string, or def when unset.
func (e ProviderEntry) StringOption(key, def string) (string, error) {
	v, ok := e.Options[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("option %q: want string, got %T", key, v)
	}
	return s, nil
}

// IntOption returns Options[key] as an int, or def when unset. Numeric
// strings are accepted.
func (e ProviderEntry) IntOption(key string, def int) (int, error) {
	v, ok := e.Options[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("option %q: %v is not an integer", key, n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("option %q: %w", key, err)
		}
		return i, nil
	}
	return 0, fmt.Errorf("option %q: want integer, got %T", key, v)
}

// RecognitionConfig tunes the video recognition stages.
type RecognitionConfig struct {
	// Stride keeps every n-th decoded frame.
	Stride int `yaml:"stride"`

	// BatchSize is the number of frames per classifier call.
	BatchSize int `yaml:"batch_size"`

	// Concurrency is the number of classifier calls in flight per request.
	Concurrency int `yaml:"concurrency"`
}

// TelemetryConfig configures OpenTelemetry resources.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name"`

	// TraceSampleRatio is the share of new traces that are sampled, in
	// [0, 1]. Zero samples every trace. Requests carrying a sampled
	// traceparent are always sampled.
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`
}

// ApplyDefaults fills every unset field with its default. Explicit values,
// including invalid ones, are kept so [Validate] can report them.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Upload.TempDir == "" {
		c.Upload.TempDir = DefaultUploadDir
	}
	if c.Upload.MaxBytes == 0 {
		c.Upload.MaxBytes = DefaultMaxUploadBytes
	}
	if c.Pipeline.WindowSize == 0 {
		c.Pipeline.WindowSize = reconstruct.DefaultWindowSize
	}
	if c.Pipeline.MaxTokenLength == 0 {
		c.Pipeline.MaxTokenLength = reconstruct.DefaultMaxTokenLength
	}
	if c.Pipeline.Capitalization == "" {
		c.Pipeline.Capitalization = reconstruct.CapitalizeFirst
	}
	if c.Pipeline.Language == "" {
		c.Pipeline.Language = DefaultLanguage
	}
	if c.Providers.Frames.Name == "" {
		c.Providers.Frames.Name = DefaultFramesProvider
	}
	if c.Providers.Hands.Name == "" {
		c.Providers.Hands.Name = DefaultHandsProvider
	}
	if c.Recognition.Stride == 0 {
		c.Recognition.Stride = frames.DefaultStride
	}
	if c.Recognition.BatchSize == 0 {
		c.Recognition.BatchSize = recognize.DefaultBatchSize
	}
	if c.Recognition.Concurrency == 0 {
		c.Recognition.Concurrency = recognize.DefaultConcurrency
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = DefaultServiceName
	}
}
