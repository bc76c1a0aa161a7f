package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames holds the built-in provider names of each kind. Other
// names only draw a warning, since main may register more.
var ValidProviderNames = map[string][]string{
	"frames":     {"ffmpeg"},
	"hands":      {"all", "exec"},
	"classifier": {"exec", "onnx"},
}

// Load opens path and hands it to [LoadFromReader].
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

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid value of cfg at once, joined with
// [errors.Join].
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Upload
	if cfg.Upload.MaxBytes < 0 {
		errs = append(errs, fmt.Errorf("upload.max_bytes %d must not be negative", cfg.Upload.MaxBytes))
	}

	// Pipeline
	if cfg.Pipeline.WindowSize < 1 {
		errs = append(errs, fmt.Errorf("pipeline.window_size %d must be at least 1", cfg.Pipeline.WindowSize))
	}
	if cfg.Pipeline.MaxTokenLength < 1 {
		errs = append(errs, fmt.Errorf("pipeline.max_token_length %d must be at least 1", cfg.Pipeline.MaxTokenLength))
	}
	if cfg.Pipeline.Capitalization != "" && !cfg.Pipeline.Capitalization.IsValid() {
		errs = append(errs, fmt.Errorf("pipeline.capitalization %q is invalid; valid values: first, lower_rest", cfg.Pipeline.Capitalization))
	}
	if cfg.Pipeline.Language != "" {
		if _, err := language.Parse(cfg.Pipeline.Language); err != nil {
			errs = append(errs, fmt.Errorf("pipeline.language %q: %w", cfg.Pipeline.Language, err))
		}
	}

	// Recognition
	if cfg.Recognition.Stride < 1 {
		errs = append(errs, fmt.Errorf("recognition.stride %d must be at least 1", cfg.Recognition.Stride))
	}
	if cfg.Recognition.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("recognition.batch_size %d must be at least 1", cfg.Recognition.BatchSize))
	}
	if cfg.Recognition.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("recognition.concurrency %d must be at least 1", cfg.Recognition.Concurrency))
	}

	if r := cfg.Telemetry.TraceSampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry.trace_sample_ratio %g must be between 0 and 1", r))
	}

	// Providers
	p := cfg.Providers
	validateProviderName("frames", p.Frames.Name)
	validateProviderName("hands", p.Hands.Name)
	validateProviderName("classifier", p.Classifier.Name)
	validateProviderName("classifier", p.ClassifierFallback.Name)

	errs = append(errs, validateEntry("providers.hands", p.Hands)...)
	errs = append(errs, validateEntry("providers.classifier", p.Classifier)...)
	errs = append(errs, validateEntry("providers.classifier_fallback", p.ClassifierFallback)...)

	if p.ClassifierFallback.Configured() && !p.Classifier.Configured() {
		errs = append(errs, errors.New("providers.classifier_fallback requires providers.classifier"))
	}
	if !p.Classifier.Configured() {
		slog.Warn("providers.classifier is not configured; video recognition is disabled")
	}

	return errors.Join(errs...)
}

// validateEntry checks the fields the built-in providers require.
func validateEntry(prefix string, e ProviderEntry) []error {
	var errs []error
	switch e.Name {
	case "exec":
		if e.Command == "" {
			errs = append(errs, fmt.Errorf("%s.command is required for provider %q", prefix, e.Name))
		}
	case "onnx":
		if e.Model == "" {
			errs = append(errs, fmt.Errorf("%s.model is required for provider %q", prefix, e.Name))
		}
	}
	return errs
}

// validateProviderName warns about a set name that is not built in.
func validateProviderName(kind, name string) {
	known := ValidProviderNames[kind]
	if name == "" || known == nil || slices.Contains(known, name) {
		return
	}
	slog.Warn("provider name is not built in; check for a typo",
		"kind", kind, "name", name, "built_in", known)
}
