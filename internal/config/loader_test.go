package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/signspeak/internal/config"
)

func TestValidate_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		mention string
	}{
		{
			name:    "log level",
			yaml:    "server:\n  log_level: verbose\n",
			mention: "log_level",
		},
		{
			name:    "tls without key",
			yaml:    "server:\n  tls:\n    cert_file: a.crt\n",
			mention: "server.tls",
		},
		{
			name:    "negative upload size",
			yaml:    "upload:\n  max_bytes: -1\n",
			mention: "upload.max_bytes",
		},
		{
			name:    "sample ratio above one",
			yaml:    "telemetry:\n  trace_sample_ratio: 1.5\n",
			mention: "telemetry.trace_sample_ratio",
		},
		{
			name:    "negative window",
			yaml:    "pipeline:\n  window_size: -2\n",
			mention: "pipeline.window_size",
		},
		{
			name:    "negative token length",
			yaml:    "pipeline:\n  max_token_length: -1\n",
			mention: "pipeline.max_token_length",
		},
		{
			name:    "capitalization",
			yaml:    "pipeline:\n  capitalization: title\n",
			mention: "pipeline.capitalization",
		},
		{
			name:    "language",
			yaml:    "pipeline:\n  language: not-a-language-tag!\n",
			mention: "pipeline.language",
		},
		{
			name:    "stride",
			yaml:    "recognition:\n  stride: -4\n",
			mention: "recognition.stride",
		},
		{
			name:    "batch size",
			yaml:    "recognition:\n  batch_size: -1\n",
			mention: "recognition.batch_size",
		},
		{
			name:    "concurrency",
			yaml:    "recognition:\n  concurrency: -1\n",
			mention: "recognition.concurrency",
		},
		{
			name:    "exec classifier without command",
			yaml:    "providers:\n  classifier:\n    name: exec\n",
			mention: "providers.classifier.command",
		},
		{
			name:    "onnx classifier without model",
			yaml:    "providers:\n  classifier:\n    name: onnx\n",
			mention: "providers.classifier.model",
		},
		{
			name:    "exec hands without command",
			yaml:    "providers:\n  hands:\n    name: exec\n",
			mention: "providers.hands.command",
		},
		{
			name:    "fallback without primary",
			yaml:    "providers:\n  classifier_fallback:\n    name: exec\n    command: predict\n",
			mention: "requires providers.classifier",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tc.mention) {
				t.Errorf("error should mention %q, got: %v", tc.mention, err)
			}
		})
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
pipeline:
  window_size: -1
recognition:
  batch_size: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{"server.log_level", "pipeline.window_size", "recognition.batch_size"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

func TestValidate_UnknownProviderNameIsWarningOnly(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  frames:
    name: gstreamer
  classifier:
    name: tflite
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unknown provider names should not fail validation: %v", err)
	}
}

func TestValidate_DirectCall(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	if err := config.Validate(cfg); err == nil {
		t.Error("a config without defaults should fail validation")
	}
	cfg.ApplyDefaults()
	if err := config.Validate(cfg); err != nil {
		t.Errorf("defaulted config: %v", err)
	}
}
