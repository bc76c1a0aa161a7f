// Package server exposes sign-language recognition and sentence
// reconstruction over HTTP.
//
// Routes:
//
//	GET  /             liveness banner
//	POST /predict/     multipart upload (field "video") → letters + sentence
//	POST /reconstruct  JSON frame labels → letters, tokens, corrections + sentence
//	GET  /healthz      liveness probe
//	GET  /readyz       readiness probe
//	GET  /metrics      Prometheus scrape endpoint
//
// Every error response is a JSON object {"error": "..."}.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/MrWong99/signspeak/internal/health"
	"github.com/MrWong99/signspeak/internal/observe"
	"github.com/MrWong99/signspeak/internal/reconstruct"
	"github.com/MrWong99/signspeak/pkg/types"
)

// DefaultMaxUploadBytes bounds request bodies when Config.MaxUploadBytes is
// zero.
const DefaultMaxUploadBytes = 256 << 20

// maxJSONBytes bounds /reconstruct bodies.
const maxJSONBytes = 4 << 20

// Recognizer turns a video file into per-frame labels.
type Recognizer interface {
	Recognize(ctx context.Context, videoPath string) ([]types.FrameLabel, error)
}

// Reconstructor turns per-frame labels into a sentence.
type Reconstructor interface {
	Reconstruct(ctx context.Context, labels []types.FrameLabel) (*reconstruct.Result, error)
}

// Config wires a [Server].
type Config struct {
	// Reconstructor is required.
	Reconstructor Reconstructor

	// Recognizer serves /predict/. When nil the route answers 503.
	Recognizer Recognizer

	// Health serves the probes. Default: a handler without checkers.
	Health *health.Handler

	// Metrics receives request durations and upload sizes. Default:
	// observe.DefaultMetrics().
	Metrics *observe.Metrics

	// MetricsHandler serves /metrics. The route is omitted when nil.
	MetricsHandler http.Handler

	// UploadDir receives uploaded videos. It must exist.
	UploadDir string

	// MaxUploadBytes bounds request bodies on /predict/.
	MaxUploadBytes int64
}

// Server is the HTTP front end. Create with [New].
type Server struct {
	cfg     Config
	handler http.Handler
}

// New validates cfg and builds the route table.
func New(cfg Config) (*Server, error) {
	if cfg.Reconstructor == nil {
		return nil, errors.New("server: reconstructor is required")
	}
	if cfg.Recognizer != nil {
		info, err := os.Stat(cfg.UploadDir)
		if err != nil {
			return nil, fmt.Errorf("server: upload dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("server: upload dir %q is not a directory", cfg.UploadDir)
		}
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Health == nil {
		cfg.Health = health.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	s := &Server{cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /predict/{$}", s.handlePredict)
	mux.HandleFunc("POST /reconstruct", s.handleReconstruct)
	cfg.Health.Register(mux)
	quiet := []string{"/healthz", "/readyz"}
	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
		quiet = append(quiet, "/metrics")
	}

	s.handler = observe.Middleware(cfg.Metrics, observe.WithQuietPaths(quiet...))(mux)
	return s, nil
}

// Handler returns the root handler with tracing, metrics and request logging
// applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}
