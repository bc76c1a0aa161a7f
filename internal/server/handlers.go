package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/MrWong99/signspeak/internal/observe"
	"github.com/MrWong99/signspeak/internal/reconstruct"
	"github.com/MrWong99/signspeak/pkg/types"
)

type rootResponse struct {
	Message string `json:"message"`
}

type predictResponse struct {
	RawPrediction []string `json:"raw_prediction"`
	Sentence      string   `json:"tagalog_sentence"`
}

type reconstructRequest struct {
	Labels []types.FrameLabel `json:"labels"`
}

type reconstructResponse struct {
	RawPrediction []string               `json:"raw_prediction"`
	Sentence      string                 `json:"tagalog_sentence"`
	Compressed    string                 `json:"compressed"`
	Tokens        []types.Token          `json:"tokens"`
	Corrections   []types.CorrectedToken `json:"corrections"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{Message: "server started"})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Recognizer == nil {
		writeError(w, http.StatusServiceUnavailable, "video recognition is not configured")
		return
	}
	ctx := r.Context()
	log := observe.Logger(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	path, size, err := saveUpload(r, s.cfg.UploadDir, "video")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
		case errors.Is(err, errNoUpload), errors.Is(err, errMalformed):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error("failed to store upload", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to store upload")
		}
		return
	}
	s.cfg.Metrics.RecordUpload(ctx, size)
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("failed to remove upload", "path", path, "error", err)
		}
	}()

	labels, err := s.cfg.Recognizer.Recognize(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Error("recognition failed", "error", err)
		writeError(w, http.StatusBadGateway, "recognition failed: "+err.Error())
		return
	}

	res, err := s.cfg.Reconstructor.Reconstruct(ctx, labels)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Error("reconstruction of recognised labels failed", "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, types.ErrInvalidLabel) {
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, predictResponse{
		RawPrediction: res.Letters,
		Sentence:      res.Sentence,
	})
}

func (s *Server) handleReconstruct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req reconstructRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		if errors.Is(err, io.EOF) {
			err = errors.New("empty request body")
		}
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	res, err := s.cfg.Reconstructor.Reconstruct(ctx, req.Labels)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrInvalidLabel):
			writeError(w, http.StatusBadRequest, err.Error())
		case ctx.Err() != nil:
		default:
			observe.Logger(ctx).Error("reconstruction failed", "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, newReconstructResponse(res))
}

func newReconstructResponse(res *reconstruct.Result) reconstructResponse {
	return reconstructResponse{
		RawPrediction: res.Letters,
		Sentence:      res.Sentence,
		Compressed:    res.Compressed,
		Tokens:        res.Tokens,
		Corrections:   res.Corrections,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
