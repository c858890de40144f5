package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"geolens/internal/services/pipeline"
)

// Locator runs the inference pipeline for one submitted image.
type Locator interface {
	Locate(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// LocateHandler handles photo geolocation HTTP requests
type LocateHandler struct {
	locator       Locator
	maxImageBytes int64
}

// NewLocateHandler creates a new LocateHandler
func NewLocateHandler(locator Locator, maxImageBytes int64) *LocateHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = 10 << 20
	}
	return &LocateHandler{locator: locator, maxImageBytes: maxImageBytes}
}

// RegisterRoutes registers all locate routes
func (h *LocateHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/locate", h.Locate)
	})
}

// Locate accepts an uploaded photograph (multipart form or raw body) plus
// an optional preference and responds with the accepted guess and its
// display policy.
func (h *LocateHandler) Locate(w http.ResponseWriter, r *http.Request) {
	image, preference, err := h.readSubmission(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	if len(image) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "image is required")
		return
	}

	result, err := h.locator.Locate(r.Context(), pipeline.Request{
		Image:      image,
		Preference: preference,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrAllEnginesExhausted) {
			writeError(w, http.StatusUnprocessableEntity, ErrCodeNotFound, "location not found")
			return
		}
		log.Error().Err(err).Msg("Locate request failed")
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to process image")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Error().Err(err).Msg("Failed to encode locate response")
	}
}

// readSubmission extracts the image bytes and preference from either a
// multipart form (fields "image" and "preference") or a raw image body with
// an optional X-Preference header.
func (h *LocateHandler) readSubmission(r *http.Request) ([]byte, string, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(h.maxImageBytes); err != nil {
			return nil, "", errors.New("invalid multipart form")
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, "", errors.New("image file is required")
		}
		defer file.Close()

		image, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
		if err != nil {
			return nil, "", errors.New("failed to read image")
		}
		if int64(len(image)) > h.maxImageBytes {
			return nil, "", errors.New("image is too large")
		}
		return image, r.FormValue("preference"), nil
	}

	image, err := io.ReadAll(io.LimitReader(r.Body, h.maxImageBytes+1))
	if err != nil {
		return nil, "", errors.New("failed to read request body")
	}
	if int64(len(image)) > h.maxImageBytes {
		return nil, "", errors.New("image is too large")
	}
	return image, r.Header.Get("X-Preference"), nil
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(NewErrorResponse(code, message)); err != nil {
		http.Error(w, message, status)
	}
}
