package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/jsvoboda/rollcall/internal/database"
	"github.com/jsvoboda/rollcall/internal/embedding"
	"github.com/jsvoboda/rollcall/internal/recognition"
	"github.com/jsvoboda/rollcall/internal/web/middleware"
)

// RecognizeHandler handles the probe-and-mark endpoint.
type RecognizeHandler struct {
	service *recognition.Service
	log     *zap.Logger
}

// NewRecognizeHandler creates a new recognize handler.
func NewRecognizeHandler(service *recognition.Service, log *zap.Logger) *RecognizeHandler {
	return &RecognizeHandler{
		service: service,
		log:     log,
	}
}

// recognizeResponse is returned for every completed recognition attempt,
// matched or not.
type recognizeResponse struct {
	Matched    bool    `json:"matched"`
	Name       string  `json:"name,omitempty"`
	Roll       string  `json:"roll_number,omitempty"`
	Confidence float64 `json:"confidence"`
	Status     string  `json:"status,omitempty"`
	Message    string  `json:"message,omitempty"`
}

// Recognize matches an uploaded face image against the roster and marks
// attendance on a hit. A probe that matches nobody answers 404 with the
// best confidence seen, for diagnostics.
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	data, msg := readImageFile(r)
	if msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	result, err := h.service.Recognize(r.Context(), principal.TenantID, data)
	if err != nil {
		var noMatch *recognition.NoMatchError
		switch {
		case errors.As(err, &noMatch):
			middleware.RecognitionCounter.WithLabelValues("no_match").Inc()
			respondJSON(w, http.StatusNotFound, recognizeResponse{
				Matched:    false,
				Confidence: noMatch.BestConfidence,
				Message:    "no matching student found",
			})
		case errors.Is(err, recognition.ErrNoRoster):
			respondError(w, http.StatusNotFound, "no students registered")
		case errors.Is(err, recognition.ErrNoFace):
			middleware.RecognitionCounter.WithLabelValues("no_face").Inc()
			respondError(w, http.StatusBadRequest, "no face detected in image")
		case errors.Is(err, embedding.ErrImageDecode):
			respondError(w, http.StatusBadRequest, "could not decode image")
		case errors.Is(err, database.ErrUnavailable):
			respondError(w, http.StatusServiceUnavailable, "storage unavailable")
		default:
			middleware.RecognitionCounter.WithLabelValues("error").Inc()
			h.log.Error("recognition failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	middleware.RecognitionCounter.WithLabelValues(result.Status).Inc()

	message := "attendance marked"
	if result.Status == "already_marked" {
		message = "attendance already marked today"
	}

	respondJSON(w, http.StatusOK, recognizeResponse{
		Matched:    true,
		Name:       result.Name,
		Roll:       result.Roll,
		Confidence: result.Confidence,
		Status:     result.Status,
		Message:    message,
	})
}
