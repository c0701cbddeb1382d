package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jsvoboda/rollcall/internal/database"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondStorageError maps storage failures to HTTP statuses.
func respondStorageError(w http.ResponseWriter, err error) {
	if errors.Is(err, database.ErrUnavailable) {
		respondError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	respondError(w, http.StatusInternalServerError, "internal error")
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Banner handles the root endpoint.
func Banner(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"service": "rollcall",
		"message": "face recognition attendance service",
	})
}
