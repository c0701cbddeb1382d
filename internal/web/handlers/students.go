package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jsvoboda/rollcall/internal/constants"
	"github.com/jsvoboda/rollcall/internal/database"
	"github.com/jsvoboda/rollcall/internal/embedding"
	"github.com/jsvoboda/rollcall/internal/matcher"
	"github.com/jsvoboda/rollcall/internal/recognition"
	"github.com/jsvoboda/rollcall/internal/web/middleware"
)

// StudentsHandler handles student registration and roster endpoints.
type StudentsHandler struct {
	service *recognition.Service
	store   database.TemplateStore
	log     *zap.Logger
}

// NewStudentsHandler creates a new students handler.
func NewStudentsHandler(service *recognition.Service, store database.TemplateStore, log *zap.Logger) *StudentsHandler {
	return &StudentsHandler{
		service: service,
		store:   store,
		log:     log,
	}
}

// studentResponse is the public view of a registered student.
type studentResponse struct {
	Roll         string `json:"roll_number"`
	Name         string `json:"name"`
	RegisteredAt string `json:"registered_at"`
}

// readImageFile extracts the uploaded image from a multipart form.
func readImageFile(r *http.Request) ([]byte, string) {
	if err := r.ParseMultipartForm(constants.MaxUploadBytes); err != nil {
		return nil, "failed to parse multipart form"
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, "image file is required"
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, constants.MaxUploadBytes+1))
	if err != nil {
		return nil, "failed to read image"
	}
	if len(data) > constants.MaxUploadBytes {
		return nil, "image too large"
	}
	return data, ""
}

// Register enrolls a student: form fields name and roll_number plus an
// image file. Re-registering a roll number replaces its template.
func (h *StudentsHandler) Register(w http.ResponseWriter, r *http.Request) {
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

	name := strings.TrimSpace(r.FormValue("name"))
	roll := strings.TrimSpace(r.FormValue("roll_number"))
	if name == "" || roll == "" {
		respondError(w, http.StatusBadRequest, "name and roll_number are required")
		return
	}

	student, err := h.service.Register(r.Context(), principal.TenantID, name, roll, data)
	if err != nil {
		switch {
		case errors.Is(err, embedding.ErrImageDecode):
			respondError(w, http.StatusBadRequest, "could not decode image")
		case errors.Is(err, recognition.ErrNoFace):
			respondError(w, http.StatusBadRequest, "no face detected in image")
		case errors.Is(err, database.ErrUnavailable):
			respondError(w, http.StatusServiceUnavailable, "storage unavailable")
		default:
			h.log.Error("student registration failed",
				zap.String("roll", sanitizeForLog(roll)), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	respondJSON(w, http.StatusOK, studentResponse{
		Roll:         student.Roll,
		Name:         student.Name,
		RegisteredAt: student.RegisteredAt.UTC().Format(time.RFC3339),
	})
}

// List returns the tenant's roster, optionally filtered by name. Filtering
// is diacritics-insensitive, so "novak" matches "Novák".
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	students, err := h.store.ListTemplates(r.Context(), principal.TenantID)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	filter := matcher.NormalizeStudentName(r.URL.Query().Get("name"))

	out := make([]studentResponse, 0, len(students))
	for _, st := range students {
		if filter != "" && !strings.Contains(matcher.NormalizeStudentName(st.Name), filter) {
			continue
		}
		out = append(out, studentResponse{
			Roll:         st.Roll,
			Name:         st.Name,
			RegisteredAt: st.RegisteredAt.UTC().Format(time.RFC3339),
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"students": out,
		"count":    len(out),
	})
}
