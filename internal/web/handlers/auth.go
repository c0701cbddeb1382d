package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jsvoboda/rollcall/internal/auth"
	"github.com/jsvoboda/rollcall/internal/constants"
	"github.com/jsvoboda/rollcall/internal/database"
	"github.com/jsvoboda/rollcall/internal/web/middleware"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// AuthHandler handles teacher account endpoints.
type AuthHandler struct {
	store  database.TenantStore
	tokens *auth.Tokens
	log    *zap.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(store database.TenantStore, tokens *auth.Tokens, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		store:  store,
		tokens: tokens,
		log:    log,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// teacherResponse is the public view of a teacher account.
type teacherResponse struct {
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	SessionsCount int     `json:"sessions_count"`
	LastLogin     *string `json:"last_login"`
	CreatedAt     string  `json:"created_at"`
}

func toTeacherResponse(t *database.Teacher) teacherResponse {
	resp := teacherResponse{
		Name:          t.Name,
		Email:         t.Email,
		SessionsCount: t.SessionsCount,
		CreatedAt:     t.CreatedAt.UTC().Format(time.RFC3339),
	}
	if t.LastLogin != nil {
		s := t.LastLogin.UTC().Format(time.RFC3339)
		resp.LastLogin = &s
	}
	return resp
}

// validateRegistration checks the signup fields, returning a user-facing
// message for the first problem found.
func validateRegistration(req registerRequest) string {
	if len(strings.TrimSpace(req.Name)) < constants.MinNameLength {
		return "name must be at least 2 characters"
	}
	if !emailPattern.MatchString(req.Email) {
		return "invalid email address"
	}
	if len(req.Password) < constants.MinPasswordLength {
		return "password must be at least 8 characters"
	}
	return ""
}

// Register creates a teacher account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if msg := validateRegistration(req); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	teacher, err := h.store.CreateTeacher(r.Context(), strings.TrimSpace(req.Name), email, hash)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			respondError(w, http.StatusConflict, "email already registered")
			return
		}
		respondStorageError(w, err)
		return
	}

	h.log.Info("teacher registered", zap.String("email", sanitizeForLog(email)))

	token, err := h.tokens.Issue(teacher.Email, teacher.Name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"token":   token,
		"teacher": toTeacherResponse(teacher),
	})
}

// Login verifies credentials and issues a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	teacher, err := h.store.GetTeacherByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		respondStorageError(w, err)
		return
	}

	if !auth.CheckPassword(teacher.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := h.store.TouchLogin(r.Context(), teacher.ID); err != nil {
		h.log.Warn("touch login failed", zap.String("email", sanitizeForLog(email)), zap.Error(err))
	}

	token, err := h.tokens.Issue(teacher.Email, teacher.Name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.log.Info("teacher logged in", zap.String("email", sanitizeForLog(email)))

	respondJSON(w, http.StatusOK, map[string]any{
		"token":   token,
		"teacher": toTeacherResponse(teacher),
	})
}

// Profile returns the authenticated teacher's account details.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	teacher, err := h.store.GetTeacherByEmail(r.Context(), principal.Email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "account not found")
			return
		}
		respondStorageError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toTeacherResponse(teacher))
}
