package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jsvoboda/rollcall/internal/auth"
	"github.com/jsvoboda/rollcall/internal/database"
	"github.com/jsvoboda/rollcall/internal/database/mock"
)

func authMiddleware(t *testing.T) (func(http.Handler) http.Handler, *auth.Tokens, *mock.Store) {
	t.Helper()
	tokens := auth.NewTokens("test-secret", time.Hour)
	store := mock.NewStore()
	return RequireAuth(tokens, store), tokens, store
}

// captureHandler records the principal seen by the downstream handler.
func captureHandler(principal **Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*principal = GetPrincipal(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth_ValidToken(t *testing.T) {
	mw, tokens, _ := authMiddleware(t)

	signed, err := tokens.Issue("teacher@example.com", "Jana")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var principal *Principal
	req := httptest.NewRequest(http.MethodGet, "/students", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	mw(captureHandler(&principal)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if principal == nil {
		t.Fatal("principal missing from context")
	}
	if principal.Email != "teacher@example.com" {
		t.Errorf("email = %q", principal.Email)
	}
	if principal.TenantID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("tenant not resolved")
	}
}

func TestRequireAuth_StableTenant(t *testing.T) {
	mw, tokens, _ := authMiddleware(t)

	signed, err := tokens.Issue("teacher@example.com", "Jana")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var first, second *Principal
	for _, p := range []**Principal{&first, &second} {
		req := httptest.NewRequest(http.MethodGet, "/students", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		rec := httptest.NewRecorder()
		mw(captureHandler(p)).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}

	if first.TenantID != second.TenantID {
		t.Errorf("tenant id changed between requests: %s vs %s", first.TenantID, second.TenantID)
	}
}

func TestRequireAuth_Rejections(t *testing.T) {
	mw, _, _ := authMiddleware(t)

	otherToken, err := auth.NewTokens("wrong-secret", time.Hour).Issue("teacher@example.com", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not-a-jwt"},
		{"wrong signature", "Bearer " + otherToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var principal *Principal
			req := httptest.NewRequest(http.MethodGet, "/students", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			mw(captureHandler(&principal)).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content type = %q, want application/json", ct)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("rejection body is not JSON: %v", err)
			}
			if body["error"] != "unauthorized" {
				t.Errorf("error = %q, want unauthorized", body["error"])
			}
			if principal != nil {
				t.Error("handler must not run for rejected requests")
			}
		})
	}
}

func TestRequireAuth_StoreUnavailable(t *testing.T) {
	tokens := auth.NewTokens("test-secret", time.Hour)
	store := mock.NewStore()
	store.ResolveTenantError = database.ErrUnavailable
	mw := RequireAuth(tokens, store)

	signed, err := tokens.Issue("teacher@example.com", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/students", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}
}
