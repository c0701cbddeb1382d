package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jsvoboda/rollcall/internal/database/mock"
	"github.com/jsvoboda/rollcall/internal/embedding"
	"github.com/jsvoboda/rollcall/internal/recognition"
	"github.com/jsvoboda/rollcall/internal/web/middleware"
)

// fakeEmbedder returns canned detection results.
type fakeEmbedder struct {
	faces []embedding.Face
	err   error
}

func (f *fakeEmbedder) DetectAndEmbed(_ context.Context, _ []byte) ([]embedding.Face, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.faces, nil
}

// testService builds a recognition service over a fresh mock store.
func testService(emb recognition.Embedder) (*recognition.Service, *mock.Store) {
	store := mock.NewStore()
	return recognition.NewService(store, emb, 0.5, zap.NewNop()), store
}

// testJPEG encodes a small valid JPEG.
func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

// multipartBody builds a multipart form with the given fields and an
// optional image file.
func multipartBody(t *testing.T, fields map[string]string, imageData []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if imageData != nil {
		fw, err := mw.CreateFormFile("image", "probe.jpg")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(imageData); err != nil {
			t.Fatalf("write image: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

// authedRequest creates a request carrying an authenticated principal.
func authedRequest(t *testing.T, method, path string, body io.Reader, tenant uuid.UUID) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	ctx := middleware.SetPrincipal(req.Context(), &middleware.Principal{
		TenantID: tenant,
		Email:    "teacher@example.com",
		Name:     "Jana Novakova",
	})
	return req.WithContext(ctx)
}

// parseJSONResponse parses a JSON response body into the target type.
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code.
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message.
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
