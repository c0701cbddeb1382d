package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jsvoboda/rollcall/internal/database/mock"
)

func newAttendanceHandler() (*AttendanceHandler, *mock.Store) {
	store := mock.NewStore()
	return NewAttendanceHandler(store, time.UTC, zap.NewNop()), store
}

// seedAttendance registers a student and records attendance at the given time.
func seedAttendance(t *testing.T, store *mock.Store, tenant uuid.UUID, roll, name string, at time.Time) uuid.UUID {
	t.Helper()
	st, err := store.UpsertTemplate(context.Background(), tenant, roll, name, []float32{1, 0})
	if err != nil {
		t.Fatalf("seed template: %v", err)
	}
	if _, err := store.RecordIfAbsent(context.Background(), tenant, st.ID, name, roll, at); err != nil {
		t.Fatalf("seed attendance: %v", err)
	}
	return st.ID
}

func TestDownload_CSV(t *testing.T) {
	h, store := newAttendanceHandler()
	tenant := uuid.New()

	at := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	h.SetClock(func() time.Time { return at })
	seedAttendance(t, store, tenant, "17", "Petr Svoboda", at)

	req := authedRequest(t, http.MethodGet, "/download?start_date=2024-03-15&end_date=2024-03-15", nil, tenant)
	rec := httptest.NewRecorder()
	h.Download(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "Attendance_2024-03-15_2024-03-15.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1 record", len(rows))
	}
	wantHeader := []string{"Name", "Roll Number", "Timestamp"}
	for i, col := range wantHeader {
		if rows[0][i] != col {
			t.Errorf("header = %v, want %v", rows[0], wantHeader)
			break
		}
	}
	if rows[1][0] != "Petr Svoboda" || rows[1][1] != "17" {
		t.Errorf("record = %v", rows[1])
	}
	if rows[1][2] != "2024-03-15 09:30:00" {
		t.Errorf("timestamp = %q", rows[1][2])
	}
}

func TestDownload_DefaultsToToday(t *testing.T) {
	h, store := newAttendanceHandler()
	tenant := uuid.New()

	now := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	h.SetClock(func() time.Time { return now })
	seedAttendance(t, store, tenant, "17", "Petr", now)
	seedAttendance(t, store, tenant, "18", "Jana", now.AddDate(0, 0, -2))

	req := authedRequest(t, http.MethodGet, "/download", nil, tenant)
	rec := httptest.NewRecorder()
	h.Download(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want only today's record", len(rows))
	}
	if rows[1][1] != "17" {
		t.Errorf("record = %v, want roll 17", rows[1])
	}
}

func TestDownload_InvalidRange(t *testing.T) {
	h, _ := newAttendanceHandler()
	tenant := uuid.New()

	for _, q := range []string{
		"start_date=not-a-date",
		"end_date=15.3.2024",
		"start_date=2024-03-15&end_date=2024-03-10",
	} {
		req := authedRequest(t, http.MethodGet, "/download?"+q, nil, tenant)
		rec := httptest.NewRecorder()
		h.Download(rec, req)
		assertStatusCode(t, rec, http.StatusBadRequest)
	}
}

func postDelete(t *testing.T, h *AttendanceHandler, tenant uuid.UUID, roll string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]string{"roll_number": roll})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := authedRequest(t, http.MethodPost, "/delete_attendance", bytes.NewReader(body), tenant)
	rec := httptest.NewRecorder()
	h.Delete(rec, req)
	return rec
}

func TestDeleteAttendance(t *testing.T) {
	h, store := newAttendanceHandler()
	tenant := uuid.New()

	seedAttendance(t, store, tenant, "17", "Petr", time.Now())

	rec := postDelete(t, h, tenant, "17")
	assertStatusCode(t, rec, http.StatusOK)
	var resp struct {
		Deleted int `json:"deleted"`
	}
	parseJSONResponse(t, rec, &resp)
	if resp.Deleted != 1 {
		t.Errorf("deleted = %d, want 1", resp.Deleted)
	}

	// The record is already gone.
	rec = postDelete(t, h, tenant, "17")
	assertStatusCode(t, rec, http.StatusNotFound)
	assertJSONError(t, rec, "no attendance record for today")
}

func TestDeleteAttendance_UnknownStudent(t *testing.T) {
	h, _ := newAttendanceHandler()

	rec := postDelete(t, h, uuid.New(), "999")
	assertStatusCode(t, rec, http.StatusNotFound)
	assertJSONError(t, rec, "student not found")
}

func TestClearAttendance(t *testing.T) {
	h, store := newAttendanceHandler()
	tenant := uuid.New()
	other := uuid.New()

	now := time.Now()
	seedAttendance(t, store, tenant, "17", "Petr", now)
	seedAttendance(t, store, tenant, "18", "Jana", now)
	seedAttendance(t, store, other, "17", "Karel", now)

	req := authedRequest(t, http.MethodPost, "/clear_attendance", nil, tenant)
	rec := httptest.NewRecorder()
	h.Clear(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var resp struct {
		Cleared int `json:"cleared"`
	}
	parseJSONResponse(t, rec, &resp)
	if resp.Cleared != 2 {
		t.Errorf("cleared = %d, want 2", resp.Cleared)
	}

	// The other tenant's ledger is untouched.
	recs, err := store.QueryRange(context.Background(), other, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("query range: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("other tenant has %d records, want 1", len(recs))
	}
}
