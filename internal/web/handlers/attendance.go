package handlers

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jsvoboda/rollcall/internal/database"
	"github.com/jsvoboda/rollcall/internal/web/middleware"
)

const dateFormat = "2006-01-02"

// AttendanceHandler handles attendance export and correction endpoints.
type AttendanceHandler struct {
	store database.Store
	loc   *time.Location
	log   *zap.Logger
	now   func() time.Time
}

// NewAttendanceHandler creates a new attendance handler. loc is the
// deployment timezone used for date parsing and CSV timestamps.
func NewAttendanceHandler(store database.Store, loc *time.Location, log *zap.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		store: store,
		loc:   loc,
		log:   log,
		now:   time.Now,
	}
}

// SetClock overrides the handler clock, for tests.
func (h *AttendanceHandler) SetClock(now func() time.Time) {
	h.now = now
}

// parseDateRange reads start_date/end_date query parameters, both defaulting
// to today. The range covers whole days in the deployment timezone.
func (h *AttendanceHandler) parseDateRange(r *http.Request) (start, end time.Time, err error) {
	today := h.now().In(h.loc).Format(dateFormat)

	startStr := r.URL.Query().Get("start_date")
	if startStr == "" {
		startStr = today
	}
	endStr := r.URL.Query().Get("end_date")
	if endStr == "" {
		endStr = today
	}

	start, err = time.ParseInLocation(dateFormat, startStr, h.loc)
	if err != nil {
		return start, end, fmt.Errorf("invalid start_date %q", startStr)
	}
	end, err = time.ParseInLocation(dateFormat, endStr, h.loc)
	if err != nil {
		return start, end, fmt.Errorf("invalid end_date %q", endStr)
	}
	if end.Before(start) {
		return start, end, errors.New("end_date before start_date")
	}

	// end of the last day, inclusive
	end = end.AddDate(0, 0, 1).Add(-time.Second)
	return start, end, nil
}

// Download streams the attendance ledger for a date range as a CSV
// attachment named Attendance_<start>_<end>.csv.
func (h *AttendanceHandler) Download(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	start, end, err := h.parseDateRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.store.QueryRange(r.Context(), principal.TenantID, start, end)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	filename := fmt.Sprintf("Attendance_%s_%s.csv",
		start.Format(dateFormat), end.Format(dateFormat))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Name", "Roll Number", "Timestamp"})
	for _, rec := range records {
		_ = cw.Write([]string{
			rec.Name,
			rec.Roll,
			rec.RecordedAt.In(h.loc).Format("2006-01-02 15:04:05"),
		})
	}
	cw.Flush()
}

type deleteAttendanceRequest struct {
	Roll string `json:"roll_number"`
}

// Delete removes today's attendance record for one student, letting them be
// recognized again the same day. Answers 404 for an unknown roll number and
// for a student with no record today.
func (h *AttendanceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req deleteAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	roll := strings.TrimSpace(req.Roll)
	if roll == "" {
		respondError(w, http.StatusBadRequest, "roll_number is required")
		return
	}

	student, err := h.store.GetStudentByRoll(r.Context(), principal.TenantID, roll)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "student not found")
			return
		}
		respondStorageError(w, err)
		return
	}

	deleted, err := h.store.DeleteToday(r.Context(), principal.TenantID, student.ID)
	if err != nil {
		respondStorageError(w, err)
		return
	}
	if deleted == 0 {
		respondError(w, http.StatusNotFound, "no attendance record for today")
		return
	}

	h.log.Info("attendance deleted",
		zap.String("roll", sanitizeForLog(roll)),
		zap.Int("deleted", deleted))

	respondJSON(w, http.StatusOK, map[string]any{
		"deleted": deleted,
	})
}

// Clear removes all of the tenant's attendance records for today.
func (h *AttendanceHandler) Clear(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	cleared, err := h.store.ClearToday(r.Context(), principal.TenantID)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	h.log.Info("attendance cleared", zap.Int("cleared", cleared))

	respondJSON(w, http.StatusOK, map[string]any{
		"cleared": cleared,
	})
}
