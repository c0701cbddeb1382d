package database

import (
	"time"

	"github.com/google/uuid"
)

// Teacher is an authenticated principal. Each teacher forms one tenant:
// the isolation boundary owning a roster of students and their attendance.
type Teacher struct {
	ID            uuid.UUID
	Name          string
	Email         string
	PasswordHash  string
	SessionsCount int
	LastLogin     *time.Time
	CreatedAt     time.Time
}

// Student is a stored biometric template plus identity metadata, owned by
// exactly one tenant. The (TenantID, Roll) pair is unique; re-registering
// the same roll replaces the embedding and name.
type Student struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Roll         string
	Name         string
	Embedding    []float32
	RegisteredAt time.Time
}

// AttendanceRecord marks one student present on one calendar day.
// At most one record exists per (TenantID, StudentID, day bucket).
type AttendanceRecord struct {
	ID         int64
	TenantID   uuid.UUID
	StudentID  uuid.UUID
	Name       string
	Roll       string
	RecordedAt time.Time
}

// Outcome reports the result of an idempotent attendance write.
type Outcome int

const (
	// Created means a new attendance record was written.
	Created Outcome = iota
	// AlreadyExists means a record for the same student and day was
	// already present. A designed result, not a failure.
	AlreadyExists
)

func (o Outcome) String() string {
	if o == Created {
		return "created"
	}
	return "already_exists"
}

// DayKey returns the calendar-day bucket for a timestamp in the reference
// timezone. The day boundary is local midnight to midnight.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
