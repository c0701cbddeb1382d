// Package database defines the storage model and the narrow interfaces the
// rest of the service depends on. Implementations live in subpackages:
// postgres for production, mock for tests.
package database

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TenantStore resolves authenticated principals to stable tenant identifiers.
type TenantStore interface {
	// ResolveTenant maps an authenticated subject (email) to its tenant id,
	// provisioning a tenant on first use. Idempotent under concurrency.
	ResolveTenant(ctx context.Context, email string) (uuid.UUID, error)

	// CreateTeacher registers a new teacher account.
	// Returns ErrDuplicateEmail if the email is taken.
	CreateTeacher(ctx context.Context, name, email, passwordHash string) (*Teacher, error)

	// GetTeacherByEmail fetches a teacher record, ErrNotFound if absent.
	GetTeacherByEmail(ctx context.Context, email string) (*Teacher, error)

	// TouchLogin updates last_login and increments the session counter.
	TouchLogin(ctx context.Context, id uuid.UUID) error
}

// TemplateStore holds one biometric template per (tenant, roll) pair.
type TemplateStore interface {
	// UpsertTemplate inserts or replaces the template for (tenantID, roll).
	UpsertTemplate(ctx context.Context, tenantID uuid.UUID, roll, name string, embedding []float32) (*Student, error)

	// ListTemplates returns the tenant's full roster ordered by roll,
	// giving the matcher a deterministic candidate order.
	ListTemplates(ctx context.Context, tenantID uuid.UUID) ([]Student, error)

	// GetStudentByRoll fetches one student, ErrNotFound if absent.
	GetStudentByRoll(ctx context.Context, tenantID uuid.UUID, roll string) (*Student, error)
}

// AttendanceLedger enforces at most one attendance record per
// (tenant, student, calendar day). Deduplication is delegated to a storage
// level uniqueness constraint so it holds across server processes.
type AttendanceLedger interface {
	// RecordIfAbsent writes an attendance record unless one already exists
	// for the same student and day. Exactly one concurrent caller observes
	// Created; the rest observe AlreadyExists.
	RecordIfAbsent(ctx context.Context, tenantID, studentID uuid.UUID, name, roll string, at time.Time) (Outcome, error)

	// DeleteToday removes today's record for a student, returning the number
	// of rows removed (0 or 1). Idempotent.
	DeleteToday(ctx context.Context, tenantID, studentID uuid.UUID) (int, error)

	// ClearToday removes all of the tenant's records from today onward,
	// returning the count.
	ClearToday(ctx context.Context, tenantID uuid.UUID) (int, error)

	// QueryRange returns records with start <= RecordedAt <= end,
	// ordered by RecordedAt ascending.
	QueryRange(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]AttendanceRecord, error)
}

// Store aggregates every storage concern the service needs. The process
// entry point constructs one implementation and injects it; there is no
// ambient global connection state.
type Store interface {
	TenantStore
	TemplateStore
	AttendanceLedger
}
