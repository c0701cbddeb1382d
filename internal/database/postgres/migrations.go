package postgres

import (
	"context"
	"fmt"
)

// Migrate creates the schema. The store's embedding dimension fixes the
// vector column width; it must match the embedding provider's output and is
// uniform across all templates ever compared against one probe.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTeachers := `
		CREATE TABLE IF NOT EXISTS teachers (
			id             UUID PRIMARY KEY,
			name           VARCHAR(255) NOT NULL,
			email          VARCHAR(255) NOT NULL UNIQUE,
			password_hash  VARCHAR(255) NOT NULL DEFAULT '',
			sessions_count INTEGER NOT NULL DEFAULT 0,
			last_login     TIMESTAMP WITH TIME ZONE,
			created_at     TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`
	if _, err := s.pool.db.ExecContext(ctx, createTeachers); err != nil {
		return fmt.Errorf("failed to create teachers table: %w", err)
	}

	createStudents := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS students (
			id            UUID PRIMARY KEY,
			tenant_id     UUID NOT NULL REFERENCES teachers(id),
			roll_number   VARCHAR(64) NOT NULL,
			name          VARCHAR(255) NOT NULL,
			embedding     vector(%d) NOT NULL,
			registered_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			CONSTRAINT students_tenant_roll_key UNIQUE (tenant_id, roll_number)
		)
	`, s.dim)
	if _, err := s.pool.db.ExecContext(ctx, createStudents); err != nil {
		return fmt.Errorf("failed to create students table: %w", err)
	}

	// The unique constraint on (tenant_id, student_id, day_bucket) is the
	// one-record-per-day invariant. RecordIfAbsent inserts optimistically
	// and translates the violation into AlreadyExists.
	createAttendance := `
		CREATE TABLE IF NOT EXISTS attendance (
			id          BIGSERIAL PRIMARY KEY,
			tenant_id   UUID NOT NULL REFERENCES teachers(id),
			student_id  UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
			name        VARCHAR(255) NOT NULL,
			roll_number VARCHAR(64) NOT NULL,
			recorded_at TIMESTAMP WITH TIME ZONE NOT NULL,
			day_bucket  DATE NOT NULL,
			CONSTRAINT attendance_tenant_student_day_key UNIQUE (tenant_id, student_id, day_bucket)
		)
	`
	if _, err := s.pool.db.ExecContext(ctx, createAttendance); err != nil {
		return fmt.Errorf("failed to create attendance table: %w", err)
	}

	if _, err := s.pool.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS attendance_tenant_recorded_idx ON attendance(tenant_id, recorded_at)
	`); err != nil {
		return fmt.Errorf("failed to create attendance range index: %w", err)
	}

	return nil
}
