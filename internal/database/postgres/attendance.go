package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jsvoboda/rollcall/internal/database"
)

// RecordIfAbsent writes an attendance record unless one already exists for
// the same (tenant, student, day). The insert runs optimistically; the
// unique constraint on (tenant_id, student_id, day_bucket) is the only
// dedup mechanism, so the guarantee holds across concurrent requests and
// across server processes. A duplicate-key violation is the designed
// "already marked" signal, not an error.
func (s *Store) RecordIfAbsent(ctx context.Context, tenantID, studentID uuid.UUID, name, roll string, at time.Time) (database.Outcome, error) {
	ctx, cancel := s.pool.opContext(ctx)
	defer cancel()

	_, err := s.pool.db.ExecContext(ctx, `
		INSERT INTO attendance (tenant_id, student_id, name, roll_number, recorded_at, day_bucket)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, tenantID, studentID, name, roll, at, database.DayKey(at, s.loc))
	if err != nil {
		if isUniqueViolation(err, "attendance_tenant_student_day_key") {
			return database.AlreadyExists, nil
		}
		return 0, storageErr("record attendance", err)
	}

	return database.Created, nil
}

// DeleteToday removes today's attendance record for one student.
func (s *Store) DeleteToday(ctx context.Context, tenantID, studentID uuid.UUID) (int, error) {
	ctx, cancel := s.pool.opContext(ctx)
	defer cancel()

	res, err := s.pool.db.ExecContext(ctx, `
		DELETE FROM attendance
		WHERE tenant_id = $1 AND student_id = $2 AND day_bucket = $3
	`, tenantID, studentID, database.DayKey(time.Now(), s.loc))
	if err != nil {
		return 0, storageErr("delete attendance", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("delete attendance", err)
	}
	return int(n), nil
}

// ClearToday removes all of the tenant's attendance records from today's
// start onward.
func (s *Store) ClearToday(ctx context.Context, tenantID uuid.UUID) (int, error) {
	ctx, cancel := s.pool.opContext(ctx)
	defer cancel()

	res, err := s.pool.db.ExecContext(ctx, `
		DELETE FROM attendance
		WHERE tenant_id = $1 AND day_bucket >= $2
	`, tenantID, database.DayKey(time.Now(), s.loc))
	if err != nil {
		return 0, storageErr("clear attendance", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("clear attendance", err)
	}
	return int(n), nil
}

// QueryRange returns attendance records within the inclusive bounds,
// ordered by timestamp ascending for deterministic export.
func (s *Store) QueryRange(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]database.AttendanceRecord, error) {
	ctx, cancel := s.pool.opContext(ctx)
	defer cancel()

	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT id, tenant_id, student_id, name, roll_number, recorded_at
		FROM attendance
		WHERE tenant_id = $1 AND recorded_at >= $2 AND recorded_at <= $3
		ORDER BY recorded_at ASC
	`, tenantID, start, end)
	if err != nil {
		return nil, storageErr("query attendance", err)
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		var rec database.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.StudentID, &rec.Name, &rec.Roll, &rec.RecordedAt); err != nil {
			return nil, storageErr("scan attendance", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate attendance", err)
	}

	return records, nil
}
