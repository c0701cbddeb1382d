package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/jsvoboda/rollcall/internal/database"
)

// UpsertTemplate inserts or replaces the biometric template for
// (tenantID, roll). A second registration for the same roll replaces the
// embedding and name rather than appending.
func (s *Store) UpsertTemplate(ctx context.Context, tenantID uuid.UUID, roll, name string, embedding []float32) (*database.Student, error) {
	if len(embedding) != s.dim {
		return nil, fmt.Errorf("embedding has %d dimensions, store expects %d", len(embedding), s.dim)
	}

	ctx, cancel := s.pool.opContext(ctx)
	defer cancel()

	st := &database.Student{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Roll:         roll,
		Name:         name,
		Embedding:    embedding,
		RegisteredAt: time.Now(),
	}

	// The generated id only applies on insert; on conflict the existing
	// student keeps its identity and we read the winning row back.
	err := s.pool.db.QueryRowContext(ctx, `
		INSERT INTO students (id, tenant_id, roll_number, name, embedding, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT students_tenant_roll_key
		DO UPDATE SET name = EXCLUDED.name, embedding = EXCLUDED.embedding, registered_at = EXCLUDED.registered_at
		RETURNING id
	`, st.ID, tenantID, roll, name, pgvector.NewVector(embedding), st.RegisteredAt).Scan(&st.ID)
	if err != nil {
		return nil, storageErr("upsert template", err)
	}

	return st, nil
}

// ListTemplates returns the tenant's full roster ordered by roll number.
// The ordering is what makes matcher tie-breaks deterministic.
func (s *Store) ListTemplates(ctx context.Context, tenantID uuid.UUID) ([]database.Student, error) {
	ctx, cancel := s.pool.opContext(ctx)
	defer cancel()

	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT id, tenant_id, roll_number, name, embedding, registered_at
		FROM students
		WHERE tenant_id = $1
		ORDER BY roll_number
	`, tenantID)
	if err != nil {
		return nil, storageErr("list templates", err)
	}
	defer rows.Close()

	var students []database.Student
	for rows.Next() {
		var st database.Student
		var vec pgvector.Vector
		if err := rows.Scan(&st.ID, &st.TenantID, &st.Roll, &st.Name, &vec, &st.RegisteredAt); err != nil {
			return nil, storageErr("scan template", err)
		}
		st.Embedding = vec.Slice()
		students = append(students, st)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate templates", err)
	}

	return students, nil
}

// GetStudentByRoll fetches one student by roll number within a tenant.
func (s *Store) GetStudentByRoll(ctx context.Context, tenantID uuid.UUID, roll string) (*database.Student, error) {
	ctx, cancel := s.pool.opContext(ctx)
	defer cancel()

	var st database.Student
	var vec pgvector.Vector
	err := s.pool.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, roll_number, name, embedding, registered_at
		FROM students
		WHERE tenant_id = $1 AND roll_number = $2
	`, tenantID, roll).Scan(&st.ID, &st.TenantID, &st.Roll, &st.Name, &vec, &st.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("student roll %q: %w", roll, database.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get student", err)
	}
	st.Embedding = vec.Slice()
	return &st, nil
}
