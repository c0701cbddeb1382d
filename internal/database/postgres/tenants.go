package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jsvoboda/rollcall/internal/database"
)

// ResolveTenant maps a subject email to its tenant id, provisioning a
// tenant row on first use. Insert-on-conflict keeps the operation
// idempotent when two requests race on the first access.
func (s *Store) ResolveTenant(ctx context.Context, email string) (uuid.UUID, error) {
	ctx, cancel := s.pool.opContext(ctx)
	defer cancel()

	var id uuid.UUID
	err := s.pool.db.QueryRowContext(ctx, "SELECT id FROM teachers WHERE email = $1", email).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, storageErr("resolve tenant", err)
	}

	id = uuid.New()
	_, err = s.pool.db.ExecContext(ctx, `
		INSERT INTO teachers (id, name, email) VALUES ($1, '', $2)
		ON CONFLICT (email) DO NOTHING
	`, id, email)
	if err != nil {
		return uuid.Nil, storageErr("provision tenant", err)
	}

	// A concurrent request may have won the insert; read back the winner.
	if err := s.pool.db.QueryRowContext(ctx, "SELECT id FROM teachers WHERE email = $1", email).Scan(&id); err != nil {
		return uuid.Nil, storageErr("resolve tenant", err)
	}
	return id, nil
}

// CreateTeacher registers a new teacher account.
func (s *Store) CreateTeacher(ctx context.Context, name, email, passwordHash string) (*database.Teacher, error) {
	ctx, cancel := s.pool.opContext(ctx)
	defer cancel()

	t := &database.Teacher{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}

	_, err := s.pool.db.ExecContext(ctx, `
		INSERT INTO teachers (id, name, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.Name, t.Email, t.PasswordHash, t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "teachers_email_key") {
			return nil, fmt.Errorf("create teacher %q: %w", email, database.ErrDuplicateEmail)
		}
		return nil, storageErr("create teacher", err)
	}

	return t, nil
}

// GetTeacherByEmail fetches a teacher record.
func (s *Store) GetTeacherByEmail(ctx context.Context, email string) (*database.Teacher, error) {
	ctx, cancel := s.pool.opContext(ctx)
	defer cancel()

	var t database.Teacher
	var lastLogin sql.NullTime
	err := s.pool.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, sessions_count, last_login, created_at
		FROM teachers
		WHERE email = $1
	`, email).Scan(&t.ID, &t.Name, &t.Email, &t.PasswordHash, &t.SessionsCount, &lastLogin, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("teacher %q: %w", email, database.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get teacher", err)
	}
	if lastLogin.Valid {
		t.LastLogin = &lastLogin.Time
	}
	return &t, nil
}

// TouchLogin updates last_login and increments the session counter.
func (s *Store) TouchLogin(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.pool.opContext(ctx)
	defer cancel()

	_, err := s.pool.db.ExecContext(ctx, `
		UPDATE teachers SET last_login = NOW(), sessions_count = sessions_count + 1 WHERE id = $1
	`, id)
	if err != nil {
		return storageErr("touch login", err)
	}
	return nil
}
