// Package postgres implements the storage interfaces on PostgreSQL with
// pgvector for template embeddings. The attendance uniqueness constraint
// lives here: it is the sole cross-process deduplication mechanism.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/jsvoboda/rollcall/internal/config"
	"github.com/jsvoboda/rollcall/internal/database"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

// Pool manages a PostgreSQL connection pool.
type Pool struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// NewPool creates a new PostgreSQL connection pool.
func NewPool(cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	// Verify connection.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Pool{db: db, queryTimeout: cfg.QueryTimeout}, nil
}

// DB returns the underlying sql.DB for direct access.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// opContext bounds a single storage operation so no request hangs on a
// stalled connection. On expiry the operation fails as unavailable.
func (p *Pool) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.queryTimeout)
}

// Store implements database.Store on PostgreSQL.
type Store struct {
	pool *Pool
	loc  *time.Location
	dim  int
}

// NewStore creates a PostgreSQL-backed store. loc is the day-bucket
// reference timezone, fixed at process start; dim is the embedding
// dimension enforced by the templates table.
func NewStore(pool *Pool, loc *time.Location, dim int) *Store {
	return &Store{pool: pool, loc: loc, dim: dim}
}

// isUniqueViolation reports whether err is a unique constraint violation,
// optionally on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// storageErr classifies a driver error. Timeouts, cancellations and
// connection failures surface as database.ErrUnavailable so callers can
// distinguish infrastructure trouble from domain outcomes.
func storageErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%s: %v: %w", op, err, database.ErrUnavailable)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "08" { // connection exception
		return fmt.Errorf("%s: %v: %w", op, err, database.ErrUnavailable)
	}

	return fmt.Errorf("%s: %w", op, err)
}
