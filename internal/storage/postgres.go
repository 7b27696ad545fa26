package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint failures
const uniqueViolation = "23505"

// PostgresStore implements Store interface for PostgreSQL
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// PoolOptions tunes the database/sql connection pool
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(dsn string, pool PoolOptions) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an already opened handle
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// BeginTx starts a new transaction
func (s *PostgresStore) BeginTx(ctx context.Context) (Store, error) {
	if s.tx != nil {
		return s, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: s.db, tx: tx}, nil
}

// Commit commits the transaction
func (s *PostgresStore) Commit() error {
	if s.tx == nil {
		return nil
	}
	return s.tx.Commit()
}

// Rollback rolls back the transaction
func (s *PostgresStore) Rollback() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// getDB returns tx if in transaction, otherwise db
func (s *PostgresStore) getDB() interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
} {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// mapError translates driver errors into storage errors
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, pqErr.Constraint)
	}
	if strings.Contains(err.Error(), "duplicate key") {
		return ErrDuplicateKey
	}
	return err
}

// expectOneRow turns a zero-row update into ErrNotFound
func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// nullString maps "" to NULL so sparse unique columns accept many empties
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
