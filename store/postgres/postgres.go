// Package postgres stores run records in PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DeabLabs/cannoli-sub001/store"
)

// DBPool is the subset of pgxpool.Pool the store uses.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements store.Store on PostgreSQL.
type Store struct {
	pool      DBPool
	tableName string
}

var _ store.Store = (*Store)(nil)

// Options configures the Postgres connection.
type Options struct {
	ConnString string
	TableName  string // default "run_records"
}

// New creates a connection pool and the store.
func New(ctx context.Context, opts Options) (*Store, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating connection pool: %w", err)
	}
	tableName := opts.TableName
	if tableName == "" {
		tableName = "run_records"
	}
	return &Store{pool: pool, tableName: tableName}, nil
}

// NewWithPool wraps an existing pool. Useful for testing with pgxmock.
func NewWithPool(pool DBPool, tableName string) *Store {
	if tableName == "" {
		tableName = "run_records"
	}
	return &Store{pool: pool, tableName: tableName}
}

// InitSchema creates the table if it does not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			object_id TEXT,
			status TEXT,
			content TEXT,
			timestamp TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_run_id ON %s (run_id);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("postgres: creating schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Append implements store.Store.
func (s *Store) Append(ctx context.Context, r *store.RunRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, run_id, kind, object_id, status, content, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.tableName)

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.RunID, string(r.Kind), r.ObjectID, r.Status, r.Content, r.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: appending record: %w", err)
	}
	return nil
}

// List implements store.Store.
func (s *Store) List(ctx context.Context, runID string) ([]*store.RunRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, run_id, kind, object_id, status, content, timestamp
		FROM %s
		WHERE run_id = $1
		ORDER BY timestamp ASC
	`, s.tableName)

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing records: %w", err)
	}
	defer rows.Close()

	var out []*store.RunRecord
	for rows.Next() {
		var r store.RunRecord
		var kind string
		if err := rows.Scan(&r.ID, &r.RunID, &kind, &r.ObjectID, &r.Status, &r.Content, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scanning record: %w", err)
		}
		r.Kind = store.RecordKind(kind)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating records: %w", err)
	}
	return out, nil
}

// Clear implements store.Store.
func (s *Store) Clear(ctx context.Context, runID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE run_id = $1", s.tableName)
	if _, err := s.pool.Exec(ctx, query, runID); err != nil {
		return fmt.Errorf("postgres: clearing run: %w", err)
	}
	return nil
}
