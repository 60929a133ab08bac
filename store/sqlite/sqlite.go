// Package sqlite stores run records in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/DeabLabs/cannoli-sub001/store"
)

// Store implements store.Store on SQLite.
type Store struct {
	db        *sql.DB
	tableName string
}

var _ store.Store = (*Store)(nil)

// Options configures the SQLite connection.
type Options struct {
	Path      string
	TableName string // default "run_records"
}

// New opens (or creates) the database and its schema.
func New(opts Options) (*Store, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening %s: %w", opts.Path, err)
	}
	tableName := opts.TableName
	if tableName == "" {
		tableName = "run_records"
	}
	s := &Store{db: db, tableName: tableName}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			object_id TEXT,
			status TEXT,
			content TEXT,
			timestamp DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_run_id ON %s (run_id);
	`, s.tableName, s.tableName, s.tableName)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("sqlite: creating schema: %w", err)
	}
	return nil
}

// Append implements store.Store.
func (s *Store) Append(ctx context.Context, r *store.RunRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, run_id, kind, object_id, status, content, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.tableName)
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.RunID, string(r.Kind), r.ObjectID, r.Status, r.Content, r.Timestamp)
	if err != nil {
		return fmt.Errorf("sqlite: appending record: %w", err)
	}
	return nil
}

// List implements store.Store.
func (s *Store) List(ctx context.Context, runID string) ([]*store.RunRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, run_id, kind, object_id, status, content, timestamp
		FROM %s WHERE run_id = ? ORDER BY timestamp ASC
	`, s.tableName)
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing records: %w", err)
	}
	defer rows.Close()

	var out []*store.RunRecord
	for rows.Next() {
		var r store.RunRecord
		var kind string
		if err := rows.Scan(&r.ID, &r.RunID, &kind, &r.ObjectID, &r.Status, &r.Content, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("sqlite: scanning record: %w", err)
		}
		r.Kind = store.RecordKind(kind)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// Clear implements store.Store.
func (s *Store) Clear(ctx context.Context, runID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE run_id = ?`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query, runID); err != nil {
		return fmt.Errorf("sqlite: clearing run: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
