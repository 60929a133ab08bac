// Package store persists run records: status transitions, warnings, errors
// and the final Markdown transcript of a run. Records are write-only
// observability data; the engine never reads them back to resume.
//
// The package ships in-memory and JSONL-file backends; sqlite, redis and
// postgres live in subpackages so their drivers stay optional.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RecordKind classifies a run record.
type RecordKind string

const (
	// KindTransition is one object status change.
	KindTransition RecordKind = "transition"
	// KindWarning is a recoverable problem surfaced on an object.
	KindWarning RecordKind = "warning"
	// KindError is a fatal problem surfaced on an object.
	KindError RecordKind = "error"
	// KindTranscript is the final Markdown transcript of a run.
	KindTranscript RecordKind = "transcript"
)

// RunRecord is one persisted event of a run.
type RunRecord struct {
	ID        string     `json:"id"`
	RunID     string     `json:"run_id"`
	Kind      RecordKind `json:"kind"`
	ObjectID  string     `json:"object_id,omitempty"`
	Status    string     `json:"status,omitempty"`
	Content   string     `json:"content,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewRecord fills in ID and timestamp.
func NewRecord(runID string, kind RecordKind) *RunRecord {
	return &RunRecord{
		ID:        uuid.New().String(),
		RunID:     runID,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	}
}

// Store is the run-record persistence interface.
type Store interface {
	// Append stores a record.
	Append(ctx context.Context, record *RunRecord) error

	// List returns all records of a run, oldest first.
	List(ctx context.Context, runID string) ([]*RunRecord, error)

	// Clear removes all records of a run.
	Clear(ctx context.Context, runID string) error
}

// Memory is an in-memory Store.
type Memory struct {
	mu      sync.Mutex
	records map[string][]*RunRecord
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string][]*RunRecord)}
}

// Append implements Store.
func (s *Memory) Append(_ context.Context, record *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	s.records[record.RunID] = append(s.records[record.RunID], &copied)
	return nil
}

// List implements Store.
func (s *Memory) List(_ context.Context, runID string) ([]*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.records[runID]
	out := make([]*RunRecord, len(records))
	for i, r := range records {
		copied := *r
		out[i] = &copied
	}
	return out, nil
}

// Clear implements Store.
func (s *Memory) Clear(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, runID)
	return nil
}

// File is a Store writing one JSONL file per run under a directory.
type File struct {
	mu  sync.Mutex
	dir string
}

var _ Store = (*File)(nil)

// NewFile creates the directory if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: creating %s: %w", dir, err)
	}
	return &File{dir: dir}, nil
}

func (s *File) path(runID string) string {
	return filepath.Join(s.dir, runID+".jsonl")
}

// Append implements Store.
func (s *File) Append(_ context.Context, record *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path(record.RunID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("store: opening run file: %w", err)
	}
	defer f.Close()
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("store: writing record: %w", err)
	}
	return nil
}

// List implements Store.
func (s *File) List(_ context.Context, runID string) ([]*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path(runID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: reading run file: %w", err)
	}
	var out []*RunRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var r RunRecord
		if err := dec.Decode(&r); err != nil {
			return nil, fmt.Errorf("store: corrupt record: %w", err)
		}
		out = append(out, &r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Clear implements Store.
func (s *File) Clear(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(runID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
