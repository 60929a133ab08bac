package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeabLabs/cannoli-sub001/store"
)

func TestPostgresStore_Append(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewWithPool(mock, "run_records")

	r := &store.RunRecord{
		ID:        "rec-1",
		RunID:     "run-1",
		Kind:      store.KindTransition,
		ObjectID:  "node-a",
		Status:    "complete",
		Timestamp: time.Now(),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO run_records")).
		WithArgs(r.ID, r.RunID, "transition", r.ObjectID, r.Status, r.Content, r.Timestamp).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Append(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewWithPool(mock, "run_records")

	ts := time.Now()
	rows := pgxmock.NewRows([]string{"id", "run_id", "kind", "object_id", "status", "content", "timestamp"}).
		AddRow("rec-1", "run-1", "transition", "node-a", "executing", "", ts).
		AddRow("rec-2", "run-1", "transcript", "", "", "# transcript", ts.Add(time.Second))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, run_id, kind, object_id, status, content, timestamp")).
		WithArgs("run-1").
		WillReturnRows(rows)

	records, err := s.List(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, store.KindTransition, records[0].Kind)
	assert.Equal(t, "# transcript", records[1].Content)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Clear(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewWithPool(mock, "run_records")

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM run_records WHERE run_id = $1")).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	require.NoError(t, s.Clear(context.Background(), "run-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
