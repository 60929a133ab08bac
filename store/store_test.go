package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()

	r := NewRecord("run-1", KindTransition)
	r.ObjectID = "node-a"
	r.Status = "complete"
	require.NoError(t, s.Append(ctx, r))

	r2 := NewRecord("run-1", KindWarning)
	r2.Content = "note not found"
	require.NoError(t, s.Append(ctx, r2))

	// Records of a different run stay separate.
	other := NewRecord("run-2", KindError)
	require.NoError(t, s.Append(ctx, other))

	records, err := s.List(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, KindTransition, records[0].Kind)
	assert.Equal(t, "node-a", records[0].ObjectID)
	assert.Equal(t, KindWarning, records[1].Kind)

	// List returns copies.
	records[0].Status = "mutated"
	again, err := s.List(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "complete", again[0].Status)

	require.NoError(t, s.Clear(ctx, "run-1"))
	records, err = s.List(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = s.List(ctx, "run-2")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestFileStore(t *testing.T) {
	t.Parallel()

	s, err := NewFile(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	r := NewRecord("run-1", KindTransition)
	r.ObjectID = "edge-1"
	r.Status = "complete"
	require.NoError(t, s.Append(ctx, r))

	r2 := NewRecord("run-1", KindTranscript)
	r2.Content = "# transcript"
	require.NoError(t, s.Append(ctx, r2))

	records, err := s.List(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, r.ID, records[0].ID)
	assert.Equal(t, "# transcript", records[1].Content)

	// Listing an unknown run is not an error.
	records, err = s.List(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, s.Clear(ctx, "run-1"))
	records, err = s.List(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, records)

	// Clearing twice is a no-op.
	require.NoError(t, s.Clear(ctx, "run-1"))
}

func TestRenderHTML(t *testing.T) {
	t.Parallel()

	out := RenderHTML("# Run\n\nsome **bold** text")
	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "<strong>bold</strong>")
}
