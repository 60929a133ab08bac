package persist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeabLabs/cannoli-sub001/canvas"
	"github.com/DeabLabs/cannoli-sub001/store"
)

func testCanvas() *canvas.Data {
	return &canvas.Data{
		Nodes: []*canvas.Node{
			{ID: "n1", Type: canvas.NodeTypeText, Color: "6", Text: "hello"},
			{ID: "g1", Type: canvas.NodeTypeGroup, Label: "5"},
		},
		Edges: []*canvas.Edge{
			{ID: "e1", FromNode: "n1", ToNode: "g1", Color: "2"},
		},
	}
}

func TestCanvasMirrorsStatusColors(t *testing.T) {
	t.Parallel()

	data := testCanvas()
	p := NewCanvas(data)
	ctx := context.Background()

	require.NoError(t, p.Start(ctx, nil))

	require.NoError(t, p.EditNode(ctx, "n1", "executing"))
	assert.Equal(t, "3", data.Node("n1").Color)

	require.NoError(t, p.EditNode(ctx, "n1", "complete"))
	assert.Equal(t, "6", data.Node("n1").Color, "finished nodes revert to their authored color")

	require.NoError(t, p.EditEdge(ctx, "e1", "executing"))
	assert.Equal(t, "3", data.Edge("e1").Color)
	require.NoError(t, p.EditEdge(ctx, "e1", "complete"))
	assert.Equal(t, "2", data.Edge("e1").Color)

	require.NoError(t, p.AddError(ctx, "n1", "boom"))
	assert.Equal(t, "1", data.Node("n1").Color)

	// Unknown objects are ignored.
	require.NoError(t, p.EditNode(ctx, "missing", "executing"))
}

func TestCanvasParallelGroupLabel(t *testing.T) {
	t.Parallel()

	data := testCanvas()
	p := NewCanvas(data)
	ctx := context.Background()

	require.NoError(t, p.Start(ctx, nil))

	require.NoError(t, p.EditParallelGroupLabel(ctx, "g1", "2/5"))
	assert.Equal(t, "2/5", data.Node("g1").Label)

	// Empty label restores the authored one.
	require.NoError(t, p.EditParallelGroupLabel(ctx, "g1", ""))
	assert.Equal(t, "5", data.Node("g1").Label)
}

func TestCanvasSaveCallback(t *testing.T) {
	t.Parallel()

	data := testCanvas()
	p := NewCanvas(data)
	var saves int
	p.Save = func(_ context.Context, b []byte) error {
		saves++
		assert.NotEmpty(t, b)
		return nil
	}
	ctx := context.Background()

	require.NoError(t, p.Start(ctx, nil))
	require.NoError(t, p.EditNode(ctx, "n1", "executing"))
	assert.Equal(t, 2, saves)
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	r := NewRecorder("run-1", mem)
	ctx := context.Background()

	require.NoError(t, r.Start(ctx, nil))
	require.NoError(t, r.EditNode(ctx, "n1", "executing"))
	require.NoError(t, r.AddWarning(ctx, "n1", "note not found"))
	require.NoError(t, r.SaveTranscript(ctx, "# run"))

	records, err := mem.List(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, store.KindTransition, records[1].Kind)
	assert.Equal(t, "n1", records[1].ObjectID)
	assert.Equal(t, store.KindWarning, records[2].Kind)
	assert.Equal(t, store.KindTranscript, records[3].Kind)
}

func TestMultiFansOut(t *testing.T) {
	t.Parallel()

	data := testCanvas()
	mem := store.NewMemory()
	p := Multi{NewCanvas(data), NewRecorder("run-1", mem)}
	ctx := context.Background()

	require.NoError(t, p.Start(ctx, nil))
	require.NoError(t, p.EditNode(ctx, "n1", "executing"))

	assert.Equal(t, "3", data.Node("n1").Color)
	records, err := mem.List(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
