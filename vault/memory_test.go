package vault

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryNoteRoundTrip(t *testing.T) {
	t.Parallel()
	v := NewMemory()
	ctx := context.Background()

	_, found, err := v.GetNote(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	v.PutNote("note", "hello")
	content, found, err := v.GetNote(ctx, "note")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "hello", content)

	found, err = v.EditNote(ctx, "note", " world", true)
	require.NoError(t, err)
	require.True(t, found)
	content, _, _ = v.GetNote(ctx, "note")
	assert.Equal(t, "hello world", content)

	found, err = v.EditNote(ctx, "note", "replaced", false)
	require.NoError(t, err)
	require.True(t, found)
	content, _, _ = v.GetNote(ctx, "note")
	assert.Equal(t, "replaced", content)

	found, err = v.EditNote(ctx, "missing", "x", false)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryProperties(t *testing.T) {
	t.Parallel()
	v := NewMemory()
	ctx := context.Background()
	v.PutNote("note", "---\ntitle: Cannoli\ncount: 3\n---\nbody text")

	props, found, err := v.GetAllProperties(ctx, "note")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Cannoli", props["title"])
	assert.Equal(t, "3", props["count"])

	value, ok, err := v.GetProperty(ctx, "note", "title")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Cannoli", value)

	_, ok, err = v.GetProperty(ctx, "note", "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	found, err = v.EditProperty(ctx, "note", "title", "Updated")
	require.NoError(t, err)
	require.True(t, found)
	value, _, _ = v.GetProperty(ctx, "note", "title")
	assert.Equal(t, "Updated", value)

	// The body survives a property edit.
	content, _, _ := v.GetNote(ctx, "note")
	assert.Contains(t, content, "body text")
}

func TestMemoryCreateNote(t *testing.T) {
	t.Parallel()
	v := NewMemory()
	ctx := context.Background()

	p, err := v.CreateNote(ctx, "fresh", "folder", "content")
	require.NoError(t, err)
	assert.Equal(t, "folder/fresh.md", p)

	p, found, err := v.GetNotePath(ctx, "fresh")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "folder/fresh.md", p)

	_, err = v.CreateNote(ctx, "fresh", "", "again")
	require.Error(t, err)
}

func TestMemorySelection(t *testing.T) {
	t.Parallel()
	v := NewMemory()
	ctx := context.Background()

	_, found, err := v.GetSelection(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, v.EditSelection(ctx, "picked text"))
	sel, found, err := v.GetSelection(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "picked text", sel)
}

func TestMemoryCanvasAndFiles(t *testing.T) {
	t.Parallel()
	v := NewMemory()
	ctx := context.Background()

	v.PutCanvas("flow", []byte(`{"nodes":[]}`))
	data, found, err := v.GetCanvas(ctx, "flow")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"nodes":[]}`, string(data))

	v.PutFile("img.png", []byte{1, 2, 3})
	raw, found, err := v.GetFile(ctx, "img.png")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte{1, 2, 3}, raw)
}

func TestSplitFrontmatter(t *testing.T) {
	t.Parallel()
	front, body := splitFrontmatter("---\nkey: value\n---\nbody")
	assert.Equal(t, "key: value\n", front)
	assert.Equal(t, "body", body)

	front, body = splitFrontmatter("no frontmatter")
	assert.Empty(t, front)
	assert.Equal(t, "no frontmatter", body)

	// An unterminated block is treated as plain body.
	front, body = splitFrontmatter("---\nkey: value")
	assert.Empty(t, front)
	assert.Equal(t, "---\nkey: value", body)
}

func TestRenderFrontmatter(t *testing.T) {
	t.Parallel()
	out, err := RenderFrontmatter(map[string]string{"title": "Go"})
	require.NoError(t, err)
	assert.Equal(t, "---\ntitle: Go\n---\n", out)

	out, err = RenderFrontmatter(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
