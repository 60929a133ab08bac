package providers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockScriptServesInOrder(t *testing.T) {
	t.Parallel()
	m := NewMockScript("one", "two")

	resp, err := m.GetCompletion(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "one", resp.Content)

	resp, err = m.GetCompletion(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "two", resp.Content)
}

func TestMockEchoesLastUserMessage(t *testing.T) {
	t.Parallel()
	m := NewMock()
	resp, err := m.GetCompletion(context.Background(), Request{Messages: []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "mid"},
		{Role: RoleUser, Content: "last"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "last", resp.Content)
	require.Len(t, m.Calls, 1)
}

func TestMockHandler(t *testing.T) {
	t.Parallel()
	m := NewMock()
	m.Handler = func(req Request) Message {
		return Message{Role: RoleAssistant, Content: "handled " + req.Model}
	}
	resp, err := m.GetCompletion(context.Background(), Request{Model: "m1"})
	require.NoError(t, err)
	assert.Equal(t, "handled m1", resp.Content)
}

func TestMockStreamEndsWithSentinel(t *testing.T) {
	t.Parallel()
	m := NewMockScript("hello streaming world")
	chunks, errFn, err := m.GetCompletionStream(context.Background(), Request{})
	require.NoError(t, err)

	var got []string
	for c := range chunks {
		got = append(got, c)
	}
	require.NoError(t, errFn())
	require.NotEmpty(t, got)
	assert.Equal(t, EndOfStream, got[len(got)-1])
	assert.Equal(t, "hello streaming world", strings.Join(got[:len(got)-1], ""))
}

func TestParseToolArguments(t *testing.T) {
	t.Parallel()
	args, err := ParseToolArguments(&FunctionCall{
		Name:      "form",
		Arguments: `{"title":"Go","stars":5}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "Go", args["title"])
	assert.Equal(t, "5", args["stars"])
}

func TestParseToolArgumentsRepairsBrokenJSON(t *testing.T) {
	t.Parallel()
	args, err := ParseToolArguments(&FunctionCall{
		Name:      "choice",
		Arguments: `{'choice': 'left',}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "left", args["choice"])
}

func TestParseToolArgumentsNilCall(t *testing.T) {
	t.Parallel()
	_, err := ParseToolArguments(nil)
	require.Error(t, err)
}

func TestChoiceToolSchema(t *testing.T) {
	t.Parallel()
	tool := ChoiceTool([]string{"a", "b"})
	assert.Equal(t, "choice", tool.Name)
	props := tool.Parameters["properties"].(map[string]any)
	choice := props["choice"].(map[string]any)
	assert.Equal(t, []string{"a", "b"}, choice["enum"])
}

func TestFormToolSchema(t *testing.T) {
	t.Parallel()
	tool := FormTool([]string{"title", "body"})
	assert.Equal(t, "form", tool.Name)
	props := tool.Parameters["properties"].(map[string]any)
	assert.Contains(t, props, "title")
	assert.Contains(t, props, "body")
	assert.Equal(t, []string{"title", "body"}, tool.Parameters["required"])
}

func TestSelectRequiresConfig(t *testing.T) {
	t.Parallel()
	_, err := Select(nil)
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	t.Parallel()
	_, err := New(Config{Provider: "carrier-pigeon"})
	require.Error(t, err)
}
