package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeabLabs/cannoli-sub001/vault"
)

func TestInvokeBindsCategories(t *testing.T) {
	t.Parallel()
	action := &Action{
		Name: "compose",
		Fn: func(ctx context.Context, greeting string, times int, loud bool, files vault.FileInterface) (string, error) {
			require.NotNil(t, ctx)
			require.NotNil(t, files)
			out := ""
			for i := 0; i < times; i++ {
				out += greeting
			}
			if loud {
				out += "!"
			}
			return out, nil
		},
		Args: []ArgSpec{
			{Name: "greeting", Category: CategoryArg, Type: TypeString},
			{Name: "times", Category: CategoryConfig, Type: TypeNumber},
			{Name: "loud", Category: CategoryArg, Type: TypeBoolean},
			{Name: "files", Category: CategoryFileManager},
		},
	}

	result, err := Invoke(context.Background(), action,
		map[string]string{"greeting": "hi", "loud": "true"},
		Env{Config: map[string]string{"times": "2"}, Files: vault.NewMemory()})
	require.NoError(t, err)
	assert.Equal(t, "hihi!", result)
}

func TestInvokeStringArray(t *testing.T) {
	t.Parallel()
	action := &Action{
		Name: "join",
		Fn: func(items []string) string {
			out := ""
			for _, s := range items {
				out += s
			}
			return out
		},
		Args: []ArgSpec{{Name: "items", Category: CategoryArg, Type: TypeStringArray}},
	}

	result, err := Invoke(context.Background(), action,
		map[string]string{"items": `["a","b","c"]`}, Env{})
	require.NoError(t, err)
	assert.Equal(t, "abc", result)

	// Markdown bullet lists work too.
	result, err = Invoke(context.Background(), action,
		map[string]string{"items": "- a\n- b"}, Env{})
	require.NoError(t, err)
	assert.Equal(t, "ab", result)
}

func TestInvokeMissingRequiredArg(t *testing.T) {
	t.Parallel()
	action := &Action{
		Name: "needy",
		Fn:   func(x string) string { return x },
		Args: []ArgSpec{{Name: "x", Category: CategoryArg, Type: TypeString}},
	}

	_, err := Invoke(context.Background(), action, nil, Env{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing argument")
}

func TestInvokeOptionalArgDefaults(t *testing.T) {
	t.Parallel()
	action := &Action{
		Name: "maybe",
		Fn:   func(x string) string { return "got:" + x },
		Args: []ArgSpec{{Name: "x", Category: CategoryArg, Type: TypeString, Optional: true}},
	}

	result, err := Invoke(context.Background(), action, nil, Env{})
	require.NoError(t, err)
	assert.Equal(t, "got:", result)
}

func TestInvokePropagatesError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	action := &Action{
		Name: "fails",
		Fn:   func() (string, error) { return "", boom },
	}

	_, err := Invoke(context.Background(), action, nil, Env{})
	assert.ErrorIs(t, err, boom)
}

func TestInvokeArityMismatch(t *testing.T) {
	t.Parallel()
	action := &Action{
		Name: "wrong",
		Fn:   func(a, b string) string { return a + b },
		Args: []ArgSpec{{Name: "a", Category: CategoryArg, Type: TypeString}},
	}

	_, err := Invoke(context.Background(), action, map[string]string{"a": "x"}, Env{})
	require.Error(t, err)
}

func TestRegistryLookup(t *testing.T) {
	t.Parallel()
	r := NewRegistry([]*Action{{Name: "one"}})
	_, ok := r.Get("one")
	assert.True(t, ok)
	_, ok = r.Get("two")
	assert.False(t, ok)

	var nilReg *Registry
	_, ok = nilReg.Get("one")
	assert.False(t, ok)
}

func TestCoerceResponseRoutesMatchingObject(t *testing.T) {
	t.Parallel()
	content, routed, err := CoerceResponse(
		map[string]any{"title": "Go", "stars": 5}, true, []string{"title", "stars"})
	require.NoError(t, err)
	assert.Empty(t, content)
	assert.Equal(t, "Go", routed["title"])
	assert.Equal(t, "5", routed["stars"])
}

func TestCoerceResponseFallsBackToJSON(t *testing.T) {
	t.Parallel()
	content, routed, err := CoerceResponse(
		map[string]any{"title": "Go"}, true, []string{"title", "missing"})
	require.NoError(t, err)
	assert.Nil(t, routed)
	assert.JSONEq(t, `{"title":"Go"}`, content)
}

func TestCoerceResponseErrorHandling(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")

	_, _, err := CoerceResponse(boom, true, nil)
	assert.ErrorIs(t, err, boom)

	content, _, err := CoerceResponse(boom, false, nil)
	require.NoError(t, err)
	assert.Equal(t, "boom", content)
}

func TestCoerceResponseScalars(t *testing.T) {
	t.Parallel()
	content, routed, err := CoerceResponse("plain", true, nil)
	require.NoError(t, err)
	assert.Nil(t, routed)
	assert.Equal(t, "plain", content)

	content, _, err = CoerceResponse([]int{1, 2}, true, nil)
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", content)

	content, _, err = CoerceResponse(nil, true, nil)
	require.NoError(t, err)
	assert.Empty(t, content)
}
