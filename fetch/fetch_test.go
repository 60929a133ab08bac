package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "yes", r.Header.Get("X-Custom"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"q":"hello"}`, string(body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))
	defer srv.Close()

	resp, err := NewHTTP().Fetch(context.Background(), Request{
		URL:     srv.URL,
		Method:  http.MethodPost,
		Headers: map[string]string{"X-Custom": "yes"},
		Body:    `{"q":"hello"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "created", resp.Body)
}

func TestHTTPFetchDefaultsToGet(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := NewHTTP().Fetch(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", resp.Body)
}

func TestHTTPFetchBadURL(t *testing.T) {
	t.Parallel()
	_, err := NewHTTP().Fetch(context.Background(), Request{URL: "://nope"})
	require.Error(t, err)
}

func TestMockFetch(t *testing.T) {
	t.Parallel()
	m := &Mock{Responses: map[string]Response{
		"https://api.test/x": {StatusCode: 200, Body: "ok"},
	}}

	resp, err := m.Fetch(context.Background(), Request{URL: "https://api.test/x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Body)
	require.Len(t, m.Requests, 1)

	_, err = m.Fetch(context.Background(), Request{URL: "https://api.test/unknown"})
	require.Error(t, err)
}
