package infra

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/takatori/ftmq-api/internal/errors"
)

func TestHttpClientGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte(`{"name":"catalog"}`))
		case "/broken":
			_, _ = w.Write([]byte(`{"name":`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewHttpClient(time.Second)
	headers := map[string]string{"X-Test": "yes", "X-Empty": ""}

	var resp struct {
		Name string `json:"name"`
	}
	err := client.Get(context.Background(), Request{Url: srv.URL + "/ok", Headers: headers}, &resp)
	require.NoError(t, err)
	assert.Equal(t, "catalog", resp.Name)

	err = client.Get(context.Background(), Request{Url: srv.URL + "/broken", Headers: headers}, &resp)
	assert.True(t, failure.Is(err, errors.ErrUnavailable))

	_, err = client.GetRaw(context.Background(), Request{Url: srv.URL + "/missing", Headers: headers})
	assert.True(t, failure.Is(err, errors.ErrUnavailable))
	assert.False(t, failure.Is(err, errors.ErrNotFound))
	assert.Equal(t, http.StatusBadGateway, errors.HTTPStatus(err))
}

func TestHttpClientPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		_ = json.NewEncoder(w).Encode(map[string]any{"echo": payload["query"]})
	}))
	defer srv.Close()

	client := NewHttpClient(time.Second)
	var resp map[string]any
	err := client.Post(context.Background(), PostRequest{
		Request: Request{Url: srv.URL},
		Entity:  map[string]any{"query": "jane"},
	}, &resp)
	require.NoError(t, err)
	assert.Equal(t, "jane", resp["echo"])
}

func TestHttpClientUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewHttpClient(time.Second)
	var resp map[string]any
	err := client.Get(context.Background(), Request{Url: url}, &resp)
	assert.True(t, failure.Is(err, errors.ErrUnavailable))
}
