package solr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/takatori/ftmq-api/internal/errors"
	"github.com/takatori/ftmq-api/internal/infra"
)

func newTestSolr(t *testing.T, body string, requests *[]map[string]interface{}) *Engine {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/solr/entities/query", r.URL.Path)
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		if requests != nil {
			*requests = append(*requests, payload)
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/solr/entities/", infra.NewHttpClient(time.Second))
}

func TestEngineSearch(t *testing.T) {
	var requests []map[string]interface{}
	e := newTestSolr(t, searchResponse, &requests)

	results, err := e.Search(context.Background(), searchQuery(t, "q=jane&dataset=gdho&limit=2"))
	require.NoError(t, err)
	assert.Equal(t, 12, results.Total)
	assert.Len(t, results.Hits, 2)

	require.Len(t, requests, 1)
	assert.Equal(t, float64(2), requests[0]["limit"])
	assert.Equal(t, []interface{}{"{!terms f=datasets}gdho"}, requests[0]["filter"])
}

func TestEngineAutocomplete(t *testing.T) {
	e := newTestSolr(t, facetResponse, nil)

	names, err := e.Autocomplete(context.Background(), "euro", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"European Commission", "European Parliament"}, names)

	names, err = e.Autocomplete(context.Background(), "parl", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"European Parliament"}, names)

	names, err = e.Autocomplete(context.Background(), "euro", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"European Commission"}, names)

	names, err = e.Autocomplete(context.Background(), "  ", 10)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestEngineUnavailable(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusNotFound} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		e := New(srv.URL, infra.NewHttpClient(time.Second))
		_, err := e.Search(context.Background(), searchQuery(t, "q=jane"))
		assert.True(t, failure.Is(err, errors.ErrUnavailable), status)
		assert.Equal(t, http.StatusBadGateway, errors.HTTPStatus(err), status)

		_, err = e.Autocomplete(context.Background(), "jane", 10)
		assert.True(t, failure.Is(err, errors.ErrUnavailable), status)
		srv.Close()
	}
}
