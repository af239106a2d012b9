package app

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/morikuni/failure/v2"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/takatori/ftmq-api/internal"
	"github.com/takatori/ftmq-api/internal/errors"
	"github.com/takatori/ftmq-api/internal/infra"
	"github.com/takatori/ftmq-api/internal/metrics"
	"github.com/takatori/ftmq-api/internal/model"
	"github.com/takatori/ftmq-api/internal/query"
	"github.com/takatori/ftmq-api/internal/search/solr"
	"github.com/takatori/ftmq-api/internal/testutil"
)

func testConfig(t *testing.T) *internal.Config {
	t.Helper()
	return &internal.Config{
		Env:                   internal.Development,
		StoreURI:              testutil.StorePath(t),
		BuildAPIKey:           "secret",
		MinSearchLength:       3,
		AutocompleteMinLength: 4,
		DefaultLimit:          100,
		SimilarLimit:          10,
		CacheURI:              "memory://",
		CachePrefix:           "test",
		CacheTTL:              time.Minute,
		HTTPTimeout:           time.Second,
	}
}

func openApp(t *testing.T, config *internal.Config) *App {
	t.Helper()
	a, err := Open(context.Background(), config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func mustParams(t *testing.T, raw string) query.Params {
	t.Helper()
	values, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return query.ParseParams(values)
}

func TestOpen(t *testing.T) {
	a := openApp(t, testConfig(t))

	assert.Nil(t, a.Search)
	assert.Nil(t, a.Cache)
	_, ok := a.CacheKey("localhost", "/entities", "")
	assert.False(t, ok)
	require.NoError(t, a.Store.Ping(context.Background()))
}

func TestOpenSharesMetrics(t *testing.T) {
	a := openApp(t, testConfig(t))

	_, err := a.Store.Entity(context.Background(), "unknown")
	assert.True(t, failure.Is(err, errors.ErrNotFound))
	assert.Equal(t, 1, promtestutil.CollectAndCount(a.Metrics.StoreDuration))
}

func TestNew(t *testing.T) {
	config := testConfig(t)
	mx := metrics.New()
	client := infra.NewHttpClient(time.Second)

	a := New(config, model.Default(), testutil.OpenStore(t), nil, nil, mx, client)
	assert.Same(t, mx, a.Metrics)
	assert.Same(t, client, a.HTTPClient)

	a = New(config, model.Default(), testutil.OpenStore(t), nil, nil, nil, nil)
	assert.NotNil(t, a.Metrics)
	assert.NotNil(t, a.HTTPClient)
}

func TestOpenWithCache(t *testing.T) {
	config := testConfig(t)
	config.UseCache = true
	a := openApp(t, config)

	require.NotNil(t, a.Cache)
	key, ok := a.CacheKey("localhost", "/entities", "limit=1")
	assert.True(t, ok)
	assert.NotEmpty(t, key)
}

func TestOpenFailures(t *testing.T) {
	config := testConfig(t)
	config.StoreURI = filepath.Join(t.TempDir(), "missing", "ftmq.db")
	_, err := Open(context.Background(), config)
	assert.Error(t, err)

	config = testConfig(t)
	config.UseCache = true
	config.CacheURI = "redis://localhost"
	_, err = Open(context.Background(), config)
	assert.True(t, failure.Is(err, errors.ErrInvalidArgument))
}

func TestOpenSearch(t *testing.T) {
	client := infra.NewHttpClient(time.Second)

	engine, err := OpenSearch("", client)
	require.NoError(t, err)
	assert.Nil(t, engine)

	engine, err = OpenSearch("http://solr:8983/solr/entities", client)
	require.NoError(t, err)
	assert.IsType(t, &solr.Engine{}, engine)

	_, err = OpenSearch(filepath.Join(t.TempDir(), "missing.bleve"), client)
	assert.True(t, failure.Is(err, errors.ErrInternal))
}

func TestCatalogFromStore(t *testing.T) {
	a := openApp(t, testConfig(t))

	c, err := a.Catalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testutil.Datasets, c.Names())
}

func TestCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: test
datasets:
  - name: gdho
    title: Global Database of Humanitarian Organisations
`), 0o644))
	config := testConfig(t)
	config.Catalog = path
	a := openApp(t, config)
	ctx := context.Background()

	c, err := a.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gdho"}, c.Names())

	_, err = a.View(ctx, "gdho")
	require.NoError(t, err)
	_, err = a.View(ctx, "ec_meetings")
	assert.True(t, failure.Is(err, errors.ErrNotFound))

	b, err := a.Builder(ctx)
	require.NoError(t, err)
	_, err = b.Build(mustParams(t, "dataset=ec_meetings"), false)
	assert.True(t, failure.Is(err, errors.ErrInvalidArgument))
}

func TestView(t *testing.T) {
	a := openApp(t, testConfig(t))
	ctx := context.Background()

	v, err := a.View(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "", v.Dataset())

	v, err = a.View(ctx, "gdho")
	require.NoError(t, err)
	assert.Equal(t, "gdho", v.Dataset())

	again, err := a.View(ctx, "gdho")
	require.NoError(t, err)
	assert.Same(t, v, again)

	_, err = a.View(ctx, "unknown")
	assert.True(t, failure.Is(err, errors.ErrNotFound))
}

func TestAuthenticate(t *testing.T) {
	a := openApp(t, testConfig(t))

	tests := []struct {
		apiKey   string
		expected bool
	}{
		{"secret", true},
		{"Secret", false},
		{"secret ", false},
		{"", false},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, a.Authenticate(test.apiKey), test.apiKey)
	}

	a.Config.BuildAPIKey = ""
	assert.False(t, a.Authenticate(""))
}
