// Package app owns the long-lived objects shared by all requests.
package app

import (
	"context"
	"crypto/subtle"
	stderrors "errors"
	"log/slog"
	"strings"

	"github.com/takatori/ftmq-api/internal"
	"github.com/takatori/ftmq-api/internal/cache"
	"github.com/takatori/ftmq-api/internal/catalog"
	"github.com/takatori/ftmq-api/internal/infra"
	"github.com/takatori/ftmq-api/internal/lazy"
	"github.com/takatori/ftmq-api/internal/metrics"
	"github.com/takatori/ftmq-api/internal/model"
	"github.com/takatori/ftmq-api/internal/query"
	"github.com/takatori/ftmq-api/internal/search"
	"github.com/takatori/ftmq-api/internal/search/bleve"
	"github.com/takatori/ftmq-api/internal/search/solr"
	"github.com/takatori/ftmq-api/internal/store"
	"github.com/takatori/ftmq-api/internal/store/sqlstore"
	"github.com/takatori/ftmq-api/internal/view"
)

type App struct {
	Config     *internal.Config
	Model      *model.Model
	Store      store.Store
	Metrics    *metrics.Metrics
	HTTPClient *infra.HttpClient
	// Search is nil when no search engine is configured.
	Search search.Engine
	// Cache is nil when caching is disabled.
	Cache    cache.Cache
	CacheKey cache.KeyFunc

	catalog *lazy.Value[*catalog.Catalog]
	builder *lazy.Value[*query.Builder]
	views   *view.Registry
}

// Open connects every backend named by config.
func Open(ctx context.Context, config *internal.Config) (*App, error) {
	m := model.Default()
	httpClient := infra.NewHttpClient(config.HTTPTimeout)
	mx := metrics.New()

	s, err := sqlstore.Open(ctx, config.StoreURI, m)
	if err != nil {
		return nil, err
	}
	engine, err := OpenSearch(config.SearchURI, httpClient)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	var c cache.Cache
	if config.UseCache {
		c, err = cache.Open(ctx, config.CacheURI, config.CachePrefix, config.CacheTTL)
		if err != nil {
			_ = s.Close()
			if engine != nil {
				_ = engine.Close()
			}
			return nil, err
		}
	}

	return New(config, m, store.Instrument(s, mx.ObserveStore), engine, c, mx, httpClient), nil
}

// New assembles an App from open backends. engine and c may be nil; nil
// mx and httpClient are replaced by fresh instances.
func New(
	config *internal.Config,
	m *model.Model,
	s store.Store,
	engine search.Engine,
	c cache.Cache,
	mx *metrics.Metrics,
	httpClient *infra.HttpClient,
) *App {
	if mx == nil {
		mx = metrics.New()
	}
	if httpClient == nil {
		httpClient = infra.NewHttpClient(config.HTTPTimeout)
	}
	a := &App{
		Config:     config,
		Model:      m,
		Store:      s,
		Metrics:    mx,
		HTTPClient: httpClient,
		Search:     engine,
		Cache:      c,
		CacheKey:   cache.NewKeyFunc(config.UseCache && c != nil),
	}
	a.catalog = lazy.NewValue(a.loadCatalog)
	a.builder = lazy.NewValue(func(ctx context.Context) (*query.Builder, error) {
		cat, err := a.catalog.Get(ctx)
		if err != nil {
			return nil, err
		}
		return query.NewBuilder(m, cat.Names(), query.BuilderConfig{
			DefaultLimit:    config.DefaultLimit,
			MinSearchLength: config.MinSearchLength,
		}), nil
	})
	a.views = view.NewRegistry(m, s, a.catalog.Get, config.SimilarLimit)
	return a
}

// OpenSearch opens the engine named by uri: nothing for an empty uri, a
// Solr collection for an http(s) url, a bleve index path otherwise.
func OpenSearch(uri string, httpClient *infra.HttpClient) (search.Engine, error) {
	switch {
	case uri == "":
		return nil, nil
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return solr.New(uri, httpClient), nil
	default:
		engine, err := bleve.Open(strings.TrimPrefix(uri, "bleve://"))
		if err != nil {
			return nil, err
		}
		return engine, nil
	}
}

func (a *App) loadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	if a.Config.Catalog != "" {
		c, err := catalog.Load(ctx, a.Config.Catalog, a.HTTPClient)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "catalog loaded", slog.String("uri", a.Config.Catalog), slog.Int("datasets", len(c.Datasets)))
		return c, nil
	}
	names, err := a.Store.Datasets(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.FromNames(names), nil
}

// Catalog returns the catalog, loading it on first use.
func (a *App) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	return a.catalog.Get(ctx)
}

// Builder returns the query builder validating against the catalog.
func (a *App) Builder(ctx context.Context) (*query.Builder, error) {
	return a.builder.Get(ctx)
}

// View returns the view of dataset, or of the whole store for "".
func (a *App) View(ctx context.Context, dataset string) (*view.View, error) {
	return a.views.Get(ctx, dataset)
}

// Authenticate reports whether apiKey is the configured build api key.
func (a *App) Authenticate(apiKey string) bool {
	if apiKey == "" || a.Config.BuildAPIKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(apiKey), []byte(a.Config.BuildAPIKey)) == 1
}

func (a *App) Close() error {
	var errs []error
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.Search != nil {
		errs = append(errs, a.Search.Close())
	}
	errs = append(errs, a.Store.Close())
	return stderrors.Join(errs...)
}
