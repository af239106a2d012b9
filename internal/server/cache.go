package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/takatori/ftmq-api/internal/app"
	"github.com/takatori/ftmq-api/internal/cache"
	"github.com/takatori/ftmq-api/internal/metrics"
	"github.com/takatori/ftmq-api/internal/query"
	"github.com/takatori/ftmq-api/internal/server/handler"
)

const headerCache = "X-Cache"

// cachedHeaders are replayed on a cache hit.
var cachedHeaders = []string{
	echo.HeaderContentType,
	echo.HeaderLocation,
	handler.HeaderEntityID,
	handler.HeaderEntitySchema,
}

// cacheResponse memoizes successful responses of next under the cache key
// of the request. Errors are never stored.
func cacheResponse(a *app.App, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		key, ok := a.CacheKey(req.Host, req.URL.Path, req.URL.RawQuery)
		if !ok || bypassCache(a, c) {
			a.Metrics.CacheLookups.WithLabelValues(metrics.CacheBypass).Inc()
			return next(c)
		}

		ctx := req.Context()
		data, found, err := a.Cache.Get(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, "cache lookup failed", slog.String("key", key), slog.String("error", err.Error()))
			a.Metrics.CacheLookups.WithLabelValues(metrics.CacheError).Inc()
			return next(c)
		}
		if found {
			entry, err := cache.UnmarshalEntry(data)
			if err == nil {
				a.Metrics.CacheLookups.WithLabelValues(metrics.CacheHit).Inc()
				return replay(c, entry)
			}
			slog.WarnContext(ctx, "dropping unreadable cache entry", slog.String("key", key))
		}
		a.Metrics.CacheLookups.WithLabelValues(metrics.CacheMiss).Inc()

		res := c.Response()
		rec := &recorder{ResponseWriter: res.Writer}
		res.Writer = rec
		err = next(c)
		res.Writer = rec.ResponseWriter
		if err != nil || res.Status >= http.StatusBadRequest {
			return err
		}

		entry := cache.Entry{Status: res.Status, Headers: map[string]string{}, Body: rec.body.Bytes()}
		for _, name := range cachedHeaders {
			if v := res.Header().Get(name); v != "" {
				entry.Headers[name] = v
			}
		}
		value, err := entry.Marshal()
		if err == nil {
			err = a.Cache.Set(ctx, key, value)
		}
		if err != nil {
			slog.WarnContext(ctx, "cache store failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return nil
	}
}

// bypassCache reports whether the response depends on the api key, which
// the cache key leaves out.
func bypassCache(a *app.App, c echo.Context) bool {
	if !handler.Authenticated(c) {
		return false
	}
	values := c.QueryParams()[query.ParamLimit]
	if len(values) == 0 {
		return false
	}
	limit, err := strconv.Atoi(values[len(values)-1])
	return err == nil && limit > a.Config.DefaultLimit
}

func replay(c echo.Context, entry cache.Entry) error {
	h := c.Response().Header()
	for name, v := range entry.Headers {
		h.Set(name, v)
	}
	h.Set(headerCache, "HIT")
	c.Response().WriteHeader(entry.Status)
	_, err := c.Response().Write(entry.Body)
	return err
}

type recorder struct {
	http.ResponseWriter
	body bytes.Buffer
}

func (r *recorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
