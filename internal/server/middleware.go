package server

import (
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/takatori/ftmq-api/internal/app"
	"github.com/takatori/ftmq-api/internal/metrics"
	"github.com/takatori/ftmq-api/internal/query"
	"github.com/takatori/ftmq-api/internal/server/handler"
)

// stripAPIKey removes api_key from the request before routing and records
// whether it matched. Everything downstream (cache key, request log, query
// parsing) only ever sees the stripped query string.
func stripAPIKey(a *app.App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			raw := req.URL.RawQuery
			stripped := query.WithoutParam(raw, query.ParamAPIKey)
			authenticated := false
			if stripped != raw {
				values, _ := url.ParseQuery(raw)
				if keys := values[query.ParamAPIKey]; len(keys) > 0 {
					authenticated = a.Authenticate(keys[len(keys)-1])
				}
				req.URL.RawQuery = stripped
				req.RequestURI = req.URL.RequestURI()
			}
			handler.SetAuthenticated(c, authenticated)
			return next(c)
		}
	}
}

func observe(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.RequestsTotal.WithLabelValues(route, strconv.Itoa(c.Response().Status)).Inc()
			m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
