package server

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"github.com/takatori/ftmq-api/internal/app"
	"github.com/takatori/ftmq-api/internal/server/handler"
)

const localOrigin = "http://localhost:3000"

func InitServer(a *app.App) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Pre(stripAPIKey(a))
	e.Use(
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			Generator: uuid.NewString,
		}),
		middleware.Recover(),
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:  lo.Uniq(append(append([]string{}, a.Config.AllowedOrigin...), localOrigin)),
			AllowMethods:  []string{echo.GET, echo.OPTIONS},
			ExposeHeaders: []string{handler.HeaderEntityID, handler.HeaderEntitySchema},
		}),
		middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			LogStatus:    true,
			LogURI:       true,
			LogMethod:    true,
			LogLatency:   true,
			LogRequestID: true,
			LogError:     true,
			HandleError:  true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				attrs := []slog.Attr{
					slog.String("method", v.Method),
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
					slog.Duration("latency", v.Latency),
					slog.String("request_id", v.RequestID),
				}
				if v.Error != nil {
					attrs = append(attrs, slog.String("error", v.Error.Error()))
				}
				slog.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
				return nil
			},
		}),
		observe(a.Metrics),
	)

	e.GET("/", handler.NewInfoHandler(a))
	e.GET("/health", handler.NewHealthHandler(a))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(a.Metrics.Registry, promhttp.HandlerOpts{})))

	cached := func(h echo.HandlerFunc) echo.HandlerFunc { return cacheResponse(a, h) }
	e.GET("/catalog", cached(handler.NewCatalogHandler(a)))
	e.GET("/catalog/:dataset", cached(handler.NewDatasetHandler(a)))
	e.GET("/entities", cached(handler.NewEntitiesHandler(a)))
	e.GET("/entities/:id", cached(handler.NewEntityHandler(a)))
	e.GET("/aggregate", cached(handler.NewAggregateHandler(a)))
	e.GET("/search", cached(handler.NewSearchHandler(a)))
	e.GET("/autocomplete", cached(handler.NewAutocompleteHandler(a)))
	e.GET("/similar", cached(handler.NewSimilarHandler(a)))

	return e, nil
}
