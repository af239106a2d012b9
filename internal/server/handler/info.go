package handler

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/takatori/ftmq-api/internal"
	"github.com/takatori/ftmq-api/internal/app"
	"github.com/takatori/ftmq-api/internal/infra"
	"github.com/takatori/ftmq-api/internal/lazy"
	"github.com/takatori/ftmq-api/internal/serialize"
)

const defaultDescription = "Read-only query api for FollowTheMoney entities: " +
	"filter, sort, aggregate, search and browse the datasets of the catalog."

func NewInfoHandler(a *app.App) func(echo.Context) error {
	description := lazy.NewValue(func(ctx context.Context) (string, error) {
		return loadDescription(ctx, a), nil
	})
	return func(c echo.Context) error {
		d, _ := description.Get(c.Request().Context())
		return c.JSON(http.StatusOK, serialize.Info{
			Title:       a.Config.Title,
			Version:     internal.Version,
			Description: d,
			Contact: serialize.Contact{
				Name:  a.Config.ContactName,
				URL:   a.Config.ContactURL,
				Email: a.Config.ContactEmail,
			},
			Catalog: a.Config.Catalog,
		})
	}
}

// loadDescription reads the configured description document, falling back
// to the built-in text when it is missing or unreadable.
func loadDescription(ctx context.Context, a *app.App) string {
	uri := a.Config.DescriptionURI
	if uri == "" {
		return defaultDescription
	}
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		data, err = a.HTTPClient.GetRaw(ctx, infra.Request{Url: uri})
	} else {
		data, err = os.ReadFile(strings.TrimPrefix(uri, "file://"))
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to load description", slog.String("uri", uri), slog.String("error", err.Error()))
		return defaultDescription
	}
	return strings.TrimSpace(string(data))
}
