package server

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/takatori/ftmq-api/internal/errors"
	"github.com/takatori/ftmq-api/internal/serialize"
)

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var status int
	var detail string
	if he := (*echo.HTTPError)(nil); stderrors.As(err, &he) {
		status = he.Code
		detail = fmt.Sprint(he.Message)
	} else {
		status = errors.HTTPStatus(err)
		detail = errors.Detail(err)
	}

	ctx := c.Request().Context()
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "request failed",
			slog.String("path", c.Request().URL.Path),
			slog.String("error", fmt.Sprintf("%+v", err)),
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, serialize.ErrorResponse{Detail: []string{detail}})
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to write error response", slog.String("error", err.Error()))
	}
}
