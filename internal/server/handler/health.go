package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/takatori/ftmq-api/internal/app"
)

func NewHealthHandler(a *app.App) func(echo.Context) error {
	return func(c echo.Context) error {
		if err := a.Store.Ping(c.Request().Context()); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}
