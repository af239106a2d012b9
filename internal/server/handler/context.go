package handler

import (
	"github.com/labstack/echo/v4"
)

// Headers announcing the canonical entity of a merge redirect.
const (
	HeaderEntityID     = "X-Entity-ID"
	HeaderEntitySchema = "X-Entity-Schema"
)

const authenticatedKey = "authenticated"

func SetAuthenticated(c echo.Context, ok bool) {
	c.Set(authenticatedKey, ok)
}

// Authenticated reports whether the request carried the build api key.
func Authenticated(c echo.Context) bool {
	ok, _ := c.Get(authenticatedKey).(bool)
	return ok
}

// requestURL is the absolute url of the request without its query string.
func requestURL(c echo.Context) string {
	return c.Scheme() + "://" + c.Request().Host + c.Request().URL.Path
}
