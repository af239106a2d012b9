package handler

import (
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/morikuni/failure/v2"
	"github.com/samber/lo"
	"github.com/takatori/ftmq-api/internal/app"
	"github.com/takatori/ftmq-api/internal/errors"
	"github.com/takatori/ftmq-api/internal/model"
	"github.com/takatori/ftmq-api/internal/query"
	"github.com/takatori/ftmq-api/internal/search"
	"github.com/takatori/ftmq-api/internal/serialize"
)

const autocompleteLimit = 10

var errSearchDisabled = failure.New(
	errors.ErrUnavailable,
	failure.Message("Search is not configured."),
)

func NewSearchHandler(a *app.App) func(echo.Context) error {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		b, err := a.Builder(ctx)
		if err != nil {
			return err
		}
		q, err := b.BuildSearch(query.ParseSearchParams(c.QueryParams()), Authenticated(c))
		if err != nil {
			return err
		}
		if a.Search == nil {
			return errSearchDisabled
		}
		results, err := a.Search.Search(ctx, q)
		if err != nil {
			return err
		}
		entities := lo.Map(results.Hits, func(hit search.Result, _ int) *model.Entity {
			return a.Model.Dehydrate(hit.Entity)
		})
		page := serialize.Page{
			URL:      requestURL(c),
			RawQuery: c.Request().URL.RawQuery,
			Page:     q.Page(),
			Limit:    q.Limit(),
			Total:    results.Total,
		}
		return c.JSON(http.StatusOK, serialize.NewEntitiesResponse(page, entities, nil, nil))
	}
}

func NewAutocompleteHandler(a *app.App) func(echo.Context) error {
	return func(c echo.Context) error {
		q := c.QueryParam(query.ParamQ)
		if utf8.RuneCountInString(q) < a.Config.AutocompleteMinLength {
			return failure.New(
				errors.ErrInvalidArgument,
				failure.Message(fmt.Sprintf("Invalid search query: `%s`", q)),
			)
		}
		if a.Search == nil {
			return errSearchDisabled
		}
		candidates, err := a.Search.Autocomplete(c.Request().Context(), q, autocompleteLimit)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, serialize.AutocompleteResponse{Candidates: candidates})
	}
}
