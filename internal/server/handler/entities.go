package handler

import (
	"net/http"
	"net/url"
	"path"

	"github.com/labstack/echo/v4"
	"github.com/morikuni/failure/v2"
	"github.com/takatori/ftmq-api/internal/app"
	"github.com/takatori/ftmq-api/internal/errors"
	"github.com/takatori/ftmq-api/internal/model"
	"github.com/takatori/ftmq-api/internal/query"
	"github.com/takatori/ftmq-api/internal/serialize"
	"github.com/takatori/ftmq-api/internal/store"
	"github.com/takatori/ftmq-api/internal/view"
)

// request is a validated entity query together with its view.
type request struct {
	query  *query.Query
	params view.RetrieveParams
	view   *view.View
}

// parseRequest builds the query of c. Nothing is executed when the
// parameters are invalid.
func parseRequest(a *app.App, c echo.Context) (*request, error) {
	ctx := c.Request().Context()
	values := c.QueryParams()
	b, err := a.Builder(ctx)
	if err != nil {
		return nil, err
	}
	q, err := b.Build(query.ParseParams(values), Authenticated(c))
	if err != nil {
		return nil, err
	}
	p, err := view.ParseRetrieveParams(values)
	if err != nil {
		return nil, err
	}
	v, err := a.View(ctx, scopeOf(q))
	if err != nil {
		return nil, err
	}
	return &request{query: q, params: p, view: v}, nil
}

// scopeOf picks the dataset view serving q: the dataset itself when q
// names exactly one, the whole store otherwise.
func scopeOf(q *query.Query) string {
	if datasets := q.Datasets(); len(datasets) == 1 {
		return datasets[0]
	}
	return ""
}

func (r *request) page(c echo.Context, total int) serialize.Page {
	return serialize.Page{
		URL:      requestURL(c),
		RawQuery: c.Request().URL.RawQuery,
		Page:     r.query.Page(),
		Limit:    r.query.Limit(),
		Total:    total,
	}
}

// total returns the stats of the query when requested, and the number of
// matching entities.
func (r *request) total(c echo.Context) (*model.Stats, int, error) {
	ctx := c.Request().Context()
	if r.params.Stats {
		stats, err := r.view.Stats(ctx, r.query)
		if err != nil {
			return nil, 0, err
		}
		return stats, stats.EntityCount, nil
	}
	n, err := r.view.Count(ctx, r.query)
	return nil, n, err
}

func NewEntitiesHandler(a *app.App) func(echo.Context) error {
	return func(c echo.Context) error {
		r, err := parseRequest(a, c)
		if err != nil {
			return err
		}
		ctx := c.Request().Context()
		entities, err := store.Collect(r.view.GetEntities(ctx, r.query, r.params))
		if err != nil {
			return err
		}
		stats, total, err := r.total(c)
		if err != nil {
			return err
		}
		var adjacents []model.Adjacency
		if r.params.Nested && len(entities) > 0 {
			adjacents, err = r.view.GetAdjacents(ctx, entities, r.params)
			if err != nil {
				return err
			}
		}
		return c.JSON(http.StatusOK, serialize.NewEntitiesResponse(r.page(c, total), entities, adjacents, stats))
	}
}

func NewAggregateHandler(a *app.App) func(echo.Context) error {
	return func(c echo.Context) error {
		r, err := parseRequest(a, c)
		if err != nil {
			return err
		}
		aggs, err := r.view.Aggregations(c.Request().Context(), r.query)
		if err != nil {
			return err
		}
		stats, total, err := r.total(c)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, serialize.NewAggregationResponse(r.page(c, total), aggs, stats))
	}
}

// NewEntityHandler serves a single entity. Ids merged into another entity
// redirect to the canonical one.
func NewEntityHandler(a *app.App) func(echo.Context) error {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		p, err := view.ParseRetrieveParams(c.QueryParams())
		if err != nil {
			return err
		}
		v, err := a.View(ctx, "")
		if err != nil {
			return err
		}
		e, resolution, err := v.GetEntity(ctx, c.Param("id"), p)
		if err != nil {
			return err
		}
		if resolution == view.Merged {
			h := c.Response().Header()
			h.Set(HeaderEntityID, e.ID)
			h.Set(HeaderEntitySchema, e.Schema)
			return c.Redirect(http.StatusTemporaryRedirect, redirectLocation(c.Request().URL, e.ID))
		}
		var adjacents []model.Adjacency
		if p.Nested {
			adjacents, err = v.GetAdjacents(ctx, []*model.Entity{e}, p)
			if err != nil {
				return err
			}
		}
		return c.JSON(http.StatusOK, serialize.NewEntityResponse(e, adjacents))
	}
}

// redirectLocation replaces the last path segment of u with id, keeping the
// query string.
func redirectLocation(u *url.URL, id string) string {
	location := path.Join(path.Dir(u.EscapedPath()), url.PathEscape(id))
	if u.RawQuery != "" {
		location += "?" + u.RawQuery
	}
	return location
}

func NewSimilarHandler(a *app.App) func(echo.Context) error {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		values := c.QueryParams()
		id := values.Get("id")
		if id == "" {
			return failure.New(
				errors.ErrInvalidArgument,
				failure.Message("Missing required parameter `id`."),
			)
		}
		p, err := view.ParseRetrieveParams(values)
		if err != nil {
			return err
		}
		v, err := a.View(ctx, "")
		if err != nil {
			return err
		}
		scored, err := v.Similar(ctx, id, p)
		if err != nil {
			return err
		}
		res := serialize.NewSimilarResponse(requestURL(c), c.Request().URL.RawQuery, scored)
		return c.JSON(http.StatusOK, res)
	}
}
