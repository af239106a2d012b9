package serialize

import (
	"strconv"

	"github.com/samber/lo"
	"github.com/takatori/ftmq-api/internal/model"
	"github.com/takatori/ftmq-api/internal/query"
	"github.com/takatori/ftmq-api/internal/store"
)

// Page locates a response within its result set. URL is the request url
// without query string, RawQuery the query string as received minus the api
// key.
type Page struct {
	URL      string
	RawQuery string
	Page     int
	Limit    int
	Total    int
}

func (p Page) url(rawQuery string) string {
	if rawQuery == "" {
		return p.URL
	}
	return p.URL + "?" + rawQuery
}

func (p Page) withPage(page int) *string {
	return lo.ToPtr(p.url(query.WithParam(p.RawQuery, query.ParamPage, strconv.Itoa(page))))
}

type EntitiesResponse struct {
	Total    int              `json:"total"`
	Items    int              `json:"items"`
	URL      string           `json:"url"`
	NextURL  *string          `json:"next_url"`
	PrevURL  *string          `json:"prev_url"`
	Entities []EntityResponse `json:"entities"`
	Stats    *model.Stats     `json:"stats,omitempty"`
}

func NewEntitiesResponse(page Page, entities []*model.Entity, adjacents []model.Adjacency, stats *model.Stats) EntitiesResponse {
	res := EntitiesResponse{
		Total: page.Total,
		Items: len(entities),
		URL:   page.url(page.RawQuery),
		Entities: lo.Map(entities, func(e *model.Entity, _ int) EntityResponse {
			return NewEntityResponse(e, adjacents)
		}),
		Stats: stats,
	}
	if page.Page*page.Limit < page.Total {
		res.NextURL = page.withPage(page.Page + 1)
	}
	if page.Page > 1 {
		res.PrevURL = page.withPage(page.Page - 1)
	}
	return res
}

type AggregationResponse struct {
	Total        int                                                  `json:"total"`
	URL          string                                               `json:"url"`
	Aggregations map[query.Func]map[string]any                        `json:"aggregations"`
	Groups       map[string]map[query.Func]map[string]map[string]any `json:"groups,omitempty"`
	Stats        *model.Stats                                         `json:"stats,omitempty"`
}

func NewAggregationResponse(page Page, aggs *store.Aggregations, stats *model.Stats) AggregationResponse {
	res := AggregationResponse{
		Total:        page.Total,
		URL:          page.url(page.RawQuery),
		Aggregations: aggs.Values,
		Stats:        stats,
	}
	if len(aggs.Groups) > 0 {
		res.Groups = aggs.Groups
	}
	return res
}

// ScoredEntityResponse is an entity ranked by similarity.
type ScoredEntityResponse struct {
	EntityResponse
	Score float64 `json:"score"`
}

type SimilarResponse struct {
	Total    int                    `json:"total"`
	URL      string                 `json:"url"`
	Entities []ScoredEntityResponse `json:"entities"`
}

func NewSimilarResponse(url, rawQuery string, scored []store.Scored) SimilarResponse {
	page := Page{URL: url}
	return SimilarResponse{
		Total: len(scored),
		URL:   page.url(rawQuery),
		Entities: lo.Map(scored, func(s store.Scored, _ int) ScoredEntityResponse {
			return ScoredEntityResponse{EntityResponse: NewEntityResponse(s.Entity, nil), Score: s.Score}
		}),
	}
}

type AutocompleteResponse struct {
	Candidates []string `json:"candidates"`
}

type ErrorResponse struct {
	Detail []string `json:"detail"`
}

type Contact struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Email string `json:"email"`
}

// Info describes the api instance on its root route.
type Info struct {
	Title       string  `json:"title"`
	Version     string  `json:"version"`
	Description string  `json:"description"`
	Contact     Contact `json:"contact"`
	Catalog     string  `json:"catalog"`
}
