// Package solr serves search and autocomplete from a Solr collection through
// its JSON request API.
package solr

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"github.com/takatori/ftmq-api/internal/infra"
	"github.com/takatori/ftmq-api/internal/query"
	"github.com/takatori/ftmq-api/internal/search"
)

type Engine struct {
	url        string
	httpClient *infra.HttpClient
}

var _ search.Engine = (*Engine)(nil)

// New creates an Engine for the collection at collectionURL, for example
// http://solr:8983/solr/entities.
func New(collectionURL string, httpClient *infra.HttpClient) *Engine {
	return &Engine{
		url:        strings.TrimRight(collectionURL, "/") + "/query",
		httpClient: httpClient,
	}
}

func (s *Engine) Search(ctx context.Context, q *query.Query) (*search.Results, error) {
	var solrResp map[string]interface{}
	if err := s.post(ctx, searchRequest(q), &solrResp); err != nil {
		return nil, err
	}
	return transformSearchResponse(solrResp), nil
}

func (s *Engine) Autocomplete(ctx context.Context, prefix string, limit int) ([]string, error) {
	if strings.TrimSpace(prefix) == "" || limit <= 0 {
		return []string{}, nil
	}
	var solrResp map[string]interface{}
	if err := s.post(ctx, autocompleteRequest(prefix, limit), &solrResp); err != nil {
		return nil, err
	}
	facets, _ := solrResp["facets"].(map[string]interface{})
	names := lo.Filter(processBuckets(facets, "names"), func(name string, _ int) bool {
		return search.HasWordPrefix(name, prefix)
	})
	names = lo.Uniq(names)
	if len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}

func (s *Engine) Close() error {
	return nil
}

func (s *Engine) post(ctx context.Context, reqBody map[string]interface{}, solrResp *map[string]interface{}) error {
	return s.httpClient.Post(
		ctx,
		infra.PostRequest{
			Request: infra.Request{
				Url: s.url,
			},
			Entity: reqBody,
		},
		solrResp,
	)
}
