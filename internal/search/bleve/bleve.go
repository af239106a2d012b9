// Package bleve serves search and autocomplete from a local bleve index.
package bleve

import (
	"context"
	"strings"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/mapping"
	bq "github.com/blevesearch/bleve/search/query"
	"github.com/morikuni/failure/v2"
	"github.com/samber/lo"
	"github.com/takatori/ftmq-api/internal/errors"
	"github.com/takatori/ftmq-api/internal/query"
	"github.com/takatori/ftmq-api/internal/search"
)

// Candidates fetched per requested autocomplete name. Documents carry several
// names and only some of them match the prefix.
const autocompleteFanout = 5

type Engine struct {
	index bleve.Index
}

var _ search.Engine = (*Engine)(nil)

// Mapping is the index mapping documents are indexed with.
func Mapping() mapping.IndexMapping {
	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name
	keywordField.Store = true

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = true

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt("id", keywordField)
	doc.AddFieldMappingsAt("schema", keywordField)
	doc.AddFieldMappingsAt("caption", textField)
	doc.AddFieldMappingsAt("names", textField)
	doc.AddFieldMappingsAt("countries", keywordField)
	doc.AddFieldMappingsAt("datasets", keywordField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = standard.Name
	return m
}

// Open opens the index at path read-only.
func Open(path string) (*Engine, error) {
	index, err := bleve.OpenUsing(path, map[string]interface{}{"read_only": true})
	if err != nil {
		return nil, failure.Translate(
			err,
			errors.ErrInternal,
			failure.Message("failed to open search index"),
			failure.Context{"path": path},
		)
	}
	return New(index), nil
}

func New(index bleve.Index) *Engine {
	return &Engine{index: index}
}

func (e *Engine) Search(ctx context.Context, q *query.Query) (*search.Results, error) {
	names := bleve.NewMatchQuery(q.Search())
	names.SetField("names")
	caption := bleve.NewMatchQuery(q.Search())
	caption.SetField("caption")
	caption.SetBoost(0.5)

	must := []bq.Query{bleve.NewDisjunctionQuery(names, caption)}
	must = append(must, filters(q)...)

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(must...), q.Limit(), q.Offset(), false)
	req.Fields = []string{"schema", "caption", "datasets"}
	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, unavailable(err)
	}

	results := &search.Results{Total: int(res.Total)}
	for _, hit := range res.Hits {
		doc := search.Document{
			ID:       hit.ID,
			Schema:   first(hit.Fields["schema"]),
			Caption:  first(hit.Fields["caption"]),
			Datasets: strs(hit.Fields["datasets"]),
		}
		results.Hits = append(results.Hits, search.Result{Entity: doc.Entity(), Score: hit.Score})
	}
	return results, nil
}

func (e *Engine) Autocomplete(ctx context.Context, prefix string, limit int) ([]string, error) {
	words := strings.Fields(strings.ToLower(prefix))
	if len(words) == 0 || limit <= 0 {
		return []string{}, nil
	}
	var must []bq.Query
	for _, word := range words[:len(words)-1] {
		m := bleve.NewMatchQuery(word)
		m.SetField("names")
		must = append(must, m)
	}
	p := bleve.NewPrefixQuery(words[len(words)-1])
	p.SetField("names")
	must = append(must, p)

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(must...), limit*autocompleteFanout, 0, false)
	req.Fields = []string{"names"}
	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, unavailable(err)
	}

	candidates := []string{}
	for _, hit := range res.Hits {
		for _, name := range strs(hit.Fields["names"]) {
			if search.HasWordPrefix(name, prefix) {
				candidates = append(candidates, name)
			}
		}
	}
	candidates = lo.Uniq(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (e *Engine) Close() error {
	return e.index.Close()
}

func filters(q *query.Query) []bq.Query {
	var must []bq.Query
	for field, values := range map[string][]string{
		"datasets":  q.Datasets(),
		"schema":    q.Schemata(),
		"countries": q.Countries(),
	} {
		if len(values) == 0 {
			continue
		}
		terms := lo.Map(values, func(v string, _ int) bq.Query {
			t := bleve.NewTermQuery(v)
			t.SetField(field)
			return t
		})
		must = append(must, bleve.NewDisjunctionQuery(terms...))
	}
	return must
}

// strs reads a stored field, which bleve returns as a plain value when the
// document has a single one.
func strs(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []interface{}:
		return lo.FilterMap(t, func(item interface{}, _ int) (string, bool) {
			s, ok := item.(string)
			return s, ok
		})
	}
	return nil
}

func first(v interface{}) string {
	if values := strs(v); len(values) > 0 {
		return values[0]
	}
	return ""
}

func unavailable(err error) error {
	return failure.Translate(
		err,
		errors.ErrUnavailable,
		failure.Message("search engine unavailable"),
	)
}
