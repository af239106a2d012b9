package solr

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/takatori/ftmq-api/internal/model"
	"github.com/takatori/ftmq-api/internal/query"
)

func searchQuery(t *testing.T, raw string) *query.Query {
	t.Helper()
	values, err := url.ParseQuery(raw)
	require.NoError(t, err)
	b := query.NewBuilder(model.Default(), []string{"ec_meetings", "eu_authorities", "gdho"}, query.BuilderConfig{DefaultLimit: 100, MinSearchLength: 3})
	q, err := b.BuildSearch(query.ParseSearchParams(values), false)
	require.NoError(t, err)
	return q
}

func TestSearchRequest(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		offset  int
		limit   int
		filters []string
	}{
		{"term only", "q=jane+doe", 0, 100, nil},
		{"window", "q=jane&limit=10&page=3", 20, 10, nil},
		{
			"filters",
			"q=jane&dataset=gdho&dataset=ec_meetings&schema=Person&country=de",
			0, 100,
			[]string{
				"{!terms f=countries}de",
				"{!terms f=datasets}gdho,ec_meetings",
				"{!terms f=schema}Person",
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			request := searchRequest(searchQuery(t, test.raw))
			assert.Equal(t, "{!edismax q.op=AND qf=$qf v=$term}", request["query"])
			assert.Equal(t, test.offset, request["offset"])
			assert.Equal(t, test.limit, request["limit"])
			assert.Equal(t, searchFields, request["fields"])
			if test.filters == nil {
				assert.NotContains(t, request, "filter")
			} else {
				assert.Equal(t, test.filters, request["filter"])
			}
			params := request["params"].(map[string]interface{})
			assert.Equal(t, "names^2 caption", params["qf"])
		})
	}

	params := searchRequest(searchQuery(t, "q=jane+doe"))["params"].(map[string]interface{})
	assert.Equal(t, "jane doe", params["term"])
}

func TestAutocompleteRequest(t *testing.T) {
	request := autocompleteRequest("European Comm", 10)
	assert.Equal(t, 0, request["limit"])

	params := request["params"].(map[string]interface{})
	assert.Equal(t, "european comm*", params["term"])
	assert.Equal(t, "names", params["qf"])

	facet := request["facet"].(map[string]interface{})["names"].(map[string]interface{})
	assert.Equal(t, "terms", facet["type"])
	assert.Equal(t, "names_exact", facet["field"])
	assert.Equal(t, 10*autocompleteFanout, facet["limit"])
}

func TestEscape(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"jane", "jane"},
		{"j.", "j."},
		{"a:b", `a\:b`},
		{"(x)", `\(x\)`},
		{`"q"`, `\"q\"`},
		{"", ""},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, escape(test.input))
	}
}
