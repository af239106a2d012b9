package solr

import (
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/takatori/ftmq-api/internal/query"
)

// Candidate names requested per autocomplete result. Facet buckets carry
// every name of the matching documents, not only the matching ones.
const autocompleteFanout = 5

var searchFields = []string{"id", "schema", "caption", "datasets", "score"}

// searchRequest generates a Solr JSON request running the search term of q
// with its filters and page window.
func searchRequest(q *query.Query) map[string]interface{} {
	request := generateRequestRoot(q.Search())
	request["offset"] = q.Offset()
	request["limit"] = q.Limit()
	request["fields"] = searchFields

	filters := generateFilters(map[string][]string{
		"datasets":  q.Datasets(),
		"schema":    q.Schemata(),
		"countries": q.Countries(),
	})
	if len(filters) > 0 {
		request["filter"] = filters
	}
	return request
}

// autocompleteRequest matches documents having a name with the words of
// prefix, the last one as a prefix, and facets their exact names.
func autocompleteRequest(prefix string, limit int) map[string]interface{} {
	words := strings.Fields(strings.ToLower(prefix))
	term := strings.Join(lo.Map(words, func(w string, _ int) string { return escape(w) }), " ") + "*"

	request := generateRequestRoot(term)
	params := request["params"].(map[string]interface{})
	params["qf"] = "names"
	request["limit"] = 0
	request["facet"] = map[string]interface{}{
		"names": map[string]interface{}{
			"type":  "terms",
			"field": "names_exact",
			"limit": limit * autocompleteFanout,
			"sort":  "count desc",
		},
	}
	return request
}

// generateRequestRoot creates the basic request structure.
func generateRequestRoot(term string) map[string]interface{} {
	return map[string]interface{}{
		"query": "{!edismax q.op=AND qf=$qf v=$term}",
		"params": map[string]interface{}{
			"term": term,
			"qf":   "names^2 caption",
		},
	}
}

// generateFilters returns one terms filter per non empty field, fields in
// name order.
func generateFilters(fields map[string][]string) []string {
	var filters []string
	for _, field := range lo.Keys(fields) {
		if len(fields[field]) == 0 {
			continue
		}
		filters = append(filters, "{!terms f="+field+"}"+strings.Join(fields[field], ","))
	}
	slices.Sort(filters)
	return filters
}

var specialChars = `\+-&|!(){}[]^"~*?:/`

// escape backslash-escapes Solr query syntax characters.
func escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(specialChars, r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
