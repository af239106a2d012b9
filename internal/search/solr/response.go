package solr

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/takatori/ftmq-api/internal/search"
)

// transformSearchResponse converts the documents of a Solr response into
// search results.
func transformSearchResponse(resp map[string]interface{}) *search.Results {
	results := &search.Results{}
	body, ok := resp["response"].(map[string]interface{})
	if !ok {
		return results
	}
	if numFound, ok := body["numFound"].(float64); ok {
		results.Total = int(numFound)
	}
	docs, ok := body["docs"].([]interface{})
	if !ok {
		return results
	}
	for _, d := range docs {
		doc, ok := d.(map[string]interface{})
		if !ok {
			continue
		}
		results.Hits = append(results.Hits, transformDocument(doc))
	}
	return results
}

// transformDocument converts a response document into a dehydrated entity
// with its score.
func transformDocument(doc map[string]interface{}) search.Result {
	d := search.Document{
		ID:       str(doc["id"]),
		Schema:   str(doc["schema"]),
		Caption:  str(doc["caption"]),
		Datasets: strs(doc["datasets"]),
	}
	score, _ := doc["score"].(float64)
	return search.Result{Entity: d.Entity(), Score: score}
}

// processBuckets extracts the values of the terms facet buckets, in the
// order Solr returned them.
func processBuckets(facets map[string]interface{}, name string) []string {
	facet, ok := facets[name].(map[string]interface{})
	if !ok {
		return nil
	}
	buckets, ok := facet["buckets"].([]interface{})
	if !ok {
		return nil
	}
	return lo.FilterMap(buckets, func(b interface{}, _ int) (string, bool) {
		bucket, ok := b.(map[string]interface{})
		if !ok {
			return "", false
		}
		val, ok := bucket["val"]
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%v", val), true
	})
}

// str reads a single valued field. Multi valued fields yield their first
// value.
func str(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if values := strs(v); len(values) > 0 {
		return values[0]
	}
	return ""
}

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
