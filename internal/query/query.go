// Package query turns request parameters into validated, immutable queries
// against the entity store and the search engine.
package query

import (
	"slices"
)

type SchemaFilter struct {
	Name               string
	IncludeDescendants bool
	IncludeMatchable   bool
}

type Sort struct {
	Property  string
	Ascending bool
	// Numeric sorts cast the first value of the property to a number. Values
	// that do not cast become 0.
	Numeric bool
}

// Query is a validated query. It is built by Builder and never modified
// afterwards; accessors return copies.
type Query struct {
	datasets  []string
	schema    *SchemaFilter
	schemata  []string
	reverse   string
	filters   []Filter
	search    string
	countries []string
	sort      *Sort
	page      int
	limit     int
	plan      Plan
}

// Datasets returns the dataset names an entity must belong to (any of).
func (q *Query) Datasets() []string {
	return slices.Clone(q.datasets)
}

// Schema returns the requested schema filter.
func (q *Query) Schema() (SchemaFilter, bool) {
	if q.schema == nil {
		return SchemaFilter{}, false
	}
	return *q.schema, true
}

// Schemata returns the schema names matching the schema filter after
// descendant and matchable widening, or nil without a schema filter.
func (q *Query) Schemata() []string {
	return slices.Clone(q.schemata)
}

// Reverse returns the id entities must be adjacent to.
func (q *Query) Reverse() string {
	return q.reverse
}

func (q *Query) Filters() []Filter {
	filters := slices.Clone(q.filters)
	for i := range filters {
		filters[i].Values = slices.Clone(filters[i].Values)
	}
	return filters
}

// Search returns the search term, if any.
func (q *Query) Search() string {
	return q.search
}

func (q *Query) Countries() []string {
	return slices.Clone(q.countries)
}

func (q *Query) Sort() (Sort, bool) {
	if q.sort == nil {
		return Sort{}, false
	}
	return *q.sort, true
}

func (q *Query) Page() int {
	return q.page
}

func (q *Query) Limit() int {
	return q.limit
}

// Offset is the index of the first entity of the page window.
func (q *Query) Offset() int {
	return (q.page - 1) * q.limit
}

// Window returns the page window as [start, end).
func (q *Query) Window() (int, int) {
	return q.Offset(), q.page * q.limit
}

// Aggregations returns the aggregation plan.
func (q *Query) Aggregations() Plan {
	return q.plan
}
