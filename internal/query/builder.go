package query

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/morikuni/failure/v2"
	"github.com/samber/lo"
	"github.com/takatori/ftmq-api/internal/errors"
	"github.com/takatori/ftmq-api/internal/model"
)

// MaxWindow bounds the end of a page window, page×limit. Larger windows are
// rejected so that offsets always fit the store and the search engines.
const MaxWindow = 1 << 30

type BuilderConfig struct {
	// DefaultLimit is the page size and the cap for unauthenticated requests.
	DefaultLimit    int
	MinSearchLength int
}

// Builder validates parameters against the schema model and the catalog
// and produces queries. It holds no request state.
type Builder struct {
	model    *model.Model
	datasets []string
	config   BuilderConfig
}

func NewBuilder(m *model.Model, datasets []string, config BuilderConfig) *Builder {
	return &Builder{
		model:    m,
		datasets: slices.Clone(datasets),
		config:   config,
	}
}

// Build converts entity query parameters into a Query. Unauthenticated
// requests asking for more than the default limit get the default limit.
func (b *Builder) Build(p Params, authenticated bool) (*Query, error) {
	q, err := b.base(p.BaseParams, authenticated)
	if err != nil {
		return nil, err
	}

	if p.OrderBy != "" {
		prop := strings.TrimLeft(p.OrderBy, "-")
		if !b.model.HasProperty(prop) {
			return nil, invalid(ParamOrderBy, "Invalid sort property: `%s`", prop)
		}
		q.sort = &Sort{
			Property:  prop,
			Ascending: !strings.HasPrefix(p.OrderBy, "-"),
			Numeric:   b.propertyType(q, prop) == model.TypeNumber,
		}
	}

	q.reverse = p.Reverse
	q.search = p.Q

	for _, raw := range p.Filters {
		f, err := b.filter(q, raw)
		if err != nil {
			return nil, err
		}
		q.filters = append(q.filters, f)
	}

	plan := NewPlan(p.Aggregations, p.Groups)
	for _, prop := range plan.Properties() {
		if !b.model.HasProperty(prop) {
			return nil, invalid("aggregation", "Invalid aggregation property: `%s`", prop)
		}
	}
	q.plan = plan

	return q, nil
}

// BuildSearch converts search parameters into a Query for the search engine.
// A missing or too short search term is rejected.
func (b *Builder) BuildSearch(p SearchParams, authenticated bool) (*Query, error) {
	term := strings.TrimSpace(p.Q)
	if term == "" || utf8.RuneCountInString(term) < b.config.MinSearchLength {
		return nil, invalid(ParamQ, "Invalid search query: `%s`", p.Q)
	}
	q, err := b.base(p.BaseParams, authenticated)
	if err != nil {
		return nil, err
	}
	q.search = term
	q.countries = lo.Uniq(p.Countries)
	return q, nil
}

func (b *Builder) base(p BaseParams, authenticated bool) (*Query, error) {
	if problems := p.Problems(); len(problems) > 0 {
		return nil, failure.New(
			errors.ErrInvalidArgument,
			failure.Message("Invalid parameters: "+strings.Join(problems, "; ")),
		)
	}

	q := &Query{page: 1, limit: b.config.DefaultLimit}
	if p.Page != 0 {
		if p.Page < 1 {
			return nil, invalid(ParamPage, "Invalid page: `%d`, must be >= 1", p.Page)
		}
		q.page = p.Page
	}
	if p.Limit != 0 {
		if p.Limit < 0 {
			return nil, invalid(ParamLimit, "Invalid limit: `%d`, must be > 0", p.Limit)
		}
		q.limit = p.Limit
	}
	if !authenticated && q.limit > b.config.DefaultLimit {
		q.limit = b.config.DefaultLimit
	}
	if q.limit <= 0 {
		return nil, invalid(ParamLimit, "Invalid limit: `%d`, must be > 0", q.limit)
	}
	if q.limit > MaxWindow || q.page > MaxWindow/q.limit {
		return nil, invalid(ParamPage, "Invalid page: `%d` with limit `%d`, page × limit must be <= %d", q.page, q.limit, MaxWindow)
	}

	for _, name := range p.Datasets {
		if !slices.Contains(b.datasets, name) {
			return nil, invalid(ParamDataset, "Invalid dataset: `%s`", name)
		}
	}
	q.datasets = lo.Uniq(p.Datasets)

	if p.Schema != "" {
		if _, ok := b.model.Get(p.Schema); !ok {
			return nil, invalid(ParamSchema, "Invalid schema: `%s`", p.Schema)
		}
		q.schema = &SchemaFilter{
			Name:               p.Schema,
			IncludeDescendants: p.IncludeDescendants,
			IncludeMatchable:   p.IncludeMatchable,
		}
		schemata := []string{p.Schema}
		if p.IncludeDescendants {
			schemata = append(schemata, b.model.Descendants(p.Schema)...)
		}
		if p.IncludeMatchable {
			schemata = append(schemata, b.model.Matchable(p.Schema)...)
		}
		q.schemata = lo.Uniq(schemata)
	}
	return q, nil
}

func (b *Builder) filter(q *Query, raw RawFilter) (Filter, error) {
	prop, op := splitKey(raw.Key)
	if !b.model.HasProperty(prop) {
		return Filter{}, invalid(raw.Key, "Invalid filter property: `%s`", prop)
	}
	if !op.Valid() {
		return Filter{}, invalid(raw.Key, "Invalid filter operator: `%s`", op)
	}
	values := nonEmpty(raw.Values)
	if len(values) == 0 {
		return Filter{}, invalid(raw.Key, "Missing value for filter `%s`", raw.Key)
	}
	f := Filter{
		Property: prop,
		Operator: op,
		Values:   lo.Uniq(values),
	}
	switch {
	case op == OpEq && len(f.Values) > 1:
		f.Operator = OpIn
	case op == OpNull:
		isNull, err := ParseBool(values[len(values)-1], true)
		if err != nil {
			return Filter{}, invalid(raw.Key, "Invalid value for `%s`: %s", raw.Key, err)
		}
		f.IsNull = isNull
	case op.Comparison():
		f.Numeric = b.propertyType(q, prop) == model.TypeNumber
	}
	return f, nil
}

// propertyType resolves the type of prop on the filtered schema when there
// is one, any definition otherwise.
func (b *Builder) propertyType(q *Query, prop string) model.PropertyType {
	schema := ""
	if q.schema != nil {
		schema = q.schema.Name
	}
	return b.model.PropertyType(schema, prop)
}

func invalid(param, format string, args ...any) error {
	return failure.New(
		errors.ErrInvalidArgument,
		failure.Message(fmt.Sprintf(format, args...)),
		failure.Context{"param": param},
	)
}
