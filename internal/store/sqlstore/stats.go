package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/takatori/ftmq-api/internal/model"
	"github.com/takatori/ftmq-api/internal/query"
	"github.com/takatori/ftmq-api/internal/store"
)

// matching selects the statements of all entities matching q, without the
// page window.
func (s *Store) matching(q *query.Query, columns ...string) sq.SelectBuilder {
	sel := s.scoped(s.sq.Select(columns...).From("statement"), "dataset")
	for _, pred := range s.predicates(q) {
		sel = sel.Where(pred)
	}
	return sel
}

func (s *Store) Stats(ctx context.Context, q *query.Query) (*model.Stats, error) {
	stats := &model.Stats{
		Schemata:  []model.SchemaCount{},
		Countries: []model.CountryCount{},
		Datasets:  []model.DatasetCount{},
	}

	if err := s.row(ctx, "stats", s.matching(q, "COUNT(DISTINCT canonical_id)"), &stats.EntityCount); err != nil {
		return nil, err
	}

	err := s.counts(ctx, s.matching(q, "schema", "COUNT(DISTINCT canonical_id) AS n").GroupBy("schema"),
		func(name string, n int) {
			stats.Schemata = append(stats.Schemata, model.SchemaCount{
				Name:   name,
				Label:  s.model.Label(name),
				Plural: plural(s.model, name),
				Count:  n,
			})
		})
	if err != nil {
		return nil, err
	}

	err = s.counts(ctx, s.matching(q, "value", "COUNT(DISTINCT canonical_id) AS n").
		Where(sq.Eq{"prop_type": string(model.TypeCountry)}).
		GroupBy("value"),
		func(code string, n int) {
			stats.Countries = append(stats.Countries, model.CountryCount{Code: code, Count: n})
		})
	if err != nil {
		return nil, err
	}

	err = s.counts(ctx, s.matching(q, "dataset", "COUNT(DISTINCT canonical_id) AS n").GroupBy("dataset"),
		func(name string, n int) {
			stats.Datasets = append(stats.Datasets, model.DatasetCount{Name: name, Count: n})
		})
	if err != nil {
		return nil, err
	}

	var start, end sql.NullString
	err = s.row(ctx, "stats", s.matching(q, "MIN(value)", "MAX(value)").
		Where(sq.Eq{"prop_type": string(model.TypeDate)}), &start, &end)
	if err != nil {
		return nil, err
	}
	stats.Coverage = model.Coverage{Start: start.String, End: end.String}
	return stats, nil
}

// counts runs a (key, count) grouping, largest groups first.
func (s *Store) counts(ctx context.Context, sel sq.SelectBuilder, f func(string, int)) error {
	return s.each(ctx, "stats", sel.OrderBy("n DESC", "1"), func(rows *sql.Rows) error {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		f(key, n)
		return nil
	})
}

func plural(m *model.Model, name string) string {
	if schema, ok := m.Get(name); ok && schema.Plural != "" {
		return schema.Plural
	}
	return name
}

// Aggregations computes every (function, property) pair of the plan of q
// over all entities matching q. Numeric properties are cast, values that do
// not cast count as 0.
func (s *Store) Aggregations(ctx context.Context, q *query.Query) (*store.Aggregations, error) {
	plan := q.Aggregations()
	result := &store.Aggregations{
		Values: map[query.Func]map[string]any{},
		Groups: map[string]map[query.Func]map[string]map[string]any{},
	}
	if plan.Empty() {
		return result, nil
	}

	for _, pair := range plan.Pairs() {
		sel := s.matching(q, s.aggregate(q, pair, "value")).Where(sq.Eq{"prop": pair.Property})
		var value any
		if err := s.row(ctx, "aggregations", sel, &value); err != nil {
			return nil, err
		}
		if result.Values[pair.Func] == nil {
			result.Values[pair.Func] = map[string]any{}
		}
		result.Values[pair.Func][pair.Property] = normalize(pair.Func, value)
	}

	for _, group := range plan.Groups() {
		result.Groups[group] = map[query.Func]map[string]map[string]any{}
		for _, pair := range plan.Pairs() {
			sel := s.grouped(q, pair, group)
			buckets := map[string]any{}
			err := s.each(ctx, "aggregations", sel, func(rows *sql.Rows) error {
				var (
					key   string
					value any
				)
				if err := rows.Scan(&key, &value); err != nil {
					return err
				}
				buckets[key] = normalize(pair.Func, value)
				return nil
			})
			if err != nil {
				return nil, err
			}
			if result.Groups[group][pair.Func] == nil {
				result.Groups[group][pair.Func] = map[string]map[string]any{}
			}
			result.Groups[group][pair.Func][pair.Property] = buckets
		}
	}
	return result, nil
}

// aggregate renders the aggregate expression of pair over column.
func (s *Store) aggregate(q *query.Query, pair query.Pair, column string) string {
	schema := ""
	if sf, ok := q.Schema(); ok {
		schema = sf.Name
	}
	numeric := s.model.PropertyType(schema, pair.Property) == model.TypeNumber
	cast := fmt.Sprintf("CAST(%s AS NUMERIC)", column)
	switch pair.Func {
	case query.Sum:
		return fmt.Sprintf("TOTAL(%s)", cast)
	case query.Avg:
		return fmt.Sprintf("AVG(%s)", cast)
	case query.Count:
		return fmt.Sprintf("COUNT(DISTINCT %s)", column)
	}
	if numeric {
		column = cast
	}
	return fmt.Sprintf("%s(%s)", map[query.Func]string{query.Min: "MIN", query.Max: "MAX"}[pair.Func], column)
}

// grouped aggregates pair per value of the group property. Entities with
// several group values contribute to each of them.
func (s *Store) grouped(q *query.Query, pair query.Pair, group string) sq.SelectBuilder {
	sel := s.sq.Select("g.value", s.aggregate(q, pair, "a.value")).
		From("statement a").
		Join("statement g ON g.canonical_id = a.canonical_id AND g.prop = ?", group).
		Where(sq.Eq{"a.prop": pair.Property})
	if s.scope != "" {
		sel = sel.Where(sq.Eq{"a.dataset": s.scope, "g.dataset": s.scope})
	}
	matched := s.matching(q, "canonical_id")
	return sel.Where(membership{column: "a.canonical_id", sel: matched}).
		GroupBy("g.value").
		OrderBy("g.value")
}

// normalize converts driver values into the types documented on
// store.Aggregations.
func normalize(f query.Func, v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case int64:
		if f == query.Count {
			return t
		}
		return float64(t)
	}
	return v
}
