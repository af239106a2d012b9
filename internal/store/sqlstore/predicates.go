package sqlstore

import (
	"fmt"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"
	"github.com/takatori/ftmq-api/internal/model"
	"github.com/takatori/ftmq-api/internal/query"
)

// membership renders "column [NOT] IN (sel)".
type membership struct {
	column string
	not    bool
	sel    sq.SelectBuilder
}

func (m membership) ToSql() (string, []any, error) {
	sql, args, err := m.sel.ToSql()
	if err != nil {
		return "", nil, err
	}
	op := "IN"
	if m.not {
		op = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", m.column, op, sql), args, nil
}

// canonicalIDs selects the canonical ids of statements matching conds within
// the scope of the store.
func (s *Store) canonicalIDs(conds ...sq.Sqlizer) sq.SelectBuilder {
	sel := s.scoped(s.sq.Select("canonical_id").From("statement"), "dataset")
	for _, cond := range conds {
		sel = sel.Where(cond)
	}
	return sel
}

// having matches entities with at least one statement matching conds.
func (s *Store) having(conds ...sq.Sqlizer) sq.Sqlizer {
	return membership{column: "canonical_id", sel: s.canonicalIDs(conds...)}
}

// lacking matches entities without any statement matching conds.
func (s *Store) lacking(conds ...sq.Sqlizer) sq.Sqlizer {
	return membership{column: "canonical_id", not: true, sel: s.canonicalIDs(conds...)}
}

// predicates translates the entity level filters of q. A nil query matches
// everything.
func (s *Store) predicates(q *query.Query) []sq.Sqlizer {
	if q == nil {
		return nil
	}
	var preds []sq.Sqlizer
	if datasets := q.Datasets(); len(datasets) > 0 {
		preds = append(preds, s.having(sq.Eq{"dataset": datasets}))
	}
	if schemata := q.Schemata(); len(schemata) > 0 {
		preds = append(preds, s.having(sq.Eq{"schema": schemata}))
	}
	if id := q.Reverse(); id != "" {
		preds = append(preds, s.having(sq.Eq{"prop_type": string(model.TypeEntity), "value": id}))
	}
	if term := q.Search(); term != "" {
		preds = append(preds, s.having(
			sq.Eq{"prop_type": string(model.TypeName)},
			sq.Expr("instr(lower(value), lower(?)) > 0", term),
		))
	}
	if countries := q.Countries(); len(countries) > 0 {
		preds = append(preds, s.having(sq.Eq{"prop_type": string(model.TypeCountry), "value": countries}))
	}
	for _, f := range q.Filters() {
		preds = append(preds, s.filter(f)...)
	}
	return preds
}

func (s *Store) filter(f query.Filter) []sq.Sqlizer {
	prop := sq.Eq{"prop": f.Property}
	switch f.Operator {
	case query.OpEq, query.OpIn:
		return []sq.Sqlizer{s.having(prop, sq.Eq{"value": f.Values})}
	case query.OpNot, query.OpNotIn:
		return []sq.Sqlizer{s.lacking(prop, sq.Eq{"value": f.Values})}
	case query.OpNull:
		if f.IsNull {
			return []sq.Sqlizer{s.lacking(prop)}
		}
		return []sq.Sqlizer{s.having(prop)}
	}
	preds := make([]sq.Sqlizer, 0, len(f.Values))
	for _, v := range f.Values {
		preds = append(preds, s.having(prop, compare(f, v)))
	}
	return preds
}

var comparisons = map[query.Operator]string{
	query.OpGt:  ">",
	query.OpGte: ">=",
	query.OpLt:  "<",
	query.OpLte: "<=",
}

func compare(f query.Filter, v string) sq.Sqlizer {
	switch f.Operator {
	case query.OpLike:
		return sq.Like{"value": v}
	case query.OpILike:
		return sq.Expr("lower(value) LIKE lower(?)", v)
	case query.OpStartsWith:
		return sq.Expr("substr(value, 1, ?) = ?", utf8.RuneCountInString(v), v)
	case query.OpEndsWith:
		return sq.Expr("substr(value, -?) = ?", utf8.RuneCountInString(v), v)
	}
	op := comparisons[f.Operator]
	if f.Numeric {
		return sq.Expr(fmt.Sprintf("CAST(value AS NUMERIC) %s CAST(? AS NUMERIC)", op), v)
	}
	return sq.Expr(fmt.Sprintf("value %s ?", op), v)
}

// firstValue selects the first value of prop of the entity in the outer
// statement row aliased s, by statement order.
func (s *Store) firstValue(prop string) (string, []any) {
	clause := "(SELECT x.value FROM statement x WHERE x.canonical_id = s.canonical_id AND x.prop = ?"
	args := []any{prop}
	if s.scope != "" {
		clause += " AND x.dataset = ?"
		args = append(args, s.scope)
	}
	return clause + " ORDER BY x.id LIMIT 1)", args
}

// window selects the canonical ids of the page window of q in order. Without
// a sort key entities are ordered by canonical id. Numeric sort keys cast the
// first value; values that do not cast sort as 0.
func (s *Store) window(q *query.Query) sq.SelectBuilder {
	sel := s.scoped(s.sq.Select("s.canonical_id").From("statement s"), "s.dataset")
	for _, pred := range s.predicates(q) {
		sel = sel.Where(pred)
	}
	sel = sel.GroupBy("s.canonical_id")
	if sort, ok := q.Sort(); ok {
		expr, args := s.firstValue(sort.Property)
		if sort.Numeric {
			expr = "CAST(" + expr + " AS NUMERIC)"
		}
		dir := "ASC"
		if !sort.Ascending {
			dir = "DESC"
		}
		sel = sel.OrderByClause(expr+" "+dir, args...)
	}
	return sel.OrderBy("s.canonical_id").
		Limit(uint64(q.Limit())).
		Offset(uint64(q.Offset()))
}
