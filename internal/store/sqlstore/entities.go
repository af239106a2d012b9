package sqlstore

import (
	"context"
	"database/sql"
	"iter"
	"slices"

	sq "github.com/Masterminds/squirrel"
	"github.com/samber/lo"
	"github.com/takatori/ftmq-api/internal/model"
	"github.com/takatori/ftmq-api/internal/query"
	"github.com/takatori/ftmq-api/internal/store"
)

// SQLite limits the number of host parameters per statement.
const loadChunkSize = 500

func (s *Store) Entities(ctx context.Context, q *query.Query) iter.Seq2[*model.Entity, error] {
	return func(yield func(*model.Entity, error) bool) {
		var ids []string
		err := s.each(ctx, "entities", s.window(q), func(rows *sql.Rows) error {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
			return nil
		})
		if err != nil {
			yield(nil, err)
			return
		}
		entities, err := s.load(ctx, ids)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, id := range ids {
			e, ok := entities[id]
			if !ok {
				continue
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (s *Store) Count(ctx context.Context, q *query.Query) (int, error) {
	sel := s.scoped(s.sq.Select("COUNT(DISTINCT canonical_id)").From("statement"), "dataset")
	for _, pred := range s.predicates(q) {
		sel = sel.Where(pred)
	}
	var n int
	err := s.row(ctx, "count", sel, &n)
	return n, err
}

type assembly struct {
	entity   *model.Entity
	schemata []string
}

// load assembles the entities with the given canonical ids from their
// statements. Unknown ids are missing from the result.
func (s *Store) load(ctx context.Context, ids []string) (map[string]*model.Entity, error) {
	assemblies := map[string]*assembly{}
	for _, chunk := range lo.Chunk(lo.Uniq(ids), loadChunkSize) {
		sel := s.scoped(
			s.sq.Select("canonical_id", "entity_id", "schema", "dataset", "prop", "value").
				From("statement").
				Where(sq.Eq{"canonical_id": chunk}),
			"dataset",
		).OrderBy("canonical_id", "id")
		err := s.each(ctx, "load", sel, func(rows *sql.Rows) error {
			var canonicalID, entityID, schema, dataset, prop, value string
			if err := rows.Scan(&canonicalID, &entityID, &schema, &dataset, &prop, &value); err != nil {
				return err
			}
			a, ok := assemblies[canonicalID]
			if !ok {
				a = &assembly{entity: &model.Entity{
					ID:         canonicalID,
					Properties: map[string][]string{},
				}}
				assemblies[canonicalID] = a
			}
			a.schemata = append(a.schemata, schema)
			a.entity.Datasets = append(a.entity.Datasets, dataset)
			if entityID != canonicalID {
				a.entity.Referents = append(a.entity.Referents, entityID)
			}
			if prop != idProp {
				a.entity.Add(prop, value)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	entities := make(map[string]*model.Entity, len(assemblies))
	for id, a := range assemblies {
		e := a.entity
		e.Schema = s.model.Common(a.schemata)
		e.Datasets = sortedUniq(e.Datasets)
		e.Referents = sortedUniq(e.Referents)
		e.Caption = s.model.MakeCaption(e)
		entities[id] = e
	}
	return entities, nil
}

func sortedUniq(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	values = lo.Uniq(values)
	slices.Sort(values)
	return values
}

// Adjacents resolves entity references in both directions. Outgoing
// adjacents are keyed by the referencing property, incoming ones by the
// reverse name of the property pointing at the entity.
func (s *Store) Adjacents(ctx context.Context, entities []*model.Entity) ([]model.Adjacency, error) {
	type edge struct {
		subject, property, value, target string
	}
	var edges []edge

	for _, e := range entities {
		for prop, values := range e.Properties {
			if s.model.PropertyType(e.Schema, prop) != model.TypeEntity {
				continue
			}
			for _, v := range values {
				target, err := s.Canonical(ctx, v)
				if err != nil {
					return nil, err
				}
				edges = append(edges, edge{subject: e.ID, property: prop, value: v, target: target})
			}
		}
	}

	for _, e := range entities {
		refs := append([]string{e.ID}, e.Referents...)
		sel := s.scoped(
			s.sq.Select("DISTINCT canonical_id", "schema", "prop").
				From("statement").
				Where(sq.Eq{"prop_type": string(model.TypeEntity), "value": refs}),
			"dataset",
		).OrderBy("canonical_id", "prop")
		err := s.each(ctx, "adjacents", sel, func(rows *sql.Rows) error {
			var source, schema, prop string
			if err := rows.Scan(&source, &schema, &prop); err != nil {
				return err
			}
			name := prop
			if p, ok := s.model.Property(schema, prop); ok && p.Reverse != "" {
				name = p.Reverse
			}
			edges = append(edges, edge{subject: e.ID, property: name, target: source})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	edges = lo.Uniq(edges)
	loaded, err := s.load(ctx, lo.Map(edges, func(e edge, _ int) string { return e.target }))
	if err != nil {
		return nil, err
	}
	adjacents := make([]model.Adjacency, 0, len(edges))
	for _, e := range edges {
		target, ok := loaded[e.target]
		if !ok || e.target == e.subject {
			continue
		}
		adjacents = append(adjacents, model.Adjacency{
			SubjectID: e.subject,
			Property:  e.property,
			Value:     e.value,
			Entity:    target,
		})
	}
	return adjacents, nil
}

var similarityTypes = []string{
	string(model.TypeName),
	string(model.TypeIdentifier),
	string(model.TypeEmail),
	string(model.TypePhone),
}

// Similar ranks entities of a matchable schema by the share of name,
// identifier, email and phone values they have in common with the entity.
func (s *Store) Similar(ctx context.Context, id string, limit int) ([]store.Scored, error) {
	source, err := s.Entity(ctx, id)
	if err != nil {
		return nil, err
	}
	matchable := s.model.Matchable(source.Schema)
	if len(matchable) == 0 {
		return nil, nil
	}
	var values []string
	for prop, vs := range source.Properties {
		if slices.Contains(similarityTypes, string(s.model.PropertyType(source.Schema, prop))) {
			values = append(values, vs...)
		}
	}
	values = lo.Uniq(values)
	if len(values) == 0 {
		return nil, nil
	}

	sel := s.scoped(
		s.sq.Select("canonical_id", "COUNT(DISTINCT value) AS shared").
			From("statement").
			Where(sq.Eq{"prop_type": similarityTypes, "value": values}).
			Where(sq.NotEq{"canonical_id": source.ID}).
			Where(s.having(sq.Eq{"schema": matchable})),
		"dataset",
	).GroupBy("canonical_id").
		OrderBy("shared DESC", "canonical_id").
		Limit(uint64(limit))

	type candidate struct {
		id     string
		shared int
	}
	var candidates []candidate
	err = s.each(ctx, "similar", sel, func(rows *sql.Rows) error {
		var c candidate
		if err := rows.Scan(&c.id, &c.shared); err != nil {
			return err
		}
		candidates = append(candidates, c)
		return nil
	})
	if err != nil {
		return nil, err
	}

	loaded, err := s.load(ctx, lo.Map(candidates, func(c candidate, _ int) string { return c.id }))
	if err != nil {
		return nil, err
	}
	scored := make([]store.Scored, 0, len(candidates))
	for _, c := range candidates {
		e, ok := loaded[c.id]
		if !ok {
			continue
		}
		scored = append(scored, store.Scored{
			Entity: e,
			Score:  float64(c.shared) / float64(len(values)),
		})
	}
	return scored, nil
}
