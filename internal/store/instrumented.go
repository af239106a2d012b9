package store

import (
	"context"
	"iter"
	"time"

	"github.com/takatori/ftmq-api/internal/model"
	"github.com/takatori/ftmq-api/internal/query"
)

// Observer receives the duration and outcome of each store operation.
type Observer func(operation string, start time.Time, err error)

type instrumented struct {
	Store
	observe Observer
}

// Instrument reports every operation of s to observe. Scoped stores are
// instrumented too.
func Instrument(s Store, observe Observer) Store {
	return &instrumented{Store: s, observe: observe}
}

func (s *instrumented) Entities(ctx context.Context, q *query.Query) iter.Seq2[*model.Entity, error] {
	return func(yield func(*model.Entity, error) bool) {
		start := time.Now()
		var failed error
		defer func() { s.observe("entities", start, failed) }()
		for e, err := range s.Store.Entities(ctx, q) {
			if err != nil {
				failed = err
			}
			if !yield(e, err) {
				return
			}
		}
	}
}

func (s *instrumented) Count(ctx context.Context, q *query.Query) (n int, err error) {
	defer func(start time.Time) { s.observe("count", start, err) }(time.Now())
	return s.Store.Count(ctx, q)
}

func (s *instrumented) Entity(ctx context.Context, id string) (e *model.Entity, err error) {
	defer func(start time.Time) { s.observe("entity", start, err) }(time.Now())
	return s.Store.Entity(ctx, id)
}

func (s *instrumented) Canonical(ctx context.Context, id string) (canonical string, err error) {
	defer func(start time.Time) { s.observe("canonical", start, err) }(time.Now())
	return s.Store.Canonical(ctx, id)
}

func (s *instrumented) Stats(ctx context.Context, q *query.Query) (stats *model.Stats, err error) {
	defer func(start time.Time) { s.observe("stats", start, err) }(time.Now())
	return s.Store.Stats(ctx, q)
}

func (s *instrumented) Aggregations(ctx context.Context, q *query.Query) (aggs *Aggregations, err error) {
	defer func(start time.Time) { s.observe("aggregations", start, err) }(time.Now())
	return s.Store.Aggregations(ctx, q)
}

func (s *instrumented) Adjacents(ctx context.Context, entities []*model.Entity) (adjacents []model.Adjacency, err error) {
	defer func(start time.Time) { s.observe("adjacents", start, err) }(time.Now())
	return s.Store.Adjacents(ctx, entities)
}

func (s *instrumented) Similar(ctx context.Context, id string, limit int) (scored []Scored, err error) {
	defer func(start time.Time) { s.observe("similar", start, err) }(time.Now())
	return s.Store.Similar(ctx, id, limit)
}

func (s *instrumented) Scope(dataset string) Store {
	return Instrument(s.Store.Scope(dataset), s.observe)
}
