// Package view executes structured queries against the entity store within
// an optional dataset scope and shapes the returned entities.
package view

import (
	"context"
	"fmt"
	"iter"

	"github.com/morikuni/failure/v2"
	"github.com/takatori/ftmq-api/internal/errors"
	"github.com/takatori/ftmq-api/internal/model"
	"github.com/takatori/ftmq-api/internal/query"
	"github.com/takatori/ftmq-api/internal/store"
)

// Resolution tells whether a requested entity id was served as is or
// resolved to the entity it was merged into.
type Resolution int

const (
	Resolved Resolution = iota
	Merged
)

func (r Resolution) String() string {
	switch r {
	case Resolved:
		return "resolved"
	case Merged:
		return "merged"
	}
	return fmt.Sprintf("Resolution(%d)", int(r))
}

// View holds no request state and is safe for concurrent use.
type View struct {
	dataset      string
	model        *model.Model
	store        store.Store
	similarLimit int
}

// New binds a view to dataset. An empty dataset spans the whole store.
func New(m *model.Model, s store.Store, dataset string, similarLimit int) *View {
	return &View{
		dataset:      dataset,
		model:        m,
		store:        s.Scope(dataset),
		similarLimit: similarLimit,
	}
}

func (v *View) Dataset() string {
	return v.dataset
}

// GetEntity resolves id to its canonical entity. When the canonical id is
// not stored, the entity is looked up under id itself.
func (v *View) GetEntity(ctx context.Context, id string, p RetrieveParams) (*model.Entity, Resolution, error) {
	canonical, err := v.store.Canonical(ctx, id)
	if err != nil {
		return nil, Resolved, err
	}
	e, err := v.store.Entity(ctx, canonical)
	if failure.Is(err, errors.ErrNotFound) && canonical != id {
		e, err = v.store.Entity(ctx, id)
	}
	if failure.Is(err, errors.ErrNotFound) {
		return nil, Resolved, failure.New(
			errors.ErrNotFound,
			failure.Message(fmt.Sprintf("Entity `%s` not found.", id)),
			failure.Context{"id": id, "canonical": canonical, "dataset": v.dataset},
		)
	}
	if err != nil {
		return nil, Resolved, err
	}
	resolution := Resolved
	if e.ID != id {
		resolution = Merged
	}
	return v.reduce(e, p), resolution, nil
}

// GetEntities streams the entities in the page window of q.
func (v *View) GetEntities(ctx context.Context, q *query.Query, p RetrieveParams) iter.Seq2[*model.Entity, error] {
	return func(yield func(*model.Entity, error) bool) {
		for e, err := range v.store.Entities(ctx, q) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(v.reduce(e, p), nil) {
				return
			}
		}
	}
}

// Similar ranks the entities most similar to id, best first.
func (v *View) Similar(ctx context.Context, id string, p RetrieveParams) ([]store.Scored, error) {
	canonical, err := v.store.Canonical(ctx, id)
	if err != nil {
		return nil, err
	}
	scored, err := v.store.Similar(ctx, canonical, v.similarLimit)
	if err != nil {
		return nil, err
	}
	for i := range scored {
		scored[i].Entity = v.reduce(scored[i].Entity, p)
	}
	return scored, nil
}

// Stats summarizes the entities matching q, or the whole scope when q is
// nil.
func (v *View) Stats(ctx context.Context, q *query.Query) (*model.Stats, error) {
	return v.store.Stats(ctx, q)
}

func (v *View) Count(ctx context.Context, q *query.Query) (int, error) {
	return v.store.Count(ctx, q)
}

func (v *View) Aggregations(ctx context.Context, q *query.Query) (*store.Aggregations, error) {
	return v.store.Aggregations(ctx, q)
}

// GetAdjacents returns the entities adjacent to any of entities, dehydrated
// when p.DehydrateNested is set.
func (v *View) GetAdjacents(ctx context.Context, entities []*model.Entity, p RetrieveParams) ([]model.Adjacency, error) {
	adjacents, err := v.store.Adjacents(ctx, entities)
	if err != nil {
		return nil, err
	}
	if p.DehydrateNested {
		for i := range adjacents {
			adjacents[i].Entity = v.model.Dehydrate(adjacents[i].Entity)
		}
	}
	return adjacents, nil
}

func (v *View) reduce(e *model.Entity, p RetrieveParams) *model.Entity {
	switch {
	case p.Dehydrate:
		return v.model.Dehydrate(e)
	case p.Featured:
		return v.model.Featured(e)
	}
	return e
}
