// Package store defines the read contract of the entity store.
package store

import (
	"context"
	"iter"

	"github.com/takatori/ftmq-api/internal/model"
	"github.com/takatori/ftmq-api/internal/query"
)

// Scored is an entity with a relevance score in [0, 1].
type Scored struct {
	Entity *model.Entity
	Score  float64
}

// Aggregations holds the results of an aggregation plan. Values are float64
// for numeric results, int64 for counts and string for min/max over non
// numeric properties. A nil value means there was nothing to aggregate.
type Aggregations struct {
	// Values maps function -> property -> value.
	Values map[query.Func]map[string]any
	// Groups maps group property -> function -> property -> group value -> value.
	Groups map[string]map[query.Func]map[string]map[string]any
}

// Store is the read interface over a statement based entity store. A Store
// is safe for concurrent use.
type Store interface {
	// Entities streams the entities inside the page window of q.
	Entities(ctx context.Context, q *query.Query) iter.Seq2[*model.Entity, error]
	// Count returns the number of entities matching q, ignoring the window.
	Count(ctx context.Context, q *query.Query) (int, error)
	// Entity returns the entity stored under the canonical id, or a NotFound
	// error.
	Entity(ctx context.Context, id string) (*model.Entity, error)
	// Canonical resolves id through the linker. Unknown ids resolve to
	// themselves.
	Canonical(ctx context.Context, id string) (string, error)
	// Stats summarizes the entities matching q, or the whole store when q is
	// nil.
	Stats(ctx context.Context, q *query.Query) (*model.Stats, error)
	// Aggregations computes the aggregation plan of q over all matching
	// entities.
	Aggregations(ctx context.Context, q *query.Query) (*Aggregations, error)
	// Adjacents returns the entities referenced by or referencing any of the
	// given entities.
	Adjacents(ctx context.Context, entities []*model.Entity) ([]model.Adjacency, error)
	// Similar ranks entities sharing names or identifiers with id.
	Similar(ctx context.Context, id string, limit int) ([]Scored, error)
	// Datasets lists the dataset names present in the store.
	Datasets(ctx context.Context) ([]string, error)
	// Scope returns a view of the store restricted to one dataset. An empty
	// name removes the restriction.
	Scope(dataset string) Store
	Ping(ctx context.Context) error
	Close() error
}

// Collect drains an entity stream.
func Collect(seq iter.Seq2[*model.Entity, error]) ([]*model.Entity, error) {
	var entities []*model.Entity
	for e, err := range seq {
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}
