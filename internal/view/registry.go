package view

import (
	"context"

	"github.com/takatori/ftmq-api/internal/catalog"
	"github.com/takatori/ftmq-api/internal/lazy"
	"github.com/takatori/ftmq-api/internal/model"
	"github.com/takatori/ftmq-api/internal/store"
)

// Registry creates one View per dataset on first use and keeps it for the
// lifetime of the process.
type Registry struct {
	views *lazy.Map[string, *View]
}

// NewRegistry validates dataset names against the catalog returned by
// catalogOf.
func NewRegistry(
	m *model.Model,
	s store.Store,
	catalogOf func(ctx context.Context) (*catalog.Catalog, error),
	similarLimit int,
) *Registry {
	return &Registry{
		views: lazy.NewMap(func(ctx context.Context, dataset string) (*View, error) {
			if dataset != "" {
				c, err := catalogOf(ctx)
				if err != nil {
					return nil, err
				}
				if _, err := c.Lookup(dataset); err != nil {
					return nil, err
				}
			}
			return New(m, s, dataset, similarLimit), nil
		}),
	}
}

// Get returns the view of dataset, or the view over the whole store for an
// empty name. Unknown datasets fail with a NotFound error.
func (r *Registry) Get(ctx context.Context, dataset string) (*View, error) {
	return r.views.Get(ctx, dataset)
}
