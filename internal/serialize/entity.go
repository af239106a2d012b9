// Package serialize shapes view results into response bodies.
package serialize

import (
	"slices"

	"github.com/samber/lo"
	"github.com/takatori/ftmq-api/internal/model"
)

// EntityResponse is an entity whose property values are strings or, for
// inlined adjacents, nested EntityResponse values.
type EntityResponse struct {
	ID         string           `json:"id"`
	Caption    string           `json:"caption"`
	Schema     string           `json:"schema"`
	Properties map[string][]any `json:"properties"`
	Datasets   []string         `json:"datasets"`
	Referents  []string         `json:"referents"`
}

// NewEntityResponse converts e, inlining the adjacents whose subject is e.
// Outgoing references are replaced in place by the referenced entity,
// incoming ones are added under the reverse property name.
func NewEntityResponse(e *model.Entity, adjacents []model.Adjacency) EntityResponse {
	res := EntityResponse{
		ID:         e.ID,
		Caption:    e.Caption,
		Schema:     e.Schema,
		Properties: make(map[string][]any, len(e.Properties)),
		Datasets:   emptyIfNil(e.Datasets),
		Referents:  emptyIfNil(e.Referents),
	}
	for prop, values := range e.Properties {
		res.Properties[prop] = lo.ToAnySlice(values)
	}

	inlined := map[string]bool{}
	for _, a := range adjacents {
		if a.SubjectID != e.ID || a.Entity == nil {
			continue
		}
		nested := NewEntityResponse(a.Entity, nil)
		if a.Value == "" {
			res.Properties[a.Property] = append(res.Properties[a.Property], nested)
			inlined[a.Property] = true
			continue
		}
		values, ok := res.Properties[a.Property]
		if !ok {
			continue
		}
		i := slices.IndexFunc(values, func(v any) bool {
			s, ok := v.(string)
			return ok && s == a.Value
		})
		if i >= 0 {
			values[i] = nested
			inlined[a.Property] = true
		}
	}
	for prop := range inlined {
		res.Properties[prop] = uniqNested(res.Properties[prop])
	}
	return res
}

// uniqNested drops repeated nested entities, as several merged ids may
// resolve to the same entity.
func uniqNested(values []any) []any {
	seen := map[string]bool{}
	return lo.Filter(values, func(v any, _ int) bool {
		nested, ok := v.(EntityResponse)
		if !ok {
			return true
		}
		if seen[nested.ID] {
			return false
		}
		seen[nested.ID] = true
		return true
	})
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
