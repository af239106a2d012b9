// Package search defines the full text search contract. Engines are read
// only: the index is built elsewhere from the same statement store.
package search

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"github.com/takatori/ftmq-api/internal/model"
	"github.com/takatori/ftmq-api/internal/query"
)

// Document is the indexed representation of an entity.
type Document struct {
	ID        string   `json:"id"`
	Schema    string   `json:"schema"`
	Caption   string   `json:"caption"`
	Names     []string `json:"names"`
	Countries []string `json:"countries,omitempty"`
	Datasets  []string `json:"datasets"`
}

// NewDocument builds the index document of e.
func NewDocument(m *model.Model, e *model.Entity) Document {
	doc := Document{
		ID:       e.ID,
		Schema:   e.Schema,
		Caption:  e.Caption,
		Datasets: e.Datasets,
	}
	if doc.Caption == "" {
		doc.Caption = m.MakeCaption(e)
	}
	for prop, values := range e.Properties {
		switch m.PropertyType(e.Schema, prop) {
		case model.TypeName:
			doc.Names = append(doc.Names, values...)
		case model.TypeCountry:
			doc.Countries = append(doc.Countries, values...)
		}
	}
	doc.Names = lo.Uniq(doc.Names)
	doc.Countries = lo.Uniq(doc.Countries)
	return doc
}

// Entity returns the dehydrated entity described by d.
func (d Document) Entity() *model.Entity {
	return &model.Entity{
		ID:         d.ID,
		Schema:     d.Schema,
		Caption:    d.Caption,
		Properties: map[string][]string{},
		Datasets:   d.Datasets,
	}
}

type Result struct {
	Entity *model.Entity
	Score  float64
}

type Results struct {
	Total int
	Hits  []Result
}

type Engine interface {
	// Search runs the search term of q restricted by its dataset, schema and
	// country filters within its page window.
	Search(ctx context.Context, q *query.Query) (*Results, error)
	// Autocomplete returns up to limit distinct names containing a word that
	// starts with prefix, compared case-insensitively.
	Autocomplete(ctx context.Context, prefix string, limit int) ([]string, error)
	Close() error
}

// HasWordPrefix reports whether a word of name starts with prefix, ignoring
// case. A prefix of several words must match consecutive words.
func HasWordPrefix(name, prefix string) bool {
	name, prefix = strings.ToLower(name), strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return false
	}
	words := strings.Fields(name)
	for i := range words {
		if strings.HasPrefix(strings.Join(words[i:], " "), prefix) {
			return true
		}
	}
	return false
}
