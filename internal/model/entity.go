package model

import (
	"slices"

	"github.com/samber/lo"
)

// Entity is a typed node of the graph. All property values are strings,
// numeric and date semantics only exist at query time.
type Entity struct {
	ID         string              `json:"id"`
	Schema     string              `json:"schema"`
	Caption    string              `json:"caption"`
	Properties map[string][]string `json:"properties"`
	Datasets   []string            `json:"datasets,omitempty"`
	Referents  []string            `json:"referents,omitempty"`
}

func (e *Entity) Get(prop string) []string {
	return e.Properties[prop]
}

// First returns the first value of prop, or "".
func (e *Entity) First(prop string) string {
	if values := e.Properties[prop]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// Add appends values to prop, skipping empty and duplicate values.
func (e *Entity) Add(prop string, values ...string) {
	if e.Properties == nil {
		e.Properties = make(map[string][]string)
	}
	for _, v := range values {
		if v == "" || slices.Contains(e.Properties[prop], v) {
			continue
		}
		e.Properties[prop] = append(e.Properties[prop], v)
	}
}

// Clone returns a deep copy.
func (e *Entity) Clone() *Entity {
	c := *e
	c.Properties = make(map[string][]string, len(e.Properties))
	for k, v := range e.Properties {
		c.Properties[k] = slices.Clone(v)
	}
	c.Datasets = slices.Clone(e.Datasets)
	c.Referents = slices.Clone(e.Referents)
	return &c
}

// MakeCaption picks the display caption of e: the first value of the first
// populated caption property, the schema label otherwise.
func (m *Model) MakeCaption(e *Entity) string {
	for _, prop := range m.CaptionProperties(e.Schema) {
		if v := e.First(prop); v != "" {
			return v
		}
	}
	return m.Label(e.Schema)
}

// Dehydrate reduces e to id, schema and caption.
func (m *Model) Dehydrate(e *Entity) *Entity {
	caption := e.Caption
	if caption == "" {
		caption = m.MakeCaption(e)
	}
	return &Entity{
		ID:         e.ID,
		Schema:     e.Schema,
		Caption:    caption,
		Properties: map[string][]string{},
	}
}

// Featured reduces e to its caption and the featured properties of its schema.
func (m *Model) Featured(e *Entity) *Entity {
	featured := m.FeaturedProperties(e.Schema)
	reduced := m.Dehydrate(e)
	reduced.Datasets = slices.Clone(e.Datasets)
	reduced.Referents = slices.Clone(e.Referents)
	reduced.Properties = lo.PickByKeys(e.Properties, featured)
	for k, v := range reduced.Properties {
		reduced.Properties[k] = slices.Clone(v)
	}
	return reduced
}

// Adjacency links a subject entity to an adjacent one. Property is the
// property on the subject: the referencing property for outgoing edges, the
// reverse name for incoming ones. Value is the referencing value for
// outgoing edges, which may be a merged away id of Entity, and empty for
// incoming ones.
type Adjacency struct {
	SubjectID string
	Property  string
	Value     string
	Entity    *Entity
}
