// Package model holds the schema taxonomy and the entity representation
// shared by the store, search engines and the response layer.
package model

import (
	_ "embed"
	"fmt"
	"slices"
	"sort"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

//go:embed schemata.yaml
var defaultSchemata []byte

type PropertyType string

const (
	TypeName       PropertyType = "name"
	TypeString     PropertyType = "string"
	TypeText       PropertyType = "text"
	TypeNumber     PropertyType = "number"
	TypeDate       PropertyType = "date"
	TypeCountry    PropertyType = "country"
	TypeEntity     PropertyType = "entity"
	TypeIdentifier PropertyType = "identifier"
	TypeEmail      PropertyType = "email"
	TypePhone      PropertyType = "phone"
	TypeURL        PropertyType = "url"
	TypeAddress    PropertyType = "address"
	TypeTopic      PropertyType = "topic"
	TypeGender     PropertyType = "gender"
)

type Property struct {
	Name    string       `yaml:"-" json:"name"`
	Label   string       `yaml:"label" json:"label"`
	Type    PropertyType `yaml:"type" json:"type"`
	Range   string       `yaml:"range,omitempty" json:"range,omitempty"`
	Reverse string       `yaml:"reverse,omitempty" json:"reverse,omitempty"`
}

type Schema struct {
	Name       string               `yaml:"name"`
	Label      string               `yaml:"label"`
	Plural     string               `yaml:"plural"`
	Extends    []string             `yaml:"extends"`
	Abstract   bool                 `yaml:"abstract"`
	Matchable  bool                 `yaml:"matchable"`
	Caption    []string             `yaml:"caption"`
	Featured   []string             `yaml:"featured"`
	Properties map[string]*Property `yaml:"properties"`

	// resolved by the model
	ancestors []string
	props     map[string]*Property
}

// Model is the immutable schema taxonomy. It is safe for concurrent use.
type Model struct {
	schemata map[string]*Schema
	names    []string
}

// NewModel parses a yaml list of schemata and resolves inheritance.
func NewModel(data []byte) (*Model, error) {
	var schemata []*Schema
	if err := yaml.Unmarshal(data, &schemata); err != nil {
		return nil, fmt.Errorf("failed to parse schemata: %w", err)
	}
	m := &Model{schemata: make(map[string]*Schema, len(schemata))}
	for _, s := range schemata {
		if _, exists := m.schemata[s.Name]; exists {
			return nil, fmt.Errorf("duplicate schema %q", s.Name)
		}
		for name, p := range s.Properties {
			p.Name = name
		}
		m.schemata[s.Name] = s
		m.names = append(m.names, s.Name)
	}
	sort.Strings(m.names)
	for _, s := range schemata {
		ancestors, err := m.resolveAncestors(s, nil)
		if err != nil {
			return nil, err
		}
		s.ancestors = ancestors
	}
	for _, s := range schemata {
		s.props = make(map[string]*Property)
		// nearest definition wins, ancestors are ordered self first
		for i := len(s.ancestors) - 1; i >= 0; i-- {
			for name, p := range m.schemata[s.ancestors[i]].Properties {
				s.props[name] = p
			}
		}
	}
	return m, nil
}

var defaultModel = lo.Must(NewModel(defaultSchemata))

// Default returns the embedded taxonomy.
func Default() *Model {
	return defaultModel
}

func (m *Model) resolveAncestors(s *Schema, seen []string) ([]string, error) {
	if slices.Contains(seen, s.Name) {
		return nil, fmt.Errorf("schema inheritance cycle at %q", s.Name)
	}
	seen = append(seen, s.Name)
	result := []string{s.Name}
	for _, parent := range s.Extends {
		ps, ok := m.schemata[parent]
		if !ok {
			return nil, fmt.Errorf("schema %q extends unknown schema %q", s.Name, parent)
		}
		ancestors, err := m.resolveAncestors(ps, seen)
		if err != nil {
			return nil, err
		}
		result = append(result, ancestors...)
	}
	return lo.Uniq(result), nil
}

// Names returns all schema names, sorted.
func (m *Model) Names() []string {
	return slices.Clone(m.names)
}

func (m *Model) Get(name string) (*Schema, bool) {
	s, ok := m.schemata[name]
	return s, ok
}

// IsA reports whether schema name is parent or one of its descendants.
func (m *Model) IsA(name, parent string) bool {
	s, ok := m.schemata[name]
	if !ok {
		return false
	}
	return slices.Contains(s.ancestors, parent)
}

// Descendants returns all schemata extending name, directly or not.
func (m *Model) Descendants(name string) []string {
	return lo.Filter(m.names, func(other string, _ int) bool {
		return other != name && m.IsA(other, name)
	})
}

// Matchable returns the schemata an entity of the given schema can
// reasonably be compared with: matchable ancestors and descendants.
func (m *Model) Matchable(name string) []string {
	s, ok := m.schemata[name]
	if !ok || !s.Matchable {
		return nil
	}
	candidates := append(slices.Clone(s.ancestors), m.Descendants(name)...)
	result := lo.Filter(candidates, func(c string, _ int) bool {
		return m.schemata[c].Matchable
	})
	sort.Strings(result)
	return lo.Uniq(result)
}

// Property looks up a property on a schema including inherited ones.
func (m *Model) Property(schema, prop string) (*Property, bool) {
	s, ok := m.schemata[schema]
	if !ok {
		return nil, false
	}
	p, ok := s.props[prop]
	return p, ok
}

// PropertyByName returns the first definition of prop found in any schema.
func (m *Model) PropertyByName(prop string) (*Property, bool) {
	for _, name := range m.names {
		if p, ok := m.schemata[name].Properties[prop]; ok {
			return p, true
		}
	}
	return nil, false
}

// HasProperty reports whether any schema defines prop.
func (m *Model) HasProperty(prop string) bool {
	_, ok := m.PropertyByName(prop)
	return ok
}

// PropertyType resolves the type of prop, preferring the definition on the
// given schema when there is one.
func (m *Model) PropertyType(schema, prop string) PropertyType {
	if p, ok := m.Property(schema, prop); ok {
		return p.Type
	}
	if p, ok := m.PropertyByName(prop); ok {
		return p.Type
	}
	return TypeString
}

// CaptionProperties returns the caption properties of a schema, falling back
// to the first ancestor that defines some.
func (m *Model) CaptionProperties(schema string) []string {
	return m.inherited(schema, func(s *Schema) []string { return s.Caption })
}

// FeaturedProperties returns the featured properties of a schema, falling
// back to the first ancestor that defines some.
func (m *Model) FeaturedProperties(schema string) []string {
	return m.inherited(schema, func(s *Schema) []string { return s.Featured })
}

func (m *Model) inherited(schema string, get func(*Schema) []string) []string {
	s, ok := m.schemata[schema]
	if !ok {
		return nil
	}
	for _, name := range s.ancestors {
		if values := get(m.schemata[name]); len(values) > 0 {
			return values
		}
	}
	return nil
}

// Common returns the most specific schema that is a descendant (or equal) of
// all given schemata. Statements of a merged entity may carry different
// schemata; the first one wins when they do not share a lineage.
func (m *Model) Common(schemata []string) string {
	schemata = lo.Uniq(schemata)
	if len(schemata) == 0 {
		return ""
	}
	for _, candidate := range schemata {
		if lo.EveryBy(schemata, func(other string) bool { return m.IsA(candidate, other) }) {
			return candidate
		}
	}
	return schemata[0]
}

// Label returns the schema label, or the name for unknown schemata.
func (m *Model) Label(schema string) string {
	if s, ok := m.schemata[schema]; ok {
		return s.Label
	}
	return schema
}
