// Package catalog describes the datasets served by the api. A catalog is
// loaded once at startup and never changes for the lifetime of the process.
package catalog

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/morikuni/failure/v2"
	"github.com/samber/lo"
	"github.com/takatori/ftmq-api/internal/errors"
	"github.com/takatori/ftmq-api/internal/infra"
	"github.com/takatori/ftmq-api/internal/model"
	"gopkg.in/yaml.v3"
)

type Publisher struct {
	Name    string `yaml:"name" json:"name"`
	URL     string `yaml:"url,omitempty" json:"url,omitempty"`
	Country string `yaml:"country,omitempty" json:"country,omitempty"`
}

type Dataset struct {
	Name      string       `yaml:"name" json:"name"`
	Title     string       `yaml:"title" json:"title"`
	Summary   string       `yaml:"summary,omitempty" json:"summary,omitempty"`
	URL       string       `yaml:"url,omitempty" json:"url,omitempty"`
	Category  string       `yaml:"category,omitempty" json:"category,omitempty"`
	Publisher *Publisher   `yaml:"publisher,omitempty" json:"publisher,omitempty"`
	UpdatedAt string       `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
	Stats     *model.Stats `yaml:"-" json:"stats,omitempty"`
}

// WithStats returns a copy of d carrying the given stats.
func (d Dataset) WithStats(stats *model.Stats) Dataset {
	d.Stats = stats
	return d
}

type Catalog struct {
	Name     string    `yaml:"name,omitempty" json:"name,omitempty"`
	Title    string    `yaml:"title,omitempty" json:"title,omitempty"`
	Datasets []Dataset `yaml:"datasets" json:"datasets"`
}

// Names returns the dataset names in catalog order.
func (c *Catalog) Names() []string {
	return lo.Map(c.Datasets, func(d Dataset, _ int) string { return d.Name })
}

func (c *Catalog) Get(name string) (Dataset, bool) {
	return lo.Find(c.Datasets, func(d Dataset) bool { return d.Name == name })
}

// Lookup is like Get but fails with a NotFound error naming the dataset.
func (c *Catalog) Lookup(name string) (Dataset, error) {
	d, ok := c.Get(name)
	if !ok {
		return Dataset{}, failure.New(
			errors.ErrNotFound,
			failure.Message(fmt.Sprintf("Dataset `%s` not found.", name)),
			failure.Context{"dataset": name},
		)
	}
	return d, nil
}

func (c *Catalog) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

// FromNames builds a catalog with one bare dataset per name.
func FromNames(names []string) *Catalog {
	names = lo.Uniq(names)
	slices.Sort(names)
	return &Catalog{
		Datasets: lo.Map(names, func(name string, _ int) Dataset {
			return Dataset{Name: name, Title: name}
		}),
	}
}

// Parse decodes a yaml (or json) catalog and validates dataset names.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, failure.Translate(
			err,
			errors.ErrInternal,
			failure.Message("failed to parse catalog"),
		)
	}
	seen := map[string]bool{}
	for i, d := range c.Datasets {
		if d.Name == "" {
			return nil, failure.New(
				errors.ErrInternal,
				failure.Message("catalog dataset without name"),
				failure.Context{"index": fmt.Sprintf("%d", i)},
			)
		}
		if seen[d.Name] {
			return nil, failure.New(
				errors.ErrInternal,
				failure.Message("duplicate dataset name in catalog"),
				failure.Context{"dataset": d.Name},
			)
		}
		seen[d.Name] = true
		if d.Title == "" {
			c.Datasets[i].Title = d.Name
		}
	}
	return &c, nil
}

// Load reads a catalog from a local path or an http(s) url.
func Load(ctx context.Context, uri string, client *infra.HttpClient) (*Catalog, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		data, err = client.GetRaw(ctx, infra.Request{Url: uri})
		if err != nil {
			return nil, failure.Wrap(err, failure.Context{"catalog": uri})
		}
	} else {
		data, err = os.ReadFile(strings.TrimPrefix(uri, "file://"))
		if err != nil {
			return nil, failure.Translate(
				err,
				errors.ErrInternal,
				failure.Message("failed to read catalog"),
				failure.Context{"catalog": uri},
			)
		}
	}
	return Parse(data)
}
