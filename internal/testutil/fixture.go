// Package testutil builds the fixture entity store shared by package tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"slices"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"github.com/takatori/ftmq-api/internal/model"
	"github.com/takatori/ftmq-api/internal/store/sqlstore"
)

// Entity is one fixture entity. Entities sharing a Canonical id are merged
// by the store.
type Entity struct {
	ID        string
	Canonical string
	Schema    string
	Dataset   string
	Props     map[string][]string
}

func (e Entity) canonical() string {
	if e.Canonical != "" {
		return e.Canonical
	}
	return e.ID
}

// Datasets are the dataset names of the default fixture.
var Datasets = []string{"ec_meetings", "eu_authorities", "gdho"}

// Entities is the default fixture:
//   - eu_authorities: three public bodies and five events (ev-1 .. ev-5)
//   - ec_meetings: p-1 "Jane Doe" with p-1-old merged into it, p-2
//   - gdho: two organizations, four payments (one with a non numeric amount),
//     p-3 "Jane Doe" and x-orphan, whose linker entry points to a missing entity
var Entities = []Entity{
	{ID: "pb-1", Schema: "PublicBody", Dataset: "eu_authorities", Props: map[string][]string{
		"name": {"European Commission"}, "country": {"eu"}, "legalForm": {"Institution"},
	}},
	{ID: "pb-2", Schema: "PublicBody", Dataset: "eu_authorities", Props: map[string][]string{
		"name": {"European Parliament"}, "country": {"eu"},
	}},
	{ID: "pb-3", Schema: "PublicBody", Dataset: "eu_authorities", Props: map[string][]string{
		"name": {"Council of the European Union"}, "country": {"eu"},
	}},
	{ID: "ev-1", Schema: "Event", Dataset: "eu_authorities", Props: map[string][]string{
		"name": {"Meeting on climate policy"}, "startDate": {"2023-01-10"}, "country": {"be"},
		"organizer": {"pb-1"}, "involved": {"p-1"},
	}},
	{ID: "ev-2", Schema: "Event", Dataset: "eu_authorities", Props: map[string][]string{
		"name": {"Meeting on digital markets"}, "startDate": {"2023-02-14"}, "country": {"be"},
		"organizer": {"pb-1"}, "involved": {"p-1-old"},
	}},
	{ID: "ev-3", Schema: "Event", Dataset: "eu_authorities", Props: map[string][]string{
		"name": {"Meeting on agriculture"}, "startDate": {"2023-03-03"}, "country": {"fr"},
		"organizer": {"pb-2"},
	}},
	{ID: "ev-4", Schema: "Event", Dataset: "eu_authorities", Props: map[string][]string{
		"name": {"Meeting on trade"}, "startDate": {"2023-04-21"}, "country": {"de"},
		"organizer": {"pb-2"},
	}},
	{ID: "ev-5", Schema: "Event", Dataset: "eu_authorities", Props: map[string][]string{
		"name": {"Meeting on energy"}, "startDate": {"2023-05-30"}, "country": {"be"},
		"organizer": {"pb-3"},
	}},
	{ID: "p-1", Schema: "Person", Dataset: "ec_meetings", Props: map[string][]string{
		"name": {"Jane Doe"}, "nationality": {"de"}, "email": {"jane@example.org"},
	}},
	{ID: "p-1-old", Canonical: "p-1", Schema: "Person", Dataset: "ec_meetings", Props: map[string][]string{
		"name": {"Jane Doe"}, "alias": {"J. Doe"}, "birthDate": {"1970-05-01"},
	}},
	{ID: "p-2", Schema: "Person", Dataset: "ec_meetings", Props: map[string][]string{
		"name": {"John Smith"}, "nationality": {"fr"},
	}},
	{ID: "org-1", Schema: "Organization", Dataset: "gdho", Props: map[string][]string{
		"name": {"Aid Foundation"}, "country": {"de"},
	}},
	{ID: "org-2", Schema: "Organization", Dataset: "gdho", Props: map[string][]string{
		"name": {"Relief International"}, "country": {"fr"},
	}},
	{ID: "p-3", Schema: "Person", Dataset: "gdho", Props: map[string][]string{
		"name": {"Jane Doe"}, "country": {"de"}, "email": {"jane@example.org"},
	}},
	{ID: "pay-1", Schema: "Payment", Dataset: "gdho", Props: map[string][]string{
		"amount": {"100"}, "currency": {"EUR"}, "date": {"2022-01-01"}, "payer": {"org-1"}, "beneficiary": {"org-2"},
	}},
	{ID: "pay-2", Schema: "Payment", Dataset: "gdho", Props: map[string][]string{
		"amount": {"2500"}, "currency": {"EUR"}, "date": {"2022-06-15"}, "payer": {"org-1"}, "beneficiary": {"p-3"},
	}},
	{ID: "pay-3", Schema: "Payment", Dataset: "gdho", Props: map[string][]string{
		"amount": {"abc"}, "currency": {"EUR"}, "date": {"2023-01-01"}, "payer": {"org-2"}, "beneficiary": {"org-1"},
	}},
	{ID: "pay-4", Schema: "Payment", Dataset: "gdho", Props: map[string][]string{
		"amount": {"30"}, "currency": {"USD"}, "date": {"2021-12-31"}, "payer": {"org-2"}, "beneficiary": {"p-3"},
	}},
	{ID: "x-orphan", Schema: "Organization", Dataset: "gdho", Props: map[string][]string{
		"name": {"Orphan Organization"},
	}},
}

// Links is the linker table of the default fixture.
var Links = map[string]string{
	"p-1-old":  "p-1",
	"x-orphan": "x-gone",
}

// WriteStore creates a statement store at path.
func WriteStore(tb testing.TB, path string, entities []Entity, links map[string]string) {
	tb.Helper()
	m := model.Default()

	db, err := sql.Open("sqlite", path)
	require.NoError(tb, err)
	defer db.Close()

	ctx := context.Background()
	_, err = db.ExecContext(ctx, sqlstore.DDL)
	require.NoError(tb, err)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(tb, err)

	b := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	insert := func(entity Entity, prop, propType, value string) {
		query, args, err := b.Insert("statement").
			Columns("entity_id", "canonical_id", "schema", "dataset", "prop", "prop_type", "value", "first_seen", "last_seen").
			Values(entity.ID, entity.canonical(), entity.Schema, entity.Dataset, prop, propType, value, "2024-01-01", "2024-06-01").
			ToSql()
		require.NoError(tb, err)
		_, err = tx.ExecContext(ctx, query, args...)
		require.NoError(tb, err)
	}

	for _, e := range entities {
		insert(e, "id", "id", e.ID)
		props := lo.Keys(e.Props)
		slices.Sort(props)
		for _, prop := range props {
			propType := string(m.PropertyType(e.Schema, prop))
			for _, value := range e.Props[prop] {
				insert(e, prop, propType, value)
			}
		}
	}

	ids := lo.Keys(links)
	slices.Sort(ids)
	for _, id := range ids {
		query, args, err := b.Insert("linker").Columns("entity_id", "canonical_id").Values(id, links[id]).ToSql()
		require.NoError(tb, err)
		_, err = tx.ExecContext(ctx, query, args...)
		require.NoError(tb, err)
	}
	require.NoError(tb, tx.Commit())
}

// StorePath writes the default fixture into a temporary directory and
// returns the database path.
func StorePath(tb testing.TB) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "ftmq.db")
	WriteStore(tb, path, Entities, Links)
	return path
}

// OpenStore opens the default fixture read-only. The store is closed when
// the test ends.
func OpenStore(tb testing.TB) *sqlstore.Store {
	tb.Helper()
	s, err := sqlstore.Open(context.Background(), StorePath(tb), model.Default())
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = s.Close() })
	return s
}
