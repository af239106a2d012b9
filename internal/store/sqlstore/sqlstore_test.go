package sqlstore_test

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/morikuni/failure/v2"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/takatori/ftmq-api/internal/errors"
	"github.com/takatori/ftmq-api/internal/model"
	"github.com/takatori/ftmq-api/internal/query"
	"github.com/takatori/ftmq-api/internal/store"
	"github.com/takatori/ftmq-api/internal/store/sqlstore"
	"github.com/takatori/ftmq-api/internal/testutil"
)

func buildQuery(t *testing.T, raw string) *query.Query {
	t.Helper()
	values, err := url.ParseQuery(raw)
	require.NoError(t, err)
	b := query.NewBuilder(model.Default(), testutil.Datasets, query.BuilderConfig{DefaultLimit: 100, MinSearchLength: 3})
	q, err := b.Build(query.ParseParams(values), false)
	require.NoError(t, err)
	return q
}

func entityIDs(t *testing.T, s store.Store, raw string) []string {
	t.Helper()
	entities, err := store.Collect(s.Entities(context.Background(), buildQuery(t, raw)))
	require.NoError(t, err)
	if len(entities) == 0 {
		return nil
	}
	return lo.Map(entities, func(e *model.Entity, _ int) string { return e.ID })
}

func TestOpen(t *testing.T) {
	_, err := sqlstore.Open(context.Background(), filepath.Join(t.TempDir(), "missing.db"), model.Default())
	require.Error(t, err)

	s := testutil.OpenStore(t)
	require.NoError(t, s.Ping(context.Background()))

	datasets, err := s.Datasets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testutil.Datasets, datasets)
}

func TestEntitiesWindow(t *testing.T) {
	s := testutil.OpenStore(t)

	tests := []struct {
		raw      string
		expected []string
	}{
		{"dataset=eu_authorities&schema=Event", []string{"ev-1", "ev-2", "ev-3", "ev-4", "ev-5"}},
		{"dataset=eu_authorities&schema=Event&limit=1&page=2", []string{"ev-2"}},
		{"schema=Event&limit=2&page=3", []string{"ev-5"}},
		{"schema=Event&limit=2&page=4", nil},
		{"dataset=eu_authorities&limit=3", []string{"ev-1", "ev-2", "ev-3"}},
	}
	for _, test := range tests {
		t.Run(test.raw, func(t *testing.T) {
			assert.Equal(t, test.expected, entityIDs(t, s, test.raw))
		})
	}
}

func TestEntitiesSort(t *testing.T) {
	s := testutil.OpenStore(t)

	tests := []struct {
		raw      string
		expected []string
	}{
		// "abc" does not cast and sorts as 0
		{"schema=Payment&order_by=amount", []string{"pay-3", "pay-4", "pay-1", "pay-2"}},
		{"schema=Payment&order_by=-amount", []string{"pay-2", "pay-1", "pay-4", "pay-3"}},
		{"schema=Event&order_by=-startDate", []string{"ev-5", "ev-4", "ev-3", "ev-2", "ev-1"}},
		{"schema=Event&order_by=-startDate&limit=2&page=2", []string{"ev-3", "ev-2"}},
		{"schema=Payment&order_by=currency", []string{"pay-1", "pay-2", "pay-3", "pay-4"}},
	}
	for _, test := range tests {
		t.Run(test.raw, func(t *testing.T) {
			assert.Equal(t, test.expected, entityIDs(t, s, test.raw))
		})
	}
}

func TestEntitiesFilters(t *testing.T) {
	s := testutil.OpenStore(t)

	tests := []struct {
		raw      string
		expected []string
	}{
		{"name=Jane%20Doe", []string{"p-1", "p-3"}},
		{"name__ilike=%25JANE%25", []string{"p-1", "p-3"}},
		{"name__like=Meeting%25", []string{"ev-1", "ev-2", "ev-3", "ev-4", "ev-5"}},
		{"name__startswith=European", []string{"pb-1", "pb-2"}},
		{"name__endswith=Foundation", []string{"org-1"}},
		{"country=de&country=fr", []string{"ev-3", "ev-4", "org-1", "org-2", "p-3"}},
		{"country__in=eu", []string{"pb-1", "pb-2", "pb-3"}},
		{"schema=Event&country__not=be", []string{"ev-3", "ev-4"}},
		{"schema=Event&country__not_in=be&country__not_in=de", []string{"ev-3"}},
		{"amount__gt=50", []string{"pay-1", "pay-2"}},
		{"amount__lte=100", []string{"pay-1", "pay-3", "pay-4"}},
		{"date__gte=2022-06-01", []string{"pay-2", "pay-3"}},
		{"startDate__gt=2023-01-01&startDate__lt=2023-03-01", []string{"ev-1", "ev-2"}},
		{"email__null=false", []string{"p-1", "p-3"}},
		{"schema=Person&email__null=true", []string{"p-2"}},
		{"reverse=pb-1", []string{"ev-1", "ev-2"}},
		{"q=jane", []string{"p-1", "p-3"}},
		{"dataset=gdho&schema=LegalEntity&schema_include_descendants=true", []string{"org-1", "org-2", "p-3", "x-orphan"}},
		{"dataset=gdho&schema=LegalEntity", nil},
		{"dataset=ec_meetings&dataset=gdho&schema=Person", []string{"p-1", "p-2", "p-3"}},
	}
	for _, test := range tests {
		t.Run(test.raw, func(t *testing.T) {
			assert.Equal(t, test.expected, entityIDs(t, s, test.raw))
		})
	}
}

func TestCount(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()

	n, err := s.Count(ctx, buildQuery(t, "schema=Event&limit=1"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = s.Count(ctx, buildQuery(t, ""))
	require.NoError(t, err)
	assert.Equal(t, 18, n)
}

func TestEntity(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()

	e, err := s.Entity(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", e.ID)
	assert.Equal(t, "Person", e.Schema)
	assert.Equal(t, "Jane Doe", e.Caption)
	assert.Equal(t, []string{"ec_meetings"}, e.Datasets)
	assert.Equal(t, []string{"p-1-old"}, e.Referents)
	assert.Equal(t, map[string][]string{
		"name":        {"Jane Doe"},
		"nationality": {"de"},
		"email":       {"jane@example.org"},
		"alias":       {"J. Doe"},
		"birthDate":   {"1970-05-01"},
	}, e.Properties)

	pay, err := s.Entity(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, "Payment", pay.Schema)
	assert.Equal(t, "100", pay.Caption)
	assert.Nil(t, pay.Referents)
	assert.NotContains(t, pay.Properties, "id")

	_, err = s.Entity(ctx, "missing")
	require.Error(t, err)
	assert.True(t, failure.Is(err, errors.ErrNotFound))
	assert.Equal(t, "Entity `missing` not found.", string(failure.MessageOf(err)))
}

func TestCanonical(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()

	tests := map[string]string{
		"p-1-old":  "p-1",
		"p-1":      "p-1",
		"ev-1":     "ev-1",
		"x-orphan": "x-gone",
		"unknown":  "unknown",
	}
	for id, expected := range tests {
		first, err := s.Canonical(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, expected, first, id)

		again, err := s.Canonical(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, first, again, id)

		resolved, err := s.Canonical(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, first, resolved, id)
	}
}

func TestScope(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()

	gdho := s.Scope("gdho")
	_, err := gdho.Entity(ctx, "p-1")
	assert.True(t, failure.Is(err, errors.ErrNotFound))

	e, err := gdho.Entity(ctx, "p-3")
	require.NoError(t, err)
	assert.Equal(t, []string{"gdho"}, e.Datasets)

	assert.Equal(t, []string{"p-3"}, entityIDs(t, gdho, "schema=Person"))
	assert.Nil(t, entityIDs(t, s.Scope("eu_authorities"), "schema=Person"))

	datasets, err := gdho.Datasets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gdho"}, datasets)

	// closing a scoped view keeps the parent usable
	require.NoError(t, gdho.Close())
	require.NoError(t, s.Ping(ctx))
}

func TestStats(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()

	stats, err := s.Stats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 18, stats.EntityCount)
	assert.Equal(t, []model.DatasetCount{
		{Name: "eu_authorities", Count: 8},
		{Name: "gdho", Count: 8},
		{Name: "ec_meetings", Count: 2},
	}, stats.Datasets)
	assert.Equal(t, []model.SchemaCount{
		{Name: "Event", Label: "Event", Plural: "Events", Count: 5},
		{Name: "Payment", Label: "Payment", Plural: "Payments", Count: 4},
		{Name: "Organization", Label: "Organization", Plural: "Organizations", Count: 3},
		{Name: "Person", Label: "Person", Plural: "People", Count: 3},
		{Name: "PublicBody", Label: "Public body", Plural: "Public bodies", Count: 3},
	}, stats.Schemata)
	assert.Equal(t, []model.CountryCount{
		{Code: "de", Count: 4},
		{Code: "be", Count: 3},
		{Code: "eu", Count: 3},
		{Code: "fr", Count: 3},
	}, stats.Countries)
	assert.Equal(t, model.Coverage{Start: "1970-05-01", End: "2023-05-30"}, stats.Coverage)

	stats, err = s.Stats(ctx, buildQuery(t, "dataset=gdho&schema=Payment&limit=1"))
	require.NoError(t, err)
	assert.Equal(t, 4, stats.EntityCount)
	assert.Empty(t, stats.Countries)
	assert.Equal(t, model.Coverage{Start: "2021-12-31", End: "2023-01-01"}, stats.Coverage)

	scoped, err := s.Scope("ec_meetings").Stats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, scoped.EntityCount)
}

func TestAggregations(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()

	result, err := s.Aggregations(ctx, buildQuery(t, "dataset=gdho&aggSum=amount&aggMax=date"))
	require.NoError(t, err)
	assert.Equal(t, map[query.Func]map[string]any{
		query.Sum: {"amount": 2630.0},
		query.Max: {"date": "2023-01-01"},
	}, result.Values)
	assert.Empty(t, result.Groups)

	// the page window does not restrict aggregations
	result, err = s.Aggregations(ctx, buildQuery(t, "schema=Payment&limit=1&aggMin=amount&aggMax=amount&aggAvg=amount&aggCount=currency&aggMin=date&aggGroups=currency"))
	require.NoError(t, err)
	assert.Equal(t, map[query.Func]map[string]any{
		query.Min:   {"amount": 0.0, "date": "2021-12-31"},
		query.Max:   {"amount": 2500.0},
		query.Avg:   {"amount": 657.5},
		query.Count: {"currency": int64(2)},
	}, result.Values)
	assert.Equal(t, map[string]any{"EUR": 0.0, "USD": 30.0}, result.Groups["currency"][query.Min]["amount"])
	assert.Equal(t, map[string]any{"EUR": 2500.0, "USD": 30.0}, result.Groups["currency"][query.Max]["amount"])
	assert.Equal(t, map[string]any{"EUR": int64(1), "USD": int64(1)}, result.Groups["currency"][query.Count]["currency"])

	result, err = s.Aggregations(ctx, buildQuery(t, "schema=Payment"))
	require.NoError(t, err)
	assert.Empty(t, result.Values)
}

func TestAdjacents(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()

	type edge struct{ subject, property, target string }
	edges := func(adjacents []model.Adjacency) []edge {
		return lo.Map(adjacents, func(a model.Adjacency, _ int) edge {
			return edge{a.SubjectID, a.Property, a.Entity.ID}
		})
	}

	ev2, err := s.Entity(ctx, "ev-2")
	require.NoError(t, err)
	p1, err := s.Entity(ctx, "p-1")
	require.NoError(t, err)

	adjacents, err := s.Adjacents(ctx, []*model.Entity{ev2, p1})
	require.NoError(t, err)
	assert.ElementsMatch(t, []edge{
		{"ev-2", "organizer", "pb-1"},
		// references to merged ids resolve to the canonical entity
		{"ev-2", "involved", "p-1"},
		{"p-1", "involvedEvents", "ev-1"},
		{"p-1", "involvedEvents", "ev-2"},
	}, edges(adjacents))

	pay, err := s.Entity(ctx, "pay-2")
	require.NoError(t, err)
	adjacents, err = s.Scope("gdho").Adjacents(ctx, []*model.Entity{pay})
	require.NoError(t, err)
	assert.ElementsMatch(t, []edge{
		{"pay-2", "payer", "org-1"},
		{"pay-2", "beneficiary", "p-3"},
	}, edges(adjacents))

	adjacents, err = s.Adjacents(ctx, []*model.Entity{ev2})
	require.NoError(t, err)
	values := lo.SliceToMap(adjacents, func(a model.Adjacency) (string, string) { return a.Property, a.Value })
	assert.Equal(t, map[string]string{"organizer": "pb-1", "involved": "p-1-old"}, values)
}

func TestSimilar(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()

	similar, err := s.Similar(ctx, "p-1", 10)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, "p-3", similar[0].Entity.ID)
	assert.InDelta(t, 2.0/3.0, similar[0].Score, 1e-9)

	similar, err = s.Similar(ctx, "pay-1", 10)
	require.NoError(t, err)
	assert.Empty(t, similar)

	_, err = s.Similar(ctx, "missing", 10)
	assert.True(t, failure.Is(err, errors.ErrNotFound))
}
