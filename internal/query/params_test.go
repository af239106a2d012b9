package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	values, err := url.ParseQuery("dataset=a&dataset=b&limit=10&page=2&schema=Event&order_by=-date&reverse=x&aggSum=amount&aggSum=capital&aggCount=name&aggGroups=country&name__ilike=jane&country=de&country=fr&page=3")
	require.NoError(t, err)

	p := ParseParams(values)
	assert.Empty(t, p.Problems())
	assert.Equal(t, []string{"a", "b"}, p.Datasets)
	assert.Equal(t, 10, p.Limit)
	// repeated single valued options resolve to the last occurrence
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, "Event", p.Schema)
	assert.Equal(t, "-date", p.OrderBy)
	assert.Equal(t, "x", p.Reverse)
	assert.Equal(t, map[Func][]string{
		Sum:   {"amount", "capital"},
		Count: {"name"},
	}, p.Aggregations)
	assert.Equal(t, []string{"country"}, p.Groups)
	assert.Equal(t, []RawFilter{
		{Key: "country", Values: []string{"de", "fr"}},
		{Key: "name__ilike", Values: []string{"jane"}},
	}, p.Filters)
}

func TestParseParamsProblems(t *testing.T) {
	values, err := url.ParseQuery("limit=ten&page=&schema_include_matchable=nope")
	require.NoError(t, err)

	p := ParseParams(values)
	assert.Len(t, p.Problems(), 2)
	assert.Equal(t, 0, p.Limit)
	assert.Equal(t, 0, p.Page)

	values, err = url.ParseQuery("limit=0&page=-2")
	require.NoError(t, err)

	p = ParseParams(values)
	assert.Equal(t, []string{
		"`limit` must be a positive integer, got `0`",
		"`page` must be a positive integer, got `-2`",
	}, p.Problems())
	assert.Equal(t, 0, p.Limit)
	assert.Equal(t, 0, p.Page)
}

func TestParseSearchParams(t *testing.T) {
	values, err := url.ParseQuery("q=jane&country=de&country=&dataset=a&name=ignored")
	require.NoError(t, err)

	p := ParseSearchParams(values)
	assert.Equal(t, "jane", p.Q)
	assert.Equal(t, []string{"de"}, p.Countries)
	assert.Equal(t, []string{"a"}, p.Datasets)
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		raw      string
		fallback bool
		expected bool
		fails    bool
	}{
		{"", true, true, false},
		{"", false, false, false},
		{"1", false, true, false},
		{"TRUE", false, true, false},
		{"on", false, true, false},
		{"0", true, false, false},
		{"False", true, false, false},
		{"no", true, false, false},
		{"maybe", true, true, true},
	}
	for _, test := range tests {
		v, err := ParseBool(test.raw, test.fallback)
		assert.Equal(t, test.expected, v, "ParseBool(%q)", test.raw)
		assert.Equal(t, test.fails, err != nil, "ParseBool(%q) error", test.raw)
	}
}

func TestIsMeta(t *testing.T) {
	for _, name := range []string{"dataset", "aggSum", "aggGroups", "nested", "dehydrate_nested", "api_key", "stats", "q"} {
		assert.True(t, IsMeta(name), name)
	}
	for _, name := range []string{"name", "country", "amount__gt"} {
		assert.False(t, IsMeta(name), name)
	}
}

func TestWithoutParam(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"", ""},
		{"api_key=secret", ""},
		{"dataset=b&api_key=secret&dataset=a", "dataset=b&dataset=a"},
		{"api%5Fkey=secret&limit=1", "limit=1"},
		{"name=a%20b&api_key=1&api_key=2&page=2", "name=a%20b&page=2"},
		{"api_keys=1", "api_keys=1"},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, WithoutParam(test.raw, "api_key"), "WithoutParam(%q)", test.raw)
	}
}

func TestWithParam(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"", "page=2"},
		{"limit=1", "limit=1&page=2"},
		{"page=1&limit=1", "page=2&limit=1"},
		{"page=1&dataset=a&page=5", "page=2&dataset=a"},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, WithParam(test.raw, "page", "2"), "WithParam(%q)", test.raw)
	}
}
