package query

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Names of the recognised query string options.
const (
	ParamDataset            = "dataset"
	ParamLimit              = "limit"
	ParamPage               = "page"
	ParamSchema             = "schema"
	ParamIncludeMatchable   = "schema_include_matchable"
	ParamIncludeDescendants = "schema_include_descendants"
	ParamOrderBy            = "order_by"
	ParamReverse            = "reverse"
	ParamQ                  = "q"
	ParamCountry            = "country"
	ParamAPIKey             = "api_key"

	ParamNested          = "nested"
	ParamFeatured        = "featured"
	ParamDehydrate       = "dehydrate"
	ParamDehydrateNested = "dehydrate_nested"
	ParamStats           = "stats"

	ParamAggSum    = "aggSum"
	ParamAggMin    = "aggMin"
	ParamAggMax    = "aggMax"
	ParamAggAvg    = "aggAvg"
	ParamAggCount  = "aggCount"
	ParamAggGroups = "aggGroups"
)

var aggregationParams = []string{ParamAggSum, ParamAggMin, ParamAggMax, ParamAggAvg, ParamAggCount}

// metaParams are never treated as property filters.
var metaParams = lo.Uniq(slices.Concat(
	[]string{
		ParamDataset, ParamLimit, ParamPage, ParamSchema, ParamIncludeMatchable,
		ParamIncludeDescendants, ParamOrderBy, ParamReverse, ParamQ, ParamAPIKey,
	},
	[]string{ParamNested, ParamFeatured, ParamDehydrate, ParamDehydrateNested, ParamStats},
	aggregationParams,
	[]string{ParamAggGroups},
))

// IsMeta reports whether name is a reserved option name.
func IsMeta(name string) bool {
	return slices.Contains(metaParams, name)
}

// BaseParams are the options shared by the entity and the search endpoints.
type BaseParams struct {
	Datasets           []string
	Limit              int // 0 means not given
	Page               int // 0 means not given
	Schema             string
	IncludeMatchable   bool
	IncludeDescendants bool

	problems []string
}

// Problems lists the options that could not be parsed.
func (p BaseParams) Problems() []string {
	return slices.Clone(p.problems)
}

// RawFilter is an unvalidated property filter, e.g. name__ilike=%jane%.
type RawFilter struct {
	Key    string
	Values []string
}

// Params is the tolerant, typed representation of an /entities or
// /aggregate query string. Validation happens in Builder.Build.
type Params struct {
	BaseParams
	OrderBy      string
	Reverse      string
	Q            string
	Aggregations map[Func][]string
	Groups       []string
	Filters      []RawFilter
}

// SearchParams is the typed representation of a /search query string.
type SearchParams struct {
	BaseParams
	Q         string
	Countries []string
}

// ParseParams converts a query string into Params. It never fails: values
// that cannot be converted are recorded as problems, unknown names become
// property filters.
func ParseParams(values url.Values) Params {
	p := Params{
		BaseParams:   parseBase(values),
		OrderBy:      last(values, ParamOrderBy),
		Reverse:      last(values, ParamReverse),
		Q:            last(values, ParamQ),
		Aggregations: map[Func][]string{},
		Groups:       nonEmpty(values[ParamAggGroups]),
	}
	for _, name := range aggregationParams {
		fields := nonEmpty(values[name])
		if len(fields) > 0 {
			p.Aggregations[Func(strings.ToLower(strings.TrimPrefix(name, "agg")))] = fields
		}
	}
	keys := lo.Keys(values)
	slices.Sort(keys)
	for _, key := range keys {
		if IsMeta(key) {
			continue
		}
		p.Filters = append(p.Filters, RawFilter{Key: key, Values: slices.Clone(values[key])})
	}
	return p
}

// ParseSearchParams converts a /search query string into SearchParams.
// Unknown names are ignored.
func ParseSearchParams(values url.Values) SearchParams {
	return SearchParams{
		BaseParams: parseBase(values),
		Q:          last(values, ParamQ),
		Countries:  nonEmpty(values[ParamCountry]),
	}
}

func parseBase(values url.Values) BaseParams {
	var p BaseParams
	p.Datasets = nonEmpty(values[ParamDataset])
	p.Schema = last(values, ParamSchema)
	p.Limit = p.parseInt(values, ParamLimit)
	p.Page = p.parseInt(values, ParamPage)
	p.IncludeMatchable = p.parseBool(values, ParamIncludeMatchable, false)
	p.IncludeDescendants = p.parseBool(values, ParamIncludeDescendants, false)
	return p
}

func (p *BaseParams) parseInt(values url.Values, name string) int {
	raw := last(values, name)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.problems = append(p.problems, fmt.Sprintf("`%s` must be an integer, got `%s`", name, raw))
		return 0
	}
	if v < 1 {
		p.problems = append(p.problems, fmt.Sprintf("`%s` must be a positive integer, got `%d`", name, v))
		return 0
	}
	return v
}

func (p *BaseParams) parseBool(values url.Values, name string, fallback bool) bool {
	v, err := ParseBool(last(values, name), fallback)
	if err != nil {
		p.problems = append(p.problems, fmt.Sprintf("`%s` %s", name, err))
	}
	return v
}

// ParseBool parses the boolean spellings accepted in query strings. An empty
// value yields fallback.
func ParseBool(raw string, fallback bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return fallback, nil
	case "1", "true", "yes", "on", "t", "y":
		return true, nil
	case "0", "false", "no", "off", "f", "n":
		return false, nil
	}
	return fallback, fmt.Errorf("must be a boolean, got `%s`", raw)
}

// last returns the last value given for name, as repeated single valued
// options are resolved by the last occurrence.
func last(values url.Values, name string) string {
	vs := values[name]
	if len(vs) == 0 {
		return ""
	}
	return vs[len(vs)-1]
}

func nonEmpty(values []string) []string {
	return lo.Filter(values, func(v string, _ int) bool { return v != "" })
}
