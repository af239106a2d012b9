package query

import (
	"slices"

	"github.com/samber/lo"
)

// Func is an aggregation function.
type Func string

const (
	Sum   Func = "sum"
	Min   Func = "min"
	Max   Func = "max"
	Avg   Func = "avg"
	Count Func = "count"
)

// Funcs lists the supported functions in plan order.
var Funcs = []Func{Sum, Min, Max, Avg, Count}

func (f Func) Valid() bool {
	return slices.Contains(Funcs, f)
}

// Pair is one aggregation to compute.
type Pair struct {
	Func     Func
	Property string
}

// Plan is a normalized aggregation request: every (function, property) pair
// appears once, optionally grouped by the values of other properties.
type Plan struct {
	pairs  []Pair
	groups []string
}

// NewPlan normalizes per-function field lists. Unknown functions are
// skipped, duplicates collapse.
func NewPlan(fields map[Func][]string, groups []string) Plan {
	var pairs []Pair
	for _, f := range Funcs {
		for _, prop := range fields[f] {
			pairs = append(pairs, Pair{Func: f, Property: prop})
		}
	}
	return Plan{
		pairs:  lo.Uniq(pairs),
		groups: lo.Uniq(slices.Clone(groups)),
	}
}

func (p Plan) Pairs() []Pair {
	return slices.Clone(p.pairs)
}

func (p Plan) Groups() []string {
	return slices.Clone(p.groups)
}

func (p Plan) Empty() bool {
	return len(p.pairs) == 0
}

// Properties returns every property the plan touches, groups included.
func (p Plan) Properties() []string {
	props := lo.Map(p.pairs, func(pair Pair, _ int) string { return pair.Property })
	return lo.Uniq(append(props, p.groups...))
}

// Fields returns the properties aggregated by f.
func (p Plan) Fields(f Func) []string {
	return lo.FilterMap(p.pairs, func(pair Pair, _ int) (string, bool) {
		return pair.Property, pair.Func == f
	})
}
