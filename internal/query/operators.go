package query

import (
	"slices"
	"strings"
)

type Operator string

const (
	OpEq         Operator = "eq"
	OpNot        Operator = "not"
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpLike       Operator = "like"
	OpILike      Operator = "ilike"
	OpStartsWith Operator = "startswith"
	OpEndsWith   Operator = "endswith"
	OpGt         Operator = "gt"
	OpGte        Operator = "gte"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"
	OpNull       Operator = "null"
)

var operators = []Operator{
	OpEq, OpNot, OpIn, OpNotIn, OpLike, OpILike, OpStartsWith, OpEndsWith,
	OpGt, OpGte, OpLt, OpLte, OpNull,
}

func (o Operator) Valid() bool {
	return slices.Contains(operators, o)
}

// Comparison reports whether o compares ordered values.
func (o Operator) Comparison() bool {
	switch o {
	case OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// splitKey splits "prop__op" into its parts, defaulting to OpEq.
func splitKey(key string) (string, Operator) {
	prop, op, found := strings.Cut(key, "__")
	if !found {
		return key, OpEq
	}
	return prop, Operator(op)
}

// Filter is a validated property-value predicate.
type Filter struct {
	Property string
	Operator Operator
	Values   []string
	// Numeric comparisons cast values to numbers.
	Numeric bool
	// IsNull is the requested state for OpNull.
	IsNull bool
}
