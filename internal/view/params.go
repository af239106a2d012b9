package view

import (
	"fmt"
	"net/url"

	"github.com/morikuni/failure/v2"
	"github.com/takatori/ftmq-api/internal/errors"
	"github.com/takatori/ftmq-api/internal/query"
)

// RetrieveParams control the payload shape of returned entities.
type RetrieveParams struct {
	// Nested inlines adjacent entities instead of their ids.
	Nested bool
	// Featured keeps the caption and the featured properties only.
	Featured bool
	// Dehydrate keeps id, schema and caption only. It wins over Featured.
	Dehydrate bool
	// DehydrateNested dehydrates inlined adjacent entities.
	DehydrateNested bool
	// Stats computes the stats of the query on entity lists.
	Stats bool
}

func DefaultRetrieveParams() RetrieveParams {
	return RetrieveParams{DehydrateNested: true, Stats: true}
}

// ParseRetrieveParams reads the retrieve options of a query string. Absent
// options keep their defaults.
func ParseRetrieveParams(values url.Values) (RetrieveParams, error) {
	p := DefaultRetrieveParams()
	for name, dest := range map[string]*bool{
		query.ParamNested:          &p.Nested,
		query.ParamFeatured:        &p.Featured,
		query.ParamDehydrate:       &p.Dehydrate,
		query.ParamDehydrateNested: &p.DehydrateNested,
		query.ParamStats:           &p.Stats,
	} {
		raw := values[name]
		if len(raw) == 0 {
			continue
		}
		v, err := query.ParseBool(raw[len(raw)-1], *dest)
		if err != nil {
			return RetrieveParams{}, failure.New(
				errors.ErrInvalidArgument,
				failure.Message(fmt.Sprintf("Invalid value for `%s`: %s", name, err)),
				failure.Context{"param": name},
			)
		}
		*dest = v
	}
	return p, nil
}
