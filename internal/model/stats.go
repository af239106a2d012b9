package model

type SchemaCount struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Plural string `json:"plural"`
	Count  int    `json:"count"`
}

type CountryCount struct {
	Code  string `json:"code"`
	Count int    `json:"count"`
}

type DatasetCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type Coverage struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Stats are computed on demand for a query or a whole dataset.
type Stats struct {
	EntityCount int            `json:"entity_count"`
	Schemata    []SchemaCount  `json:"schemata"`
	Countries   []CountryCount `json:"countries"`
	Datasets    []DatasetCount `json:"datasets"`
	Coverage    Coverage       `json:"coverage"`
}
