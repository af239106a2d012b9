package internal

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

const Version = "0.4.0"

type RunEnv string

const (
	Development RunEnv = "development"
	Production  RunEnv = "production"
)

type Config struct {
	Env      RunEnv `envconfig:"ENV" default:"development"`
	EchoAddr string `envconfig:"ECHO_ADDR" default:":8080"`
	Debug    bool   `envconfig:"FTMQ_API_DEBUG" default:"false"`

	// Catalog is a file path or http(s) url of a catalog (yaml or json). When
	// empty, the catalog is derived from the datasets found in the store.
	Catalog  string `envconfig:"FTMQ_API_CATALOG"`
	StoreURI string `envconfig:"FTMQ_API_STORE_URI" default:"ftmq.db"`
	// SearchURI is either a bleve index path or a solr collection url
	// (http://solr:8983/solr/entities). Empty disables /search and /autocomplete.
	SearchURI string `envconfig:"FTMQ_API_SEARCH_URI"`

	BuildAPIKey           string `envconfig:"FTMQ_API_BUILD_API_KEY" default:"secret-key-for-build"`
	MinSearchLength       int    `envconfig:"FTMQ_API_MIN_SEARCH_LENGTH" default:"3"`
	AutocompleteMinLength int    `envconfig:"FTMQ_API_AUTOCOMPLETE_MIN_LENGTH" default:"4"`
	DefaultLimit          int    `envconfig:"FTMQ_API_DEFAULT_LIMIT" default:"100"`
	SimilarLimit          int    `envconfig:"FTMQ_API_SIMILAR_LIMIT" default:"25"`

	UseCache    bool          `envconfig:"FTMQ_API_USE_CACHE" default:"false"`
	CacheURI    string        `envconfig:"FTMQ_API_CACHE_URI" default:"memory://"`
	CachePrefix string        `envconfig:"FTMQ_API_CACHE_PREFIX" default:"ftmq-api/0.4.0"`
	CacheTTL    time.Duration `envconfig:"FTMQ_API_CACHE_TTL" default:"1h"`

	AllowedOrigin []string      `envconfig:"FTMQ_API_ALLOWED_ORIGIN" default:"http://localhost:3000"`
	HTTPTimeout   time.Duration `envconfig:"FTMQ_API_HTTP_TIMEOUT" default:"5s"`

	Info
}

type Info struct {
	Title          string `envconfig:"FTMQ_API_TITLE" default:"FTMQ Api"`
	DescriptionURI string `envconfig:"FTMQ_API_DESCRIPTION_URI"`
	ContactName    string `envconfig:"FTMQ_API_CONTACT_NAME" default:"Data and Research Center – DARC"`
	ContactURL     string `envconfig:"FTMQ_API_CONTACT_URL" default:"https://dataresearchcenter.org"`
	ContactEmail   string `envconfig:"FTMQ_API_CONTACT_EMAIL" default:"hi@dataresearchcenter.org"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
