// Package cache memoises serialized responses. Keys are derived from the
// request only: two requests with the same host, path and query string share
// an entry.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/takatori/ftmq-api/internal/errors"
)

type Cache interface {
	// Get returns the value stored under key. A missing or expired entry is
	// not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// KeyFunc computes the cache key of a request, or reports false when the
// request must not be cached.
type KeyFunc func(host, path, rawQuery string) (string, bool)

// NewKeyFunc returns Key, or a KeyFunc refusing every request when caching
// is disabled.
func NewKeyFunc(enabled bool) KeyFunc {
	return func(host, path, rawQuery string) (string, bool) {
		if !enabled {
			return "", false
		}
		return Key(host, path, rawQuery), true
	}
}

// Key is host + path + "/" + the hex sha1 of the raw query string.
func Key(host, path, rawQuery string) string {
	sum := sha1.Sum([]byte(rawQuery))
	return host + path + "/" + hex.EncodeToString(sum[:])
}

// Entry is a cached response.
type Entry struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body"`
}

func (e Entry) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func UnmarshalEntry(data []byte) (Entry, error) {
	var e Entry
	err := json.Unmarshal(data, &e)
	return e, err
}

// Open opens the backend named by uri:
//
//	memory://                       in-process map
//	bolt:///var/cache/ftmq.bolt     bolt file
//	nats://localhost:4222/ftmq_api  JetStream key value bucket
//
// Every key is namespaced by prefix and expires after ttl.
func Open(ctx context.Context, uri, prefix string, ttl time.Duration) (Cache, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, invalidURI(uri, err)
	}
	switch u.Scheme {
	case "memory", "":
		return NewMemory(ctx, prefix, ttl), nil
	case "bolt":
		return OpenBolt(u.Host+u.Path, prefix, ttl)
	case "nats":
		bucket := strings.Trim(u.Path, "/")
		u.Path = ""
		return OpenNATS(ctx, u.String(), bucket, prefix, ttl)
	}
	return nil, failure.New(
		errors.ErrInvalidArgument,
		failure.Message("unsupported cache backend"),
		failure.Context{"uri": uri},
	)
}

func invalidURI(uri string, err error) error {
	return failure.Translate(
		err,
		errors.ErrInvalidArgument,
		failure.Message("invalid cache uri"),
		failure.Context{"uri": uri},
	)
}

func unavailable(err error, backend, key string) error {
	return failure.Translate(
		err,
		errors.ErrUnavailable,
		failure.Message("cache unavailable"),
		failure.Context{"backend": backend, "key": key},
	)
}
