package cache

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"regexp"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/takatori/ftmq-api/internal/errors"
)

const defaultKVBucket = "ftmq_api"

var bucketName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// NATS stores entries in a JetStream key value bucket. Expiry is the
// bucket's TTL.
type NATS struct {
	conn   *nats.Conn
	kv     jetstream.KeyValue
	prefix string
}

var _ Cache = (*NATS)(nil)

func OpenNATS(ctx context.Context, serverURL, bucket, prefix string, ttl time.Duration) (*NATS, error) {
	if bucket == "" {
		bucket = defaultKVBucket
	}
	if !bucketName.MatchString(bucket) {
		return nil, failure.New(
			errors.ErrInvalidArgument,
			failure.Message("invalid key value bucket name"),
			failure.Context{"bucket": bucket},
		)
	}
	conn, err := nats.Connect(serverURL, nats.Name("ftmq-api"))
	if err != nil {
		return nil, unavailable(err, "nats", serverURL)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, unavailable(err, "nats", serverURL)
	}
	kv, err := keyValue(ctx, js, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "ftmq-api response cache",
		TTL:         ttl,
	})
	if err != nil {
		conn.Close()
		return nil, unavailable(err, "nats", bucket)
	}
	return &NATS{conn: conn, kv: kv, prefix: prefix}, nil
}

// keyValue gets the bucket, creating it when it does not exist yet.
func keyValue(ctx context.Context, js jetstream.JetStream, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, cfg.Bucket)
	if err == nil {
		return kv, nil
	}
	kv, err = js.CreateKeyValue(ctx, cfg)
	if stderrors.Is(err, jetstream.ErrBucketExists) {
		return js.KeyValue(ctx, cfg.Bucket)
	}
	return kv, err
}

func (n *NATS) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := n.kv.Get(ctx, kvKey(n.prefix, key))
	if stderrors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable(err, "nats", key)
	}
	return entry.Value(), true, nil
}

func (n *NATS) Set(ctx context.Context, key string, value []byte) error {
	if _, err := n.kv.Put(ctx, kvKey(n.prefix, key), value); err != nil {
		return unavailable(err, "nats", key)
	}
	return nil
}

func (n *NATS) Close() error {
	n.conn.Close()
	return nil
}

// kvKey encodes a cache key into the key value alphabet.
func kvKey(prefix, key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(prefix + key))
}
