package cache

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/boltdb/bolt"
	"github.com/morikuni/failure/v2"
	"github.com/takatori/ftmq-api/internal/errors"
)

const defaultBucket = "ftmq-api"

// Bolt stores entries in a bolt file, one bucket per prefix. Values are
// prefixed with their expiry as big endian unix nanoseconds.
type Bolt struct {
	db     *bolt.DB
	bucket []byte
	ttl    time.Duration
	now    func() time.Time
}

var _ Cache = (*Bolt)(nil)

func OpenBolt(path, prefix string, ttl time.Duration) (*Bolt, error) {
	if path == "" {
		return nil, failure.New(
			errors.ErrInvalidArgument,
			failure.Message("bolt cache requires a file path"),
		)
	}
	bucket := prefix
	if bucket == "" {
		bucket = defaultBucket
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, unavailable(err, "bolt", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, unavailable(err, "bolt", path)
	}
	return &Bolt{db: db, bucket: []byte(bucket), ttl: ttl, now: time.Now}, nil
}

func (b *Bolt) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	expired := false
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(b.bucket).Get([]byte(key))
		if len(v) < 8 {
			return nil
		}
		if b.expired(v) {
			expired = true
			return nil
		}
		value = cloneBytes(v[8:])
		return nil
	})
	if err != nil {
		return nil, false, unavailable(err, "bolt", key)
	}
	if expired {
		if err := b.evict(key); err != nil {
			return nil, false, err
		}
	}
	return value, value != nil, nil
}

// evict deletes key if its entry is still expired. A Set may have replaced
// the entry since it was read.
func (b *Bolt) evict(key string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		v := bucket.Get([]byte(key))
		if v == nil || (len(v) >= 8 && !b.expired(v)) {
			return nil
		}
		return bucket.Delete([]byte(key))
	})
	if err != nil {
		return unavailable(err, "bolt", key)
	}
	return nil
}

func (b *Bolt) expired(v []byte) bool {
	expiresAt := time.Unix(0, int64(binary.BigEndian.Uint64(v[:8])))
	return b.now().After(expiresAt)
}

func (b *Bolt) Set(_ context.Context, key string, value []byte) error {
	v := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(v[:8], uint64(b.now().Add(b.ttl).UnixNano()))
	copy(v[8:], value)
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(key), v)
	})
	if err != nil {
		return unavailable(err, "bolt", key)
	}
	return nil
}

func (b *Bolt) Close() error {
	return b.db.Close()
}

func cloneBytes(v []byte) []byte {
	clone := make([]byte, len(v))
	copy(clone, v)
	return clone
}
