package storage

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

const fileMode = 0600

var pointerBucket = []byte("pointers")

// BoltPointer is a Pointer stored under a key of a bbolt database
type BoltPointer struct {
	db  *bolt.DB
	key []byte
}

var _ Pointer = (*BoltPointer)(nil)

// OpenBoltPointer opens (creating if needed) the database at path
func OpenBoltPointer(path, key string) (*BoltPointer, error) {
	db, err := bolt.Open(path, fileMode, nil)
	if err != nil {
		return nil, errors.Wrap(ErrIO, err.Error())
	}
	return &BoltPointer{db: db, key: []byte(key)}, nil
}

// Close closes the database
func (b *BoltPointer) Close() error {
	if err := b.db.Close(); err != nil {
		return errors.Wrap(ErrIO, err.Error())
	}
	return nil
}

// Load returns the stored value
func (b *BoltPointer) Load(_ context.Context) (string, error) {
	var value string
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(pointerBucket)
		if bucket == nil {
			return nil
		}
		value = string(bucket.Get(b.key))
		return nil
	})
	if err != nil {
		return "", errors.Wrap(ErrIO, err.Error())
	}
	return value, nil
}

// CompareAndSwap checks and writes inside a single update transaction
func (b *BoltPointer) CompareAndSwap(_ context.Context, expected, next string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(pointerBucket)
		if err != nil {
			return err
		}
		if current := bucket.Get(b.key); !bytes.Equal(current, []byte(expected)) {
			return errors.Wrapf(ErrPointerConflict, "expected %q, found %q", expected, current)
		}
		return bucket.Put(b.key, []byte(next))
	})
	if err == nil || errors.Cause(err) == ErrPointerConflict {
		return err
	}
	return errors.Wrap(ErrIO, err.Error())
}
