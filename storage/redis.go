package storage

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// RedisPointer is a Pointer kept in a Redis key, shared by several server instances
type RedisPointer struct {
	client *redis.Client
	key    string
}

var _ Pointer = (*RedisPointer)(nil)

// NewRedisPointer connects to addr and checks the connection
func NewRedisPointer(ctx context.Context, addr, password string, db int, key string) (*RedisPointer, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(ErrIO, "failed to connect to redis at %s: %v", addr, err)
	}
	return &RedisPointer{client: client, key: key}, nil
}

// Close closes the client
func (r *RedisPointer) Close() error {
	return r.client.Close()
}

// Load returns the stored value
func (r *RedisPointer) Load(ctx context.Context) (string, error) {
	v, err := r.client.Get(ctx, r.key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(ErrIO, err.Error())
	}
	return v, nil
}

// CompareAndSwap uses an optimistic WATCH/MULTI transaction on the key
func (r *RedisPointer) CompareAndSwap(ctx context.Context, expected, next string) error {
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, r.key).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != expected {
			return errors.Wrapf(ErrPointerConflict, "expected %q, found %q", expected, current)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key, next, 0)
			return nil
		})
		return err
	}, r.key)
	switch {
	case err == nil:
		return nil
	case err == redis.TxFailedErr:
		return errors.Wrap(ErrPointerConflict, "key modified during transaction")
	case errors.Cause(err) == ErrPointerConflict:
		return err
	default:
		return errors.Wrap(ErrIO, err.Error())
	}
}
