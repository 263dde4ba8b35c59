package resource

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jgarte/gn-proxy/access"
)

// maxTxRetries bounds optimistic-locking retries when concurrent writers
// touch the same key.
const maxTxRetries = 16

// RedisStore implements Store on Redis for distributed deployments.
// Resources are stored as JSON blobs under a key prefix; create-if-absent
// maps to SETNX and atomic updates run as WATCH-guarded transactions.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed resource store.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "gnproxy:resource:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Get loads and decodes the resource record.
func (s *RedisStore) Get(ctx context.Context, id string) (*Resource, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, access.Errf(access.ErrResourceNotFound, "resource %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("redis store: get %q failed: %w", id, err)
	}

	var res Resource
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("redis store: decoding %q failed: %w", id, err)
	}
	return &res, nil
}

// CreateIfAbsent writes the record only when the key does not exist.
func (s *RedisStore) CreateIfAbsent(ctx context.Context, res *Resource) (bool, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return false, fmt.Errorf("redis store: encoding %q failed: %w", res.ID, err)
	}

	created, err := s.client.SetNX(ctx, s.key(res.ID), raw, 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis store: create %q failed: %w", res.ID, err)
	}
	return created, nil
}

// AtomicUpdate runs the mutator inside a WATCH transaction so concurrent
// updates to the same id are never lost; on contention the transaction is
// retried with a fresh read.
func (s *RedisStore) AtomicUpdate(ctx context.Context, id string, mutate Mutator) (*Resource, error) {
	key := s.key(id)
	var updated *Resource

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return access.Errf(access.ErrResourceNotFound, "resource %q not found", id)
		}
		if err != nil {
			return fmt.Errorf("redis store: get %q failed: %w", id, err)
		}

		var res Resource
		if err := json.Unmarshal(raw, &res); err != nil {
			return fmt.Errorf("redis store: decoding %q failed: %w", id, err)
		}

		if err := mutate(&res); err != nil {
			return err
		}

		out, err := json.Marshal(&res)
		if err != nil {
			return fmt.Errorf("redis store: encoding %q failed: %w", id, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = &res
		return nil
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("redis store: update %q failed: too much contention", id)
}

// Compile-time interface check
var _ Store = (*RedisStore)(nil)
