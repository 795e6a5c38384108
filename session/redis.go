package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/newsfactory/ssofact/oidc"
	"github.com/redis/go-redis/v9"
)

// maxUpdateRetries bounds the optimistic transaction retries of Update.
const maxUpdateRetries = 10

// RedisStore is a Store shared by every instance of the site. Sessions are
// stored as JSON under the key prefix, with the TTL as redis expiry.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore. It doesn't verify the connection; see
// Ping.
//
// Supported options: WithTTL, WithKeyPrefix
func NewRedisStore(client redis.UniversalClient, opt ...oidc.Option) (*RedisStore, error) {
	const op = "NewRedisStore"
	if client == nil {
		return nil, fmt.Errorf("%s: redis client is nil: %w", op, oidc.ErrNilParameter)
	}
	opts := getStoreOpts(opt...)
	return &RedisStore{
		client: client,
		prefix: opts.withKeyPrefix,
		ttl:    opts.withTTL,
	}, nil
}

// Ping verifies the connection to redis.
func (r *RedisStore) Ping(ctx context.Context) error {
	const op = "RedisStore.Ping"
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%s: redis ping failed: %w", op, err)
	}
	return nil
}

// Get returns the session.
func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	const op = "RedisStore.Get"
	b, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s, err := decodeSession(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

// Save stores the session.
func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	const op = "RedisStore.Save"
	if s == nil || s.ID == "" {
		return fmt.Errorf("%s: session id is empty: %w", op, oidc.ErrInvalidParameter)
	}
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%s: unable to encode session: %w", op, err)
	}
	if err := r.client.Set(ctx, r.key(s.ID), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Delete removes the session.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	const op = "RedisStore.Delete"
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Update applies fn within an optimistic transaction on the session's key, so
// concurrent updates of one session never interleave.
func (r *RedisStore) Update(ctx context.Context, id string, fn func(*Session) error) error {
	const op = "RedisStore.Update"
	key := r.key(id)
	txf := func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		s, err := decodeSession(b)
		if err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
		s.ID = id
		nb, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("unable to encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, nb, r.ttl)
			return nil
		})
		return err
	}
	for i := 0; i < maxUpdateRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: too many concurrent updates: %w", op, redis.TxFailedErr)
}

func (r *RedisStore) key(id string) string {
	if r.prefix == "" {
		return id
	}
	return r.prefix + ":" + id
}

func decodeSession(b []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unable to decode session: %w", err)
	}
	return &s, nil
}
