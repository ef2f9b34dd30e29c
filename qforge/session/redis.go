package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisTxRetries bounds how often a watched write is retried after losing a
// race before giving up with ErrVersionConflict.
const redisTxRetries = 3

// redisStore keeps each session as one JSON value under a prefixed key and
// uses WATCH/MULTI/EXEC for optimistic concurrency on updates.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

var _ Store = (*redisStore)(nil)

func newRedisStore(cfg *storeConfig) (*redisStore, error) {
	if cfg.redisClient == nil {
		return nil, fmt.Errorf("%w: redis driver requires WithRedisClient", ErrInvalidConfig)
	}
	return &redisStore{
		client: cfg.redisClient,
		ttl:    cfg.redisTTL,
		prefix: cfg.keyPrefix,
	}, nil
}

func (r *redisStore) key(id string) string { return r.prefix + id }

func (r *redisStore) Create(ctx context.Context, s *Session) error {
	val, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.key(s.ID), val, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, s.ID)
	}
	return nil
}

func (r *redisStore) Get(ctx context.Context, id string) (*Session, error) {
	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	// Refresh TTL on read so active sessions do not expire mid-game.
	if r.ttl > 0 {
		_ = r.client.Expire(ctx, r.key(id), r.ttl).Err()
	}
	return &s, nil
}

func (r *redisStore) Patch(ctx context.Context, id string, p Patch) error {
	if p.IsZero() {
		return nil
	}
	return r.update(ctx, id, func(s *Session) error {
		p.apply(s, time.Now().UTC())
		return nil
	})
}

func (r *redisStore) TransitionStatus(ctx context.Context, id string, from, to Status) error {
	return r.update(ctx, id, func(s *Session) error {
		if err := checkTransition(s.Status, from, to); err != nil {
			return err
		}
		if from == to {
			return nil
		}
		s.Status = to
		s.LastActivity = time.Now().UTC()
		s.Version++
		return nil
	})
}

// update runs mutate on the stored session under WATCH and writes the result
// back transactionally. A write that loses the race is retried; persistent
// contention surfaces as ErrVersionConflict.
func (r *redisStore) update(ctx context.Context, id string, mutate func(*Session) error) error {
	key := r.key(id)

	for attempt := 0; attempt < redisTxRetries; attempt++ {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			val, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			if err != nil {
				return err
			}

			var s Session
			if err := json.Unmarshal(val, &s); err != nil {
				return fmt.Errorf("unmarshal session: %w", err)
			}

			if err := mutate(&s); err != nil {
				return err
			}

			newVal, err := json.Marshal(&s)
			if err != nil {
				return fmt.Errorf("marshal session: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, newVal, r.ttl)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: %s", ErrVersionConflict, id)
}

func (r *redisStore) Close() error {
	return r.client.Close()
}
