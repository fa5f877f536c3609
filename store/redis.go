package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/credlink/credlink/fault"
)

// Default timeouts for Redis operations.
const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second

	// scanBatch is the COUNT hint for SCAN during prefix listing.
	scanBatch = 100

	// updateRetries caps optimistic retries of Update before the
	// contention is surfaced to the caller.
	updateRetries = 100
)

// RedisConfig holds connection settings for the Redis backend.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int

	// Timeouts. Zero values fall back to the defaults above.
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisStore implements Store on a Redis server. Expiry uses native
// TTLs; prefix listing uses SCAN and sorts client-side because SCAN
// returns keys in no particular order.
type RedisStore struct {
	client redis.UniversalClient
}

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}

	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}

	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fault.StoreUnavailable("connecting to redis", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisWithClient wraps a pre-built client. Used by tests to run
// against miniredis.
func NewRedisWithClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Get returns the value for key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fault.NotFound("key not found: "+key, nil)
	}

	if err != nil {
		return nil, fault.StoreUnavailable("reading key", err)
	}

	return val, nil
}

// Set writes value under key with an optional TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fault.StoreUnavailable("writing key", err)
	}

	return nil
}

// Delete removes key. Absent keys are not an error.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fault.StoreUnavailable("deleting key", err)
	}

	return nil
}

// List returns entries under prefix in key order.
func (s *RedisStore) List(ctx context.Context, prefix string, opts ListOptions) ([]Entry, error) {
	var keys []string

	iter := s.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return nil, fault.StoreUnavailable("scanning prefix", err)
	}

	sort.Strings(keys)

	if opts.Reverse {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	}

	if opts.Limit > 0 && len(keys) > opts.Limit {
		keys = keys[:opts.Limit]
	}

	entries := make([]Entry, 0, len(keys))

	for _, key := range keys {
		val, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			// Key expired between SCAN and GET.
			continue
		}

		if err != nil {
			return nil, fault.StoreUnavailable("reading key", err)
		}

		entries = append(entries, Entry{Key: key, Value: val})
	}

	return entries, nil
}

// Update applies fn to the current value of key under an optimistic
// WATCH/MULTI transaction, retrying on contention.
func (s *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	txn := func(tx *redis.Tx) error {
		old, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			old = nil
		} else if err != nil {
			return err
		}

		// Preserve any remaining TTL across the rewrite.
		ttl, err := tx.PTTL(ctx, key).Result()
		if err != nil {
			return err
		}

		if ttl < 0 {
			ttl = 0
		}

		updated, err := fn(old)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if updated == nil {
				pipe.Del(ctx, key)
				return nil
			}

			pipe.Set(ctx, key, updated, ttl)

			return nil
		})

		return err
	}

	for range updateRetries {
		err := s.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		if err == nil {
			return nil
		}

		if fault.KindOf(err) != "" {
			return err
		}

		return fault.StoreUnavailable("updating key", err)
	}

	return fault.StoreUnavailable("updating key: too much contention", nil)
}
