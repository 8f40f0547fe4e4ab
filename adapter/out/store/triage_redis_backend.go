package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"triage_server/pkg/resilience"
)

// maxTxRetries bounds optimistic WATCH retries on a contended key.
const maxTxRetries = 16

// RedisBackend is the durable backend. Compound updates use WATCH/MULTI so concurrent
// writers in different processes cannot lose each other's updates.
type RedisBackend struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
	log    zerolog.Logger
}

// RedisBackendConfig tunes the breaker in front of Redis.
type RedisBackendConfig struct {
	BreakerTimeout     time.Duration // Open 상태 유지 시간
	BreakerMaxRequests uint32        // Half-open 상태에서 허용할 요청 수
}

// DefaultRedisBackendConfig returns breaker defaults.
func DefaultRedisBackendConfig() *RedisBackendConfig {
	return &RedisBackendConfig{
		BreakerTimeout:     15 * time.Second,
		BreakerMaxRequests: 3,
	}
}

// NewRedisBackend wraps an existing client.
func NewRedisBackend(client *redis.Client, cfg *RedisBackendConfig, log zerolog.Logger) *RedisBackend {
	if cfg == nil {
		cfg = DefaultRedisBackendConfig()
	}
	log = log.With().Str("component", "redis_backend").Logger()

	cb := resilience.NewBreaker("redis-store", resilience.BreakerConfig{
		MaxRequests: cfg.BreakerMaxRequests,
		Timeout:     cfg.BreakerTimeout,
	}, log)

	return &RedisBackend{
		client: client,
		cb:     cb,
		log:    log,
	}
}

func (b *RedisBackend) Name() string { return "redis" }

// Get returns ErrNotFound for a missing key. A miss is not a breaker failure.
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		data, err := b.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return []byte(nil), nil
		}
		return data, err
	})
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	data := res.([]byte)
	if data == nil {
		return nil, ErrNotFound
	}
	return data, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.client.Set(ctx, key, value, 0).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Update retries the WATCH transaction while another client modifies key.
func (b *RedisBackend) Update(ctx context.Context, key string, fn UpdateFunc) error {
	txf := func(tx *redis.Tx) error {
		old, err := tx.Get(ctx, key).Bytes()
		if err != nil && err != redis.Nil {
			return err
		}

		value, changed, err := fn(old)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, value, 0)
			return nil
		})
		return err
	}

	_, err := b.cb.Execute(func() (interface{}, error) {
		for i := 0; i < maxTxRetries; i++ {
			err := b.client.Watch(ctx, txf, key)
			if errors.Is(err, redis.TxFailedErr) {
				continue
			}
			return nil, err
		}
		return nil, redis.TxFailedErr
	})
	if err != nil {
		return fmt.Errorf("redis update %s: %w", key, err)
	}
	return nil
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// BreakerState reports the breaker state for health output.
func (b *RedisBackend) BreakerState() string {
	return b.cb.State().String()
}
