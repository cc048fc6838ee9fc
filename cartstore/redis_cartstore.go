package cartstore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// The snapshot lives in a hash under the storage key, in this field.
const redisField = "cart"

// RedisCartStore is a key-value store backed by Redis.
type RedisCartStore struct {
	client *redis.Client
	log    logrus.FieldLogger

	maxAttempts int
	maxBackoff  time.Duration
}

// NewRedisCartStore accepts a Redis connection string ("hostname:port" or a
// redis:// URL) and returns a store instance.
func NewRedisCartStore(redisAddr string, log logrus.FieldLogger) *RedisCartStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	opts, err := redis.ParseURL(redisAddr)
	if err != nil {
		// Not a redis:// URL, use it as a plain address.
		opts = &redis.Options{
			Addr:         redisAddr,
			MinIdleConns: 1,
			MaxRetries:   3,
			DialTimeout:  30 * time.Second,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			PoolSize:     10,
			PoolTimeout:  4 * time.Second,
			IdleTimeout:  180 * time.Second,
		}
	}

	client := redis.NewClient(opts)
	client.AddHook(redisotel.NewTracingHook())

	return &RedisCartStore{
		client:      client,
		log:         log.WithFields(logrus.Fields{"component": "RedisCartStore", "addr": opts.Addr}),
		maxAttempts: 30,
		maxBackoff:  30 * time.Second,
	}
}

// WithRetry overrides the Initialize ping policy.
func (r *RedisCartStore) WithRetry(attempts int, maxBackoff time.Duration) *RedisCartStore {
	if attempts > 0 {
		r.maxAttempts = attempts
	}
	if maxBackoff > 0 {
		r.maxBackoff = maxBackoff
	}
	return r
}

// Initialize waits for Redis to answer a ping, backing off exponentially.
func (r *RedisCartStore) Initialize(ctx context.Context) error {
	r.log.Info("initializing connection...")

	for i := 0; i < r.maxAttempts; i++ {
		r.log.Debugf("attempting Ping (attempt %d/%d)", i+1, r.maxAttempts)
		if r.Ping(ctx) {
			r.log.Infof("Ping successful on attempt %d", i+1)
			return nil
		}
		if i == r.maxAttempts-1 {
			break
		}

		backoff := time.Duration(1000*(1<<uint(i))) * time.Millisecond
		if backoff > r.maxBackoff || backoff <= 0 {
			backoff = r.maxBackoff
		}
		r.log.Infof("waiting %v before next attempt", backoff)

		select {
		case <-ctx.Done():
			r.log.Warnf("context cancelled during backoff: %v", ctx.Err())
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("failed to connect to Redis after %d attempts", r.maxAttempts)
}

// GetItem reads the snapshot field of the hash stored at key.
func (r *RedisCartStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	r.log.WithField("key", key).Debug("GetItem called")

	val, err := r.client.HGet(ctx, key, redisField).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis HGet")
	}
	return val, true, nil
}

// SetItem overwrites the snapshot field of the hash stored at key.
func (r *RedisCartStore) SetItem(ctx context.Context, key, value string) error {
	r.log.WithFields(logrus.Fields{"key": key, "bytes": len(value)}).Debug("SetItem called")

	if err := r.client.HSet(ctx, key, redisField, value).Err(); err != nil {
		return errors.Wrap(err, "redis HSet")
	}
	return nil
}

// RemoveItem deletes the snapshot field; the hash goes with its last field.
func (r *RedisCartStore) RemoveItem(ctx context.Context, key string) error {
	r.log.WithField("key", key).Debug("RemoveItem called")

	if err := r.client.HDel(ctx, key, redisField).Err(); err != nil {
		return errors.Wrap(err, "redis HDel")
	}
	return nil
}

// Ping checks if Redis is alive.
func (r *RedisCartStore) Ping(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.client.Ping(pingCtx).Err(); err != nil {
		r.log.Warnf("Ping failed with error: %v", err)
		return false
	}
	return true
}

func (r *RedisCartStore) Close() error {
	return r.client.Close()
}
