package storage

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

const threadKeyPrefix = "THREAD:"

func threadKey(threadID string) string { return threadKeyPrefix + threadID }
func logsKey(threadID string) string { return threadKeyPrefix + threadID + ":logs" }

// RedisOptions addresses a Redis server.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisBackend stores each thread as a hash at THREAD:<id> and its log as a
// list at THREAD:<id>:logs.
type RedisBackend struct {
	client *redis.Client
}

// OpenRedis connects to Redis and verifies the connection with PING.
func OpenRedis(ctx context.Context, opts RedisOptions) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	b := &RedisBackend{client: client}
	if err := b.Ping(ctx); err != nil {
		client.Close()
		return nil, errors.WithHintf(err, "is Redis running at %s? set redis.host/redis.port or use store.backend=sqlite", opts.Addr)
	}
	return b, nil
}

func (b *RedisBackend) SetFields(ctx context.Context, threadID string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	return unavailable(b.client.HSet(ctx, threadKey(threadID), values).Err(), "HSET")
}

func (b *RedisBackend) GetField(ctx context.Context, threadID, key string) (string, bool, error) {
	v, err := b.client.HGet(ctx, threadKey(threadID), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable(err, "HGET")
	}
	return v, true, nil
}

func (b *RedisBackend) GetFields(ctx context.Context, threadID string) (map[string]string, error) {
	m, err := b.client.HGetAll(ctx, threadKey(threadID)).Result()
	if err != nil {
		return nil, unavailable(err, "HGETALL")
	}
	return m, nil
}

func (b *RedisBackend) AppendLog(ctx context.Context, threadID, entry string) error {
	return unavailable(b.client.RPush(ctx, logsKey(threadID), entry).Err(), "RPUSH")
}

func (b *RedisBackend) Logs(ctx context.Context, threadID string) ([]string, error) {
	entries, err := b.client.LRange(ctx, logsKey(threadID), 0, -1).Result()
	if err != nil {
		return nil, unavailable(err, "LRANGE")
	}
	return entries, nil
}

func (b *RedisBackend) Delete(ctx context.Context, threadID string) error {
	return unavailable(b.client.Del(ctx, threadKey(threadID), logsKey(threadID)).Err(), "DEL")
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return unavailable(b.client.Ping(ctx).Err(), "PING")
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// unavailable wraps a non-nil Redis error and marks it ErrStoreUnavailable.
func unavailable(err error, op string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, "redis %s", op), ErrStoreUnavailable)
}
