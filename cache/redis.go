package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"clipshare/models"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis and checks the connection with a PING.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// RedisStore is a ClipCache backed by Redis. Entries expire with the clip.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (r *RedisStore) Set(ctx context.Context, clip *models.Clip) error {
	ttl := ttlFor(clip, r.now())
	if ttl == 0 {
		return nil
	}
	data, err := json.Marshal(clip)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key(clip.ShortCode), data, ttl).Err()
}

func (r *RedisStore) Get(ctx context.Context, code models.ShortCode) (*models.Clip, error) {
	data, err := r.client.Get(ctx, key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	var clip models.Clip
	if err := json.Unmarshal(data, &clip); err != nil {
		return nil, err
	}
	return &clip, nil
}

func (r *RedisStore) Delete(ctx context.Context, code models.ShortCode) error {
	return r.client.Del(ctx, key(code)).Err()
}

// Close closes the Redis client, which may be shared with the event bus.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
