package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/olzhask/aqylbot/internal/history"
)

const defaultRedisKey = "aqylbot:history"

// RedisBackend stores the snapshot under a single key, overwritten wholesale.
type RedisBackend struct {
	Client *redis.Client
	Key    string
}

func NewRedisBackend(addr, password string, db int, key string) *RedisBackend {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisBackend{
		Client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		Key: key,
	}
}

func (r *RedisBackend) Load(ctx context.Context) (map[int64][]history.DialogMessage, error) {
	data, err := r.Client.Get(ctx, r.Key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return map[int64][]history.DialogMessage{}, nil
		}
		return nil, fmt.Errorf("snapshot redis get %s: %w", r.Key, err)
	}
	out := make(map[int64][]history.DialogMessage)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("snapshot redis decode %s: %w", r.Key, err)
	}
	return out, nil
}

func (r *RedisBackend) Save(ctx context.Context, snap map[int64][]history.DialogMessage) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshot encode: %w", err)
	}
	if err := r.Client.Set(ctx, r.Key, data, 0).Err(); err != nil {
		return fmt.Errorf("snapshot redis set %s: %w", r.Key, err)
	}
	return nil
}

func (r *RedisBackend) Close() error {
	return r.Client.Close()
}
