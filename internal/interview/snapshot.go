package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/intervu-app/intervu/models"
)

// SnapshotStore persists in-progress sessions so an interrupted interview
// survives a process restart. Best-effort: the engine never blocks on it.
type SnapshotStore interface {
	Save(ctx context.Context, s models.Session) error
	Load(ctx context.Context, id string) (models.Session, bool, error)
	Delete(ctx context.Context, id string) error
}

// RedisSnapshots stores session snapshots as JSON values with a TTL.
type RedisSnapshots struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSnapshots builds a snapshot store over an existing client.
func NewRedisSnapshots(client *redis.Client, ttl time.Duration) *RedisSnapshots {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisSnapshots{client: client, ttl: ttl}
}

func snapshotKey(id string) string { return fmt.Sprintf("interview:%s:session", id) }

func (r *RedisSnapshots) Save(ctx context.Context, s models.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, snapshotKey(s.ID), data, r.ttl).Err()
}

func (r *RedisSnapshots) Load(ctx context.Context, id string) (models.Session, bool, error) {
	val, err := r.client.Get(ctx, snapshotKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return models.Session{}, false, nil
	}
	if err != nil {
		return models.Session{}, false, err
	}
	var s models.Session
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return models.Session{}, false, err
	}
	return s, true, nil
}

func (r *RedisSnapshots) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, snapshotKey(id)).Err()
}
