package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSnapshotNotFound is returned by a SnapshotStore for unknown ids.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore persists workflows so they survive an API restart.
type SnapshotStore interface {
	Save(ctx context.Context, wf *Workflow) error
	Load(ctx context.Context, id string) (*Workflow, error)
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps one JSON document per workflow with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore builds a snapshot store. ttl <= 0 disables expiry.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "markr:workflow:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Save writes the workflow and refreshes its expiry.
func (s *RedisStore) Save(ctx context.Context, wf *Workflow) error {
	raw, err := json.Marshal(wf)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(wf.ID), raw, s.ttl).Err()
}

// Load reads a workflow snapshot.
func (s *RedisStore) Load(ctx context.Context, id string) (*Workflow, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	var wf Workflow
	if err := json.Unmarshal(raw, &wf); err != nil {
		return nil, err
	}
	wf.state()
	return &wf, nil
}

// Delete removes a workflow snapshot.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}
