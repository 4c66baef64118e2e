// Package redis implements the analytics snapshot cache on Redis. Snapshots
// are plain JSON values under analytics:<scope>:<bucket> keys with a TTL
// matching the staleness bound, so an idle cache cleans itself up.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository"
)

type snapshotStore struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

// NewSnapshotStore creates a Redis-backed snapshot cache. Entries expire
// after ttl on their own; Invalidate deletes them eagerly.
func NewSnapshotStore(client *redislib.Client, ttl time.Duration) repository.SnapshotStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &snapshotStore{
		client: client,
		prefix: "analytics:",
		ttl:    ttl,
	}
}

func (s *snapshotStore) Get(ctx context.Context, scope domain.AnalyticsScope, bucket string) (*domain.AnalyticsSnapshot, error) {
	result, err := s.client.Get(ctx, s.key(scope, bucket)).Result()
	if err != nil {
		if err == redislib.Nil {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, err
	}

	var snapshot domain.AnalyticsSnapshot
	if err := json.Unmarshal([]byte(result), &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *snapshotStore) Put(ctx context.Context, snapshot *domain.AnalyticsSnapshot) error {
	if snapshot == nil || snapshot.Scope == "" || snapshot.Bucket == "" {
		return domain.ErrInvalidPayload
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(snapshot.Scope, snapshot.Bucket), payload, s.ttl).Err()
}

func (s *snapshotStore) Invalidate(ctx context.Context, bucket string, scopes ...domain.AnalyticsScope) error {
	if len(scopes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		keys = append(keys, s.key(scope, bucket))
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *snapshotStore) key(scope domain.AnalyticsScope, bucket string) string {
	return fmt.Sprintf("%s%s:%s", s.prefix, scope, bucket)
}
