package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sonavox/mediad/internal/core"
)

// RedisStore persists job status as JSON under job:<id> keys with a TTL, so
// finished jobs age out on their own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps an already-connected client. ttl bounds how long a job's
// last status survives after its final transition.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func jobKey(jobID string) string {
	return "job:" + jobID
}

// Report upserts the latest status record for the job and refreshes the TTL.
func (s *RedisStore) Report(ctx context.Context, rec core.StatusRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal status record: %w", err)
	}
	if err := s.client.Set(ctx, jobKey(rec.JobID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write status for job %s: %w", rec.JobID, err)
	}
	return nil
}

// Get returns the latest status record for the job, or core.ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, jobID string) (*core.StatusRecord, error) {
	val, err := s.client.Get(ctx, jobKey(jobID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status for job %s: %w", jobID, err)
	}
	var rec core.StatusRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status for job %s: %w", jobID, err)
	}
	return &rec, nil
}
