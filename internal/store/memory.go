// Package store provides the status-sink backends the dispatch engine reports
// job lifecycle transitions to. All backends keep the latest StatusRecord per
// job id; history is not retained.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/sonavox/mediad/internal/core"
)

// MemoryStore keeps job status in a process-local map. It is the default
// backend and the one tests run against.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]core.StatusRecord
}

// NewMemory creates an empty in-memory status store.
func NewMemory() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]core.StatusRecord)}
}

// Report upserts the latest status record for the job.
func (s *MemoryStore) Report(_ context.Context, rec core.StatusRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	s.mu.Lock()
	s.jobs[rec.JobID] = rec
	s.mu.Unlock()
	return nil
}

// Get returns the latest status record for the job, or core.ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, jobID string) (*core.StatusRecord, error) {
	s.mu.RLock()
	rec, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, core.ErrNotFound
	}
	return &rec, nil
}

// Len reports the number of tracked jobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
