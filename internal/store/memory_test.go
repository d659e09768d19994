package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonavox/mediad/internal/core"
)

func TestMemoryStoreReportAndGet(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Report(ctx, core.StatusRecord{
		JobID:    "j1",
		State:    core.StateQueued,
		WorkerID: "worker-1",
		PID:      1234,
	}))

	rec, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, core.StateQueued, rec.State)
	assert.Nil(t, rec.Envelope)
	assert.False(t, rec.UpdatedAt.IsZero(), "Report must stamp UpdatedAt")
}

func TestMemoryStoreKeepsLatestTransition(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	for _, state := range []core.JobState{core.StateQueued, core.StateRunning} {
		require.NoError(t, s.Report(ctx, core.StatusRecord{JobID: "j1", State: state}))
	}
	require.NoError(t, s.Report(ctx, core.StatusRecord{
		JobID:    "j1",
		State:    core.StateDone,
		Envelope: &core.Envelope{Code: 200, JobID: "j1", Message: "done"},
	}))

	rec, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, core.StateDone, rec.State)
	require.NotNil(t, rec.Envelope)
	assert.Equal(t, 200, rec.Envelope.Code)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStoreGetUnknownJob(t *testing.T) {
	s := NewMemory()
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
