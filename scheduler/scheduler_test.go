package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (s *stubPruner) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoffs = append(s.cutoffs, cutoff)
	return 2, s.err
}

func TestPruneUsesRetention(t *testing.T) {
	pruner := &stubPruner{}
	s := New(context.Background(), pruner, "@daily", 24*time.Hour)
	now := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.prune()

	require.Len(t, pruner.cutoffs, 1)
	assert.Equal(t, now.Add(-24*time.Hour), pruner.cutoffs[0])
}

func TestPruneSkipsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pruner := &stubPruner{}
	New(ctx, pruner, "@daily", time.Hour).prune()

	assert.Empty(t, pruner.cutoffs)
}

func TestPruneErrorIsLogged(t *testing.T) {
	pruner := &stubPruner{err: errors.New("database is locked")}
	s := New(context.Background(), pruner, "@daily", time.Hour)

	assert.NotPanics(t, s.prune)
	assert.Len(t, pruner.cutoffs, 1)
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	s := New(context.Background(), &stubPruner{}, "not a spec", time.Hour)
	assert.Error(t, s.Start())
}

func TestStartAndStop(t *testing.T) {
	s := New(context.Background(), &stubPruner{}, "@hourly", time.Hour)
	require.NoError(t, s.Start())
	s.Stop()
}
