package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReclaimExpired(t *testing.T) {
	s, mock, p := newTestStore(t)
	ctx := context.Background()
	_, _ = s.Add(ctx, "q", "1", "a")
	_, _ = s.Add(ctx, "q", "1", "b")
	_, _, _ = s.Get(ctx, "q")

	n, err := s.ReclaimExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	saves := p.saves

	mock.Add(10 * time.Minute)
	n, err = s.ReclaimExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, saves+1, p.saves)
	assert.False(t, p.last.Queues["q"][0].Leased)

	acked, err := s.Ack(ctx, "q", "0")
	require.NoError(t, err)
	assert.False(t, acked, "reclaimed task is no longer leased")
}

func TestSweeperClearsLeasesOnTick(t *testing.T) {
	s, mock, _ := newTestStore(t)
	ctx := context.Background()
	_, _ = s.Add(ctx, "q", "1", "a")
	_, _, _ = s.Get(ctx, "q")

	s.StartSweeper(time.Second, nil)
	defer s.StopSweeper()

	mock.Add(6 * time.Minute)
	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		snap := s.Snapshot()
		return !snap.Queues["q"][0].Leased
	}, time.Second, 5*time.Millisecond)
}

func TestStopSweeperIdempotent(t *testing.T) {
	s, _, _ := newTestStore(t)
	s.StopSweeper()
	s.StartSweeper(time.Second, nil)
	s.StartSweeper(time.Second, nil)
	s.StopSweeper()
	s.StopSweeper()
}
