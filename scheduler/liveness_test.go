package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/padraicbc/racetime/models"
	"github.com/padraicbc/racetime/store/memstore"
)

func TestSweep(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	for _, num := range []int{1, 2, 3, 4} {
		require.NoError(t, s.InsertCheckpoint(ctx, &models.Checkpoint{Num: num}))
	}
	require.NoError(t, s.TouchCheckpoint(ctx, 1, now.Add(-2*time.Second)))  // fresh
	require.NoError(t, s.TouchCheckpoint(ctx, 2, now.Add(-10*time.Second))) // stale
	require.NoError(t, s.TouchCheckpoint(ctx, 3, now.Add(-time.Minute)))    // stale
	// 4 never connected and is already offline.

	l := NewLiveness(s, 5*time.Second, zaptest.NewLogger(t))
	stale, err := l.Sweep(ctx, now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{2, 3}, stale)

	cps, err := s.ListCheckpoints(ctx)
	require.NoError(t, err)
	online := map[int]bool{}
	for _, c := range cps {
		online[c.Num] = c.Online
	}
	assert.Equal(t, map[int]bool{1: true, 2: false, 3: false, 4: false}, online)

	stale, err = l.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestStartStop(t *testing.T) {
	l := NewLiveness(memstore.New(), time.Second, zaptest.NewLogger(t))
	assert.Error(t, l.Start("not a schedule"))
	require.NoError(t, l.Start("@every 1h"))
	assert.Error(t, l.Start("@every 1h"))
	l.Stop()
	l.Stop()
}
