package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padraicbc/racetime/models"
	"github.com/padraicbc/racetime/store"
)

var ctx = context.Background()

func TestUniqueness(t *testing.T) {
	s := New()
	key := models.TagKey{Num: 1, Color: "red"}

	require.NoError(t, s.InsertTime(ctx, &models.Time{CheckpointID: 1, Tag: key}))
	assert.ErrorIs(t, s.InsertTime(ctx, &models.Time{CheckpointID: 1, Tag: key}), store.ErrDuplicate)
	assert.NoError(t, s.InsertTime(ctx, &models.Time{CheckpointID: 1, Tag: models.TagKey{Num: 1, Color: "blue"}}))

	require.NoError(t, s.CreateTags(ctx, []models.Tag{{Num: 1, Color: "red"}}))
	assert.ErrorIs(t, s.CreateTags(ctx, []models.Tag{{Num: 2, Color: "red"}, {Num: 1, Color: "red"}}), store.ErrDuplicate)
	_, err := s.FindTag(ctx, models.TagKey{Num: 2, Color: "red"})
	assert.ErrorIs(t, err, store.ErrNotFound, "a failed batch stores nothing")

	require.NoError(t, s.InsertRace(ctx, &models.Race{Place: "a"}))
	assert.ErrorIs(t, s.InsertRace(ctx, &models.Race{Place: "b"}), store.ErrDuplicate)

	require.NoError(t, s.InsertResult(ctx, &models.Result{Tag: key}))
	assert.ErrorIs(t, s.InsertResult(ctx, &models.Result{Tag: key}), store.ErrDuplicate)

	require.NoError(t, s.InsertWave(ctx, &models.Wave{Type: "10k", Num: 1, Date: "d"}))
	assert.ErrorIs(t, s.InsertWave(ctx, &models.Wave{Type: "10k", Num: 1, Date: "d"}), store.ErrDuplicate)

	require.NoError(t, s.InsertRunner(ctx, &models.Runner{Name: "a", Tag: key}))
	assert.ErrorIs(t, s.InsertRunner(ctx, &models.Runner{Name: "b", Tag: key}), store.ErrDuplicate)
	assert.NoError(t, s.InsertRunner(ctx, &models.Runner{Name: "c"}))
	assert.NoError(t, s.InsertRunner(ctx, &models.Runner{Name: "d"}), "untagged runners never collide")
}

func TestReturnedValuesAreCopies(t *testing.T) {
	s := New()
	key := models.TagKey{Num: 1, Color: "red"}
	require.NoError(t, s.InsertResult(ctx, &models.Result{
		Tag:           key,
		Times:         map[int]models.CheckpointTime{99: {Time: models.Elapsed(time.Hour)}},
		CheckpointIDs: []int{99},
	}))

	got, err := s.FindResult(ctx, key)
	require.NoError(t, err)
	got.Times[1] = models.CheckpointTime{}
	got.CheckpointIDs[0] = 1

	again, err := s.FindResult(ctx, key)
	require.NoError(t, err)
	assert.Len(t, again.Times, 1)
	assert.Equal(t, []int{99}, again.CheckpointIDs)
}

func TestMergeResultTime(t *testing.T) {
	s := New()
	key := models.TagKey{Num: 1, Color: "red"}
	require.NoError(t, s.InsertResult(ctx, &models.Result{Tag: key, FinishTime: time.Hour}))

	ct := models.CheckpointTime{Time: models.Elapsed(20 * time.Minute)}
	_, err := s.MergeResultTime(ctx, key, 1, ct)
	require.NoError(t, err)
	res, err := s.MergeResultTime(ctx, key, 1, ct)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.CheckpointIDs)
	assert.Equal(t, time.Hour, res.FinishTime)

	res, err = s.MergeResultTime(ctx, key, models.FinishLine, models.CheckpointTime{Time: models.Elapsed(50 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, 50*time.Minute, res.FinishTime)

	_, err = s.MergeResultTime(ctx, models.TagKey{Num: 2, Color: "red"}, 1, ct)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestResultsByDateOrder(t *testing.T) {
	s := New()
	for i, ft := range []time.Duration{50, 20, 35} {
		require.NoError(t, s.InsertResult(ctx, &models.Result{
			Tag:        models.TagKey{Num: i + 1, Color: "red"},
			Date:       "d",
			FinishTime: ft * time.Minute,
		}))
	}
	require.NoError(t, s.InsertResult(ctx, &models.Result{Tag: models.TagKey{Num: 9, Color: "red"}, Date: "other"}))

	got, err := s.ResultsByDate(ctx, "d")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int{2, 3, 1}, []int{got[0].Tag.Num, got[1].Tag.Num, got[2].Tag.Num})
}

func TestWithRankLockUndoesShiftsOnFailure(t *testing.T) {
	s := New()
	a := &models.Result{Tag: models.TagKey{Num: 1, Color: "red"}, Date: "d", Number: 1}
	require.NoError(t, s.InsertResult(ctx, a))

	boom := errors.New("boom")
	err := s.WithRankLock(ctx, "d", func(tx store.Store) error {
		if err := tx.ShiftResultNumbers(ctx, []int64{a.ID}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.FindResult(ctx, a.Tag)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Number)

	require.NoError(t, s.WithRankLock(ctx, "d", func(tx store.Store) error {
		return tx.ShiftResultNumbers(ctx, []int64{a.ID})
	}))
	got, err = s.FindResult(ctx, a.Tag)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Number)
}

func TestCountersAndRace(t *testing.T) {
	s := New()
	assert.ErrorIs(t, s.AddRaceDayCount(ctx, "d", 1), store.ErrNotFound)
	require.NoError(t, s.InsertRace(ctx, &models.Race{Place: "a"}))
	require.NoError(t, s.AddRaceDayCount(ctx, "d", 1))
	require.NoError(t, s.AddRaceDayCount(ctx, "d", 1))
	require.NoError(t, s.AddRaceDayCount(ctx, "d", -1))
	r, err := s.GetRace(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Counts["d"])

	key := models.WaveKey{Type: "10k", Num: 1, Date: "d"}
	assert.ErrorIs(t, s.AddWaveCount(ctx, key, 1), store.ErrNotFound)
	require.NoError(t, s.InsertWave(ctx, &models.Wave{Type: "10k", Num: 1, Date: "d"}))
	require.NoError(t, s.AddWaveCount(ctx, key, 3))
	waves, err := s.FindWaves(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 3, waves[0].Count)

	require.NoError(t, s.DeleteRace(ctx))
	assert.ErrorIs(t, s.DeleteRace(ctx), store.ErrNotFound)
}

func TestCheckpoints(t *testing.T) {
	s := New()
	require.NoError(t, s.InsertCheckpoint(ctx, &models.Checkpoint{Num: 2}))
	require.NoError(t, s.InsertCheckpoint(ctx, &models.Checkpoint{Num: 1}))
	assert.ErrorIs(t, s.InsertCheckpoint(ctx, &models.Checkpoint{Num: 1}), store.ErrDuplicate)

	now := time.Now()
	require.NoError(t, s.TouchCheckpoint(ctx, 2, now))
	assert.ErrorIs(t, s.TouchCheckpoint(ctx, 5, now), store.ErrNotFound)

	cps, err := s.ListCheckpoints(ctx)
	require.NoError(t, err)
	require.Len(t, cps, 2)
	assert.Equal(t, 1, cps[0].Num)
	assert.True(t, cps[1].Online)

	require.NoError(t, s.MarkCheckpointsOffline(ctx, []int{2}))
	cps, err = s.ListCheckpoints(ctx)
	require.NoError(t, err)
	assert.False(t, cps[1].Online)
}
