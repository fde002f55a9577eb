package timing

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padraicbc/racetime/models"
)

func TestIngestValidation(t *testing.T) {
	f := newFixture(t)
	w := f.wave(1, raceDay, ptr(gun))
	f.runner("Aoife", w, red(1))
	_, err := f.counters.CreateTags(f.ctx, TagRange{From: 2, Color: "red"})
	require.NoError(t, err)

	ts := gun.Add(time.Minute).Format(time.RFC3339)
	tests := []struct {
		name string
		in   TimeInput
		want error
	}{
		{"no timestamp", TimeInput{CheckpointID: 1, TagNum: "1", TagColor: "red"}, ErrMissingField},
		{"no checkpoint", TimeInput{TagNum: "1", TagColor: "red", Timestamp: ts}, ErrMissingField},
		{"non numeric tag", TimeInput{CheckpointID: 1, TagNum: "x1", TagColor: "red", Timestamp: ts}, ErrMissingField},
		{"bad timestamp", TimeInput{CheckpointID: 1, TagNum: "1", TagColor: "red", Timestamp: "yesterday"}, ErrMissingField},
		{"unknown tag", TimeInput{CheckpointID: 1, TagNum: "1", TagColor: "blue", Timestamp: ts}, ErrNotFound},
		{"unassigned tag", TimeInput{CheckpointID: 1, TagNum: "2", TagColor: "red", Timestamp: ts}, ErrNotAcceptable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.engine.Ingest(f.ctx, tt.in)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	times, err := f.store.TimesByTag(f.ctx, red(1))
	require.NoError(t, err)
	assert.Empty(t, times, "rejected crossings must not be stored")
}

func TestIngestNormalizesTimestamp(t *testing.T) {
	f := newFixture(t)
	w := f.wave(1, raceDay, ptr(gun))
	f.runner("Aoife", w, red(1))

	at := gun.Add(90 * time.Second)
	got, err := f.engine.Ingest(f.ctx, TimeInput{
		CheckpointID: 1,
		TagNum:       " 1 ",
		TagColor:     "red",
		Timestamp:    fmt.Sprint(at.UnixMilli()),
	})
	require.NoError(t, err)
	assert.True(t, at.Equal(got.Timestamp))
	assert.Equal(t, red(1), got.Tag)
	assert.Len(t, f.pub.named(EventTimeCreated), 1)
}

func TestIngestDuplicateConflict(t *testing.T) {
	f := newFixture(t)
	w := f.wave(1, raceDay, ptr(gun))
	f.runner("Aoife", w, red(1))

	_, err := f.cross(1, red(1), gun.Add(10*time.Minute))
	require.NoError(t, err)
	_, err = f.cross(1, red(1), gun.Add(11*time.Minute))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestIngestConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)
	w := f.wave(1, raceDay, ptr(gun))
	f.runner("Aoife", w, red(1))

	const n = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.cross(2, red(1), gun.Add(time.Duration(20+i)*time.Minute))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case KindOf(err) == KindConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
	times, err := f.store.TimesByTag(f.ctx, red(1))
	require.NoError(t, err)
	assert.Len(t, times, 1)
}

func TestFinishWithoutRunner(t *testing.T) {
	f := newFixture(t)
	_, err := f.counters.CreateTags(f.ctx, TagRange{From: 7, Color: "red"})
	require.NoError(t, err)
	require.NoError(t, f.store.SetTagAssigned(f.ctx, red(7), true))

	stored, err := f.cross(models.FinishLine, red(7), gun.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "no runner for this tag")
	require.NotNil(t, stored, "the crossing stays stored")

	times, err := f.store.TimesByTag(f.ctx, red(7))
	require.NoError(t, err)
	assert.Len(t, times, 1)
}

func TestFinishWithoutWaveStart(t *testing.T) {
	f := newFixture(t)
	w := f.wave(1, raceDay, nil)
	f.runner("Aoife", w, red(1))

	_, err := f.cross(models.FinishLine, red(1), gun.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "no wave or no start time for this wave")

	_, err = f.store.FindResult(f.ctx, red(1))
	assert.Error(t, err)
}

func TestIntermediateBeforeFinishIsFoldedIn(t *testing.T) {
	f := newFixture(t)
	w := f.wave(1, raceDay, ptr(gun))
	f.runner("Aoife", w, red(1))

	_, err := f.cross(1, red(1), gun.Add(20*time.Minute))
	require.NoError(t, err)
	_, err = f.store.FindResult(f.ctx, red(1))
	require.Error(t, err, "an intermediate crossing alone creates no result")

	_, err = f.cross(models.FinishLine, red(1), gun.Add(45*time.Minute))
	require.NoError(t, err)

	res := f.result(red(1))
	assert.Equal(t, []int{1, models.FinishLine}, res.CheckpointIDs)
	assert.Equal(t, models.Elapsed(20*time.Minute), res.Times[1].Time)
	assert.Equal(t, models.Elapsed(45*time.Minute), res.Times[models.FinishLine].Time)
	assert.Equal(t, 45*time.Minute, res.FinishTime)
	assert.Equal(t, "Aoife", res.Name)
	assert.True(t, gun.Equal(res.StartTime))
	assert.Equal(t, 1, res.Number)
	assert.Len(t, f.pub.named(EventResultCreated), 1)
}

func TestMergeAfterFinish(t *testing.T) {
	f := newFixture(t)
	w := f.wave(1, raceDay, ptr(gun))
	f.runner("Aoife", w, red(1))

	_, err := f.cross(models.FinishLine, red(1), gun.Add(45*time.Minute))
	require.NoError(t, err)
	_, err = f.cross(2, red(1), gun.Add(30*time.Minute))
	require.NoError(t, err)

	res := f.result(red(1))
	assert.Equal(t, []int{models.FinishLine, 2}, res.CheckpointIDs)
	assert.Equal(t, models.Elapsed(30*time.Minute), res.Times[2].Time)
	assert.Equal(t, 1, res.Number)

	patched := f.pub.named(EventResultPatched)
	require.Len(t, patched, 1)
	assert.Equal(t, models.Elapsed(30*time.Minute), patched[0].(*models.Result).Times[2].Time)
}

func TestMergeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	w := f.wave(1, raceDay, ptr(gun))
	f.runner("Aoife", w, red(1))

	_, err := f.cross(models.FinishLine, red(1), gun.Add(45*time.Minute))
	require.NoError(t, err)
	cp3, err := f.cross(3, red(1), gun.Add(40*time.Minute))
	require.NoError(t, err)

	// Re-delivery of an already merged crossing.
	require.NoError(t, f.engine.Resolve(f.ctx, cp3))
	require.NoError(t, f.engine.Resolve(f.ctx, cp3))

	res := f.result(red(1))
	assert.Equal(t, []int{models.FinishLine, 3}, res.CheckpointIDs)
	assert.Len(t, res.Times, 2)
	assert.Equal(t, models.Elapsed(40*time.Minute), res.Times[3].Time)
}

func TestSpeedIsComputedPerCheckpoint(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.InsertCheckpoint(f.ctx, &models.Checkpoint{Num: 1, Distance: 5000}))
	require.NoError(t, f.store.InsertCheckpoint(f.ctx, &models.Checkpoint{Num: 2}))
	require.NoError(t, f.store.InsertCheckpoint(f.ctx, &models.Checkpoint{Num: models.FinishLine, Distance: 10000}))
	w := f.wave(1, raceDay, ptr(gun))
	f.runner("Aoife", w, red(1))

	_, err := f.cross(1, red(1), gun.Add(20*time.Minute))
	require.NoError(t, err)
	_, err = f.cross(models.FinishLine, red(1), gun.Add(50*time.Minute))
	require.NoError(t, err)
	_, err = f.cross(2, red(1), gun.Add(35*time.Minute))
	require.NoError(t, err)

	res := f.result(red(1))
	require.NotNil(t, res.Times[1].Speed)
	assert.Equal(t, 15.0, *res.Times[1].Speed)
	require.NotNil(t, res.Times[models.FinishLine].Speed)
	assert.Equal(t, 12.0, *res.Times[models.FinishLine].Speed)
	assert.Nil(t, res.Times[2].Speed, "no distance, no speed")
}

func TestReprocessAfterWaveStart(t *testing.T) {
	f := newFixture(t)
	w := f.wave(1, raceDay, nil)
	f.runner("Aoife", w, red(1))

	_, err := f.cross(models.FinishLine, red(1), gun.Add(45*time.Minute))
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.store.SetWaveStart(f.ctx, w.ID, gun)
	require.NoError(t, err)

	res, err := f.engine.Reprocess(f.ctx, red(1))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Number)
	assert.Equal(t, 45*time.Minute, res.FinishTime)

	again, err := f.engine.Reprocess(f.ctx, red(1))
	require.NoError(t, err)
	assert.Equal(t, res.ID, again.ID)
	assert.Equal(t, []int{models.FinishLine}, again.CheckpointIDs)
}

func TestReprocessWithoutFinish(t *testing.T) {
	f := newFixture(t)
	w := f.wave(1, raceDay, ptr(gun))
	f.runner("Aoife", w, red(1))
	_, err := f.cross(1, red(1), gun.Add(10*time.Minute))
	require.NoError(t, err)

	_, err = f.engine.Reprocess(f.ctx, red(1))
	assert.ErrorIs(t, err, ErrNotFound)
}
