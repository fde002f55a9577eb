package timing

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/padraicbc/racetime/models"
	"github.com/padraicbc/racetime/store/memstore"
)

const raceDay = "2026-05-01"

var gun = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type event struct {
	name    string
	payload any
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) Publish(name string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{name, payload})
}

func (r *recorder) named(name string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.events {
		if e.name == name {
			out = append(out, e.payload)
		}
	}
	return out
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *memstore.Store
	engine   *Engine
	counters *Counters
	pub      *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	s := memstore.New()
	pub := &recorder{}
	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		store:    s,
		engine:   NewEngine(s, pub, log),
		counters: NewCounters(s, log),
		pub:      pub,
	}
	require.NoError(t, f.counters.CreateRace(f.ctx, &models.Race{Place: "Killarney", DateFrom: raceDay, DateTo: raceDay}))
	return f
}

func (f *fixture) wave(num int, date string, start *time.Time) *models.Wave {
	f.t.Helper()
	w := &models.Wave{Type: "10k", Num: num, Date: date, Chrono: true, StartTime: start}
	require.NoError(f.t, f.store.InsertWave(f.ctx, w))
	return w
}

func (f *fixture) runner(name string, w *models.Wave, tag models.TagKey) *models.Runner {
	f.t.Helper()
	if !tag.IsZero() {
		_, err := f.counters.CreateTags(f.ctx, TagRange{From: tag.Num, Color: tag.Color})
		require.NoError(f.t, err)
	}
	r := &models.Runner{Name: name, Gender: "F", Date: w.Date, Type: w.Type, WaveID: w.Num, Tag: tag}
	require.NoError(f.t, f.counters.RegisterRunner(f.ctx, r))
	return r
}

func (f *fixture) cross(cp int, tag models.TagKey, at time.Time) (*models.Time, error) {
	return f.engine.Ingest(f.ctx, TimeInput{
		CheckpointID: cp,
		TagNum:       strconv.Itoa(tag.Num),
		TagColor:     tag.Color,
		Timestamp:    at.Format(time.RFC3339Nano),
	})
}

func (f *fixture) result(tag models.TagKey) *models.Result {
	f.t.Helper()
	res, err := f.store.FindResult(f.ctx, tag)
	require.NoError(f.t, err)
	return res
}

func ptr[T any](v T) *T { return &v }

func red(n int) models.TagKey { return models.TagKey{Num: n, Color: "red"} }
