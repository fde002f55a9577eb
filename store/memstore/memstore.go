// Package memstore is an in-memory store.Store. It enforces the same
// uniqueness rules as the Postgres store and is used for tests and for
// running the service without a database.
package memstore

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/padraicbc/racetime/models"
	"github.com/padraicbc/racetime/store"
)

// Store keeps every collection in maps guarded by a single mutex.
type Store struct {
	mu          sync.Mutex
	seq         int64
	tags        map[int64]*models.Tag
	times       map[int64]*models.Time
	runners     map[int64]*models.Runner
	waves       map[int64]*models.Wave
	results     map[int64]*models.Result
	checkpoints map[int64]*models.Checkpoint
	users       map[string]*models.User
	race        *models.Race

	lockMu    sync.Mutex
	rankLocks map[string]*sync.Mutex
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		tags:        map[int64]*models.Tag{},
		times:       map[int64]*models.Time{},
		runners:     map[int64]*models.Runner{},
		waves:       map[int64]*models.Wave{},
		results:     map[int64]*models.Result{},
		checkpoints: map[int64]*models.Checkpoint{},
		users:       map[string]*models.User{},
		rankLocks:   map[string]*sync.Mutex{},
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// --- tags ---

func (s *Store) FindTag(_ context.Context, key models.TagKey) (*models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tags {
		if t.Key() == key {
			cp := *t
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateTags(_ context.Context, tags []models.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[models.TagKey]bool{}
	for _, t := range s.tags {
		seen[t.Key()] = true
	}
	for i := range tags {
		k := tags[i].Key()
		if seen[k] {
			return store.ErrDuplicate
		}
		seen[k] = true
	}
	for i := range tags {
		tags[i].ID = s.nextID()
		t := tags[i]
		s.tags[t.ID] = &t
	}
	return nil
}

func (s *Store) SetTagAssigned(_ context.Context, key models.TagKey, assigned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tags {
		if t.Key() == key {
			t.Assigned = assigned
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) UnassignAllTags(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tags {
		t.Assigned = false
	}
	return nil
}

func (s *Store) UnassignedTags(_ context.Context) ([]models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Tag
	for _, t := range s.tags {
		if !t.Assigned {
			out = append(out, *t)
		}
	}
	slices.SortFunc(out, func(a, b models.Tag) int {
		return cmp.Or(cmp.Compare(a.Color, b.Color), cmp.Compare(a.Num, b.Num))
	})
	return out, nil
}

func (s *Store) DeleteTags(_ context.Context, color string, from, to int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, t := range s.tags {
		if t.Color == color && t.Num >= from && t.Num <= to {
			delete(s.tags, id)
			n++
		}
	}
	return n, nil
}

// --- times ---

func (s *Store) TimeExists(_ context.Context, checkpointID int, key models.TagKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeExistsLocked(checkpointID, key), nil
}

func (s *Store) timeExistsLocked(checkpointID int, key models.TagKey) bool {
	for _, t := range s.times {
		if t.CheckpointID == checkpointID && t.Tag == key {
			return true
		}
	}
	return false
}

func (s *Store) InsertTime(_ context.Context, t *models.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timeExistsLocked(t.CheckpointID, t.Tag) {
		return store.ErrDuplicate
	}
	t.ID = s.nextID()
	cp := *t
	s.times[t.ID] = &cp
	return nil
}

func (s *Store) TimesByTag(_ context.Context, key models.TagKey) ([]models.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Time
	for _, t := range s.times {
		if t.Tag == key {
			out = append(out, *t)
		}
	}
	slices.SortFunc(out, func(a, b models.Time) int {
		return cmp.Compare(a.CheckpointID, b.CheckpointID)
	})
	return out, nil
}

func (s *Store) CountTimes(_ context.Context, checkpointID int, from, to time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.times {
		if t.CheckpointID == checkpointID && !t.Timestamp.Before(from) && t.Timestamp.Before(to) {
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteAllTimes(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.times)
	return nil
}

// --- runners ---

func (s *Store) InsertRunner(_ context.Context, r *models.Runner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !r.Tag.IsZero() {
		for _, other := range s.runners {
			if other.Tag == r.Tag {
				return store.ErrDuplicate
			}
		}
	}
	r.ID = s.nextID()
	cp := *r
	s.runners[r.ID] = &cp
	return nil
}

func (s *Store) GetRunner(_ context.Context, id int64) (*models.Runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runners[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) RunnersByTag(_ context.Context, key models.TagKey) ([]models.Runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Runner
	for _, r := range s.runners {
		if !r.Tag.IsZero() && r.Tag == key {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *Store) DeleteRunner(_ context.Context, id int64) (*models.Runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runners[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(s.runners, id)
	return r, nil
}

func (s *Store) UpdateRunner(_ context.Context, r *models.Runner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runners[r.ID]; !ok {
		return store.ErrNotFound
	}
	if !r.Tag.IsZero() {
		for oid, other := range s.runners {
			if oid != r.ID && other.Tag == r.Tag {
				return store.ErrDuplicate
			}
		}
	}
	cp := *r
	s.runners[r.ID] = &cp
	return nil
}

func (s *Store) RunnersByTeam(_ context.Context, team string) ([]models.Runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Runner
	for _, r := range s.runners {
		if r.TeamName == team {
			out = append(out, *r)
		}
	}
	slices.SortFunc(out, func(a, b models.Runner) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) UntaggedChronoRunners(_ context.Context) ([]models.Runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chrono := map[models.WaveKey]bool{}
	for _, w := range s.waves {
		if w.Chrono {
			chrono[w.Key()] = true
		}
	}
	var out []models.Runner
	for _, r := range s.runners {
		if r.Tag.IsZero() && chrono[r.WaveKey()] {
			out = append(out, *r)
		}
	}
	slices.SortFunc(out, func(a, b models.Runner) int {
		return cmp.Or(
			cmp.Compare(a.Date, b.Date),
			cmp.Compare(a.WaveID, b.WaveID),
			cmp.Compare(a.TeamName, b.TeamName),
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out, nil
}

func (s *Store) SetRunnerTag(_ context.Context, id int64, key models.TagKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runners[id]
	if !ok {
		return store.ErrNotFound
	}
	for oid, other := range s.runners {
		if oid != id && !key.IsZero() && other.Tag == key {
			return store.ErrDuplicate
		}
	}
	r.Tag = key
	return nil
}

func (s *Store) ClearRunnerTags(_ context.Context, color string, from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runners {
		if r.Tag.Color == color && r.Tag.Num >= from && r.Tag.Num <= to {
			r.Tag = models.TagKey{}
		}
	}
	return nil
}

func (s *Store) DeleteAllRunners(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.runners)
	return nil
}

// --- waves ---

func (s *Store) InsertWave(_ context.Context, w *models.Wave) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.waves {
		if other.Key() == w.Key() {
			return store.ErrDuplicate
		}
	}
	w.ID = s.nextID()
	cp := *w
	s.waves[w.ID] = &cp
	return nil
}

func (s *Store) FindWaves(_ context.Context, key models.WaveKey) ([]models.Wave, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Wave
	for _, w := range s.waves {
		if w.Key() == key {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (s *Store) SetWaveStart(_ context.Context, id int64, start time.Time) (*models.Wave, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.waves[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	w.StartTime = &start
	cp := *w
	return &cp, nil
}

func (s *Store) AddWaveCount(_ context.Context, key models.WaveKey, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.waves {
		if w.Key() == key {
			w.Count += delta
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) DeleteAllWaves(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.waves)
	return nil
}

// --- results ---

func copyResult(r *models.Result) models.Result {
	cp := *r
	cp.Times = maps.Clone(r.Times)
	cp.CheckpointIDs = slices.Clone(r.CheckpointIDs)
	return cp
}

func (s *Store) FindResult(_ context.Context, key models.TagKey) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.results {
		if r.Tag == key {
			cp := copyResult(r)
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ResultsByDate(_ context.Context, date string) ([]models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Result
	for _, r := range s.results {
		if r.Date == date {
			out = append(out, copyResult(r))
		}
	}
	slices.SortFunc(out, func(a, b models.Result) int {
		return cmp.Or(
			cmp.Compare(a.FinishTime, b.FinishTime),
			cmp.Compare(a.Number, b.Number),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out, nil
}

func (s *Store) InsertResult(_ context.Context, r *models.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.results {
		if other.Tag == r.Tag {
			return store.ErrDuplicate
		}
	}
	r.ID = s.nextID()
	cp := copyResult(r)
	s.results[r.ID] = &cp
	return nil
}

func (s *Store) ShiftResultNumbers(_ context.Context, ids []int64) error {
	s.addNumbers(ids, 1)
	return nil
}

func (s *Store) addNumbers(ids []int64, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if r, ok := s.results[id]; ok {
			r.Number += delta
		}
	}
}

func (s *Store) MergeResultTime(_ context.Context, key models.TagKey, checkpointID int, ct models.CheckpointTime) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.results {
		if r.Tag != key {
			continue
		}
		if r.Times == nil {
			r.Times = map[int]models.CheckpointTime{}
		}
		r.Times[checkpointID] = ct
		if !slices.Contains(r.CheckpointIDs, checkpointID) {
			r.CheckpointIDs = append(r.CheckpointIDs, checkpointID)
		}
		if checkpointID == models.FinishLine {
			r.FinishTime = time.Duration(ct.Time)
		}
		cp := copyResult(r)
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (s *Store) DeleteAllResults(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.results)
	return nil
}

// --- race ---

func (s *Store) GetRace(_ context.Context) (*models.Race, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.race == nil {
		return nil, store.ErrNotFound
	}
	cp := *s.race
	cp.Counts = maps.Clone(s.race.Counts)
	cp.TagsColor = slices.Clone(s.race.TagsColor)
	return &cp, nil
}

func (s *Store) InsertRace(_ context.Context, r *models.Race) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.race != nil {
		return store.ErrDuplicate
	}
	r.ID = s.nextID()
	if r.Counts == nil {
		r.Counts = map[string]int{}
	}
	cp := *r
	cp.Counts = maps.Clone(r.Counts)
	cp.TagsColor = slices.Clone(r.TagsColor)
	s.race = &cp
	return nil
}

func (s *Store) DeleteRace(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.race == nil {
		return store.ErrNotFound
	}
	s.race = nil
	return nil
}

func (s *Store) AddRaceDayCount(_ context.Context, date string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.race == nil {
		return store.ErrNotFound
	}
	if s.race.Counts == nil {
		s.race.Counts = map[string]int{}
	}
	s.race.Counts[date] += delta
	return nil
}

func (s *Store) SetTagsAssigned(_ context.Context, assigned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.race == nil {
		return store.ErrNotFound
	}
	s.race.TagsAssigned = assigned
	return nil
}

func (s *Store) AddRaceTagColor(_ context.Context, color string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.race == nil {
		return store.ErrNotFound
	}
	if !slices.Contains(s.race.TagsColor, color) {
		s.race.TagsColor = append(s.race.TagsColor, color)
	}
	return nil
}

// --- checkpoints ---

func (s *Store) InsertCheckpoint(_ context.Context, c *models.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.checkpoints {
		if other.Num == c.Num {
			return store.ErrDuplicate
		}
	}
	c.ID = s.nextID()
	cp := *c
	s.checkpoints[c.ID] = &cp
	return nil
}

func (s *Store) ListCheckpoints(_ context.Context) ([]models.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Checkpoint, 0, len(s.checkpoints))
	for _, c := range s.checkpoints {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b models.Checkpoint) int { return cmp.Compare(a.Num, b.Num) })
	return out, nil
}

func (s *Store) TouchCheckpoint(_ context.Context, num int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.checkpoints {
		if c.Num == num {
			c.Online = true
			c.LastConnection = &at
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) MarkCheckpointsOffline(_ context.Context, nums []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.checkpoints {
		if slices.Contains(nums, c.Num) {
			c.Online = false
		}
	}
	return nil
}

func (s *Store) ResetCheckpointUploads(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.checkpoints {
		c.Uploaded = false
	}
	return nil
}

// --- users ---

func (s *Store) FindUser(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) UpsertUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.users[u.Username]; ok {
		u.ID = old.ID
	} else {
		u.ID = s.nextID()
	}
	cp := *u
	s.users[u.Username] = &cp
	return nil
}

// --- ranking lock ---

func (s *Store) rankLock(date string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.rankLocks[date]
	if !ok {
		l = &sync.Mutex{}
		s.rankLocks[date] = l
	}
	return l
}

// WithRankLock serializes fn per date. Number shifts made by fn are undone
// when fn fails.
func (s *Store) WithRankLock(_ context.Context, date string, fn func(store.Store) error) error {
	l := s.rankLock(date)
	l.Lock()
	defer l.Unlock()

	tx := &rankTx{Store: s}
	if err := fn(tx); err != nil {
		for i := len(tx.shifted) - 1; i >= 0; i-- {
			s.addNumbers(tx.shifted[i], -1)
		}
		return err
	}
	return nil
}

type rankTx struct {
	*Store
	shifted [][]int64
}

func (t *rankTx) ShiftResultNumbers(ctx context.Context, ids []int64) error {
	if err := t.Store.ShiftResultNumbers(ctx, ids); err != nil {
		return err
	}
	t.shifted = append(t.shifted, slices.Clone(ids))
	return nil
}
