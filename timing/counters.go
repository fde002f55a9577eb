package timing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/padraicbc/racetime/models"
	"github.com/padraicbc/racetime/store"
)

// Counters maintains the values derived from reference data: wave
// headcounts, per-day registration counts and tag assignment flags.
type Counters struct {
	store store.Store
	log   *zap.Logger
}

func NewCounters(s store.Store, log *zap.Logger) *Counters {
	return &Counters{store: s, log: log}
}

// CreateRace wipes the previous race's data and stores r. It fails with
// AlreadyExists, before touching anything, while a race exists.
func (c *Counters) CreateRace(ctx context.Context, r *models.Race) error {
	_, err := c.store.GetRace(ctx)
	switch {
	case err == nil:
		return newError(KindAlreadyExists, "only one race can exist")
	case !errors.Is(err, store.ErrNotFound):
		return internal("get race", err)
	}

	_ = c.Reset(ctx)

	if r.Counts == nil {
		r.Counts = map[string]int{}
	}
	if err := c.store.InsertRace(ctx, r); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return newError(KindAlreadyExists, "only one race can exist")
		}
		return internal("insert race", err)
	}
	c.log.Info("race created", zap.String("place", r.Place), zap.String("from", r.DateFrom), zap.String("to", r.DateTo))
	return nil
}

// Reset removes every result, runner, wave and time, frees every tag and
// clears checkpoint upload flags. Each wipe is independent; failures are
// logged and returned joined.
func (c *Counters) Reset(ctx context.Context) error {
	b := newBestEffort(ctx, c.log, "reset")
	b.Go("results", c.store.DeleteAllResults)
	b.Go("runners", c.store.DeleteAllRunners)
	b.Go("waves", c.store.DeleteAllWaves)
	b.Go("times", c.store.DeleteAllTimes)
	b.Go("tags", c.store.UnassignAllTags)
	b.Go("checkpoints", c.store.ResetCheckpointUploads)
	return b.Wait()
}

func (c *Counters) DeleteRace(ctx context.Context) error {
	err := c.store.DeleteRace(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return newError(KindNotFound, "no race")
	}
	if err != nil {
		return internal("delete race", err)
	}
	return nil
}

// RegisterRunner stores a runner in an existing wave, binds its tag if it
// carries one and counts it in the wave and the race day.
func (c *Counters) RegisterRunner(ctx context.Context, r *models.Runner) error {
	waves, err := c.store.FindWaves(ctx, r.WaveKey())
	if err != nil {
		return internal("find wave", err)
	}
	if len(waves) != 1 {
		return newError(KindNotFound, "wave does not exist")
	}

	if !r.Tag.IsZero() {
		tag, err := c.store.FindTag(ctx, r.Tag)
		if errors.Is(err, store.ErrNotFound) {
			return newError(KindNotFound, "tag does not exist")
		}
		if err != nil {
			return internal("find tag", err)
		}
		if tag.Assigned {
			return newError(KindConflict, "tag is already assigned")
		}
	}

	if err := c.store.InsertRunner(ctx, r); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return newError(KindConflict, "tag is already assigned")
		}
		return internal("insert runner", err)
	}

	b := newBestEffort(ctx, c.log, "register_runner")
	if !r.Tag.IsZero() {
		b.Go("tag", func(ctx context.Context) error {
			return c.store.SetTagAssigned(ctx, r.Tag, true)
		})
	}
	b.Go("wave", func(ctx context.Context) error {
		return c.store.AddWaveCount(ctx, r.WaveKey(), 1)
	})
	b.Go("race", func(ctx context.Context) error {
		return c.store.AddRaceDayCount(ctx, r.Date, 1)
	})
	_ = b.Wait()
	return nil
}

// RemoveRunner deletes a runner, then releases its tag and decrements the
// wave and day counts. The counter updates never fail the deletion.
func (c *Counters) RemoveRunner(ctx context.Context, id int64) (*models.Runner, error) {
	r, err := c.store.DeleteRunner(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindNotFound, "runner does not exist")
	}
	if err != nil {
		return nil, internal("delete runner", err)
	}

	b := newBestEffort(ctx, c.log, "remove_runner")
	if !r.Tag.IsZero() {
		b.Go("tag", func(ctx context.Context) error {
			return c.store.SetTagAssigned(ctx, r.Tag, false)
		})
	}
	b.Go("wave", func(ctx context.Context) error {
		return c.store.AddWaveCount(ctx, r.WaveKey(), -1)
	})
	b.Go("race", func(ctx context.Context) error {
		return c.store.AddRaceDayCount(ctx, r.Date, -1)
	})
	_ = b.Wait()
	return r, nil
}

// RunnerUpdate holds the fields of a runner to change. Nil fields are kept.
// A zero Tag unbinds the runner's tag.
type RunnerUpdate struct {
	Name     *string
	Gender   *string
	Age      *int
	TeamID   *int
	TeamName *string
	Type     *string
	WaveID   *int
	Tag      *models.TagKey
}

func (u RunnerUpdate) apply(r models.Runner) models.Runner {
	if u.Name != nil {
		r.Name = *u.Name
	}
	if u.Gender != nil {
		r.Gender = *u.Gender
	}
	if u.Age != nil {
		r.Age = *u.Age
	}
	if u.TeamID != nil {
		r.TeamID = *u.TeamID
	}
	if u.TeamName != nil {
		r.TeamName = *u.TeamName
	}
	if u.Type != nil {
		r.Type = *u.Type
	}
	if u.WaveID != nil {
		r.WaveID = *u.WaveID
	}
	if u.Tag != nil {
		r.Tag = *u.Tag
	}
	return r
}

// teamChange is the part of an update copied to the rest of the team.
type teamChange struct {
	name   *string
	waveID *int
	typ    *string
}

func (t teamChange) empty() bool {
	return t.name == nil && t.waveID == nil && t.typ == nil
}

func (t teamChange) apply(r models.Runner) models.Runner {
	if t.name != nil {
		r.TeamName = *t.name
	}
	if t.waveID != nil {
		r.WaveID = *t.waveID
	}
	if t.typ != nil {
		r.Type = *t.typ
	}
	return r
}

// UpdateRunner changes a runner. A new wave must exist on the runner's day
// and a new tag must exist and be free. Wave headcounts and tag flags follow
// the change, and a changed team name, wave or type is copied to the rest of
// the old team. Those follow-up writes never fail the update.
func (c *Counters) UpdateRunner(ctx context.Context, id int64, u RunnerUpdate) (*models.Runner, error) {
	old, err := c.store.GetRunner(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindNotFound, "runner does not exist")
	}
	if err != nil {
		return nil, internal("get runner", err)
	}
	next := u.apply(*old)
	next.ID = old.ID

	if next.WaveKey() != old.WaveKey() {
		waves, err := c.store.FindWaves(ctx, next.WaveKey())
		if err != nil {
			return nil, internal("find wave", err)
		}
		if len(waves) != 1 {
			return nil, newError(KindNotFound, "wave does not exist")
		}
	}

	tagChanged := next.Tag != old.Tag
	if tagChanged && !next.Tag.IsZero() {
		tag, err := c.store.FindTag(ctx, next.Tag)
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(KindNotFound, "tag does not exist")
		}
		if err != nil {
			return nil, internal("find tag", err)
		}
		if tag.Assigned {
			return nil, newError(KindConflict, "tag is already assigned")
		}
	}

	if err := c.store.UpdateRunner(ctx, &next); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return nil, newError(KindConflict, "tag is already assigned")
		case errors.Is(err, store.ErrNotFound):
			return nil, newError(KindNotFound, "runner does not exist")
		}
		return nil, internal("update runner", err)
	}

	var team teamChange
	if next.TeamName != old.TeamName {
		team.name = &next.TeamName
	}
	if next.WaveID != old.WaveID {
		team.waveID = &next.WaveID
	}
	if next.Type != old.Type {
		team.typ = &next.Type
	}

	b := newBestEffort(ctx, c.log, "update_runner")
	if tagChanged {
		if !old.Tag.IsZero() {
			b.Go("old_tag", func(ctx context.Context) error {
				return c.store.SetTagAssigned(ctx, old.Tag, false)
			})
		}
		if !next.Tag.IsZero() {
			b.Go("tag", func(ctx context.Context) error {
				return c.store.SetTagAssigned(ctx, next.Tag, true)
			})
		}
	}
	c.moveWaveCount(b, *old, next)
	if !team.empty() && old.TeamName != "" {
		b.Go("team", func(ctx context.Context) error {
			return c.updateTeam(ctx, old.TeamName, id, team)
		})
	}
	_ = b.Wait()

	c.log.Info("runner updated", zap.Int64("id", id))
	return &next, nil
}

// moveWaveCount schedules the headcount move when a runner changes wave.
func (c *Counters) moveWaveCount(b *bestEffort, old, next models.Runner) {
	if old.WaveKey() == next.WaveKey() {
		return
	}
	b.Go("old_wave", func(ctx context.Context) error {
		return c.store.AddWaveCount(ctx, old.WaveKey(), -1)
	})
	b.Go("wave", func(ctx context.Context) error {
		return c.store.AddWaveCount(ctx, next.WaveKey(), 1)
	})
}

// updateTeam copies change to every runner of the named team except skip and
// moves the headcount of the teammates that changed wave.
func (c *Counters) updateTeam(ctx context.Context, name string, skip int64, change teamChange) error {
	mates, err := c.store.RunnersByTeam(ctx, name)
	if err != nil {
		return err
	}
	var errs []error
	for _, mate := range mates {
		if mate.ID == skip {
			continue
		}
		moved := change.apply(mate)
		if err := c.store.UpdateRunner(ctx, &moved); err != nil {
			errs = append(errs, fmt.Errorf("runner %d: %w", mate.ID, err))
			continue
		}
		if moved.WaveKey() == mate.WaveKey() {
			continue
		}
		if err := c.store.AddWaveCount(ctx, mate.WaveKey(), -1); err != nil {
			errs = append(errs, fmt.Errorf("runner %d old wave: %w", mate.ID, err))
		}
		if err := c.store.AddWaveCount(ctx, moved.WaveKey(), 1); err != nil {
			errs = append(errs, fmt.Errorf("runner %d wave: %w", mate.ID, err))
		}
	}
	return errors.Join(errs...)
}

// TagRange selects tags of one color. To == 0 selects the single tag From.
type TagRange struct {
	From  int
	To    int
	Color string
}

func (tr TagRange) normalize() (TagRange, error) {
	tr.Color = strings.TrimSpace(tr.Color)
	if tr.Color == "" {
		return tr, newError(KindMissingField, "no color")
	}
	if tr.From <= 0 {
		return tr, newError(KindMissingField, "tag numbers start at 1")
	}
	if tr.To == 0 {
		tr.To = tr.From
	}
	if tr.To < tr.From {
		return tr, newError(KindMissingField, "range end is before its start")
	}
	return tr, nil
}

// CreateTags materializes one unassigned tag per number in the range.
func (c *Counters) CreateTags(ctx context.Context, tr TagRange) ([]models.Tag, error) {
	tr, err := tr.normalize()
	if err != nil {
		return nil, err
	}
	tags := make([]models.Tag, 0, tr.To-tr.From+1)
	for n := tr.From; n <= tr.To; n++ {
		tags = append(tags, models.Tag{Num: n, Color: tr.Color})
	}
	if err := c.store.CreateTags(ctx, tags); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, newError(KindConflict, "some tags in the range already exist")
		}
		return nil, internal("create tags", err)
	}
	if err := c.store.AddRaceTagColor(ctx, tr.Color); err != nil && !errors.Is(err, store.ErrNotFound) {
		c.log.Warn("record tag color", zap.String("color", tr.Color), zap.Error(err))
	}
	return tags, nil
}

// RemoveTags deletes the tags in the range and unbinds them from runners.
func (c *Counters) RemoveTags(ctx context.Context, tr TagRange) (int, error) {
	tr, err := tr.normalize()
	if err != nil {
		return 0, err
	}
	if err := c.store.ClearRunnerTags(ctx, tr.Color, tr.From, tr.To); err != nil {
		return 0, internal("clear runner tags", err)
	}
	n, err := c.store.DeleteTags(ctx, tr.Color, tr.From, tr.To)
	if err != nil {
		return 0, internal("delete tags", err)
	}
	return n, nil
}

type tagPair struct {
	runner int64
	tag    models.TagKey
}

// pairTags matches runners ordered by date with free tags ordered by color
// then number. Each new race day starts on the next color so a day's runners
// share one color. Tags skipped that way serve whoever is left over.
func pairTags(runners []models.Runner, tags []models.Tag) []tagPair {
	used := make([]bool, len(tags))
	pairs := make([]tagPair, 0, min(len(runners), len(tags)))
	var left []models.Runner

	ti := 0
	for i, r := range runners {
		if i > 0 && r.Date != runners[i-1].Date && ti > 0 {
			color := tags[ti-1].Color
			for ti < len(tags) && tags[ti].Color == color {
				ti++
			}
		}
		if ti >= len(tags) {
			left = append(left, r)
			continue
		}
		used[ti] = true
		pairs = append(pairs, tagPair{runner: r.ID, tag: tags[ti].Key()})
		ti++
	}

	ti = 0
	for _, r := range left {
		for ti < len(tags) && used[ti] {
			ti++
		}
		if ti == len(tags) {
			break
		}
		used[ti] = true
		pairs = append(pairs, tagPair{runner: r.ID, tag: tags[ti].Key()})
	}
	return pairs
}

// AssignTags binds free tags to runners of chrono waves that have none and
// returns how many were bound. Every race day gets its own color while
// colors last. Runners left over when tags run out stay untagged.
func (c *Counters) AssignTags(ctx context.Context) (int, error) {
	runners, err := c.store.UntaggedChronoRunners(ctx)
	if err != nil {
		return 0, internal("list untagged runners", err)
	}
	tags, err := c.store.UnassignedTags(ctx)
	if err != nil {
		return 0, internal("list free tags", err)
	}

	pairs := pairTags(runners, tags)
	for i, p := range pairs {
		if err := c.store.SetRunnerTag(ctx, p.runner, p.tag); err != nil {
			return i, internal("bind tag "+p.tag.String(), err)
		}
		if err := c.store.SetTagAssigned(ctx, p.tag, true); err != nil {
			return i, internal("mark tag "+p.tag.String(), err)
		}
	}
	if len(pairs) < len(runners) {
		c.log.Warn("not enough tags", zap.Int("runners", len(runners)), zap.Int("tags", len(tags)))
	}

	if err := c.store.SetTagsAssigned(ctx, true); err != nil && !errors.Is(err, store.ErrNotFound) {
		return len(pairs), internal("flag race", err)
	}
	return len(pairs), nil
}
