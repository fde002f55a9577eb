package timing

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/racetime/metrics"
	"github.com/padraicbc/racetime/models"
	"github.com/padraicbc/racetime/store"
)

// Engine turns validated crossings into results. It keeps no state between
// events; everything lives in the store.
type Engine struct {
	store     store.Store
	validator *Validator
	ranker    *Ranker
	pub       Publisher
	log       *zap.Logger
}

// NewEngine wires the validator, resolver and ranker over s. A nil pub
// drops notifications.
func NewEngine(s store.Store, pub Publisher, log *zap.Logger) *Engine {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &Engine{
		store:     s,
		validator: NewValidator(s, s),
		ranker:    NewRanker(s, pub),
		pub:       pub,
		log:       log,
	}
}

// Ingest validates and stores one crossing, then resolves it against the
// tag's result. A crossing that was stored stays stored when resolution
// fails; the stored time is returned with the error.
func (e *Engine) Ingest(ctx context.Context, in TimeInput) (*models.Time, error) {
	t, err := e.validator.Validate(ctx, in)
	if err != nil {
		metrics.RecordTimeRejected(KindOf(err).String())
		return nil, err
	}

	if err := e.store.InsertTime(ctx, t); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			metrics.RecordTimeRejected(KindConflict.String())
			return nil, newError(KindConflict, "this tag already has a time at that checkpoint")
		}
		return nil, internal("insert time", err)
	}
	metrics.RecordTimeAccepted()
	e.pub.Publish(EventTimeCreated, t)

	if err := e.Resolve(ctx, t); err != nil {
		e.log.Warn("time stored without result",
			zap.Int("checkpoint", t.CheckpointID),
			zap.Stringer("tag", t.Tag),
			zap.Error(err),
		)
		return t, err
	}
	return t, nil
}

// Resolve applies a stored crossing to the result of its tag: a first
// finish-line crossing creates the result, any crossing of a tag that
// already has one is merged into it, and intermediate crossings of tags
// without a result are ignored.
func (e *Engine) Resolve(ctx context.Context, t *models.Time) error {
	res, err := e.store.FindResult(ctx, t.Tag)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if t.CheckpointID != models.FinishLine {
			return nil
		}
		_, err := e.createResult(ctx, t.Tag)
		return err
	case err != nil:
		return internal("find result", err)
	}
	_, err = e.merge(ctx, res, t)
	return err
}

// Reprocess rebuilds the result of a tag from its stored crossings. It is
// the retry path for finish crossings that were stored while runner or wave
// data was missing.
func (e *Engine) Reprocess(ctx context.Context, key models.TagKey) (*models.Result, error) {
	res, err := e.store.FindResult(ctx, key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, internal("find result", err)
	}
	if res == nil {
		return e.createResult(ctx, key)
	}

	times, err := e.store.TimesByTag(ctx, key)
	if err != nil {
		return nil, internal("list times", err)
	}
	for i := range times {
		if res, err = e.merge(ctx, res, &times[i]); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (e *Engine) createResult(ctx context.Context, key models.TagKey) (*models.Result, error) {
	runners, err := e.store.RunnersByTag(ctx, key)
	if err != nil {
		return nil, internal("find runner", err)
	}
	if len(runners) != 1 {
		return nil, newError(KindNotFound, "no runner for this tag")
	}
	runner := runners[0]

	waves, err := e.store.FindWaves(ctx, runner.WaveKey())
	if err != nil {
		return nil, internal("find wave", err)
	}
	if len(waves) != 1 || waves[0].StartTime == nil {
		return nil, newError(KindNotFound, "no wave or no start time for this wave")
	}
	start := *waves[0].StartTime

	times, err := e.store.TimesByTag(ctx, key)
	if err != nil {
		return nil, internal("list times", err)
	}

	distances := e.distances(ctx)
	res := &models.Result{
		Tag:           runner.Tag,
		Name:          runner.Name,
		TeamName:      runner.TeamName,
		Gender:        runner.Gender,
		Date:          runner.Date,
		StartTime:     start,
		Times:         make(map[int]models.CheckpointTime, len(times)),
		CheckpointIDs: make([]int, 0, len(times)),
	}
	for _, t := range times {
		el := Elapsed(start, t.Timestamp)
		res.Times[t.CheckpointID] = checkpointTime(distances, t.CheckpointID, el)
		res.CheckpointIDs = append(res.CheckpointIDs, t.CheckpointID)
	}
	finish, ok := res.Times[models.FinishLine]
	if !ok {
		return nil, newError(KindNotFound, "no finish time for this tag")
	}
	res.FinishTime = time.Duration(finish.Time)

	if err := e.ranker.Insert(ctx, res); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, newError(KindConflict, "result already exists for this tag")
		}
		return nil, internal("insert result", err)
	}
	metrics.RecordResult("created")
	e.pub.Publish(EventResultCreated, res)
	return res, nil
}

func (e *Engine) merge(ctx context.Context, res *models.Result, t *models.Time) (*models.Result, error) {
	el := Elapsed(res.StartTime, t.Timestamp)
	ct := checkpointTime(e.distances(ctx), t.CheckpointID, el)

	updated, err := e.store.MergeResultTime(ctx, t.Tag, t.CheckpointID, ct)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindNotFound, "result disappeared")
	}
	if err != nil {
		return nil, internal("patch result", err)
	}
	metrics.RecordResult("patched")
	e.pub.Publish(EventResultPatched, updated)
	return updated, nil
}

// distances maps checkpoint number to its distance in meters. Speeds are
// informational, so a failed lookup only drops them.
func (e *Engine) distances(ctx context.Context) map[int]float64 {
	cps, err := e.store.ListCheckpoints(ctx)
	if err != nil {
		e.log.Warn("list checkpoints for speed", zap.Error(err))
		return nil
	}
	out := make(map[int]float64, len(cps))
	for _, c := range cps {
		out[c.Num] = c.Distance
	}
	return out
}

func checkpointTime(distances map[int]float64, checkpointID int, el time.Duration) models.CheckpointTime {
	ct := models.CheckpointTime{Time: models.Elapsed(el)}
	if v, ok := Speed(distances[checkpointID], el); ok {
		ct.Speed = &v
	}
	return ct
}
