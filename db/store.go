package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/padraicbc/racetime/models"
	"github.com/padraicbc/racetime/store"
)

// Store is the Postgres implementation of store.Store. The same type wraps
// both the connection pool and a ranking transaction.
type Store struct {
	db bun.IDB
}

var _ store.Store = (*Store)(nil)

// NewStore wraps an open bun connection.
func NewStore(db bun.IDB) *Store {
	return &Store{db: db}
}

// mapErr translates driver errors to the store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('C') == "23505" {
		return fmt.Errorf("%w: %s", store.ErrDuplicate, pgErr.Field('n'))
	}
	return err
}

// affected returns ErrNotFound when res touched no rows.
func affected(res sql.Result, err error) error {
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) truncate(ctx context.Context, model any) error {
	_, err := s.db.NewTruncateTable().Model(model).Exec(ctx)
	return err
}

// --- tags ---

func (s *Store) FindTag(ctx context.Context, key models.TagKey) (*models.Tag, error) {
	tag := &models.Tag{}
	err := s.db.NewSelect().Model(tag).
		Where("num = ? AND color = ?", key.Num, key.Color).
		Scan(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return tag, nil
}

func (s *Store) CreateTags(ctx context.Context, tags []models.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	_, err := s.db.NewInsert().Model(&tags).Exec(ctx)
	return mapErr(err)
}

func (s *Store) SetTagAssigned(ctx context.Context, key models.TagKey, assigned bool) error {
	return affected(s.db.NewUpdate().Model((*models.Tag)(nil)).
		Set("assigned = ?", assigned).
		Where("num = ? AND color = ?", key.Num, key.Color).
		Exec(ctx))
}

func (s *Store) UnassignAllTags(ctx context.Context) error {
	_, err := s.db.NewUpdate().Model((*models.Tag)(nil)).
		Set("assigned = FALSE").
		Where("assigned = TRUE").
		Exec(ctx)
	return err
}

func (s *Store) UnassignedTags(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	err := s.db.NewSelect().Model(&tags).
		Where("assigned = FALSE").
		Order("color ASC", "num ASC").
		Scan(ctx)
	return tags, err
}

func (s *Store) DeleteTags(ctx context.Context, color string, from, to int) (int, error) {
	res, err := s.db.NewDelete().Model((*models.Tag)(nil)).
		Where("color = ? AND num BETWEEN ? AND ?", color, from, to).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// --- times ---

func (s *Store) TimeExists(ctx context.Context, checkpointID int, key models.TagKey) (bool, error) {
	return s.db.NewSelect().Model((*models.Time)(nil)).
		Where("checkpoint_id = ? AND tag_num = ? AND tag_color = ?", checkpointID, key.Num, key.Color).
		Exists(ctx)
}

func (s *Store) InsertTime(ctx context.Context, t *models.Time) error {
	_, err := s.db.NewInsert().Model(t).Exec(ctx)
	return mapErr(err)
}

func (s *Store) TimesByTag(ctx context.Context, key models.TagKey) ([]models.Time, error) {
	var times []models.Time
	err := s.db.NewSelect().Model(&times).
		Where("tag_num = ? AND tag_color = ?", key.Num, key.Color).
		Order("checkpoint_id ASC").
		Scan(ctx)
	return times, err
}

func (s *Store) CountTimes(ctx context.Context, checkpointID int, from, to time.Time) (int, error) {
	return s.db.NewSelect().Model((*models.Time)(nil)).
		Where("checkpoint_id = ?", checkpointID).
		Where("timestamp >= ? AND timestamp < ?", from, to).
		Count(ctx)
}

func (s *Store) DeleteAllTimes(ctx context.Context) error {
	return s.truncate(ctx, (*models.Time)(nil))
}

// --- runners ---

func (s *Store) InsertRunner(ctx context.Context, r *models.Runner) error {
	_, err := s.db.NewInsert().Model(r).Exec(ctx)
	return mapErr(err)
}

func (s *Store) GetRunner(ctx context.Context, id int64) (*models.Runner, error) {
	r := &models.Runner{}
	if err := s.db.NewSelect().Model(r).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, mapErr(err)
	}
	return r, nil
}

func (s *Store) RunnersByTag(ctx context.Context, key models.TagKey) ([]models.Runner, error) {
	var runners []models.Runner
	err := s.db.NewSelect().Model(&runners).
		Where("tag_num = ? AND tag_color = ?", key.Num, key.Color).
		Scan(ctx)
	return runners, err
}

func (s *Store) DeleteRunner(ctx context.Context, id int64) (*models.Runner, error) {
	r := &models.Runner{}
	err := s.db.NewDelete().Model(r).
		Where("id = ?", id).
		Returning("*").
		Scan(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return r, nil
}

func (s *Store) UpdateRunner(ctx context.Context, r *models.Runner) error {
	return affected(s.db.NewUpdate().Model(r).WherePK().Exec(ctx))
}

func (s *Store) RunnersByTeam(ctx context.Context, team string) ([]models.Runner, error) {
	var runners []models.Runner
	err := s.db.NewSelect().Model(&runners).
		Where("team_name = ?", team).
		Order("id ASC").
		Scan(ctx)
	return runners, err
}

func (s *Store) UntaggedChronoRunners(ctx context.Context) ([]models.Runner, error) {
	var runners []models.Runner
	err := s.db.NewSelect().Model(&runners).
		Join("JOIN waves AS w ON w.type = rn.type AND w.num = rn.wave_id AND w.date = rn.date").
		Where("w.chrono = TRUE").
		Where("rn.tag_num = 0").
		OrderExpr("rn.date ASC, rn.wave_id ASC, rn.team_name ASC, rn.name ASC, rn.id ASC").
		Scan(ctx)
	return runners, err
}

func (s *Store) SetRunnerTag(ctx context.Context, id int64, key models.TagKey) error {
	return affected(s.db.NewUpdate().Model((*models.Runner)(nil)).
		Set("tag_num = ?, tag_color = ?", key.Num, key.Color).
		Where("id = ?", id).
		Exec(ctx))
}

func (s *Store) ClearRunnerTags(ctx context.Context, color string, from, to int) error {
	_, err := s.db.NewUpdate().Model((*models.Runner)(nil)).
		Set("tag_num = 0, tag_color = ''").
		Where("tag_color = ? AND tag_num BETWEEN ? AND ?", color, from, to).
		Exec(ctx)
	return err
}

func (s *Store) DeleteAllRunners(ctx context.Context) error {
	return s.truncate(ctx, (*models.Runner)(nil))
}

// --- waves ---

func (s *Store) InsertWave(ctx context.Context, w *models.Wave) error {
	_, err := s.db.NewInsert().Model(w).Exec(ctx)
	return mapErr(err)
}

func (s *Store) FindWaves(ctx context.Context, key models.WaveKey) ([]models.Wave, error) {
	var waves []models.Wave
	err := s.db.NewSelect().Model(&waves).
		Where("type = ? AND num = ? AND date = ?", key.Type, key.Num, key.Date).
		Scan(ctx)
	return waves, err
}

func (s *Store) SetWaveStart(ctx context.Context, id int64, start time.Time) (*models.Wave, error) {
	w := &models.Wave{}
	err := s.db.NewUpdate().Model(w).
		Set("start_time = ?", start).
		Where("id = ?", id).
		Returning("*").
		Scan(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return w, nil
}

func (s *Store) AddWaveCount(ctx context.Context, key models.WaveKey, delta int) error {
	return affected(s.db.NewUpdate().Model((*models.Wave)(nil)).
		Set("count = count + ?", delta).
		Where("type = ? AND num = ? AND date = ?", key.Type, key.Num, key.Date).
		Exec(ctx))
}

func (s *Store) DeleteAllWaves(ctx context.Context) error {
	return s.truncate(ctx, (*models.Wave)(nil))
}

// --- results ---

func (s *Store) FindResult(ctx context.Context, key models.TagKey) (*models.Result, error) {
	r := &models.Result{}
	err := s.db.NewSelect().Model(r).
		Where("tag_num = ? AND tag_color = ?", key.Num, key.Color).
		Scan(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return r, nil
}

func (s *Store) ResultsByDate(ctx context.Context, date string) ([]models.Result, error) {
	var results []models.Result
	err := s.db.NewSelect().Model(&results).
		Where("date = ?", date).
		Order("finish_time ASC", "number ASC", "id ASC").
		Scan(ctx)
	return results, err
}

func (s *Store) InsertResult(ctx context.Context, r *models.Result) error {
	_, err := s.db.NewInsert().Model(r).Exec(ctx)
	return mapErr(err)
}

func (s *Store) ShiftResultNumbers(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.NewUpdate().Model((*models.Result)(nil)).
		Set("number = number + 1").
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	return err
}

const mergeResultTimeSQL = `
UPDATE results SET
	times = jsonb_set(COALESCE(times, '{}'::jsonb), ARRAY[?::text], ?::jsonb, true),
	checkpoints_ids = CASE
		WHEN ?::int = ANY(checkpoints_ids) THEN checkpoints_ids
		ELSE array_append(checkpoints_ids, ?::int)
	END,
	finish_time = CASE WHEN ?::int = ? THEN ?::bigint ELSE finish_time END
WHERE tag_num = ? AND tag_color = ?
RETURNING *`

func (s *Store) MergeResultTime(ctx context.Context, key models.TagKey, checkpointID int, ct models.CheckpointTime) (*models.Result, error) {
	b, err := json.Marshal(ct)
	if err != nil {
		return nil, err
	}
	r := &models.Result{}
	err = s.db.NewRaw(mergeResultTimeSQL,
		strconv.Itoa(checkpointID), string(b),
		checkpointID, checkpointID,
		checkpointID, models.FinishLine, int64(ct.Time),
		key.Num, key.Color,
	).Scan(ctx, r)
	if err != nil {
		return nil, mapErr(err)
	}
	return r, nil
}

func (s *Store) DeleteAllResults(ctx context.Context) error {
	return s.truncate(ctx, (*models.Result)(nil))
}

// --- race ---

func (s *Store) GetRace(ctx context.Context) (*models.Race, error) {
	r := &models.Race{}
	if err := s.db.NewSelect().Model(r).Limit(1).Scan(ctx); err != nil {
		return nil, mapErr(err)
	}
	return r, nil
}

func (s *Store) InsertRace(ctx context.Context, r *models.Race) error {
	_, err := s.db.NewInsert().Model(r).Exec(ctx)
	return mapErr(err)
}

func (s *Store) DeleteRace(ctx context.Context) error {
	return affected(s.db.NewDelete().Model((*models.Race)(nil)).
		Where("TRUE").
		Exec(ctx))
}

func (s *Store) AddRaceDayCount(ctx context.Context, date string, delta int) error {
	return affected(s.db.NewUpdate().Model((*models.Race)(nil)).
		Set("counts = jsonb_set(COALESCE(counts, '{}'::jsonb), ARRAY[?::text], to_jsonb(COALESCE((counts->>?)::int, 0) + ?), true)", date, date, delta).
		Where("TRUE").
		Exec(ctx))
}

func (s *Store) SetTagsAssigned(ctx context.Context, assigned bool) error {
	return affected(s.db.NewUpdate().Model((*models.Race)(nil)).
		Set("tags_assigned = ?", assigned).
		Where("TRUE").
		Exec(ctx))
}

func (s *Store) AddRaceTagColor(ctx context.Context, color string) error {
	return affected(s.db.NewUpdate().Model((*models.Race)(nil)).
		Set("tags_color = CASE WHEN ? = ANY(COALESCE(tags_color, '{}'::text[])) THEN tags_color ELSE array_append(COALESCE(tags_color, '{}'::text[]), ?) END", color, color).
		Where("TRUE").
		Exec(ctx))
}

// --- checkpoints ---

func (s *Store) InsertCheckpoint(ctx context.Context, c *models.Checkpoint) error {
	_, err := s.db.NewInsert().Model(c).Exec(ctx)
	return mapErr(err)
}

func (s *Store) ListCheckpoints(ctx context.Context) ([]models.Checkpoint, error) {
	var cps []models.Checkpoint
	err := s.db.NewSelect().Model(&cps).Order("num ASC").Scan(ctx)
	return cps, err
}

func (s *Store) TouchCheckpoint(ctx context.Context, num int, at time.Time) error {
	return affected(s.db.NewUpdate().Model((*models.Checkpoint)(nil)).
		Set("online = TRUE, last_connection = ?", at).
		Where("num = ?", num).
		Exec(ctx))
}

func (s *Store) MarkCheckpointsOffline(ctx context.Context, nums []int) error {
	if len(nums) == 0 {
		return nil
	}
	_, err := s.db.NewUpdate().Model((*models.Checkpoint)(nil)).
		Set("online = FALSE").
		Where("num IN (?)", bun.In(nums)).
		Exec(ctx)
	return err
}

func (s *Store) ResetCheckpointUploads(ctx context.Context) error {
	_, err := s.db.NewUpdate().Model((*models.Checkpoint)(nil)).
		Set("uploaded = FALSE").
		Where("uploaded = TRUE").
		Exec(ctx)
	return err
}

// --- users ---

func (s *Store) FindUser(ctx context.Context, username string) (*models.User, error) {
	u := &models.User{}
	if err := s.db.NewSelect().Model(u).Where("username = ?", username).Scan(ctx); err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

func (s *Store) UpsertUser(ctx context.Context, u *models.User) error {
	_, err := s.db.NewInsert().Model(u).
		On("CONFLICT (username) DO UPDATE SET password = EXCLUDED.password").
		Exec(ctx)
	return err
}

// --- ranking lock ---

// WithRankLock runs fn in a transaction holding a per-date advisory lock.
func (s *Store) WithRankLock(ctx context.Context, date string, fn func(store.Store) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", "results:"+date); err != nil {
			return fmt.Errorf("rank lock %s: %w", date, err)
		}
		return fn(&Store{db: tx})
	})
}
