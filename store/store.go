// Package store defines the persistence contract shared by the timing core,
// the HTTP handlers and the background jobs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/padraicbc/racetime/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate key violation")
)

// TagRepository stores physical tags.
type TagRepository interface {
	FindTag(ctx context.Context, key models.TagKey) (*models.Tag, error)
	CreateTags(ctx context.Context, tags []models.Tag) error
	SetTagAssigned(ctx context.Context, key models.TagKey, assigned bool) error
	UnassignAllTags(ctx context.Context) error
	// UnassignedTags returns free tags ordered by color then number.
	UnassignedTags(ctx context.Context) ([]models.Tag, error)
	DeleteTags(ctx context.Context, color string, from, to int) (int, error)
}

// TimeRepository stores raw checkpoint crossings. InsertTime must fail with
// ErrDuplicate when (checkpoint_id, tag) already exists.
type TimeRepository interface {
	TimeExists(ctx context.Context, checkpointID int, key models.TagKey) (bool, error)
	InsertTime(ctx context.Context, t *models.Time) error
	// TimesByTag returns every crossing of the tag ordered by checkpoint id.
	TimesByTag(ctx context.Context, key models.TagKey) ([]models.Time, error)
	CountTimes(ctx context.Context, checkpointID int, from, to time.Time) (int, error)
	DeleteAllTimes(ctx context.Context) error
}

// RunnerRepository stores race participants.
type RunnerRepository interface {
	InsertRunner(ctx context.Context, r *models.Runner) error
	GetRunner(ctx context.Context, id int64) (*models.Runner, error)
	RunnersByTag(ctx context.Context, key models.TagKey) ([]models.Runner, error)
	DeleteRunner(ctx context.Context, id int64) (*models.Runner, error)
	// UpdateRunner overwrites every column of the runner with r.ID. It fails
	// with ErrDuplicate when r.Tag is already bound to another runner.
	UpdateRunner(ctx context.Context, r *models.Runner) error
	RunnersByTeam(ctx context.Context, team string) ([]models.Runner, error)
	// UntaggedChronoRunners returns runners of chrono waves without a tag,
	// ordered by date, wave, team and name.
	UntaggedChronoRunners(ctx context.Context) ([]models.Runner, error)
	SetRunnerTag(ctx context.Context, id int64, key models.TagKey) error
	ClearRunnerTags(ctx context.Context, color string, from, to int) error
	DeleteAllRunners(ctx context.Context) error
}

// WaveRepository stores start waves.
type WaveRepository interface {
	InsertWave(ctx context.Context, w *models.Wave) error
	FindWaves(ctx context.Context, key models.WaveKey) ([]models.Wave, error)
	SetWaveStart(ctx context.Context, id int64, start time.Time) (*models.Wave, error)
	AddWaveCount(ctx context.Context, key models.WaveKey, delta int) error
	DeleteAllWaves(ctx context.Context) error
}

// ResultRepository stores derived results.
type ResultRepository interface {
	FindResult(ctx context.Context, key models.TagKey) (*models.Result, error)
	// ResultsByDate returns the results of a day ordered by finish time.
	ResultsByDate(ctx context.Context, date string) ([]models.Result, error)
	InsertResult(ctx context.Context, r *models.Result) error
	// ShiftResultNumbers increments the ranking number of the given results.
	ShiftResultNumbers(ctx context.Context, ids []int64) error
	// MergeResultTime atomically sets the time of one checkpoint on the
	// result of the tag and records the checkpoint id once.
	MergeResultTime(ctx context.Context, key models.TagKey, checkpointID int, ct models.CheckpointTime) (*models.Result, error)
	DeleteAllResults(ctx context.Context) error
}

// RaceRepository stores the singleton race. InsertRace must fail with
// ErrDuplicate when a race already exists.
type RaceRepository interface {
	GetRace(ctx context.Context) (*models.Race, error)
	InsertRace(ctx context.Context, r *models.Race) error
	DeleteRace(ctx context.Context) error
	AddRaceDayCount(ctx context.Context, date string, delta int) error
	SetTagsAssigned(ctx context.Context, assigned bool) error
	// AddRaceTagColor records color in the race's tag colors unless present.
	AddRaceTagColor(ctx context.Context, color string) error
}

// CheckpointRepository stores timing devices.
type CheckpointRepository interface {
	InsertCheckpoint(ctx context.Context, c *models.Checkpoint) error
	ListCheckpoints(ctx context.Context) ([]models.Checkpoint, error)
	TouchCheckpoint(ctx context.Context, num int, at time.Time) error
	MarkCheckpointsOffline(ctx context.Context, nums []int) error
	ResetCheckpointUploads(ctx context.Context) error
}

// UserRepository stores operator and device accounts.
type UserRepository interface {
	FindUser(ctx context.Context, username string) (*models.User, error)
	UpsertUser(ctx context.Context, u *models.User) error
}

// Store is the full reference store.
type Store interface {
	TagRepository
	TimeRepository
	RunnerRepository
	WaveRepository
	ResultRepository
	RaceRepository
	CheckpointRepository
	UserRepository

	// WithRankLock runs fn with a store whose writes are serialized against
	// every other WithRankLock call for the same date and commit together.
	WithRankLock(ctx context.Context, date string, fn func(Store) error) error
}
