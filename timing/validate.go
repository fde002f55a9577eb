package timing

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/padraicbc/racetime/models"
	"github.com/padraicbc/racetime/store"
)

// TimeInput is a crossing as submitted by a checkpoint device. Fields are
// kept raw so the validator owns their normalization.
type TimeInput struct {
	CheckpointID int
	TagNum       string
	TagColor     string
	Timestamp    string
}

// TagChecker confirms that a tag exists and is bound to a runner.
type TagChecker struct {
	tags store.TagRepository
}

func NewTagChecker(tags store.TagRepository) *TagChecker {
	return &TagChecker{tags: tags}
}

// CheckAssigned fails with NotFound for unknown tags and NotAcceptable for
// tags that are not assigned.
func (c *TagChecker) CheckAssigned(ctx context.Context, key models.TagKey) error {
	tag, err := c.tags.FindTag(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return newError(KindNotFound, "tag does not exist")
	}
	if err != nil {
		return internal("find tag", err)
	}
	if !tag.Assigned {
		return newError(KindNotAcceptable, "tag is not assigned")
	}
	return nil
}

// Validator checks crossings before they are stored.
type Validator struct {
	times store.TimeRepository
	tags  *TagChecker
}

func NewValidator(times store.TimeRepository, tags store.TagRepository) *Validator {
	return &Validator{times: times, tags: NewTagChecker(tags)}
}

// Validate returns the normalized crossing ready for storage. The existence
// check for (checkpoint, tag) only short-circuits obvious duplicates; the
// store's unique constraint decides concurrent ones.
func (v *Validator) Validate(ctx context.Context, in TimeInput) (*models.Time, error) {
	if strings.TrimSpace(in.Timestamp) == "" {
		return nil, newError(KindMissingField, "no timestamp")
	}
	if in.CheckpointID == 0 {
		return nil, newError(KindMissingField, "no checkpoint")
	}
	num, err := strconv.Atoi(strings.TrimSpace(in.TagNum))
	if err != nil {
		return nil, newError(KindMissingField, "tag number must be an integer")
	}
	ts, err := ParseTimestamp(in.Timestamp)
	if err != nil {
		return nil, newError(KindMissingField, "invalid timestamp")
	}
	key := models.TagKey{Num: num, Color: strings.TrimSpace(in.TagColor)}

	exists, err := v.times.TimeExists(ctx, in.CheckpointID, key)
	if err != nil {
		return nil, internal("check existing time", err)
	}
	if exists {
		return nil, newError(KindConflict, "this tag already has a time at that checkpoint")
	}
	if err := v.tags.CheckAssigned(ctx, key); err != nil {
		return nil, err
	}

	return &models.Time{
		CheckpointID: in.CheckpointID,
		Tag:          key,
		Timestamp:    ts,
	}, nil
}

// ParseTimestamp accepts RFC 3339 timestamps and unix epoch milliseconds.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
