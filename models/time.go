package models

import (
	"time"

	"github.com/uptrace/bun"
)

// FinishLine is the checkpoint id reserved for the finish line.
const FinishLine = 99

// Time is one tag crossing one checkpoint.
type Time struct {
	bun.BaseModel `bun:"table:times,alias:tm"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	CheckpointID int       `bun:"checkpoint_id,notnull" json:"checkpoint_id"`
	Tag          TagKey    `bun:"embed:tag_" json:"tag"`
	Timestamp    time.Time `bun:"timestamp,notnull" json:"timestamp"`
}
