package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Elapsed is a duration since a wave start. It is encoded as "HH:MM:SS.mmm".
type Elapsed time.Duration

func (e Elapsed) String() string {
	d := time.Duration(e)
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	return fmt.Sprintf("%s%02d:%02d:%02d.%03d", sign, h, m, s, d/time.Millisecond)
}

func (e Elapsed) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

func (e *Elapsed) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("elapsed: %w", err)
	}
	d, err := ParseElapsed(s)
	if err != nil {
		return err
	}
	*e = d
	return nil
}

// ParseElapsed parses the "HH:MM:SS.mmm" form produced by Elapsed.String.
func ParseElapsed(s string) (Elapsed, error) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var h, m, sec, ms int
	if _, err := fmt.Sscanf(s, "%d:%d:%d.%d", &h, &m, &sec, &ms); err != nil {
		return 0, fmt.Errorf("elapsed: invalid value %q", s)
	}
	d := time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(ms)*time.Millisecond
	if neg {
		d = -d
	}
	return Elapsed(d), nil
}

// CheckpointTime is the elapsed time of a runner at one checkpoint.
type CheckpointTime struct {
	Time  Elapsed  `json:"time"`
	Speed *float64 `json:"speed,omitempty"`
}

// Result aggregates the checkpoint times of one runner and its finish ranking.
type Result struct {
	bun.BaseModel `bun:"table:results,alias:r"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Tag       TagKey    `bun:"embed:tag_" json:"tag"`
	Name      string    `bun:"name,notnull" json:"name"`
	TeamName  string    `bun:"team_name" json:"team_name,omitempty"`
	Gender    string    `bun:"gender,notnull" json:"gender"`
	Date      string    `bun:"date,notnull" json:"date"`
	StartTime time.Time `bun:"start_time,notnull" json:"start_time"`

	Times         map[int]CheckpointTime `bun:"times,type:jsonb" json:"times"`
	CheckpointIDs []int                  `bun:"checkpoints_ids,array" json:"checkpoints_ids"`
	Number        int                    `bun:"number,notnull" json:"number"`

	// FinishTime mirrors Times[FinishLine] so results can be ordered in the store.
	FinishTime time.Duration `bun:"finish_time,notnull" json:"-"`
}
