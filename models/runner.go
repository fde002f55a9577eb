package models

import "github.com/uptrace/bun"

// DateLayout is the day format shared by runners, waves, results and race counts.
const DateLayout = "2006-01-02"

// Runner is a registered race participant.
type Runner struct {
	bun.BaseModel `bun:"table:runners,alias:rn"`

	ID       int64  `bun:"id,pk,autoincrement" json:"id"`
	Name     string `bun:"name,notnull" json:"name"`
	Gender   string `bun:"gender,notnull" json:"gender"`
	Age      int    `bun:"age" json:"age,omitempty"`
	TeamID   int    `bun:"team_id" json:"team_id,omitempty"`
	TeamName string `bun:"team_name" json:"team_name,omitempty"`
	// Date is the registration day (YYYY-MM-DD), shared with the wave.
	Date   string `bun:"date,notnull" json:"date"`
	Type   string `bun:"type,notnull" json:"type"`
	WaveID int    `bun:"wave_id,notnull" json:"wave_id"`
	Tag    TagKey `bun:"embed:tag_" json:"tag,omitzero"`
}

// WaveKey returns the key of the wave the runner starts in.
func (r *Runner) WaveKey() WaveKey {
	return WaveKey{Type: r.Type, Num: r.WaveID, Date: r.Date}
}
