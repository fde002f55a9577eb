package models

import (
	"time"

	"github.com/uptrace/bun"
)

// WaveKey identifies a wave by its type, number and day.
type WaveKey struct {
	Type string
	Num  int
	Date string
}

// Wave is a scheduled start group for a race day.
type Wave struct {
	bun.BaseModel `bun:"table:waves,alias:w"`

	ID        int64      `bun:"id,pk,autoincrement" json:"id"`
	Type      string     `bun:"type,notnull" json:"type"`
	Num       int        `bun:"num,notnull" json:"num"`
	Date      string     `bun:"date,notnull" json:"date"`
	Count     int        `bun:"count,notnull,default:0" json:"count"`
	StartTime *time.Time `bun:"start_time" json:"start_time,omitempty"`
	Chrono    bool       `bun:"chrono,notnull,default:false" json:"chrono"`
}

// Key returns the composite key of the wave.
func (w *Wave) Key() WaveKey {
	return WaveKey{Type: w.Type, Num: w.Num, Date: w.Date}
}
