package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Checkpoint is a timing device position on the course.
type Checkpoint struct {
	bun.BaseModel `bun:"table:checkpoints,alias:cp"`

	ID    int64  `bun:"id,pk,autoincrement" json:"id"`
	Num   int    `bun:"num,notnull,unique" json:"num"`
	Title string `bun:"title" json:"title,omitempty"`
	// Distance from the start line in meters.
	Distance       float64    `bun:"distance,notnull,default:0" json:"distance"`
	Online         bool       `bun:"online,notnull,default:false" json:"online"`
	LastConnection *time.Time `bun:"last_connection" json:"last_connection,omitempty"`
	Uploaded       bool       `bun:"uploaded,notnull,default:false" json:"uploaded"`

	// Count is the number of crossings recorded today; filled on listing only.
	Count int `bun:"-" json:"count"`
}
