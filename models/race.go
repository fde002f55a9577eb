package models

import "github.com/uptrace/bun"

// Race is the single race the system is timing.
type Race struct {
	bun.BaseModel `bun:"table:races,alias:rc"`

	ID       int64  `bun:"id,pk,autoincrement" json:"id"`
	Place    string `bun:"place,notnull" json:"place"`
	DateFrom string `bun:"date_from,notnull" json:"date_from"`
	DateTo   string `bun:"date_to,notnull" json:"date_to"`
	// Counts holds the number of registered runners per day.
	Counts       map[string]int `bun:"counts,type:jsonb" json:"counts"`
	TagsAssigned bool           `bun:"tags_assigned,notnull,default:false" json:"tags_assigned"`
	// TagsColor lists every color tags were created in, once each.
	TagsColor []string `bun:"tags_color,array" json:"tags_color"`
}
