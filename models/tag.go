package models

import (
	"fmt"

	"github.com/uptrace/bun"
)

// TagKey identifies a physical tag. Number and color together form the key;
// neither is unique on its own.
type TagKey struct {
	Num   int    `bun:"num" json:"num"`
	Color string `bun:"color" json:"color"`
}

// IsZero reports whether no tag is set.
func (k TagKey) IsZero() bool {
	return k.Num == 0 && k.Color == ""
}

func (k TagKey) String() string {
	return fmt.Sprintf("%d/%s", k.Num, k.Color)
}

// Tag is a physical token that can be bound to a runner.
type Tag struct {
	bun.BaseModel `bun:"table:tags,alias:tg"`

	ID       int64  `bun:"id,pk,autoincrement" json:"id"`
	Num      int    `bun:"num,notnull" json:"num"`
	Color    string `bun:"color,notnull" json:"color"`
	Assigned bool   `bun:"assigned,notnull,default:false" json:"assigned"`
}

// Key returns the (num, color) pair of the tag.
func (t *Tag) Key() TagKey {
	return TagKey{Num: t.Num, Color: t.Color}
}
