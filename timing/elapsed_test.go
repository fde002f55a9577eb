package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestElapsed(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, 42*time.Minute+195*time.Millisecond, Elapsed(start, start.Add(42*time.Minute+195*time.Millisecond)))
	assert.Equal(t, -time.Second, Elapsed(start, start.Add(-time.Second)))

	// Offsets do not matter, instants do.
	local := start.In(time.FixedZone("IST", 3600))
	assert.Equal(t, time.Hour, Elapsed(local, start.Add(time.Hour)))
}

func TestSpeed(t *testing.T) {
	tests := []struct {
		name     string
		meters   float64
		elapsed  time.Duration
		want     float64
		computed bool
	}{
		{"10k in 50 minutes", 10000, 50 * time.Minute, 12, true},
		{"rounded to two decimals", 10000, 47*time.Minute + 13*time.Second, 12.71, true},
		{"half marathon", 21097.5, 100 * time.Minute, 12.66, true},
		{"no distance", 0, time.Hour, 0, false},
		{"no time", 5000, 0, 0, false},
		{"negative time", 5000, -time.Minute, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Speed(tt.meters, tt.elapsed)
			assert.Equal(t, tt.computed, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
