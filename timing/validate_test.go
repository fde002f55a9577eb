package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2026, 5, 1, 9, 42, 7, 250_000_000, time.UTC)
	tests := []struct {
		name string
		in   string
	}{
		{"rfc3339 utc", "2026-05-01T09:42:07.25Z"},
		{"rfc3339 offset", "2026-05-01T10:42:07.250+01:00"},
		{"epoch millis", "1777628527250"},
		{"padded", "  1777628527250 "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	_, err := ParseTimestamp("01/05/2026 09:42")
	assert.Error(t, err)
}

func TestTagChecker(t *testing.T) {
	f := newFixture(t)
	_, err := f.counters.CreateTags(f.ctx, TagRange{From: 1, To: 2, Color: "red"})
	require.NoError(t, err)
	require.NoError(t, f.store.SetTagAssigned(f.ctx, red(1), true))

	c := NewTagChecker(f.store)
	assert.NoError(t, c.CheckAssigned(f.ctx, red(1)))
	assert.ErrorIs(t, c.CheckAssigned(f.ctx, red(2)), ErrNotAcceptable)
	assert.ErrorIs(t, c.CheckAssigned(f.ctx, red(3)), ErrNotFound)
}
