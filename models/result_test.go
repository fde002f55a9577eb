package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElapsedString(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00.000"},
		{42*time.Minute + 7*time.Second + 250*time.Millisecond, "00:42:07.250"},
		{3*time.Hour + time.Millisecond, "03:00:00.001"},
		{-(90 * time.Second), "-00:01:30.000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Elapsed(tt.d).String())

		got, err := ParseElapsed(tt.want)
		require.NoError(t, err)
		assert.Equal(t, Elapsed(tt.d), got)
	}

	_, err := ParseElapsed("42 minutes")
	assert.Error(t, err)
}

func TestResultJSON(t *testing.T) {
	speed := 12.5
	r := Result{
		Tag:           TagKey{Num: 7, Color: "red"},
		Name:          "Aoife",
		Times:         map[int]CheckpointTime{FinishLine: {Time: Elapsed(48 * time.Minute), Speed: &speed}},
		CheckpointIDs: []int{FinishLine},
		Number:        3,
		FinishTime:    48 * time.Minute,
	}

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 0,
		"tag": {"num": 7, "color": "red"},
		"name": "Aoife",
		"gender": "",
		"date": "",
		"start_time": "0001-01-01T00:00:00Z",
		"times": {"99": {"time": "00:48:00.000", "speed": 12.5}},
		"checkpoints_ids": [99],
		"number": 3
	}`, string(b))

	var back Result
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, r.Times, back.Times)
}

func TestTagKey(t *testing.T) {
	assert.True(t, TagKey{}.IsZero())
	assert.False(t, TagKey{Num: 1}.IsZero())
	assert.NotEqual(t, TagKey{Num: 12, Color: "3"}, TagKey{Num: 1, Color: "23"})
	assert.Equal(t, "12/red", TagKey{Num: 12, Color: "red"}.String())
}
