package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDurationMinutes(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"15 min", 15},
		{"15min", 15},
		{"15 minutes", 15},
		{"1hr 30min", 90},
		{"1 hour 30 minutes", 90},
		{"2 hours", 120},
		{"2h", 120},
		{"45m", 45},
		{"10", 10},
		{" 10 ", 10},
		{"garbage", 0},
		{"", 0},
		{"soon", 0},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseDurationMinutes(tc.in), "input %q", tc.in)
	}
}

func TestParseDurationMinutesCached(t *testing.T) {
	// Second parse of the same literal must come from the cache and agree.
	first := ParseDurationMinutes("3hr 5min")
	second := ParseDurationMinutes("3hr 5min")
	assert.Equal(t, 185, first)
	assert.Equal(t, first, second)

	durationCacheMu.RLock()
	_, ok := durationCache["3hr 5min"]
	durationCacheMu.RUnlock()
	assert.True(t, ok)
}

func TestFormatMinutes(t *testing.T) {
	assert.Equal(t, "0 min", FormatMinutes(0))
	assert.Equal(t, "45 min", FormatMinutes(45))
	assert.Equal(t, "1hr", FormatMinutes(60))
	assert.Equal(t, "1hr 30min", FormatMinutes(90))
	assert.Equal(t, "2hr 5min", FormatMinutes(125))
}
