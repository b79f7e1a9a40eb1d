package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClock_Advance(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := Fake(start)

	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())
}

func TestFakeClock_SetBackwards(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := Fake(start)

	c.Set(start.Add(-time.Hour))
	assert.True(t, c.Now().Before(start))
}

func TestFormatParse_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 5, 6, 7, 8, 9, 123_000_000, time.FixedZone("X", 3600))

	s := Format(ts)
	assert.Equal(t, "2026-05-06T06:08:09.123Z", s)

	parsed, err := Parse(s)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(ts))
}

func TestParse_AcceptsWithoutFraction(t *testing.T) {
	parsed, err := Parse("2026-05-06T06:08:09Z")
	require.NoError(t, err)
	assert.Equal(t, 2026, parsed.Year())
}

func TestParse_RejectsGarbage(t *testing.T) {
	_, err := Parse("yesterday")
	assert.Error(t, err)
}
