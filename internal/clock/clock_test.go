package clock

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZone(t *testing.T) {
	tests := []struct {
		offset time.Duration
		name   string
	}{
		{7 * time.Hour, "UTC+07:00"},
		{0, "UTC+00:00"},
		{-(3*time.Hour + 30*time.Minute), "UTC-03:30"},
	}
	for _, tt := range tests {
		loc := Zone(tt.offset)
		name, off := time.Date(2026, 1, 1, 0, 0, 0, 0, loc).Zone()
		assert.Equal(t, tt.name, name)
		assert.Equal(t, int(tt.offset/time.Second), off)
	}
}

func TestFormat(t *testing.T) {
	ts := time.Date(2026, 3, 4, 8, 5, 9, 0, time.UTC)
	assert.Equal(t, "08:05:09", Format(ts, true))
	assert.Equal(t, Unknown, Format(ts, false))
}

func TestSystemAppliesZone(t *testing.T) {
	s := NewSystem(Zone(DefaultOffset))
	s.now = func() time.Time { return time.Date(2026, 1, 1, 23, 30, 0, 0, time.UTC) }

	got, err := s.Now()
	require.NoError(t, err)
	assert.Equal(t, 2, got.Day())
	assert.Equal(t, 6, got.Hour())
	assert.Equal(t, 30, got.Minute())
}

func TestSystemRejectsUnsetClock(t *testing.T) {
	s := NewSystem(time.UTC)
	s.now = func() time.Time { return time.Date(1970, 1, 1, 0, 0, 42, 0, time.UTC) }

	_, err := s.Now()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClockUnavailable)
}

func TestRetryingBacksOff(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mono := t0
	src := NewFake(time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC))
	src.Err = fmt.Errorf("bus: %w", ErrClockUnavailable)

	r := NewRetrying(src, func() time.Time { return mono })

	_, err := r.Now()
	require.ErrorIs(t, err, ErrClockUnavailable)
	assert.Equal(t, 1, src.Calls)
	assert.Equal(t, MinBackoff, r.Delay())

	// Inside the delay the source is not touched.
	mono = t0.Add(500 * time.Millisecond)
	_, err = r.Now()
	require.ErrorIs(t, err, ErrClockUnavailable)
	assert.Equal(t, 1, src.Calls)

	mono = t0.Add(time.Second)
	_, err = r.Now()
	require.Error(t, err)
	assert.Equal(t, 2, src.Calls)
	assert.Equal(t, 2*time.Second, r.Delay())
}

func TestRetryingCapsAtMax(t *testing.T) {
	mono := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	src := NewFake(time.Time{})
	src.Err = ErrClockUnavailable
	r := NewRetrying(src, func() time.Time { return mono })

	want := []time.Duration{1, 2, 4, 8, 16, 32, 60, 60}
	for i, w := range want {
		_, err := r.Now()
		require.Error(t, err)
		assert.Equal(t, w*time.Second, r.Delay(), "attempt %d", i)
		mono = mono.Add(r.Delay())
	}
	assert.Equal(t, len(want), src.Calls)
}

func TestRetryingRecovers(t *testing.T) {
	mono := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	wall := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	src := NewFake(wall)
	src.Err = errors.New("nack")
	r := NewRetrying(src, func() time.Time { return mono })

	_, err := r.Now()
	require.Error(t, err)

	src.Err = nil
	mono = mono.Add(time.Second)
	got, err := r.Now()
	require.NoError(t, err)
	assert.Equal(t, wall, got)
	assert.Zero(t, r.Delay())

	// Healthy reads go straight through.
	src.Advance(time.Second)
	got, err = r.Now()
	require.NoError(t, err)
	assert.Equal(t, wall.Add(time.Second), got)
	assert.Equal(t, 3, src.Calls)
}
