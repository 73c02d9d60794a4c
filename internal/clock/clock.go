// Package clock provides wall-clock sources for the dispenser schedule.
//
// Sources return local time in the configured fixed zone. A source that
// cannot produce a trustworthy reading returns an error wrapping
// ErrClockUnavailable; the control loop treats that as degraded mode.
package clock

import (
	"errors"
	"fmt"
	"time"
)

// ErrClockUnavailable is returned when no trustworthy time can be read.
var ErrClockUnavailable = errors.New("clock unavailable")

// DefaultOffset is the fixed offset applied to UTC readings.
const DefaultOffset = 7 * time.Hour

// Unknown is displayed in place of the time while the clock is unavailable.
const Unknown = "--:--:--"

// Source reads the current wall-clock time.
type Source interface {
	Now() (time.Time, error)
}

// Zone returns a fixed zone for the given offset from UTC, e.g. "UTC+07:00".
func Zone(offset time.Duration) *time.Location {
	sign := '+'
	abs := offset
	if offset < 0 {
		sign = '-'
		abs = -offset
	}
	h := int(abs / time.Hour)
	m := int((abs % time.Hour) / time.Minute)
	return time.FixedZone(fmt.Sprintf("UTC%c%02d:%02d", sign, h, m), int(offset/time.Second))
}

// Format renders a reading for the display clock line.
func Format(t time.Time, ok bool) string {
	if !ok {
		return Unknown
	}
	return t.Format("15:04:05")
}

// System reads the host clock.
type System struct {
	loc *time.Location
	now func() time.Time
}

// NewSystem creates a host clock source reporting time in loc.
func NewSystem(loc *time.Location) *System {
	return &System{loc: loc, now: time.Now}
}

// Now returns the host time in the configured zone. The host clock is
// rejected if it has never been set (before 2000), as on a Pi booted
// without network or RTC.
func (s *System) Now() (time.Time, error) {
	t := s.now()
	if t.Year() < 2000 {
		return time.Time{}, fmt.Errorf("host clock reads %s: %w", t.Format(time.RFC3339), ErrClockUnavailable)
	}
	return t.In(s.loc), nil
}
