package clock

import (
	"fmt"
	"time"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/ds3231"
)

// DS3231 reads a DS3231 real-time clock kept in UTC.
type DS3231 struct {
	dev ds3231.Device
	loc *time.Location
}

// NewDS3231 creates a source on the given bus. The RTC keeps UTC and
// readings are converted to loc.
func NewDS3231(bus drivers.I2C, loc *time.Location) *DS3231 {
	d := &DS3231{dev: ds3231.New(bus), loc: loc}
	d.dev.Configure()
	return d
}

// Now reads the RTC. A stopped oscillator or a lost-power flag means the
// stored time cannot be trusted.
func (d *DS3231) Now() (time.Time, error) {
	if !d.dev.IsRunning() {
		return time.Time{}, fmt.Errorf("rtc oscillator stopped: %w", ErrClockUnavailable)
	}
	if !d.dev.IsTimeValid() {
		return time.Time{}, fmt.Errorf("rtc lost power: %w", ErrClockUnavailable)
	}
	t, err := d.dev.ReadTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("read rtc: %v: %w", err, ErrClockUnavailable)
	}
	return t.In(d.loc), nil
}

// Set writes t to the RTC in UTC.
func (d *DS3231) Set(t time.Time) error {
	if err := d.dev.SetTime(t.UTC()); err != nil {
		return fmt.Errorf("set rtc: %w", err)
	}
	return nil
}
