// Package config loads the dispenser configuration from a YAML file.
//
// Every field has a default, so an empty or missing file yields the
// reference three-channel box dispensing at 08:00, 12:00 and 16:00.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/pillbox/internal/clock"
	"github.com/sweeney/pillbox/internal/display"
	"github.com/sweeney/pillbox/internal/gpio"
	"github.com/sweeney/pillbox/internal/i2c"
	"github.com/sweeney/pillbox/internal/logic"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Clock sources.
const (
	ClockSystem = "system"
	ClockDS3231 = "ds3231"
)

// DefaultPoll is the control loop tick interval.
const DefaultPoll = 200 * time.Millisecond

// Config is the complete dispenser configuration.
type Config struct {
	Policy logic.Policy `yaml:"policy"`

	UnlockDuration time.Duration `yaml:"unlock_duration"`
	AlertDuration  time.Duration `yaml:"alert_duration"`
	OverrideHold   time.Duration `yaml:"override_hold"`
	Poll           time.Duration `yaml:"poll"`

	// UTCOffset is added to UTC clock readings, e.g. "7h" or "-3h30m".
	UTCOffset time.Duration `yaml:"utc_offset"`

	Channels []Channel `yaml:"channels"`

	GPIO    GPIO    `yaml:"gpio"`
	Clock   Clock   `yaml:"clock"`
	Display Display `yaml:"display"`
	MQTT    MQTT    `yaml:"mqtt"`
	HTTP    HTTP    `yaml:"http"`
	Serial  Serial  `yaml:"serial"`
}

// Channel is one compartment: when it dispenses and where it is wired.
type Channel struct {
	Time      string `yaml:"time"` // HH:MM local time
	Solenoid  int    `yaml:"solenoid"`
	Indicator int    `yaml:"indicator"`
}

// GPIO holds the shared pins and line polarities.
type GPIO struct {
	Chip              string `yaml:"chip"`
	Button            int    `yaml:"button"`
	Door              int    `yaml:"door"`
	Buzzer            int    `yaml:"buzzer"`
	ButtonActiveLow   bool   `yaml:"button_active_low"`
	DoorActiveLow     bool   `yaml:"door_active_low"`
	SolenoidActiveLow bool   `yaml:"solenoid_active_low"`
}

// Clock selects the wall-clock source.
type Clock struct {
	Source string `yaml:"source"`
	Bus    int    `yaml:"bus"`
}

// Display configures the I2C character LCD.
type Display struct {
	Enabled bool `yaml:"enabled"`
	Bus     int  `yaml:"bus"`
	Address int  `yaml:"address"`
}

// MQTT configures optional event publishing. An empty broker disables it.
type MQTT struct {
	Broker    string        `yaml:"broker"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// HTTP configures the optional status page. An empty address disables it.
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Serial configures the optional serial log console.
type Serial struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// Default returns the configuration of the reference build.
func Default() Config {
	times := []string{"08:00", "12:00", "16:00"}
	channels := make([]Channel, len(times))
	for i, t := range times {
		channels[i] = Channel{
			Time:      t,
			Solenoid:  gpio.DefaultSolenoidPins[i],
			Indicator: gpio.DefaultIndicatorPins[i],
		}
	}

	pins := gpio.DefaultPins()
	return Config{
		Policy:         logic.PolicyAwaitPickup,
		UnlockDuration: logic.DefaultUnlockDuration,
		AlertDuration:  logic.DefaultAlertDuration,
		OverrideHold:   logic.DefaultOverrideHold,
		Poll:           DefaultPoll,
		UTCOffset:      clock.DefaultOffset,
		Channels:       channels,
		GPIO: GPIO{
			Chip:              pins.Chip,
			Button:            pins.Button,
			Door:              pins.Door,
			Buzzer:            pins.Buzzer,
			ButtonActiveLow:   pins.ButtonActiveLow,
			DoorActiveLow:     pins.DoorActiveLow,
			SolenoidActiveLow: pins.SolenoidActiveLow,
		},
		Clock: Clock{Source: ClockSystem, Bus: i2c.DefaultBus},
		Display: Display{
			Enabled: true,
			Bus:     i2c.DefaultBus,
			Address: display.DefaultAddress,
		},
		MQTT: MQTT{Heartbeat: 15 * time.Minute},
	}
}

// Load reads and validates the file at path. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected so typos do not silently fall back to a default.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseTime parses "HH:MM" into a schedule.
func ParseTime(s string) (logic.Schedule, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return logic.Schedule{}, fmt.Errorf("time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return logic.Schedule{}, fmt.Errorf("time %q: bad hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return logic.Schedule{}, fmt.Errorf("time %q: bad minute", s)
	}
	if h < 0 || h > 23 {
		return logic.Schedule{}, fmt.Errorf("time %q: hour out of range", s)
	}
	if m < 0 || m > 59 {
		return logic.Schedule{}, fmt.Errorf("time %q: minute out of range", s)
	}
	return logic.Schedule{Hour: h, Minute: m}, nil
}

// Validate reports every problem in the configuration at once.
func (c Config) Validate() error {
	var errs []error

	if len(c.Channels) == 0 {
		errs = append(errs, errors.New("at least one channel is required"))
	}

	seenTime := make(map[logic.Schedule]int)
	for i, ch := range c.Channels {
		s, err := ParseTime(ch.Time)
		if err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", i+1, err))
			continue
		}
		if j, dup := seenTime[s]; dup {
			errs = append(errs, fmt.Errorf("channel %d: time %s already used by channel %d", i+1, s, j+1))
			continue
		}
		seenTime[s] = i
	}

	errs = append(errs, c.validatePins()...)

	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"unlock_duration", c.UnlockDuration},
		{"alert_duration", c.AlertDuration},
		{"override_hold", c.OverrideHold},
		{"poll", c.Poll},
	} {
		if d.v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.name, d.v))
		}
	}
	if c.AlertDuration > c.UnlockDuration {
		errs = append(errs, fmt.Errorf("alert_duration %s exceeds unlock_duration %s", c.AlertDuration, c.UnlockDuration))
	}
	if c.UTCOffset <= -24*time.Hour || c.UTCOffset >= 24*time.Hour {
		errs = append(errs, fmt.Errorf("utc_offset %s out of range", c.UTCOffset))
	}

	if !c.Policy.Valid() {
		errs = append(errs, fmt.Errorf("unknown policy %q", c.Policy))
	}
	if c.Clock.Source != ClockSystem && c.Clock.Source != ClockDS3231 {
		errs = append(errs, fmt.Errorf("unknown clock source %q", c.Clock.Source))
	}
	if c.Display.Enabled && (c.Display.Address <= 0 || c.Display.Address > 0x7f) {
		errs = append(errs, fmt.Errorf("display address 0x%x out of range", c.Display.Address))
	}
	if c.MQTT.Heartbeat < 0 {
		errs = append(errs, errors.New("mqtt heartbeat must not be negative"))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func (c Config) validatePins() []error {
	var errs []error
	owner := make(map[int]string)
	claim := func(pin int, name string) {
		if pin < 0 {
			errs = append(errs, fmt.Errorf("%s: negative pin %d", name, pin))
			return
		}
		if other, dup := owner[pin]; dup {
			errs = append(errs, fmt.Errorf("%s: pin %d already used by %s", name, pin, other))
			return
		}
		owner[pin] = name
	}

	claim(c.GPIO.Button, "button")
	claim(c.GPIO.Door, "door")
	claim(c.GPIO.Buzzer, "buzzer")
	for i, ch := range c.Channels {
		claim(ch.Solenoid, fmt.Sprintf("channel %d solenoid", i+1))
		claim(ch.Indicator, fmt.Sprintf("channel %d indicator", i+1))
	}
	return errs
}

// Schedules returns the parsed channel times. The config must be valid.
func (c Config) Schedules() []logic.Schedule {
	out := make([]logic.Schedule, 0, len(c.Channels))
	for _, ch := range c.Channels {
		s, _ := ParseTime(ch.Time)
		out = append(out, s)
	}
	return out
}

// Timing returns the state machine durations.
func (c Config) Timing() logic.Timing {
	return logic.Timing{
		Unlock:       c.UnlockDuration,
		Alert:        c.AlertDuration,
		OverrideHold: c.OverrideHold,
	}
}

// Pins returns the GPIO wiring.
func (c Config) Pins() gpio.Pins {
	p := gpio.Pins{
		Chip:              c.GPIO.Chip,
		Button:            c.GPIO.Button,
		Door:              c.GPIO.Door,
		Buzzer:            c.GPIO.Buzzer,
		ButtonActiveLow:   c.GPIO.ButtonActiveLow,
		DoorActiveLow:     c.GPIO.DoorActiveLow,
		SolenoidActiveLow: c.GPIO.SolenoidActiveLow,
	}
	for _, ch := range c.Channels {
		p.Solenoids = append(p.Solenoids, ch.Solenoid)
		p.Indicators = append(p.Indicators, ch.Indicator)
	}
	return p
}

// Location returns the fixed zone for UTCOffset.
func (c Config) Location() *time.Location {
	return clock.Zone(c.UTCOffset)
}
