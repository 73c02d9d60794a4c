// Package logic contains the pure dispensing state machine.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// Default timings, matched to the solenoid hardware.
const (
	DefaultUnlockDuration = 5 * time.Second
	DefaultAlertDuration  = 300 * time.Millisecond
	DefaultOverrideHold   = 10 * time.Second
)

// Schedule is a daily time of day at which a channel dispenses.
type Schedule struct {
	Hour   int
	Minute int
}

// String formats the schedule as HH:MM.
func (s Schedule) String() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

// Matches reports whether t falls inside the scheduled minute.
func (s Schedule) Matches(t time.Time) bool {
	return t.Hour() == s.Hour && t.Minute() == s.Minute
}

// Policy selects how a dispense uses the indicator and whether pickup is acknowledged.
type Policy string

const (
	// PolicyAutoExpire lights the indicator for the unlock window only.
	PolicyAutoExpire Policy = "auto-expire"
	// PolicyAwaitPickup keeps the indicator lit until the door is opened.
	PolicyAwaitPickup Policy = "await-pickup"
	// PolicyInvertedIndicator lights undispensed channels all day and
	// switches the indicator off at dispense time.
	PolicyInvertedIndicator Policy = "inverted-indicator"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	switch p {
	case PolicyAutoExpire, PolicyAwaitPickup, PolicyInvertedIndicator:
		return true
	}
	return false
}

// Phase is the per-channel dispensing phase.
type Phase string

const (
	PhaseIdle           Phase = "IDLE"
	PhaseDispensing     Phase = "DISPENSING"
	PhaseAwaitingPickup Phase = "AWAITING_PICKUP"
)

// EventType represents something the controller did on a tick.
type EventType string

const (
	EventDispenseStart  EventType = "DISPENSE_START"
	EventDispenseEnd    EventType = "DISPENSE_END"
	EventPickupAck      EventType = "PICKUP_ACK"
	EventUnlockAllStart EventType = "UNLOCK_ALL_START"
	EventUnlockAllEnd   EventType = "UNLOCK_ALL_END"
	EventDailyReset     EventType = "DAILY_RESET"
	EventStartup        EventType = "STARTUP"
	EventAlertOff       EventType = "ALERT_OFF"
)

// Reportable reports whether the event is worth publishing.
// Startup and alert-off events only carry actuator actions.
func (t EventType) Reportable() bool {
	return t != EventAlertOff && t != EventStartup
}

// AllChannels is the Channel value of events that concern every channel.
const AllChannels = -1

// Pattern is an audible alert pattern.
type Pattern string

const (
	PatternNone      Pattern = "NONE"
	PatternDispense  Pattern = "DISPENSE"
	PatternUnlockAll Pattern = "UNLOCK_ALL"
)

// Frequency returns the nominal tone in Hz for buzzers that can produce one.
func (p Pattern) Frequency() int {
	switch p {
	case PatternDispense:
		return 1200
	case PatternUnlockAll:
		return 1500
	}
	return 0
}

// ActionKind identifies the actuator an Action drives.
type ActionKind string

const (
	ActionSolenoid  ActionKind = "SOLENOID"
	ActionIndicator ActionKind = "INDICATOR"
	ActionSound     ActionKind = "SOUND"
	ActionDisplay   ActionKind = "DISPLAY"
)

// Action is a single side effect for the actuator sink.
type Action struct {
	Kind    ActionKind
	Channel int     // solenoid, indicator
	On      bool    // solenoid, indicator
	Pattern Pattern // sound
	Line    int     // display
	Text    string  // display
}

func solenoid(ch int, on bool) Action {
	return Action{Kind: ActionSolenoid, Channel: ch, On: on}
}

func indicator(ch int, on bool) Action {
	return Action{Kind: ActionIndicator, Channel: ch, On: on}
}

func sound(p Pattern) Action {
	return Action{Kind: ActionSound, Pattern: p}
}

func message(text string) Action {
	return Action{Kind: ActionDisplay, Line: 0, Text: text}
}

// Event is emitted by the controller along with the actions to apply.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Channel   int // AllChannels for unlock-all, reset and startup
	Actions   []Action
}

// Input is a single tick sample.
type Input struct {
	// Now is the monotonic reference used for windows and hold timing.
	Now time.Time
	// Wall is the local wall-clock reading used for schedules and day changes.
	Wall time.Time
	// WallOK is false when the clock source could not be read this tick.
	WallOK bool
	Button bool // true = pressed
	Door   bool // true = open (already inverted from raw GPIO)
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Dispensed   int
	Pickups     int
	UnlockAll   int
	DailyResets int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}

// Timing holds the configurable durations of the state machine.
type Timing struct {
	Unlock       time.Duration
	Alert        time.Duration
	OverrideHold time.Duration
}

// DefaultTiming returns the factory timings.
func DefaultTiming() Timing {
	return Timing{
		Unlock:       DefaultUnlockDuration,
		Alert:        DefaultAlertDuration,
		OverrideHold: DefaultOverrideHold,
	}
}
