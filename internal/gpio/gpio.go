// Package gpio provides digital input and output with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

import (
	"errors"

	"github.com/sweeney/pillbox/internal/logic"
)

// ErrNoSuchChannel is returned for a channel index with no wired output.
var ErrNoSuchChannel = errors.New("no such channel")

// Reader reads the dispenser's digital inputs.
type Reader interface {
	// Read returns the logical states of the override button and the door.
	// Raw levels are inverted according to the configured polarity.
	// Returns (buttonPressed, doorOpen, error).
	Read() (bool, bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Writer drives the dispenser's outputs.
type Writer interface {
	// SetSolenoid energizes (unlocks) or releases the lock of a channel.
	SetSolenoid(channel int, on bool) error

	// SetIndicator switches the LED of a channel.
	SetIndicator(channel int, on bool) error

	// Sound starts the given alert pattern; PatternNone silences the buzzer.
	Sound(p logic.Pattern) error

	// Close drives every output to its inactive level and releases it.
	Close() error
}

// Default pin definitions (BCM numbering)
const (
	DefaultPinButton = 21
	DefaultPinDoor   = 20
	DefaultPinBuzzer = 18
)

// DefaultSolenoidPins and DefaultIndicatorPins cover the three-channel box.
var (
	DefaultSolenoidPins  = []int{5, 6, 13}
	DefaultIndicatorPins = []int{17, 27, 22}
)

// Pins describes how the dispenser is wired.
type Pins struct {
	Chip string

	Button int
	Door   int
	Buzzer int

	Solenoids  []int // indexed by channel
	Indicators []int // indexed by channel

	// Inputs wired to ground through a switch with a pull-up read low when
	// active. The door switch reads low when the door is open.
	ButtonActiveLow bool
	DoorActiveLow   bool

	// Relay boards that energize on a low level.
	SolenoidActiveLow bool
}

// DefaultPins returns the wiring of the reference three-channel build.
func DefaultPins() Pins {
	return Pins{
		Chip:            "gpiochip0",
		Button:          DefaultPinButton,
		Door:            DefaultPinDoor,
		Buzzer:          DefaultPinBuzzer,
		Solenoids:       append([]int(nil), DefaultSolenoidPins...),
		Indicators:      append([]int(nil), DefaultIndicatorPins...),
		ButtonActiveLow: true,
		DoorActiveLow:   true,
	}
}

// level converts a logical state into a raw line value.
func level(on, activeLow bool) int {
	if on != activeLow {
		return 1
	}
	return 0
}

// logical converts a raw line value into a logical state.
func logical(raw int, activeLow bool) bool {
	if activeLow {
		return raw == 0
	}
	return raw != 0
}
