//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/pillbox/internal/logic"
)

// RealReader reads the button and door from actual hardware using Linux GPIO character device.
type RealReader struct {
	chip      *gpiocdev.Chip
	buttonPin *gpiocdev.Line
	doorPin   *gpiocdev.Line
	buttonLow bool
	doorLow   bool
}

// NewRealReader creates an input reader for actual Raspberry Pi hardware.
func NewRealReader(pins Pins) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(pins.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// Both switches close to ground, so the lines idle high with a pull-up.
	buttonLine, err := chip.RequestLine(pins.Button, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request button pin %d: %w", pins.Button, err)
	}

	doorLine, err := chip.RequestLine(pins.Door, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		buttonLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request door pin %d: %w", pins.Door, err)
	}

	return &RealReader{
		chip:      chip,
		buttonPin: buttonLine,
		doorPin:   doorLine,
		buttonLow: pins.ButtonActiveLow,
		doorLow:   pins.DoorActiveLow,
	}, nil
}

// Read returns the logical states of the button and the door.
func (r *RealReader) Read() (bool, bool, error) {
	buttonRaw, err := r.buttonPin.Value()
	if err != nil {
		return false, false, fmt.Errorf("read button pin: %w", err)
	}

	doorRaw, err := r.doorPin.Value()
	if err != nil {
		return false, false, fmt.Errorf("read door pin: %w", err)
	}

	return logical(buttonRaw, r.buttonLow), logical(doorRaw, r.doorLow), nil
}

// Close releases GPIO resources.
func (r *RealReader) Close() error {
	var errs []error
	if r.buttonPin != nil {
		if err := r.buttonPin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button pin: %w", err))
		}
	}
	if r.doorPin != nil {
		if err := r.doorPin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close door pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}

// RealWriter drives solenoids, indicators and an active buzzer.
type RealWriter struct {
	chip        *gpiocdev.Chip
	solenoids   []*gpiocdev.Line
	indicators  []*gpiocdev.Line
	buzzer      *gpiocdev.Line
	solenoidLow bool
}

// NewRealWriter requests every output line at its inactive level.
func NewRealWriter(pins Pins) (*RealWriter, error) {
	chip, err := gpiocdev.NewChip(pins.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	w := &RealWriter{chip: chip, solenoidLow: pins.SolenoidActiveLow}

	for i, pin := range pins.Solenoids {
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(level(false, pins.SolenoidActiveLow)))
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("request solenoid %d pin %d: %w", i, pin, err)
		}
		w.solenoids = append(w.solenoids, line)
	}

	for i, pin := range pins.Indicators {
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("request indicator %d pin %d: %w", i, pin, err)
		}
		w.indicators = append(w.indicators, line)
	}

	w.buzzer, err = chip.RequestLine(pins.Buzzer, gpiocdev.AsOutput(0))
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("request buzzer pin %d: %w", pins.Buzzer, err)
	}

	return w, nil
}

// SetSolenoid energizes or releases the lock of a channel.
func (w *RealWriter) SetSolenoid(channel int, on bool) error {
	if channel < 0 || channel >= len(w.solenoids) {
		return fmt.Errorf("solenoid %d: %w", channel, ErrNoSuchChannel)
	}
	if err := w.solenoids[channel].SetValue(level(on, w.solenoidLow)); err != nil {
		return fmt.Errorf("set solenoid %d: %w", channel, err)
	}
	return nil
}

// SetIndicator switches the LED of a channel.
func (w *RealWriter) SetIndicator(channel int, on bool) error {
	if channel < 0 || channel >= len(w.indicators) {
		return fmt.Errorf("indicator %d: %w", channel, ErrNoSuchChannel)
	}
	if err := w.indicators[channel].SetValue(level(on, false)); err != nil {
		return fmt.Errorf("set indicator %d: %w", channel, err)
	}
	return nil
}

// Sound drives the active buzzer. An active buzzer has a fixed pitch, so
// every pattern other than PatternNone just switches it on.
func (w *RealWriter) Sound(p logic.Pattern) error {
	if err := w.buzzer.SetValue(level(p != logic.PatternNone, false)); err != nil {
		return fmt.Errorf("set buzzer: %w", err)
	}
	return nil
}

// Close locks every compartment, switches everything off and releases the lines.
func (w *RealWriter) Close() error {
	var errs []error
	release := func(name string, line *gpiocdev.Line, inactive int) {
		if line == nil {
			return
		}
		if err := line.SetValue(inactive); err != nil {
			errs = append(errs, fmt.Errorf("reset %s: %w", name, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}

	for i, line := range w.solenoids {
		release(fmt.Sprintf("solenoid %d", i), line, level(false, w.solenoidLow))
	}
	for i, line := range w.indicators {
		release(fmt.Sprintf("indicator %d", i), line, 0)
	}
	release("buzzer", w.buzzer, 0)

	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}
