// Package actuator applies controller actions to the hardware.
//
// Write failures are logged and skipped: a stuck LCD or a failed GPIO line
// must never stop the control loop.
package actuator

import (
	"errors"
	"fmt"
	"log"

	"github.com/sweeney/pillbox/internal/display"
	"github.com/sweeney/pillbox/internal/gpio"
	"github.com/sweeney/pillbox/internal/logic"
)

// ClockLine is the display line reserved for the time of day.
const ClockLine = 1

// Sink drives the outputs and the display.
type Sink struct {
	out      gpio.Writer
	disp     display.Display
	failures int
}

// New creates a sink. A nil display discards messages.
func New(out gpio.Writer, disp display.Display) *Sink {
	if disp == nil {
		disp = display.Discard
	}
	return &Sink{out: out, disp: disp}
}

// Apply performs every action in order and returns the number that failed.
func (s *Sink) Apply(actions []logic.Action) int {
	failed := 0
	for _, a := range actions {
		if err := s.apply(a); err != nil {
			log.Printf("actuator error: %v", err)
			failed++
		}
	}
	s.failures += failed
	return failed
}

func (s *Sink) apply(a logic.Action) error {
	switch a.Kind {
	case logic.ActionSolenoid:
		if err := s.out.SetSolenoid(a.Channel, a.On); err != nil {
			return fmt.Errorf("solenoid %d: %w", a.Channel, err)
		}
	case logic.ActionIndicator:
		if err := s.out.SetIndicator(a.Channel, a.On); err != nil {
			return fmt.Errorf("indicator %d: %w", a.Channel, err)
		}
	case logic.ActionSound:
		if err := s.out.Sound(a.Pattern); err != nil {
			return fmt.Errorf("sound %s: %w", a.Pattern, err)
		}
	case logic.ActionDisplay:
		if err := s.disp.Show(a.Line, a.Text); err != nil {
			return fmt.Errorf("display %q: %w", a.Text, err)
		}
	default:
		return fmt.Errorf("unknown action %q", a.Kind)
	}
	return nil
}

// ShowClock writes text to the clock line.
func (s *Sink) ShowClock(text string) {
	if err := s.disp.Show(ClockLine, text); err != nil {
		log.Printf("actuator error: clock line: %v", err)
		s.failures++
	}
}

// Failures returns the number of failed writes since startup.
func (s *Sink) Failures() int {
	return s.failures
}

// Close releases the outputs to their safe state and closes the display.
func (s *Sink) Close() error {
	return errors.Join(s.out.Close(), s.disp.Close())
}
