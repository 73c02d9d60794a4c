package gpio

import (
	"errors"
	"fmt"

	"github.com/sweeney/pillbox/internal/logic"
)

// FakeReader is a test double that returns scripted input values.
type FakeReader struct {
	// Samples contains scripted (button, door) values to return.
	// Each call to Read() consumes the next sample.
	Samples []Sample

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// Sample represents a single input reading (already in logical form).
type Sample struct {
	Button bool // true = pressed
	Door   bool // true = open
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (bool, bool, error) {
	if f.ReadError != nil {
		return false, false, f.ReadError
	}

	if len(f.Samples) == 0 {
		return false, false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample.Button, sample.Door, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeWriter records output states for test assertions.
type FakeWriter struct {
	Solenoids  []bool
	Indicators []bool
	Pattern    logic.Pattern

	// Calls logs every write in order, e.g. "solenoid 0 on".
	Calls []string

	// WriteError, if set, is returned by every write after it is logged.
	WriteError error

	Closed bool
}

// NewFakeWriter creates a FakeWriter for the given number of channels.
func NewFakeWriter(channels int) *FakeWriter {
	return &FakeWriter{
		Solenoids:  make([]bool, channels),
		Indicators: make([]bool, channels),
		Pattern:    logic.PatternNone,
	}
}

// SetSolenoid records the solenoid state.
func (f *FakeWriter) SetSolenoid(channel int, on bool) error {
	f.Calls = append(f.Calls, fmt.Sprintf("solenoid %d %s", channel, onOff(on)))
	if f.WriteError != nil {
		return f.WriteError
	}
	if channel < 0 || channel >= len(f.Solenoids) {
		return fmt.Errorf("solenoid %d: %w", channel, ErrNoSuchChannel)
	}
	f.Solenoids[channel] = on
	return nil
}

// SetIndicator records the indicator state.
func (f *FakeWriter) SetIndicator(channel int, on bool) error {
	f.Calls = append(f.Calls, fmt.Sprintf("indicator %d %s", channel, onOff(on)))
	if f.WriteError != nil {
		return f.WriteError
	}
	if channel < 0 || channel >= len(f.Indicators) {
		return fmt.Errorf("indicator %d: %w", channel, ErrNoSuchChannel)
	}
	f.Indicators[channel] = on
	return nil
}

// Sound records the buzzer pattern.
func (f *FakeWriter) Sound(p logic.Pattern) error {
	f.Calls = append(f.Calls, "sound "+string(p))
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Pattern = p
	return nil
}

// Close marks the writer as closed and releases every output.
func (f *FakeWriter) Close() error {
	for i := range f.Solenoids {
		f.Solenoids[i] = false
	}
	for i := range f.Indicators {
		f.Indicators[i] = false
	}
	f.Pattern = logic.PatternNone
	f.Closed = true
	return nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
