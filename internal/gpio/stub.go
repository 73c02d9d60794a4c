//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/pillbox/internal/logic"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns an error on non-Linux platforms.
func NewRealReader(Pins) (*RealReader, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *RealReader) Read() (bool, bool, error) {
	return false, false, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}

// RealWriter is not available on non-Linux platforms.
type RealWriter struct{}

// NewRealWriter returns an error on non-Linux platforms.
func NewRealWriter(Pins) (*RealWriter, error) {
	return nil, errUnsupported
}

func (w *RealWriter) SetSolenoid(int, bool) error  { return errUnsupported }
func (w *RealWriter) SetIndicator(int, bool) error { return errUnsupported }
func (w *RealWriter) Sound(logic.Pattern) error    { return errUnsupported }
func (w *RealWriter) Close() error                 { return nil }
