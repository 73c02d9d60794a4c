// Package display drives the 16x2 character LCD.
package display

import (
	"errors"
	"fmt"
	"strings"
)

// Geometry of the LCD.
const (
	Columns = 16
	Lines   = 2
)

// DefaultAddress is the usual I2C address of a PCF8574 LCD backpack.
const DefaultAddress = 0x27

// ErrNoSuchLine is returned for a line outside the display.
var ErrNoSuchLine = errors.New("no such line")

// Display shows one line of text at a time.
type Display interface {
	Show(line int, text string) error
	Close() error
}

// Fit pads or truncates text to exactly width columns.
func Fit(text string, width int) string {
	r := []rune(text)
	if len(r) >= width {
		return string(r[:width])
	}
	return text + strings.Repeat(" ", width-len(r))
}

func checkLine(line int) error {
	if line < 0 || line >= Lines {
		return fmt.Errorf("line %d: %w", line, ErrNoSuchLine)
	}
	return nil
}

// Discard is a Display that drops everything, used when no LCD is fitted.
var Discard Display = discard{}

type discard struct{}

func (discard) Show(line int, text string) error { return checkLine(line) }
func (discard) Close() error                     { return nil }
