package display

import (
	"fmt"

	"github.com/kidoman/embd"
	"github.com/kidoman/embd/controller/hd44780"
	"github.com/kidoman/embd/interface/display/characterdisplay"
)

// screen is the part of characterdisplay.Display the LCD uses.
type screen interface {
	SetCursor(col, row int) error
	Message(message string) error
	Clear() error
}

// LCD is an HD44780 display behind a PCF8574 I2C backpack.
type LCD struct {
	screen    screen
	backlight func() error
	shown     [Lines]string
	valid     [Lines]bool
}

// NewLCD initialises the display at addr on bus and turns the backlight on.
func NewLCD(bus embd.I2CBus, addr byte) (*LCD, error) {
	hd, err := hd44780.NewI2C(bus, addr, hd44780.PCF8574PinMap, hd44780.RowAddress16Col, hd44780.TwoLine)
	if err != nil {
		return nil, fmt.Errorf("lcd at 0x%x: %w", addr, err)
	}
	if err := hd.Connection.BacklightOn(); err != nil {
		return nil, fmt.Errorf("lcd backlight: %w", err)
	}

	l := &LCD{
		screen:    characterdisplay.New(hd, Columns, Lines),
		backlight: hd.Connection.BacklightOff,
	}
	if err := l.screen.Clear(); err != nil {
		return nil, fmt.Errorf("lcd clear: %w", err)
	}
	return l, nil
}

// Show writes text to line, padded to the full width. Unchanged lines are
// not rewritten.
func (l *LCD) Show(line int, text string) error {
	if err := checkLine(line); err != nil {
		return err
	}
	text = Fit(text, Columns)
	if l.valid[line] && l.shown[line] == text {
		return nil
	}

	if err := l.screen.SetCursor(0, line); err != nil {
		l.valid[line] = false
		return fmt.Errorf("lcd cursor: %w", err)
	}
	if err := l.screen.Message(text); err != nil {
		l.valid[line] = false
		return fmt.Errorf("lcd write: %w", err)
	}
	l.shown[line] = text
	l.valid[line] = true
	return nil
}

// Close clears the display and switches the backlight off. The bus is left
// open for its owner to release.
func (l *LCD) Close() error {
	l.valid = [Lines]bool{}
	err := l.screen.Clear()
	if l.backlight != nil {
		if berr := l.backlight(); err == nil {
			err = berr
		}
	}
	return err
}
