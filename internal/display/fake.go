package display

// Fake records what would be shown on the LCD.
type Fake struct {
	Lines   [Lines]string
	History []string

	// Err, if set, is returned by Show.
	Err error

	Closed bool
}

// NewFake creates a blank fake display.
func NewFake() *Fake {
	return &Fake{}
}

// Show records text on line.
func (f *Fake) Show(line int, text string) error {
	if err := checkLine(line); err != nil {
		return err
	}
	if f.Err != nil {
		return f.Err
	}
	f.Lines[line] = Fit(text, Columns)
	f.History = append(f.History, text)
	return nil
}

// Close marks the fake closed.
func (f *Fake) Close() error {
	f.Closed = true
	return nil
}
