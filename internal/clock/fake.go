package clock

import "time"

// Fake is a scripted Source for tests.
type Fake struct {
	Time  time.Time
	Err   error
	Calls int
}

// NewFake creates a fake reading t.
func NewFake(t time.Time) *Fake {
	return &Fake{Time: t}
}

// Now returns the scripted time or error.
func (f *Fake) Now() (time.Time, error) {
	f.Calls++
	if f.Err != nil {
		return time.Time{}, f.Err
	}
	return f.Time, nil
}

// Advance moves the fake forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.Time = f.Time.Add(d)
}
