package clock

import (
	"fmt"
	"time"
)

// Backoff bounds for Retrying.
const (
	MinBackoff = time.Second
	MaxBackoff = time.Minute
)

// Retrying wraps a Source and stops hammering it while it is failing.
// After a failure the next real read is delayed, doubling from MinBackoff
// up to MaxBackoff; reads inside the delay return the last error.
type Retrying struct {
	src   Source
	mono  func() time.Time
	delay time.Duration
	next  time.Time
	err   error
}

// NewRetrying wraps src. mono supplies the host's monotonic time used to
// schedule retries; nil means time.Now.
func NewRetrying(src Source, mono func() time.Time) *Retrying {
	if mono == nil {
		mono = time.Now
	}
	return &Retrying{src: src, mono: mono}
}

// Now reads the wrapped source unless a retry is pending.
func (r *Retrying) Now() (time.Time, error) {
	now := r.mono()
	if r.err != nil && now.Before(r.next) {
		return time.Time{}, r.err
	}

	t, err := r.src.Now()
	if err != nil {
		if r.delay == 0 {
			r.delay = MinBackoff
		} else if r.delay < MaxBackoff {
			r.delay *= 2
			if r.delay > MaxBackoff {
				r.delay = MaxBackoff
			}
		}
		r.next = now.Add(r.delay)
		r.err = fmt.Errorf("%w (retry in %s)", err, r.delay)
		return time.Time{}, r.err
	}

	r.delay = 0
	r.err = nil
	return t, nil
}

// Delay returns the current backoff, zero while the source is healthy.
func (r *Retrying) Delay() time.Duration {
	return r.delay
}
