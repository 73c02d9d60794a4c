package logic

import "time"

// OverrideState is the state of the long-press detector.
type OverrideState string

const (
	OverrideIdle    OverrideState = "IDLE"
	OverrideHolding OverrideState = "HOLDING"
	OverrideFired   OverrideState = "FIRED"
)

// Override detects a continuous button hold of at least the configured
// duration. It fires once per hold and re-arms only after release.
type Override struct {
	hold      time.Duration
	state     OverrideState
	pressedAt time.Time
}

// NewOverride creates an idle detector with the given hold threshold.
func NewOverride(hold time.Duration) *Override {
	return &Override{hold: hold, state: OverrideIdle}
}

// Update feeds one button sample and reports whether unlock-all should fire.
func (o *Override) Update(pressed bool, now time.Time) bool {
	if !pressed {
		o.state = OverrideIdle
		o.pressedAt = time.Time{}
		return false
	}

	switch o.state {
	case OverrideIdle:
		o.state = OverrideHolding
		o.pressedAt = now
		return false
	case OverrideHolding:
		if now.Sub(o.pressedAt) >= o.hold {
			o.state = OverrideFired
			return true
		}
	}
	return false
}

// State returns the detector state.
func (o *Override) State() OverrideState {
	return o.state
}

// HeldFor returns how long the current press has lasted, or zero when idle.
func (o *Override) HeldFor(now time.Time) time.Duration {
	if o.state == OverrideIdle {
		return 0
	}
	return now.Sub(o.pressedAt)
}
