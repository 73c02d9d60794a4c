package logic

import "time"

// Channel is the state of one medication compartment.
type Channel struct {
	Index    int
	Schedule Schedule

	// Whether this channel has fired on the current calendar day
	DispensedToday bool
	// Whether the dispensed dose is waiting for the door to be opened
	AwaitingPickup bool

	Phase Phase
	// Start of the current unlock window
	UnlockedAt time.Time
	// Door opened while the unlock window was still running
	PickupSeen bool
	// Last commanded indicator state
	Indicator bool
}

// Tracker owns the per-channel dispense state.
// Not safe for concurrent use; the control loop is its only writer.
type Tracker struct {
	channels []Channel
}

// NewTracker creates one channel per schedule, in order.
func NewTracker(schedules []Schedule) *Tracker {
	channels := make([]Channel, len(schedules))
	for i, s := range schedules {
		channels[i] = Channel{
			Index:    i,
			Schedule: s,
			Phase:    PhaseIdle,
		}
	}
	return &Tracker{channels: channels}
}

// Len returns the number of channels.
func (t *Tracker) Len() int {
	return len(t.channels)
}

// Channel returns a copy of channel i.
func (t *Tracker) Channel(i int) Channel {
	return t.channels[i]
}

// Channels returns a copy of every channel.
func (t *Tracker) Channels() []Channel {
	out := make([]Channel, len(t.channels))
	copy(out, t.channels)
	return out
}

// AwaitingPickup returns the indices of channels waiting for the door.
func (t *Tracker) AwaitingPickup() []int {
	var out []int
	for i := range t.channels {
		if t.channels[i].AwaitingPickup {
			out = append(out, i)
		}
	}
	return out
}

// markDispensed opens the unlock window of channel i.
func (t *Tracker) markDispensed(i int, now time.Time) {
	ch := &t.channels[i]
	ch.DispensedToday = true
	ch.Phase = PhaseDispensing
	ch.UnlockedAt = now
	ch.PickupSeen = false
}

// finishDispense closes the unlock window of channel i. When awaiting is
// set the channel waits for a door-open, otherwise it goes idle.
func (t *Tracker) finishDispense(i int, awaiting bool) {
	ch := &t.channels[i]
	ch.PickupSeen = false
	if awaiting {
		ch.Phase = PhaseAwaitingPickup
		ch.AwaitingPickup = true
		return
	}
	ch.Phase = PhaseIdle
	ch.AwaitingPickup = false
}

// acknowledge clears the awaiting-pickup flag of channel i.
// Returns false if the channel was not awaiting pickup.
func (t *Tracker) acknowledge(i int) bool {
	ch := &t.channels[i]
	if !ch.AwaitingPickup {
		return false
	}
	ch.AwaitingPickup = false
	ch.Phase = PhaseIdle
	return true
}

// resetDay clears the daily flags of every channel. A channel that is inside
// its unlock window keeps the window; it settles when the window ends.
func (t *Tracker) resetDay() {
	for i := range t.channels {
		ch := &t.channels[i]
		ch.DispensedToday = false
		ch.AwaitingPickup = false
		if ch.Phase == PhaseAwaitingPickup {
			ch.Phase = PhaseIdle
		}
	}
}
