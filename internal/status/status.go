// Package status provides a thread-safe status tracker for the pillbox daemon.
// It is read by the HTTP handlers and used to build MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/pillbox/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	Policy         logic.Policy
	PollMs         int64
	UnlockMs       int64
	AlertMs        int64
	OverrideHoldMs int64
	HeartbeatMs    int64
	UTCOffset      string
	ClockSource    string
	Broker         string
	HTTPAddr       string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Channels      []logic.Channel
	Override      logic.OverrideState
	UnlockAll     bool
	ClockOK       bool
	ClockError    string
	WallTime      time.Time
	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// AwaitingPickup returns the indices of channels waiting for the door.
func (s Snapshot) AwaitingPickup() []int {
	var out []int
	for _, ch := range s.Channels {
		if ch.AwaitingPickup {
			out = append(out, ch.Index)
		}
	}
	return out
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Override:  logic.OverrideIdle,
			Config:    cfg,
		},
	}
}

// Update sets channel states, override state and event counts.
// Called from runLoop on every tick.
func (t *Tracker) Update(channels []logic.Channel, override logic.OverrideState, unlockAll bool, counts logic.EventCounts) {
	chs := append([]logic.Channel(nil), channels...)
	t.mu.Lock()
	t.snap.Channels = chs
	t.snap.Override = override
	t.snap.UnlockAll = unlockAll
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetClock records the latest clock reading, or the error that replaced it.
// The last good wall time is kept while the clock is unavailable.
func (t *Tracker) SetClock(wall time.Time, err error) {
	t.mu.Lock()
	if err != nil {
		t.snap.ClockOK = false
		t.snap.ClockError = err.Error()
	} else {
		t.snap.ClockOK = true
		t.snap.ClockError = ""
		t.snap.WallTime = wall
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Channels = append([]logic.Channel(nil), t.snap.Channels...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
