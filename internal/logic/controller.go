package logic

import (
	"fmt"
	"time"
)

// Display messages for line 0.
const (
	MsgTitle       = "Pill dispenser"
	MsgWaitingNext = "Waiting next"
	MsgOpenDoor    = "Open door"
	MsgUnlockAll   = "Unlock all"
	MsgResumed     = "Resumed"
)

type date struct {
	year  int
	month time.Month
	day   int
}

func dateOf(t time.Time) date {
	y, m, d := t.Date()
	return date{y, m, d}
}

// Controller runs the dispensing state machine one tick at a time.
type Controller struct {
	policy   Policy
	timing   Timing
	tracker  *Tracker
	override *Override

	lastDay    date
	haveDay    bool
	wallTime   time.Time
	clockKnown bool

	unlockAllActive bool
	unlockAllAt     time.Time

	sound      Pattern
	soundUntil time.Time

	startTime     time.Time
	lastHeartbeat time.Time
	eventCounts   EventCounts
}

// NewController creates a controller over the given tracker.
// The startTime is used for calculating uptime in heartbeat events.
func NewController(tracker *Tracker, policy Policy, timing Timing, startTime time.Time) *Controller {
	return &Controller{
		policy:        policy,
		timing:        timing,
		tracker:       tracker,
		override:      NewOverride(timing.OverrideHold),
		sound:         PatternNone,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Start returns the event that puts every actuator into its resting state.
func (c *Controller) Start(now time.Time) Event {
	ev := Event{Timestamp: now, Type: EventStartup, Channel: AllChannels}
	for i := range c.tracker.channels {
		c.tracker.channels[i].Indicator = c.restingIndicator()
		ev.Actions = append(ev.Actions,
			solenoid(i, false),
			indicator(i, c.restingIndicator()),
		)
	}
	ev.Actions = append(ev.Actions, sound(PatternNone), message(MsgTitle))
	return ev
}

// Process evaluates one tick and returns the events it produced, in order.
func (c *Controller) Process(in Input) []Event {
	var events []Event

	// Sound expiry goes first so a new alert on this tick is not cut short.
	if ev, ok := c.expireSound(in.Now); ok {
		events = append(events, ev)
	}

	events = append(events, c.expireWindows(in.Now)...)

	if in.WallOK {
		c.wallTime = in.Wall
		c.clockKnown = true
		if ev, ok := c.checkDayChange(in.Wall, in.Now); ok {
			events = append(events, ev)
		}
		events = append(events, c.checkSchedules(in.Wall, in.Now)...)
	}

	if in.Door {
		events = append(events, c.handleDoor(in.Now)...)
	}

	if c.override.Update(in.Button, in.Now) {
		events = append(events, c.startUnlockAll(in.Now))
	}

	for _, e := range events {
		switch e.Type {
		case EventDispenseStart:
			c.eventCounts.Dispensed++
		case EventPickupAck:
			c.eventCounts.Pickups++
		case EventUnlockAllStart:
			c.eventCounts.UnlockAll++
		case EventDailyReset:
			c.eventCounts.DailyResets++
		}
	}

	return events
}

// checkDayChange resets the daily flags when the calendar day differs from
// the one seen on the previous tick. The first reading only records the day.
func (c *Controller) checkDayChange(wall, now time.Time) (Event, bool) {
	today := dateOf(wall)
	if !c.haveDay {
		c.lastDay = today
		c.haveDay = true
		return Event{}, false
	}
	if today == c.lastDay {
		return Event{}, false
	}
	c.lastDay = today

	c.tracker.resetDay()
	ev := Event{Timestamp: now, Type: EventDailyReset, Channel: AllChannels}
	for i := range c.tracker.channels {
		ch := &c.tracker.channels[i]
		if ch.Phase == PhaseDispensing {
			continue
		}
		ch.Indicator = c.restingIndicator()
		ev.Actions = append(ev.Actions, indicator(i, ch.Indicator))
	}
	ev.Actions = append(ev.Actions, message(MsgTitle))
	return ev, true
}

// checkSchedules starts a dispense for every channel whose minute matches
// and that has not fired today. The first tick inside the minute wins,
// whatever its second.
func (c *Controller) checkSchedules(wall, now time.Time) []Event {
	var events []Event
	for i := range c.tracker.channels {
		ch := &c.tracker.channels[i]
		if ch.DispensedToday || !ch.Schedule.Matches(wall) {
			continue
		}
		events = append(events, c.startDispense(i, now))
	}
	return events
}

func (c *Controller) startDispense(i int, now time.Time) Event {
	c.tracker.markDispensed(i, now)
	ch := &c.tracker.channels[i]

	// Inverted indicators go dark to signal the dose; the others light up.
	ch.Indicator = c.policy != PolicyInvertedIndicator

	actions := []Action{solenoid(i, true), indicator(i, ch.Indicator)}
	if a, ok := c.startSound(PatternDispense, now, c.timing.Alert); ok {
		actions = append(actions, a)
	}
	actions = append(actions, message(fmt.Sprintf("Unlock ch %d", i+1)))

	return Event{
		Timestamp: now,
		Type:      EventDispenseStart,
		Channel:   i,
		Actions:   actions,
	}
}

// expireWindows closes dispense and unlock-all windows that have run for
// the full unlock duration.
func (c *Controller) expireWindows(now time.Time) []Event {
	var events []Event

	for i := range c.tracker.channels {
		ch := &c.tracker.channels[i]
		if ch.Phase != PhaseDispensing || now.Sub(ch.UnlockedAt) < c.timing.Unlock {
			continue
		}
		events = append(events, c.finishDispense(i, now)...)
	}

	if c.unlockAllActive && now.Sub(c.unlockAllAt) >= c.timing.Unlock {
		c.unlockAllActive = false
		ev := Event{Timestamp: now, Type: EventUnlockAllEnd, Channel: AllChannels}
		for i := range c.tracker.channels {
			if c.tracker.channels[i].Phase == PhaseDispensing {
				continue
			}
			ev.Actions = append(ev.Actions, solenoid(i, false))
		}
		ev.Actions = append(ev.Actions, message(MsgResumed))
		events = append(events, ev)
	}

	return events
}

func (c *Controller) finishDispense(i int, now time.Time) []Event {
	ch := &c.tracker.channels[i]
	pickupSeen := ch.PickupSeen

	end := Event{Timestamp: now, Type: EventDispenseEnd, Channel: i}
	if !c.unlockAllActive {
		end.Actions = append(end.Actions, solenoid(i, false))
	}

	// The day rolled over inside the window: settle into the new day's state.
	if !ch.DispensedToday {
		c.tracker.finishDispense(i, false)
		ch.Indicator = c.restingIndicator()
		end.Actions = append(end.Actions, indicator(i, ch.Indicator), message(MsgTitle))
		return []Event{end}
	}

	switch c.policy {
	case PolicyAwaitPickup:
		c.tracker.finishDispense(i, true)
		end.Actions = append(end.Actions, message(MsgOpenDoor))
		if !pickupSeen {
			return []Event{end}
		}
		c.tracker.acknowledge(i)
		ch.Indicator = false
		ack := Event{
			Timestamp: now,
			Type:      EventPickupAck,
			Channel:   i,
			Actions:   []Action{indicator(i, false)},
		}
		if len(c.tracker.AwaitingPickup()) == 0 {
			ack.Actions = append(ack.Actions, message(MsgWaitingNext))
		}
		return []Event{end, ack}

	case PolicyInvertedIndicator:
		c.tracker.finishDispense(i, false)
		ch.Indicator = false
		end.Actions = append(end.Actions, indicator(i, false), message(MsgWaitingNext))

	default:
		c.tracker.finishDispense(i, false)
		ch.Indicator = false
		end.Actions = append(end.Actions, indicator(i, false), message(MsgWaitingNext))
	}
	return []Event{end}
}

// handleDoor acknowledges every channel awaiting pickup. A door-open during
// an await-pickup unlock window is remembered and settled when it closes.
func (c *Controller) handleDoor(now time.Time) []Event {
	var events []Event
	for i := range c.tracker.channels {
		ch := &c.tracker.channels[i]
		if ch.Phase == PhaseDispensing && c.policy == PolicyAwaitPickup {
			ch.PickupSeen = true
			continue
		}
		if !c.tracker.acknowledge(i) {
			continue
		}
		ch.Indicator = false
		events = append(events, Event{
			Timestamp: now,
			Type:      EventPickupAck,
			Channel:   i,
			Actions:   []Action{indicator(i, false)},
		})
	}
	if len(events) > 0 && len(c.tracker.AwaitingPickup()) == 0 {
		last := &events[len(events)-1]
		last.Actions = append(last.Actions, message(MsgWaitingNext))
	}
	return events
}

func (c *Controller) startUnlockAll(now time.Time) Event {
	c.unlockAllActive = true
	c.unlockAllAt = now

	ev := Event{Timestamp: now, Type: EventUnlockAllStart, Channel: AllChannels}
	for i := range c.tracker.channels {
		ev.Actions = append(ev.Actions, solenoid(i, true))
	}
	a, _ := c.startSound(PatternUnlockAll, now, c.timing.Unlock)
	ev.Actions = append(ev.Actions, a, message(MsgUnlockAll))
	return ev
}

// startSound plays p for d. The unlock-all tone outranks the dispense beep:
// a beep requested while it plays only pushes the stop time out, and no
// action is returned.
func (c *Controller) startSound(p Pattern, now time.Time, d time.Duration) (Action, bool) {
	until := now.Add(d)
	if c.sound == PatternUnlockAll && p != PatternUnlockAll {
		if until.After(c.soundUntil) {
			c.soundUntil = until
		}
		return Action{}, false
	}
	c.sound = p
	c.soundUntil = until
	return sound(p), true
}

func (c *Controller) expireSound(now time.Time) (Event, bool) {
	if c.sound == PatternNone || now.Before(c.soundUntil) {
		return Event{}, false
	}
	c.sound = PatternNone
	return Event{
		Timestamp: now,
		Type:      EventAlertOff,
		Channel:   AllChannels,
		Actions:   []Action{sound(PatternNone)},
	}, true
}

// restingIndicator is the indicator state of an undispensed channel.
func (c *Controller) restingIndicator() bool {
	return c.policy == PolicyInvertedIndicator
}

// Channels returns a copy of the channel states.
func (c *Controller) Channels() []Channel {
	return c.tracker.Channels()
}

// Policy returns the configured dispense policy.
func (c *Controller) Policy() Policy {
	return c.policy
}

// OverrideState returns the long-press detector state.
func (c *Controller) OverrideState() OverrideState {
	return c.override.State()
}

// UnlockAllActive reports whether an unlock-all window is running.
func (c *Controller) UnlockAllActive() bool {
	return c.unlockAllActive
}

// ClockKnown reports whether a wall-clock reading has ever been processed.
func (c *Controller) ClockKnown() bool {
	return c.clockKnown
}

// LastWallTime returns the most recent wall-clock reading.
func (c *Controller) LastWallTime() time.Time {
	return c.wallTime
}

// EventCountsSnapshot returns a copy of the event counters.
func (c *Controller) EventCountsSnapshot() EventCounts {
	return c.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (c *Controller) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(c.lastHeartbeat) < interval {
		return nil
	}

	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(c.startTime),
		Counts:    c.eventCounts,
	}
}
