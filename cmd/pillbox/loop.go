package main

import (
	"log"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/pillbox/internal/actuator"
	"github.com/sweeney/pillbox/internal/clock"
	"github.com/sweeney/pillbox/internal/gpio"
	"github.com/sweeney/pillbox/internal/logic"
	"github.com/sweeney/pillbox/internal/mqtt"
	"github.com/sweeney/pillbox/internal/status"
)

// loop owns the controller and every output. Only its goroutine touches
// them; other goroutines read state through the status tracker.
type loop struct {
	reader     gpio.Reader
	sink       *actuator.Sink
	clock      clock.Source
	ctrl       *logic.Controller
	publisher  mqtt.Publisher        // nil when MQTT is disabled
	mqttStatus mqtt.ConnectionStatus // nil when MQTT is disabled
	tracker    *status.Tracker
	heartbeat  time.Duration
	trace      bool
	now        func() time.Time

	clockSeen bool
	clockOK   bool
	lastTrace time.Time
}

// run applies the startup state, then processes ticks until a signal
// arrives. Outputs are released before it returns.
func (l *loop) run(tick <-chan time.Time, sig <-chan os.Signal) error {
	start := l.ctrl.Start(l.now())
	l.sink.Apply(start.Actions)
	l.updateStatus()
	l.publishSystem(mqtt.SystemStartup, "", true)

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			if err := l.sink.Close(); err != nil {
				log.Printf("release outputs: %v", err)
			}
			l.publishSystem(mqtt.SystemShutdown, signalName(s), true)
			return nil

		case <-tick:
			l.tick()
		}
	}
}

func (l *loop) tick() {
	t := l.now()
	// Windows and tones keep expiring through an input fault; the inputs
	// read as idle so a fault can neither acknowledge nor unlock.
	button, door, err := l.reader.Read()
	if err != nil {
		log.Printf("gpio read error: %v", err)
		button, door = false, false
	}

	wall, clockErr := l.clock.Now()
	l.checkClock(t, clockErr)
	if l.tracker != nil {
		l.tracker.SetClock(wall, clockErr)
	}

	events := l.ctrl.Process(logic.Input{
		Now:    t,
		Wall:   wall,
		WallOK: clockErr == nil,
		Button: button,
		Door:   door,
	})

	for _, event := range events {
		l.sink.Apply(event.Actions)
		if !event.Type.Reportable() {
			continue
		}
		log.Printf("event: %s (ch=%d)", event.Type, event.Channel)
		if l.publisher != nil {
			if err := l.publisher.Publish(event); err != nil {
				log.Printf("publish error: %v", err)
				// Don't crash on publish failure
			}
		}
	}

	l.sink.ShowClock(clock.Format(wall, clockErr == nil))

	if l.trace && t.Sub(l.lastTrace) >= time.Second {
		l.lastTrace = t
		log.Printf("time: %s button=%v door=%v", clock.Format(wall, clockErr == nil), button, door)
	}

	// Check for heartbeat
	if hb := l.ctrl.CheckHeartbeat(t, l.heartbeat); hb != nil {
		log.Printf("heartbeat: uptime=%v dispensed=%d pickups=%d unlock_all=%d resets=%d write_failures=%d",
			hb.Uptime, hb.Counts.Dispensed, hb.Counts.Pickups, hb.Counts.UnlockAll, hb.Counts.DailyResets, l.sink.Failures())
		l.publishSystem(mqtt.SystemHeartbeat, "", false)
	}

	l.updateStatus()
}

// checkClock logs and publishes transitions into and out of degraded mode.
func (l *loop) checkClock(t time.Time, err error) {
	ok := err == nil
	if l.clockSeen && ok == l.clockOK {
		return
	}
	first := !l.clockSeen
	l.clockSeen = true
	l.clockOK = ok

	switch {
	case !ok:
		log.Printf("clock unavailable, schedules suspended: %v", err)
		l.publishSimple(t, mqtt.SystemClockLost, err.Error())
	case !first:
		log.Printf("clock restored, schedules resumed")
		l.publishSimple(t, mqtt.SystemClockRestored, "")
	}
}

func (l *loop) updateStatus() {
	if l.tracker == nil {
		return
	}
	l.tracker.Update(l.ctrl.Channels(), l.ctrl.OverrideState(), l.ctrl.UnlockAllActive(), l.ctrl.EventCountsSnapshot())
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

// publishSystem publishes a lifecycle event carrying a full status snapshot.
func (l *loop) publishSystem(name, reason string, retained bool) {
	if l.publisher == nil {
		return
	}
	event := mqtt.SystemEvent{
		Timestamp: l.now(),
		Event:     name,
		Reason:    reason,
		Retained:  retained,
	}
	if l.tracker != nil {
		l.updateStatus()
		snap := l.tracker.Snapshot()
		event.RawPayload = status.FormatStatusEvent(snap, mqtt.NewID(), name, reason)
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish %s event: %v", name, err)
	} else {
		log.Printf("published %s event", name)
	}
}

func (l *loop) publishSimple(t time.Time, name, reason string) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.PublishSystem(mqtt.SystemEvent{Timestamp: t, Event: name, Reason: reason}); err != nil {
		log.Printf("failed to publish %s event: %v", name, err)
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
