package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/pillbox/internal/actuator"
	"github.com/sweeney/pillbox/internal/clock"
	"github.com/sweeney/pillbox/internal/config"
	"github.com/sweeney/pillbox/internal/display"
	"github.com/sweeney/pillbox/internal/gpio"
	"github.com/sweeney/pillbox/internal/logic"
	"github.com/sweeney/pillbox/internal/mqtt"
	"github.com/sweeney/pillbox/internal/status"
)

const step = 200 * time.Millisecond

var local = clock.Zone(clock.DefaultOffset)

// inputs is a gpio.Reader whose state the test sets between ticks.
type inputs struct {
	button, door bool
	err          error
}

func (i *inputs) Read() (bool, bool, error) { return i.button, i.door, i.err }
func (i *inputs) Close() error              { return nil }

// harness drives loop.tick directly so the test owns every fake.
type harness struct {
	l       *loop
	in      *inputs
	out     *gpio.FakeWriter
	disp    *display.Fake
	pub     *mqtt.FakePublisher
	wall    *clock.Fake
	tracker *status.Tracker
	mono    time.Time
}

func newHarness(t *testing.T, policy logic.Policy, wall time.Time) *harness {
	t.Helper()
	h := &harness{
		in:   &inputs{},
		out:  gpio.NewFakeWriter(3),
		disp: display.NewFake(),
		pub:  mqtt.NewFakePublisher(),
		wall: clock.NewFake(wall),
		mono: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	h.tracker = status.NewTracker(h.mono, status.Config{Policy: policy})
	tr := logic.NewTracker([]logic.Schedule{{Hour: 8}, {Hour: 12}, {Hour: 16}})
	h.l = &loop{
		reader:     h.in,
		sink:       actuator.New(h.out, h.disp),
		clock:      h.wall,
		ctrl:       logic.NewController(tr, policy, logic.DefaultTiming(), h.mono),
		publisher:  h.pub,
		mqttStatus: h.pub,
		tracker:    h.tracker,
		now:        func() time.Time { return h.mono },
	}
	h.l.sink.Apply(h.l.ctrl.Start(h.mono).Actions)
	return h
}

// step advances both clocks by d and runs one tick.
func (h *harness) step(d time.Duration) {
	h.mono = h.mono.Add(d)
	h.wall.Advance(d)
	h.l.tick()
}

// run ticks every step for d.
func (h *harness) run(d time.Duration) {
	for elapsed := step; elapsed <= d; elapsed += step {
		h.step(step)
	}
}

func at(hour, min, sec int) time.Time {
	return time.Date(2026, 3, 4, hour, min, sec, 0, local)
}

func line(s string) string {
	return display.Fit(s, display.Columns)
}

func equalTypes(got, want []logic.EventType) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestRunLoopDispenseCycle(t *testing.T) {
	h := newHarness(t, logic.PolicyAwaitPickup, at(7, 59, 59))

	h.step(step)
	h.run(800 * time.Millisecond) // reaches 08:00:00.0

	if got := h.pub.EventTypes(); !equalTypes(got, []logic.EventType{logic.EventDispenseStart}) {
		t.Fatalf("expected DISPENSE_START, got %v", got)
	}
	if h.pub.Events[0].Channel != 0 {
		t.Errorf("expected channel 0, got %d", h.pub.Events[0].Channel)
	}
	if !h.out.Solenoids[0] || !h.out.Indicators[0] {
		t.Error("channel 0 should be unlocked and lit")
	}
	if h.out.Solenoids[1] || h.out.Solenoids[2] {
		t.Error("other channels must stay locked")
	}
	if h.out.Pattern != logic.PatternDispense {
		t.Errorf("expected dispense tone, got %s", h.out.Pattern)
	}
	if h.disp.Lines[0] != line("Unlock ch 1") {
		t.Errorf("line 0: got %q", h.disp.Lines[0])
	}

	h.run(400 * time.Millisecond)
	if h.out.Pattern != logic.PatternNone {
		t.Errorf("alert should have stopped, got %s", h.out.Pattern)
	}

	h.run(5 * time.Second)
	if got := h.pub.EventTypes(); !equalTypes(got, []logic.EventType{logic.EventDispenseStart, logic.EventDispenseEnd}) {
		t.Fatalf("expected DISPENSE_END after the window, got %v", got)
	}
	if h.out.Solenoids[0] {
		t.Error("solenoid should be locked after the window")
	}
	if !h.out.Indicators[0] {
		t.Error("indicator should stay lit until pickup")
	}
	if h.disp.Lines[0] != line("Open door") {
		t.Errorf("line 0: got %q", h.disp.Lines[0])
	}

	h.in.door = true
	h.step(step)
	if got := h.pub.EventTypes(); len(got) != 3 || got[2] != logic.EventPickupAck {
		t.Fatalf("expected PICKUP_ACK, got %v", got)
	}
	if h.out.Indicators[0] {
		t.Error("indicator should be off after pickup")
	}
	if h.disp.Lines[0] != line("Waiting next") {
		t.Errorf("line 0: got %q", h.disp.Lines[0])
	}
	if !strings.HasPrefix(h.disp.Lines[1], "08:00:") {
		t.Errorf("clock line: got %q", h.disp.Lines[1])
	}

	// Holding the door open does nothing more.
	h.run(time.Second)
	if len(h.pub.Events) != 3 {
		t.Errorf("expected no further events, got %v", h.pub.EventTypes())
	}
}

func TestRunLoopAlertOffIsNotPublished(t *testing.T) {
	h := newHarness(t, logic.PolicyAutoExpire, at(7, 59, 59))

	h.run(7 * time.Second)

	for _, e := range h.pub.Events {
		if e.Type == logic.EventAlertOff {
			t.Error("ALERT_OFF must not be published")
		}
	}
	if got := h.pub.EventTypes(); !equalTypes(got, []logic.EventType{logic.EventDispenseStart, logic.EventDispenseEnd}) {
		t.Errorf("unexpected events: %v", got)
	}
	if h.out.Indicators[0] {
		t.Error("auto-expire leaves the indicator off after the window")
	}
}

func TestRunLoopUpdatesTracker(t *testing.T) {
	h := newHarness(t, logic.PolicyAwaitPickup, at(7, 59, 59))
	h.pub.Connected = true

	h.run(1200 * time.Millisecond)

	snap := h.tracker.Snapshot()
	if len(snap.Channels) != 3 {
		t.Fatalf("expected 3 channels, got %d", len(snap.Channels))
	}
	if snap.Channels[0].Phase != logic.PhaseDispensing {
		t.Errorf("channel 0 phase: got %s", snap.Channels[0].Phase)
	}
	if !snap.ClockOK {
		t.Error("expected clock OK")
	}
	if snap.Counts.Dispensed != 1 {
		t.Errorf("Counts.Dispensed: got %d, want 1", snap.Counts.Dispensed)
	}
	if !snap.MQTTConnected {
		t.Error("expected MQTT connected")
	}
}

func TestRunLoopClockLostAndRestored(t *testing.T) {
	h := newHarness(t, logic.PolicyAwaitPickup, at(7, 59, 58))
	h.wall.Err = clock.ErrClockUnavailable

	h.run(4 * time.Second) // wall passes 08:00 while unreadable

	if len(h.pub.Events) != 0 {
		t.Errorf("no dispense without a clock, got %v", h.pub.EventTypes())
	}
	if names := h.pub.SystemEventNames(); len(names) != 1 || names[0] != mqtt.SystemClockLost {
		t.Fatalf("expected one CLOCK_LOST, got %v", names)
	}
	if h.disp.Lines[1] != line(clock.Unknown) {
		t.Errorf("clock line: got %q", h.disp.Lines[1])
	}
	if h.tracker.Snapshot().ClockOK {
		t.Error("tracker should report the clock as down")
	}

	h.wall.Err = nil
	h.step(step)

	names := h.pub.SystemEventNames()
	if len(names) != 2 || names[1] != mqtt.SystemClockRestored {
		t.Fatalf("expected CLOCK_RESTORED, got %v", names)
	}
	// Still inside 08:00, so the late reading dispenses.
	if got := h.pub.EventTypes(); !equalTypes(got, []logic.EventType{logic.EventDispenseStart}) {
		t.Errorf("expected DISPENSE_START after recovery, got %v", got)
	}
}

func TestRunLoopOverrideWithoutClock(t *testing.T) {
	h := newHarness(t, logic.PolicyAwaitPickup, at(10, 0, 0))
	h.wall.Err = clock.ErrClockUnavailable
	h.in.button = true

	h.run(10*time.Second + step)

	if got := h.pub.EventTypes(); !equalTypes(got, []logic.EventType{logic.EventUnlockAllStart}) {
		t.Fatalf("expected UNLOCK_ALL_START, got %v", got)
	}
	for i, on := range h.out.Solenoids {
		if !on {
			t.Errorf("solenoid %d should be unlocked", i)
		}
	}
	if h.out.Pattern != logic.PatternUnlockAll {
		t.Errorf("expected unlock-all tone, got %s", h.out.Pattern)
	}
	if h.disp.Lines[0] != line("Unlock all") {
		t.Errorf("line 0: got %q", h.disp.Lines[0])
	}

	h.in.button = false
	h.run(5 * time.Second)
	for i, on := range h.out.Solenoids {
		if on {
			t.Errorf("solenoid %d should be locked again", i)
		}
	}
	if h.disp.Lines[0] != line("Resumed") {
		t.Errorf("line 0: got %q", h.disp.Lines[0])
	}
}

func TestRunLoopGPIOReadErrorKeepsTimersRunning(t *testing.T) {
	h := newHarness(t, logic.PolicyAwaitPickup, at(8, 0, 0))
	h.step(step)
	if !h.out.Solenoids[0] {
		t.Fatal("setup: expected channel 0 unlocked")
	}

	h.in.err = errors.New("gpio fault")
	h.in.door = true
	h.in.button = true
	h.run(12 * time.Second)

	if h.out.Solenoids[0] {
		t.Error("window must close on time during an input fault")
	}
	if h.out.Pattern != logic.PatternNone {
		t.Errorf("alert must stop during an input fault, got %s", h.out.Pattern)
	}
	want := []logic.EventType{logic.EventDispenseStart, logic.EventDispenseEnd}
	if got := h.pub.EventTypes(); !equalTypes(got, want) {
		t.Errorf("faulty inputs must not acknowledge or unlock, got %v", got)
	}
	if !h.out.Indicators[0] {
		t.Error("dose should still await pickup")
	}

	h.in.err = nil
	h.in.button = false
	h.step(step)
	if got := h.pub.EventTypes(); len(got) != 3 || got[2] != logic.EventPickupAck {
		t.Errorf("expected PICKUP_ACK once inputs recover, got %v", got)
	}
}

func TestRunLoopPublishFailureDoesNotCrash(t *testing.T) {
	h := newHarness(t, logic.PolicyAwaitPickup, at(8, 0, 0))
	h.pub.PublishError = errors.New("broker down")
	h.pub.PublishSystemError = errors.New("broker down")

	h.run(time.Second)

	if !h.out.Solenoids[0] {
		t.Error("dispense must proceed when publishing fails")
	}
}

func TestRunLoopWithoutPublisher(t *testing.T) {
	h := newHarness(t, logic.PolicyAwaitPickup, at(8, 0, 0))
	h.l.publisher = nil
	h.l.mqttStatus = nil
	h.l.heartbeat = time.Second
	h.wall.Err = clock.ErrClockUnavailable

	h.run(2 * time.Second)

	if h.tracker.Snapshot().MQTTConnected {
		t.Error("expected MQTT disconnected without a publisher")
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	h := newHarness(t, logic.PolicyAwaitPickup, at(9, 0, 0))
	h.l.heartbeat = 15 * time.Minute

	h.step(14 * time.Minute)
	if len(h.pub.SystemEvents) != 0 {
		t.Fatalf("heartbeat too early: %v", h.pub.SystemEventNames())
	}

	h.step(2 * time.Minute)
	names := h.pub.SystemEventNames()
	if len(names) != 1 || names[0] != mqtt.SystemHeartbeat {
		t.Fatalf("expected HEARTBEAT, got %v", names)
	}
	payload := string(h.pub.SystemPayloads[0])
	if !strings.Contains(payload, `"event":"HEARTBEAT"`) || !strings.Contains(payload, `"channels"`) {
		t.Errorf("heartbeat should carry a status snapshot, got %s", payload)
	}
	if h.pub.SystemEvents[0].Retained {
		t.Error("heartbeat should not be retained")
	}
}

func TestRunLoopTraceDoesNotDisturbTicks(t *testing.T) {
	h := newHarness(t, logic.PolicyAwaitPickup, at(7, 59, 59))
	h.l.trace = true

	h.run(2 * time.Second)

	if got := h.pub.EventTypes(); !equalTypes(got, []logic.EventType{logic.EventDispenseStart}) {
		t.Errorf("unexpected events with trace: %v", got)
	}
}

func TestRunStartupAndShutdown(t *testing.T) {
	out := gpio.NewFakeWriter(3)
	disp := display.NewFake()
	pub := mqtt.NewFakePublisher()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := logic.NewTracker([]logic.Schedule{{Hour: 8}, {Hour: 12}, {Hour: 16}})

	l := &loop{
		reader:    gpio.NewFakeReader([]gpio.Sample{{}}),
		sink:      actuator.New(out, disp),
		clock:     clock.NewFake(at(9, 0, 0)),
		ctrl:      logic.NewController(tr, logic.PolicyInvertedIndicator, logic.DefaultTiming(), start),
		publisher: pub,
		tracker:   status.NewTracker(start, status.Config{}),
		now:       func() time.Time { return start },
	}

	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.run(tick, sig)
	}()

	for i := 0; i < 3; i++ {
		tick <- time.Time{}
	}
	sig <- syscall.SIGTERM

	if err := <-errCh; err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	names := pub.SystemEventNames()
	if len(names) != 2 || names[0] != mqtt.SystemStartup || names[1] != mqtt.SystemShutdown {
		t.Fatalf("expected STARTUP then SHUTDOWN, got %v", names)
	}
	if !pub.SystemEvents[0].Retained || !pub.SystemEvents[1].Retained {
		t.Error("lifecycle events should be retained")
	}
	if pub.SystemEvents[1].Reason != "SIGTERM" {
		t.Errorf("shutdown reason: got %q", pub.SystemEvents[1].Reason)
	}
	if !strings.Contains(string(pub.SystemPayloads[0]), `"event":"STARTUP"`) {
		t.Errorf("startup payload: %s", pub.SystemPayloads[0])
	}

	// Inverted indicators are lit at startup, then everything is released.
	if !strings.Contains(strings.Join(out.Calls, ","), "indicator 0 on") {
		t.Errorf("startup should light inverted indicators, calls: %v", out.Calls)
	}
	if !out.Closed || !disp.Closed {
		t.Error("outputs should be released on shutdown")
	}
	for i := range out.Indicators {
		if out.Indicators[i] || out.Solenoids[i] {
			t.Errorf("channel %d still driven after shutdown", i)
		}
	}
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pillbox.yaml")
	data := "mqtt:\n  broker: tcp://192.168.1.200:1883\nhttp:\n  addr: \":80\"\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(options{configPath: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MQTT.Broker != "tcp://192.168.1.200:1883" || cfg.HTTP.Addr != ":80" {
		t.Errorf("file values not loaded: %+v %+v", cfg.MQTT, cfg.HTTP)
	}

	cfg, err = loadConfig(options{
		configPath: path,
		broker:     "",
		poll:       50 * time.Millisecond,
		set:        map[string]bool{"broker": true, "poll": true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MQTT.Broker != "" {
		t.Errorf("-broker= should disable MQTT, got %q", cfg.MQTT.Broker)
	}
	if cfg.Poll != 50*time.Millisecond {
		t.Errorf("Poll: got %v", cfg.Poll)
	}
	if cfg.HTTP.Addr != ":80" {
		t.Error("unset flags must not override the file")
	}
}

func TestLoadConfigRejectsInvalidOverride(t *testing.T) {
	_, err := loadConfig(options{poll: 0, set: map[string]bool{"poll": true}})
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSignalName(t *testing.T) {
	if signalName(syscall.SIGINT) != "SIGINT" {
		t.Error("SIGINT")
	}
	if signalName(syscall.SIGTERM) != "SIGTERM" {
		t.Error("SIGTERM")
	}
	if signalName(syscall.SIGHUP) != "UNKNOWN" {
		t.Error("SIGHUP")
	}
}

func TestStateStrings(t *testing.T) {
	if pressedString(true) != "PRESSED" || pressedString(false) != "RELEASED" {
		t.Error("pressedString")
	}
	if openString(true) != "OPEN" || openString(false) != "CLOSED" {
		t.Error("openString")
	}
}

func TestSetRTCRequiresDS3231(t *testing.T) {
	cfg := config.Default()
	if err := setRTC(cfg, true, time.Now()); err == nil {
		t.Error("expected error for the system clock source")
	}

	cfg.Clock.Source = config.ClockDS3231
	if err := setRTC(cfg, false, time.Now()); err == nil {
		t.Error("expected error without i2c")
	}
}
