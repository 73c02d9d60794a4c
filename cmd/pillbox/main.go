// Command pillbox runs a scheduled medication dispenser: it unlocks each
// compartment at its daily time, waits for the door to be opened, and lets
// a long button press unlock every compartment.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/pillbox/internal/actuator"
	"github.com/sweeney/pillbox/internal/clock"
	"github.com/sweeney/pillbox/internal/config"
	"github.com/sweeney/pillbox/internal/console"
	"github.com/sweeney/pillbox/internal/display"
	"github.com/sweeney/pillbox/internal/gpio"
	"github.com/sweeney/pillbox/internal/i2c"
	"github.com/sweeney/pillbox/internal/logic"
	"github.com/sweeney/pillbox/internal/mqtt"
	"github.com/sweeney/pillbox/internal/status"
	"github.com/sweeney/pillbox/internal/web"
)

// options are the command-line flags. Flags that are set override the
// config file.
type options struct {
	configPath string
	poll       time.Duration
	broker     string
	httpAddr   string
	heartbeat  time.Duration
	serialPort string
	printState bool
	setRTC     bool
	trace      bool
	set        map[string]bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "YAML config file (defaults are used when empty)")
	flag.DurationVar(&o.poll, "poll", config.DefaultPoll, "Control loop tick interval")
	flag.StringVar(&o.broker, "broker", "", "MQTT broker address (empty to disable)")
	flag.StringVar(&o.httpAddr, "http", "", "HTTP status address (empty to disable)")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&o.serialPort, "serial", "", "Serial port to mirror the log to")
	flag.BoolVar(&o.printState, "print-state", false, "Print button, door and clock state and exit")
	flag.BoolVar(&o.setRTC, "set-rtc", false, "Copy the system time into the DS3231 and exit")
	flag.BoolVar(&o.trace, "trace", false, "Log the clock reading once per second")

	flag.Parse()

	o.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { o.set[f.Name] = true })

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// loadConfig reads the config file and applies explicitly set flags.
func loadConfig(o options) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.set["poll"] {
		cfg.Poll = o.poll
	}
	if o.set["broker"] {
		cfg.MQTT.Broker = o.broker
	}
	if o.set["http"] {
		cfg.HTTP.Addr = o.httpAddr
	}
	if o.set["heartbeat"] {
		cfg.MQTT.Heartbeat = o.heartbeat
	}
	if o.set["serial"] {
		cfg.Serial.Port = o.serialPort
	}
	return cfg, cfg.Validate()
}

func run(o options) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Serial.Port != "" {
		con, err := console.Open(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			log.Printf("serial console disabled: %v", err)
			if ports, perr := console.Ports(); perr == nil && len(ports) > 0 {
				log.Printf("available serial ports: %s", strings.Join(ports, ", "))
			}
		} else {
			defer con.Close()
		}
	}

	// Initialize GPIO inputs
	reader, err := gpio.NewRealReader(cfg.Pins())
	if err != nil {
		return fmt.Errorf("init gpio inputs: %w", err)
	}
	defer reader.Close()

	// The RTC and the LCD share the I2C driver.
	i2cOK := false
	if cfg.Clock.Source == config.ClockDS3231 || cfg.Display.Enabled {
		closeI2C, err := i2c.Open()
		if err != nil {
			log.Printf("i2c unavailable: %v", err)
		} else {
			i2cOK = true
			defer closeI2C()
		}
	}

	if o.setRTC {
		return setRTC(cfg, i2cOK, time.Now())
	}

	clk := clock.NewRetrying(newClockSource(cfg, i2cOK), time.Now)

	if o.printState {
		return printState(reader, clk)
	}

	writer, err := gpio.NewRealWriter(cfg.Pins())
	if err != nil {
		return fmt.Errorf("init gpio outputs: %w", err)
	}

	var disp display.Display = display.Discard
	if cfg.Display.Enabled && i2cOK {
		lcd, err := display.NewLCD(i2c.Bus(cfg.Display.Bus), byte(cfg.Display.Address))
		if err != nil {
			log.Printf("lcd disabled: %v", err)
		} else {
			disp = lcd
		}
	}
	sink := actuator.New(writer, disp)

	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.MQTT.Broker)
		if err != nil {
			log.Printf("mqtt disabled: %v", err)
		} else {
			defer p.Close()
			publisher, mqttStatus = p, p
		}
	}

	startTime := time.Now()
	tracker := status.NewTracker(startTime, status.Config{
		Policy:         cfg.Policy,
		PollMs:         cfg.Poll.Milliseconds(),
		UnlockMs:       cfg.UnlockDuration.Milliseconds(),
		AlertMs:        cfg.AlertDuration.Milliseconds(),
		OverrideHoldMs: cfg.OverrideHold.Milliseconds(),
		HeartbeatMs:    cfg.MQTT.Heartbeat.Milliseconds(),
		UTCOffset:      cfg.UTCOffset.String(),
		ClockSource:    cfg.Clock.Source,
		Broker:         cfg.MQTT.Broker,
		HTTPAddr:       cfg.HTTP.Addr,
	})

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	ctrl := logic.NewController(logic.NewTracker(cfg.Schedules()), cfg.Policy, cfg.Timing(), startTime)

	log.Printf("started: channels=%d policy=%s unlock=%v alert=%v hold=%v poll=%v clock=%s offset=%v",
		len(cfg.Channels), cfg.Policy, cfg.UnlockDuration, cfg.AlertDuration, cfg.OverrideHold, cfg.Poll, cfg.Clock.Source, cfg.UTCOffset)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		reader:     reader,
		sink:       sink,
		clock:      clk,
		ctrl:       ctrl,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		heartbeat:  cfg.MQTT.Heartbeat,
		trace:      o.trace,
		now:        time.Now,
	}
	return l.run(ticker.C, sigCh)
}

func newClockSource(cfg config.Config, i2cOK bool) clock.Source {
	loc := cfg.Location()
	if cfg.Clock.Source == config.ClockDS3231 {
		if i2cOK {
			return clock.NewDS3231(i2c.NewAdapter(i2c.Bus(cfg.Clock.Bus)), loc)
		}
		log.Printf("rtc unreachable, falling back to the system clock")
	}
	return clock.NewSystem(loc)
}

// setRTC copies now into the configured DS3231.
func setRTC(cfg config.Config, i2cOK bool, now time.Time) error {
	if cfg.Clock.Source != config.ClockDS3231 {
		return fmt.Errorf("set-rtc: clock source is %q, not %q", cfg.Clock.Source, config.ClockDS3231)
	}
	if !i2cOK {
		return errors.New("set-rtc: i2c unavailable")
	}
	rtc := clock.NewDS3231(i2c.NewAdapter(i2c.Bus(cfg.Clock.Bus)), cfg.Location())
	if err := rtc.Set(now); err != nil {
		return err
	}
	log.Printf("rtc set to %s", now.UTC().Format(time.RFC3339))
	return nil
}

func printState(reader gpio.Reader, clk clock.Source) error {
	button, door, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	wall, err := clk.Now()
	clockText := clock.Format(wall, err == nil)
	if err == nil {
		clockText = wall.Format("2006-01-02 15:04:05 MST")
	}
	fmt.Printf("button: %s, door: %s, clock: %s\n", pressedString(button), openString(door), clockText)
	if err != nil {
		fmt.Printf("clock error: %v\n", err)
	}
	return nil
}

func pressedString(on bool) string {
	if on {
		return "PRESSED"
	}
	return "RELEASED"
}

func openString(on bool) string {
	if on {
		return "OPEN"
	}
	return "CLOSED"
}
