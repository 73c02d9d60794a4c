package console

import (
	"bytes"
	"errors"
	"log"
	"os"
	"testing"
)

type fakePort struct {
	bytes.Buffer
	closed bool
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func withFakePort(t *testing.T, p *fakePort, err error) {
	t.Helper()
	orig := openPort
	openPort = func(name string, baud int) (Port, error) {
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	t.Cleanup(func() { openPort = orig })
}

func TestConsoleMirrorsLog(t *testing.T) {
	var stderr bytes.Buffer
	log.SetOutput(&stderr)
	flags := log.Flags()
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetFlags(flags)
		log.SetOutput(os.Stderr)
	})

	p := &fakePort{}
	withFakePort(t, p, nil)

	c, err := Open("/dev/ttyS0", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	log.Printf("event: DISPENSE_START (ch=0)")

	if got := stderr.String(); got != "event: DISPENSE_START (ch=0)\n" {
		t.Errorf("stderr: got %q", got)
	}
	if got := p.String(); got != "event: DISPENSE_START (ch=0)\r\n" {
		t.Errorf("serial: got %q", got)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.closed {
		t.Error("port should be closed")
	}

	log.Printf("after close")
	if bytes.Contains(p.Bytes(), []byte("after close")) {
		t.Error("log must not reach the port after Close")
	}
}

func TestConsoleOpenError(t *testing.T) {
	withFakePort(t, nil, errors.New("no such device"))

	if _, err := Open("/dev/ttyUSB9", DefaultBaud); err == nil {
		t.Error("expected error")
	}
}
