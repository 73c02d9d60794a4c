// Package console mirrors the log to a serial port so the dispenser can be
// debugged from a laptop on the UART without a network.
package console

import (
	"fmt"
	"io"
	"log"

	"go.bug.st/serial"
)

// DefaultBaud matches the debug console of the dispenser board.
const DefaultBaud = 9600

// Port is the subset of serial.Port the console writes to.
type Port interface {
	io.WriteCloser
}

// openPort is replaced in tests.
var openPort = func(name string, baud int) (Port, error) {
	return serial.Open(name, &serial.Mode{BaudRate: baud})
}

// Console tees log output to a serial port.
type Console struct {
	port Port
	prev io.Writer
}

// Open opens the named port and starts mirroring the standard logger to it.
func Open(name string, baud int) (*Console, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	p, err := openPort(name, baud)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", name, err)
	}

	c := &Console{port: p, prev: log.Writer()}
	log.SetOutput(io.MultiWriter(c.prev, crlf{p}))
	return c, nil
}

// Close restores the previous log output and closes the port.
func (c *Console) Close() error {
	log.SetOutput(c.prev)
	return c.port.Close()
}

// Ports lists the serial ports present on the host.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

// crlf translates line endings for terminal emulators on the other end.
type crlf struct {
	w io.Writer
}

func (c crlf) Write(p []byte) (int, error) {
	out := make([]byte, 0, len(p)+4)
	for _, b := range p {
		if b == '\n' {
			out = append(out, '\r')
		}
		out = append(out, b)
	}
	if _, err := c.w.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}
