// Package i2c opens the shared I2C bus used by the real-time clock and the
// character LCD, and adapts it for drivers written against tinygo's bus
// interface.
package i2c

import (
	"errors"
	"fmt"

	"github.com/kidoman/embd"
	"tinygo.org/x/drivers"
)

// DefaultBus is the I2C bus exposed on the Raspberry Pi header.
const DefaultBus = 1

// Bus returns the numbered bus. Open must have succeeded first.
func Bus(n int) embd.I2CBus {
	return embd.NewI2CBus(byte(n))
}

// ErrUnsupportedTransfer is returned for transfers the embd bus cannot express.
var ErrUnsupportedTransfer = errors.New("unsupported i2c transfer")

// Adapter implements drivers.I2C on top of an embd bus.
type Adapter struct {
	bus embd.I2CBus
}

var _ drivers.I2C = (*Adapter)(nil)

// NewAdapter wraps an embd bus.
func NewAdapter(bus embd.I2CBus) *Adapter {
	return &Adapter{bus: bus}
}

// Tx performs a write followed by a read. A single written byte followed by
// a read is treated as a register read, which is how register-mapped
// devices are addressed.
func (a *Adapter) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7f {
		return fmt.Errorf("address 0x%x: %w", addr, ErrUnsupportedTransfer)
	}
	dev := byte(addr)

	switch {
	case len(r) == 0:
		if len(w) == 0 {
			return nil
		}
		return a.bus.WriteBytes(dev, w)
	case len(w) == 0:
		buf, err := a.bus.ReadBytes(dev, len(r))
		if err != nil {
			return err
		}
		copy(r, buf)
		return nil
	case len(w) == 1:
		return a.bus.ReadFromReg(dev, w[0], r)
	default:
		return fmt.Errorf("write %d then read %d bytes: %w", len(w), len(r), ErrUnsupportedTransfer)
	}
}

// ReadRegister reads len(buf) bytes starting at reg.
func (a *Adapter) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return a.Tx(uint16(addr), []byte{reg}, buf)
}

// WriteRegister writes buf starting at reg.
func (a *Adapter) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	return a.bus.WriteToReg(addr, reg, buf)
}
