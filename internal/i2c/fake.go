package i2c

import (
	"errors"

	"github.com/kidoman/embd"
)

// FakeBus is an in-memory embd.I2CBus holding one register file per device.
type FakeBus struct {
	Regs map[byte][]byte

	// Err, if set, is returned by every transfer.
	Err error

	Writes int
	Closed bool
}

// NewFakeBus creates an empty bus.
func NewFakeBus() *FakeBus {
	return &FakeBus{Regs: make(map[byte][]byte)}
}

// Set stores register contents for a device starting at reg.
func (f *FakeBus) Set(addr, reg byte, values ...byte) {
	regs := f.regs(addr)
	copy(regs[reg:], values)
}

func (f *FakeBus) regs(addr byte) []byte {
	if f.Regs[addr] == nil {
		f.Regs[addr] = make([]byte, 256)
	}
	return f.Regs[addr]
}

var errNoData = errors.New("fake bus: no data")

var _ embd.I2CBus = (*FakeBus)(nil)

// ReadByte has the signature embd.I2CBus dictates, not io.ByteReader's.
func (f *FakeBus) ReadByte(addr byte) (byte, error) {
	b, err := f.ReadBytes(addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (f *FakeBus) ReadBytes(addr byte, num int) ([]byte, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	regs, ok := f.Regs[addr]
	if !ok {
		return nil, errNoData
	}
	out := make([]byte, num)
	copy(out, regs)
	return out, nil
}

// WriteByte has the signature embd.I2CBus dictates, not io.ByteWriter's.
func (f *FakeBus) WriteByte(addr, value byte) error {
	return f.WriteBytes(addr, []byte{value})
}

func (f *FakeBus) WriteBytes(addr byte, value []byte) error {
	if f.Err != nil {
		return f.Err
	}
	f.Writes++
	if len(value) > 0 {
		copy(f.regs(addr)[value[0]:], value[1:])
	}
	return nil
}

func (f *FakeBus) ReadFromReg(addr, reg byte, value []byte) error {
	if f.Err != nil {
		return f.Err
	}
	regs, ok := f.Regs[addr]
	if !ok {
		return errNoData
	}
	copy(value, regs[reg:])
	return nil
}

func (f *FakeBus) ReadByteFromReg(addr, reg byte) (byte, error) {
	b := make([]byte, 1)
	err := f.ReadFromReg(addr, reg, b)
	return b[0], err
}

func (f *FakeBus) ReadWordFromReg(addr, reg byte) (uint16, error) {
	b := make([]byte, 2)
	err := f.ReadFromReg(addr, reg, b)
	return uint16(b[0])<<8 | uint16(b[1]), err
}

func (f *FakeBus) WriteToReg(addr, reg byte, value []byte) error {
	if f.Err != nil {
		return f.Err
	}
	f.Writes++
	copy(f.regs(addr)[reg:], value)
	return nil
}

func (f *FakeBus) WriteByteToReg(addr, reg, value byte) error {
	return f.WriteToReg(addr, reg, []byte{value})
}

func (f *FakeBus) WriteWordToReg(addr, reg byte, value uint16) error {
	return f.WriteToReg(addr, reg, []byte{byte(value >> 8), byte(value)})
}

func (f *FakeBus) Close() error {
	f.Closed = true
	return nil
}
