package sc16is750

import (
	"fmt"

	"uartbridge/internal/i2c"
)

// Common 7-bit addresses selected by the A0/A1 strapping pins.
const (
	AddrGPS   = 0x48
	AddrRS485 = 0x4D
)

type regIO interface {
	ReadSub(sub byte) (byte, error)
	WriteSub(sub, value byte) error
}

// Bridge is the register-level handle to one SC16IS750.
type Bridge struct {
	dev regIO
}

func New(dev *i2c.Dev) (*Bridge, error) {
	if dev == nil {
		return nil, fmt.Errorf("sc16is750: dev is nil")
	}
	return newWithIO(dev), nil
}

func newWithIO(dev regIO) *Bridge {
	return &Bridge{dev: dev}
}

// Write writes value to reg. The sub-address is recomputed on every call.
func (b *Bridge) Write(reg Register, value byte) error {
	if reg > maxRegister {
		return fmt.Errorf("sc16is750: reg=0x%02X: %w", byte(reg), ErrInvalidRegister)
	}
	if err := b.dev.WriteSub(Address(reg, Write), value); err != nil {
		return &TransportError{Op: Write, Reg: reg, Err: err}
	}
	return nil
}

// Read returns the current value of reg.
func (b *Bridge) Read(reg Register) (byte, error) {
	if reg > maxRegister {
		return 0, fmt.Errorf("sc16is750: reg=0x%02X: %w", byte(reg), ErrInvalidRegister)
	}
	v, err := b.dev.ReadSub(Address(reg, Read))
	if err != nil {
		return 0, &TransportError{Op: Read, Reg: reg, Err: err}
	}
	return v, nil
}
