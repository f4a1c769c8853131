// Package transport selects, once, how sentence bytes reach the host: a
// serial tty read directly, or a UART behind an SC16IS750 on the I2C bus.
// Both variants are used through the same ByteChannel.
package transport

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"uartbridge/internal/nmea"
	"uartbridge/internal/sc16is750"
)

// ByteChannel moves raw bytes to and from the far-end device.
type ByteChannel interface {
	Transmit(p []byte) error
	ReceiveAvailable() (int, error)
	ReceiveOne() (byte, error)
}

type Kind int

const (
	Bridged Kind = iota
	Direct
)

func (k Kind) String() string {
	switch k {
	case Bridged:
		return "bridged"
	case Direct:
		return "direct"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bridged", "i2c":
		return Bridged, nil
	case "direct", "serial":
		return Direct, nil
	default:
		return 0, fmt.Errorf("transport: unknown kind %q", s)
	}
}

// Options carries everything either variant needs. Fields for the other
// variant are ignored.
type Options struct {
	Kind Kind

	// Bridged.
	BusPath  string
	Addr     uint16
	UART     sc16is750.UARTConfig
	IRQPin   int
	ResetPin int

	// Direct.
	Device string
	Baud   int
}

// Transport is an opened channel of one Kind.
type Transport struct {
	Kind Kind

	ch      ByteChannel
	bridge  *sc16is750.Bridge
	waiter  nmea.Waiter
	baud    int
	closers []io.Closer
}

// Open opens and, for Bridged, initializes the channel described by opts.
func Open(opts Options) (*Transport, error) {
	switch opts.Kind {
	case Bridged:
		return openBridged(opts)
	case Direct:
		return openDirect(opts)
	default:
		return nil, fmt.Errorf("transport: unknown kind %s", opts.Kind)
	}
}

// FromChannel wraps an already open channel.
func FromChannel(kind Kind, ch ByteChannel, baud int) *Transport {
	return &Transport{Kind: kind, ch: ch, baud: baud}
}

func (t *Transport) Transmit(p []byte) error        { return t.ch.Transmit(p) }
func (t *Transport) ReceiveAvailable() (int, error) { return t.ch.ReceiveAvailable() }
func (t *Transport) ReceiveOne() (byte, error)      { return t.ch.ReceiveOne() }

// Bridge returns the register-level handle, or nil for Direct.
func (t *Transport) Bridge() *sc16is750.Bridge { return t.bridge }

func (t *Transport) Baud() int { return t.baud }

// Waiter returns the IRQ waiter when one was opened, else a plain sleeper.
func (t *Transport) Waiter() nmea.Waiter {
	if t.waiter != nil {
		return t.waiter
	}
	return nmea.SleepWaiter{}
}

func (t *Transport) Close() error {
	if t == nil {
		return nil
	}
	var errs []error
	for i := len(t.closers) - 1; i >= 0; i-- {
		if err := t.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	t.closers = nil
	return errors.Join(errs...)
}
