//go:build !linux

package transport

import (
	"fmt"
	"io"
	"log"
	"time"

	"go.bug.st/serial"
)

func openDirect(opts Options) (*Transport, error) {
	port, err := serial.Open(opts.Device, &serial.Mode{
		BaudRate: opts.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: open %s baud=%d: %w", opts.Device, opts.Baud, err)
	}
	if err := port.SetReadTimeout(time.Millisecond); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("transport: set read timeout: %w", err)
	}
	p := &portChannel{port: port}
	log.Printf("direct serial device=%s baud=%d", opts.Device, opts.Baud)
	return &Transport{Kind: Direct, ch: p, baud: opts.Baud, closers: []io.Closer{p}}, nil
}

// portChannel has no queue-depth query, so ReceiveAvailable drains whatever
// a short read returns into pending and reports that.
type portChannel struct {
	port    serial.Port
	pending []byte
	buf     [64]byte
}

func (p *portChannel) Transmit(b []byte) error {
	for len(b) > 0 {
		n, err := p.port.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func (p *portChannel) ReceiveAvailable() (int, error) {
	if len(p.pending) == 0 {
		n, err := p.port.Read(p.buf[:])
		if err != nil {
			return 0, err
		}
		p.pending = append(p.pending, p.buf[:n]...)
	}
	return len(p.pending), nil
}

func (p *portChannel) ReceiveOne() (byte, error) {
	if len(p.pending) == 0 {
		return 0, fmt.Errorf("transport: no pending byte")
	}
	c := p.pending[0]
	p.pending = p.pending[1:]
	return c, nil
}

func (p *portChannel) Close() error { return p.port.Close() }
