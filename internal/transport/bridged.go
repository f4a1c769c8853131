package transport

import (
	"io"
	"log"

	"uartbridge/internal/i2c"
	"uartbridge/internal/sc16is750"
)

var _ ByteChannel = (*sc16is750.Bridge)(nil)

func openBridged(opts Options) (*Transport, error) {
	if opts.ResetPin > 0 {
		if err := sc16is750.PulseReset(opts.ResetPin); err != nil {
			return nil, err
		}
	}

	bus, err := i2c.Open(opts.BusPath)
	if err != nil {
		return nil, err
	}
	t := &Transport{Kind: Bridged, baud: opts.UART.Baud, closers: []io.Closer{bus}}

	br, err := sc16is750.New(bus.Dev(opts.Addr))
	if err != nil {
		_ = t.Close()
		return nil, err
	}

	uart := opts.UART
	if opts.IRQPin > 0 {
		irq, err := sc16is750.OpenIRQ(opts.IRQPin)
		if err != nil {
			// Polling still works without the interrupt line.
			log.Printf("bridge irq unavailable pin=%d: %v", opts.IRQPin, err)
		} else {
			t.waiter = irq
			t.closers = append(t.closers, irq)
			uart.RxInterrupt = true
		}
	}

	if err := br.Initialize(uart); err != nil {
		_ = t.Close()
		return nil, err
	}
	t.bridge = br
	t.ch = br

	log.Printf("bridge init bus=%s addr=0x%02X baud=%d trigger=%d irq=%t", bus.Path(), opts.Addr, uart.Baud, uart.TriggerLevel, uart.RxInterrupt)
	return t, nil
}
