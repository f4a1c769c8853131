//go:build linux

package sc16is750

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

const gpioConsumer = "uartbridge"

// requestLine finds BCM line "GPIO<pin>" on whichever gpiochip exposes it.
func requestLine(pin int, opts ...gpiocdev.LineReqOption) (*gpiocdev.Chip, *gpiocdev.Line, error) {
	if pin <= 0 {
		return nil, nil, fmt.Errorf("sc16is750: invalid gpio pin %d", pin)
	}
	lineName := fmt.Sprintf("GPIO%d", pin)

	chipCandidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "gpiochip") {
			chipCandidates = append(chipCandidates, filepath.Join("/dev", name))
		}
	}

	opts = append(opts, gpiocdev.WithConsumer(gpioConsumer))
	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset, opts...)
		if err != nil {
			_ = chip.Close()
			continue
		}
		return chip, line, nil
	}
	return nil, nil, fmt.Errorf("sc16is750: gpio line %q not found (or busy)", lineName)
}

// IRQ watches the bridge's active-low IRQ output. With RxInterrupt enabled
// the line falls when the RX FIFO reaches the trigger level or the receive
// timeout expires with data still queued.
type IRQ struct {
	chip   *gpiocdev.Chip
	line   *gpiocdev.Line
	events chan struct{}
}

func OpenIRQ(pin int) (*IRQ, error) {
	q := &IRQ{events: make(chan struct{}, 1)}
	handler := func(gpiocdev.LineEvent) {
		select {
		case q.events <- struct{}{}:
		default:
		}
	}
	chip, line, err := requestLine(pin, gpiocdev.AsInput, gpiocdev.WithFallingEdge, gpiocdev.WithEventHandler(handler))
	if err != nil {
		return nil, err
	}
	q.chip = chip
	q.line = line
	return q, nil
}

// Wait blocks until the IRQ line falls, max elapses, or ctx is done. A
// timeout is not an error: the caller polls RXLVL either way.
func (q *IRQ) Wait(ctx context.Context, max time.Duration) error {
	t := time.NewTimer(max)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.events:
		return nil
	case <-t.C:
		return nil
	}
}

func (q *IRQ) Close() error {
	if q == nil || q.line == nil {
		return nil
	}
	err := q.line.Close()
	q.line = nil
	if q.chip != nil {
		_ = q.chip.Close()
		q.chip = nil
	}
	return err
}

// PulseReset drives the active-low RESET pin low briefly and releases it.
// Registers return to their power-on values, so Initialize must follow.
func PulseReset(pin int) error {
	chip, line, err := requestLine(pin, gpiocdev.AsOutput(1))
	if err != nil {
		return err
	}
	defer func() {
		_ = line.Close()
		_ = chip.Close()
	}()

	if err := line.SetValue(0); err != nil {
		return fmt.Errorf("sc16is750: reset low: %w", err)
	}
	sleep(resetPulse)
	if err := line.SetValue(1); err != nil {
		return fmt.Errorf("sc16is750: reset high: %w", err)
	}
	sleep(resetRecovery)
	return nil
}
