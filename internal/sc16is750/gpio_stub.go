//go:build !linux

package sc16is750

import (
	"context"
	"fmt"
	"time"
)

type IRQ struct{}

func OpenIRQ(pin int) (*IRQ, error) {
	return nil, fmt.Errorf("sc16is750: irq gpio unsupported on this platform")
}

func (q *IRQ) Wait(ctx context.Context, max time.Duration) error {
	return fmt.Errorf("sc16is750: irq gpio unsupported on this platform")
}

func (q *IRQ) Close() error { return nil }

func PulseReset(pin int) error {
	return fmt.Errorf("sc16is750: reset gpio unsupported on this platform")
}
