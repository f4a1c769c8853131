package nmea

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultMaxLen bounds a sentence. NMEA 0183 allows 82 characters; vendor
// sentences run a little longer.
const DefaultMaxLen = 256

var ErrOverflow = errors.New("nmea: sentence overflow")

// Source is the receive half of a byte channel.
type Source interface {
	ReceiveAvailable() (int, error)
	ReceiveOne() (byte, error)
}

// Waiter paces empty polls. Wait returns once data may be available, max has
// elapsed, or ctx is done.
type Waiter interface {
	Wait(ctx context.Context, max time.Duration) error
}

// SleepWaiter waits out the full interval.
type SleepWaiter struct{}

func (SleepWaiter) Wait(ctx context.Context, max time.Duration) error {
	t := time.NewTimer(max)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// State is the framer's position in the current sentence.
type State int

const (
	Accumulating State = iota
	Complete
)

func (s State) String() string {
	if s == Complete {
		return "complete"
	}
	return "accumulating"
}

// Framer accumulates bytes from a Source until the buffer ends with CR LF.
//
// The terminator test runs after every byte, so a CR LF split across polls
// is still found. Once a sentence completes, Poll stops pulling; bytes still
// queued in the source belong to the next sentence and stay there.
type Framer struct {
	src    Source
	maxLen int

	// Interval is the longest pause between empty polls.
	Interval time.Duration
	Waiter   Waiter

	buf   []byte
	state State

	// After an overflow the rest of the over-long line is dropped up to and
	// including its CR LF. prev carries the last byte across the bound.
	discarding bool
	prev       byte
}

// NewFramer returns a framer over src. maxLen <= 0 selects DefaultMaxLen.
func NewFramer(src Source, maxLen int) *Framer {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	return &Framer{
		src:      src,
		maxLen:   maxLen,
		Interval: 10 * time.Millisecond,
		Waiter:   SleepWaiter{},
		buf:      make([]byte, 0, maxLen),
	}
}

func (f *Framer) State() State { return f.state }

// Buffered returns how many bytes of an unfinished sentence are held.
func (f *Framer) Buffered() int { return len(f.buf) }

// Reset drops any partial sentence and ends any resync after an overflow.
func (f *Framer) Reset() {
	f.buf = make([]byte, 0, f.maxLen)
	f.state = Accumulating
	f.discarding = false
	f.prev = 0
}

// Discarding reports whether the framer is skipping the tail of an
// over-long line.
func (f *Framer) Discarding() bool { return f.discarding }

// Poll runs one receive cycle. It returns the sentence and true when a
// terminator was seen, or nil and false when the source ran dry first.
//
// A buffer reaching maxLen bytes without a terminator is discarded and
// reported as ErrOverflow. Bytes are then dropped until the over-long line's
// CR LF has passed, and framing restarts on the following byte.
func (f *Framer) Poll() (Sentence, bool, error) {
	n, err := f.src.ReceiveAvailable()
	if err != nil {
		return nil, false, err
	}
	for ; n > 0; n-- {
		c, err := f.src.ReceiveOne()
		if err != nil {
			return nil, false, err
		}
		if s, ok, err := f.push(c); ok || err != nil {
			return s, ok, err
		}
	}
	return nil, false, nil
}

func (f *Framer) push(c byte) (Sentence, bool, error) {
	if f.discarding {
		if f.prev == '\r' && c == '\n' {
			f.discarding = false
			f.prev = 0
		} else {
			f.prev = c
		}
		return nil, false, nil
	}

	f.state = Accumulating
	f.buf = append(f.buf, c)
	if f.terminated() {
		s := Sentence(f.buf)
		f.buf = make([]byte, 0, f.maxLen)
		f.state = Complete
		return s, true, nil
	}
	if len(f.buf) >= f.maxLen {
		dropped := len(f.buf)
		f.Reset()
		f.discarding = true
		f.prev = c
		return nil, false, fmt.Errorf("%w: %d bytes without terminator", ErrOverflow, dropped)
	}
	return nil, false, nil
}

func (f *Framer) terminated() bool {
	n := len(f.buf)
	return n >= 2 && f.buf[n-2] == '\r' && f.buf[n-1] == '\n'
}

// Next polls until a sentence completes, pausing through Waiter whenever the
// source is empty. Source errors and ErrOverflow end the call; the caller
// decides whether to try again.
func (f *Framer) Next(ctx context.Context) (Sentence, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, ok, err := f.Poll()
		if err != nil {
			return nil, err
		}
		if ok {
			return s, nil
		}
		if err := f.Waiter.Wait(ctx, f.Interval); err != nil {
			return nil, err
		}
	}
}
