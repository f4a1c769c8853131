// Package bridge runs one attached device: it brings the channel up, runs
// the receiver handshake where the role calls for one, then acquires
// sentences until the context ends.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"uartbridge/internal/gps"
	"uartbridge/internal/nmea"
	"uartbridge/internal/transport"
)

// Role selects what happens after the channel is up.
type Role string

const (
	RoleGPS   Role = "gps"
	RoleRS485 Role = "rs485"
)

type Config struct {
	Role       Role
	UpdateRate gps.UpdateRate
	OutputSet  gps.OutputSet

	MaxSentence  int
	PollInterval time.Duration

	// Verbose logs every sentence.
	Verbose bool
}

// Channel is what the service reads and writes: a byte channel plus the
// waiter that paces empty polls.
type Channel interface {
	transport.ByteChannel
	Waiter() nmea.Waiter
}

// Recorder receives each sentence with its arrival time.
type Recorder interface {
	WriteSentence(now time.Time, sentence []byte) error
}

// Sender receives each sentence for forwarding.
type Sender interface {
	Send(sentence []byte) error
}

type Snapshot struct {
	Role    string `json:"role"`
	Running bool   `json:"running"`

	Handshake string `json:"handshake,omitempty"`

	Sentences    uint64 `json:"sentences"`
	Overflows    uint64 `json:"overflows"`
	BadChecksums uint64 `json:"bad_checksums"`

	LastSentence string    `json:"last_sentence,omitempty"`
	LastAddress  string    `json:"last_address,omitempty"`
	LastAt       time.Time `json:"last_at,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

type Service struct {
	cfg Config
	ch  Channel

	recorder Recorder
	sender   Sender

	// OnSentence, when set, sees every sentence after the sinks.
	OnSentence func(nmea.Sentence)

	now  func() time.Time
	last atomic.Value // Snapshot

	tx      chan txRequest
	stopped chan struct{}
}

type txRequest struct {
	p    []byte
	done chan error
}

func New(cfg Config, ch Channel) *Service {
	if cfg.Role == "" {
		cfg.Role = RoleGPS
	}
	s := &Service{
		cfg:     cfg,
		ch:      ch,
		now:     time.Now,
		tx:      make(chan txRequest, 8),
		stopped: make(chan struct{}),
	}
	s.last.Store(Snapshot{Role: string(cfg.Role)})
	return s
}

// WithRecorder attaches a capture sink. Call before Run.
func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

// WithSender attaches a forwarding sink. Call before Run.
func (s *Service) WithSender(snd Sender) *Service {
	s.sender = snd
	return s
}

// Run blocks until ctx ends or the channel fails. Overflows and sink errors
// are recorded in the snapshot and do not stop acquisition. A cancelled ctx
// returns nil. Run may be called once.
func (s *Service) Run(ctx context.Context) error {
	if s == nil || s.ch == nil {
		return fmt.Errorf("bridge service has no channel")
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}
	defer close(s.stopped)

	fr := nmea.NewFramer(s.ch, s.cfg.MaxSentence)
	if s.cfg.PollInterval > 0 {
		fr.Interval = s.cfg.PollInterval
	}
	fr.Waiter = txWaiter{s: s, inner: s.ch.Waiter()}

	s.update(func(sn *Snapshot) { sn.Running = true })
	defer s.update(func(sn *Snapshot) { sn.Running = false })

	switch s.cfg.Role {
	case RoleGPS:
		reply, err := gps.NewSession(s.ch, fr).Configure(ctx, s.cfg.UpdateRate, s.cfg.OutputSet)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.setError(err.Error())
			return err
		}
		log.Printf("gps configured rate=%dHz output=%s reply=%q", int(s.cfg.UpdateRate), s.cfg.OutputSet, reply.Trimmed())
		s.update(func(sn *Snapshot) { sn.Handshake = string(reply.Trimmed()) })
		s.handle(reply)
	case RoleRS485:
		log.Printf("rs485 listening")
	default:
		return fmt.Errorf("bridge: unknown role %q", s.cfg.Role)
	}

	for {
		sentence, err := fr.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, nmea.ErrOverflow) {
				s.update(func(sn *Snapshot) {
					sn.Overflows++
					sn.LastError = err.Error()
				})
				continue
			}
			s.setError(fmt.Sprintf("receive stopped: %v", err))
			return err
		}
		s.handle(sentence)
		s.drainTx()
	}
}

// Transmit queues p for the acquisition goroutine, which writes it between
// polls, and waits for the result. The channel is only ever touched from
// Run's goroutine.
func (s *Service) Transmit(ctx context.Context, p []byte) error {
	req := txRequest{p: p, done: make(chan error, 1)}
	select {
	case s.tx <- req:
	case <-s.stopped:
		return fmt.Errorf("bridge service stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-s.stopped:
		return fmt.Errorf("bridge service stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) drainTx() {
	for {
		select {
		case req := <-s.tx:
			req.done <- s.ch.Transmit(req.p)
		default:
			return
		}
	}
}

// txWaiter drains queued transmits on either side of each idle wait.
type txWaiter struct {
	s     *Service
	inner nmea.Waiter
}

func (w txWaiter) Wait(ctx context.Context, max time.Duration) error {
	w.s.drainTx()
	err := w.inner.Wait(ctx, max)
	w.s.drainTx()
	return err
}

func (s *Service) handle(sentence nmea.Sentence) {
	now := s.now()
	bad := sentence.Verify() != nil

	s.update(func(sn *Snapshot) {
		sn.Sentences++
		if bad {
			sn.BadChecksums++
		}
		sn.LastSentence = string(sentence.Trimmed())
		sn.LastAddress = sentence.Address()
		sn.LastAt = now
	})
	if s.cfg.Verbose {
		log.Printf("sentence %q", sentence.Trimmed())
	}

	if s.recorder != nil {
		if err := s.recorder.WriteSentence(now, sentence); err != nil {
			s.setError(fmt.Sprintf("capture write failed: %v", err))
		}
	}
	if s.sender != nil {
		if err := s.sender.Send(sentence); err != nil {
			s.setError(fmt.Sprintf("forward failed: %v", err))
		}
	}
	if s.OnSentence != nil {
		s.OnSentence(sentence)
	}
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	v := s.last.Load()
	if v == nil {
		return Snapshot{}
	}
	return v.(Snapshot)
}

// update is only called from the Run goroutine, so load-modify-store is safe.
func (s *Service) update(fn func(*Snapshot)) {
	cur := s.Snapshot()
	fn(&cur)
	s.last.Store(cur)
}

func (s *Service) setError(msg string) {
	s.update(func(sn *Snapshot) { sn.LastError = msg })
}
