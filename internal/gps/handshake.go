package gps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"uartbridge/internal/nmea"
)

// PMTK command set for MediaTek receivers (Adafruit Ultimate GPS and
// friends). The bytes go out exactly as written.
const (
	cmdUpdate1Hz  = "$PMTK220,1000*1F\r\n"
	cmdUpdate5Hz  = "$PMTK220,200*2C\r\n"
	cmdUpdate10Hz = "$PMTK220,100*2F\r\n"

	cmdOutputRMCOnly = "$PMTK314,0,1,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0*29\r\n"
	cmdOutputRMCGGA  = "$PMTK314,0,1,0,1,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0*28\r\n"
	cmdOutputAllData = "$PMTK314,1,1,1,1,1,1,0,0,0,0,0,0,0,0,0,0,0,0,0*28\r\n"
	cmdOutputOff     = "$PMTK314,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0*28\r\n"

	cmdQueryRelease = "$PMTK605*31\r\n"
)

var (
	ErrUnsupportedRate      = errors.New("gps: unsupported update rate")
	ErrUnsupportedOutputSet = errors.New("gps: unsupported output set")
)

// UpdateRate is the fix output rate in Hz.
type UpdateRate int

const (
	Rate1Hz  UpdateRate = 1
	Rate5Hz  UpdateRate = 5
	Rate10Hz UpdateRate = 10
)

func (r UpdateRate) command() (string, error) {
	switch r {
	case Rate1Hz:
		return cmdUpdate1Hz, nil
	case Rate5Hz:
		return cmdUpdate5Hz, nil
	case Rate10Hz:
		return cmdUpdate10Hz, nil
	default:
		return "", fmt.Errorf("%w: %d Hz", ErrUnsupportedRate, int(r))
	}
}

// OutputSet selects which sentences the receiver emits.
type OutputSet string

const (
	OutputRMCOnly OutputSet = "RMCONLY"
	OutputRMCGGA  OutputSet = "RMCGGA"
	OutputAllData OutputSet = "ALLDATA"
	OutputOff     OutputSet = "OFF"
)

// ParseOutputSet accepts the canonical names case-insensitively, plus
// "RMC+GGA" and "RMC-only" spellings.
func ParseOutputSet(s string) (OutputSet, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("+", "", "-", "", "_", "").Replace(norm)
	o := OutputSet(norm)
	if _, err := o.command(); err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedOutputSet, s)
	}
	return o, nil
}

func (o OutputSet) command() (string, error) {
	switch o {
	case OutputRMCOnly:
		return cmdOutputRMCOnly, nil
	case OutputRMCGGA:
		return cmdOutputRMCGGA, nil
	case OutputAllData:
		return cmdOutputAllData, nil
	case OutputOff:
		return cmdOutputOff, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedOutputSet, string(o))
	}
}

// Channel is the transmit half of a byte channel.
type Channel interface {
	Transmit(p []byte) error
}

// Session runs the configuration handshake with a receiver behind ch. Replies
// are read through fr, which must frame the same channel.
type Session struct {
	ch Channel
	fr *nmea.Framer
}

func NewSession(ch Channel, fr *nmea.Framer) *Session {
	return &Session{ch: ch, fr: fr}
}

// Configure sends the rate command, the output-set command and a release
// query, in that order, then returns the first complete sentence read back.
// The reply is not interpreted. Unsupported arguments fail before anything
// is transmitted.
func (s *Session) Configure(ctx context.Context, rate UpdateRate, set OutputSet) (nmea.Sentence, error) {
	rateCmd, err := rate.command()
	if err != nil {
		return nil, err
	}
	setCmd, err := set.command()
	if err != nil {
		return nil, err
	}

	for _, cmd := range []string{rateCmd, setCmd, cmdQueryRelease} {
		if err := s.ch.Transmit([]byte(cmd)); err != nil {
			return nil, fmt.Errorf("gps: transmit %q: %w", strings.TrimSpace(cmd), err)
		}
	}

	ack, err := s.fr.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("gps: await reply: %w", err)
	}
	return ack, nil
}
