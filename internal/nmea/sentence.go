// Package nmea assembles CR LF terminated sentences from a byte source that
// can only report how many bytes are queued and hand them over one at a time.
//
// Field meaning is left to the consumer; this package only frames.
package nmea

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrNoChecksum       = errors.New("nmea: missing checksum")
	ErrChecksumMismatch = errors.New("nmea: checksum mismatch")
)

// Terminator ends every sentence on the wire.
var Terminator = []byte{'\r', '\n'}

// Sentence is one complete line, terminator included. The framer never
// touches a Sentence again after returning it.
type Sentence []byte

func (s Sentence) String() string { return string(s) }

// Trimmed returns the sentence without its trailing CR LF.
func (s Sentence) Trimmed() []byte {
	return bytes.TrimSuffix(s, Terminator)
}

// Address returns the address field (e.g. "GPRMC", "PMTK705") of a
// $- or !-prefixed sentence, or "" when there is none.
func (s Sentence) Address() string {
	t := s.Trimmed()
	if len(t) < 2 || (t[0] != '$' && t[0] != '!') {
		return ""
	}
	t = t[1:]
	if i := bytes.IndexAny(t, ",*"); i >= 0 {
		t = t[:i]
	}
	return string(t)
}

// Checksum is the XOR of every byte between '$' and '*'.
func Checksum(payload string) byte {
	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return ck
}

// Command frames payload as "$<payload>*<ck>\r\n".
func Command(payload string) Sentence {
	return Sentence(fmt.Sprintf("$%s*%02X\r\n", payload, Checksum(payload)))
}

// Verify checks the trailing "*hh" against the payload. Sentences without a
// '$' or '!' lead or without a checksum report ErrNoChecksum.
func (s Sentence) Verify() error {
	t := s.Trimmed()
	if len(t) == 0 || (t[0] != '$' && t[0] != '!') {
		return ErrNoChecksum
	}
	star := bytes.LastIndexByte(t, '*')
	if star < 0 || len(t)-star-1 < 2 {
		return ErrNoChecksum
	}
	want, err := hex.DecodeString(string(t[star+1 : star+3]))
	if err != nil {
		return fmt.Errorf("nmea: bad checksum %q", t[star+1:star+3])
	}
	if got := Checksum(string(t[1:star])); got != want[0] {
		return fmt.Errorf("%w: got %02X want %02X", ErrChecksumMismatch, got, want[0])
	}
	return nil
}
