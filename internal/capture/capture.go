// Package capture records acquired sentences with their arrival time and
// reads them back.
//
// Text format (one record per line):
//
//   - Blank lines and lines starting with '#' are ignored.
//   - "START" or "START <session>" resets the origin; the next record time is
//     relative to 0 again.
//   - Data lines are <t_ns>,<hex>, where t_ns is nanoseconds since START and
//     hex is the raw sentence including its CR LF.
//
// CBOR format: a stream of records keyed by small integers. A record with no
// sentence is a START marker.
package capture

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
)

type Format string

const (
	FormatText Format = "text"
	FormatCBOR Format = "cbor"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatCBOR:
		return FormatCBOR, nil
	default:
		return "", fmt.Errorf("capture: unknown format %q", s)
	}
}

// Record is one captured sentence. Sentence is nil for START markers.
type Record struct {
	At       time.Duration `cbor:"1,keyasint"`
	Session  string        `cbor:"2,keyasint,omitempty"`
	Sentence []byte        `cbor:"3,keyasint,omitempty"`
}

func (r Record) IsStart() bool { return r.Sentence == nil }

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("capture: cbor enc mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyQuiet,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("capture: cbor dec mode: %v", err))
	}
}

// ReadAll reads every record from r in the given format.
func ReadAll(r io.Reader, format Format) ([]Record, error) {
	switch format {
	case FormatText:
		return readText(r)
	case FormatCBOR:
		return readCBOR(r)
	default:
		return nil, fmt.Errorf("capture: unknown format %q", format)
	}
}

// ReadFile reads a capture file, telling the formats apart by the first
// byte: a CBOR record starts with a map header.
func ReadFile(path string) ([]Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	format := FormatText
	if len(b) > 0 && b[0]&0xE0 == 0xA0 {
		format = FormatCBOR
	}
	return ReadAll(bytes.NewReader(b), format)
}

func readText(r io.Reader) ([]Record, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	recs := make([]Record, 0, 1024)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" || strings.HasPrefix(line, "START ") {
			recs = append(recs, Record{Session: strings.TrimSpace(strings.TrimPrefix(line, "START"))})
			continue
		}

		comma := strings.IndexByte(line, ',')
		if comma < 0 {
			return nil, fmt.Errorf("invalid capture line (missing comma): %q", line)
		}
		tsStr := strings.TrimSpace(line[:comma])
		hexStr := strings.TrimSpace(line[comma+1:])
		if tsStr == "" || hexStr == "" {
			return nil, fmt.Errorf("invalid capture line (empty field): %q", line)
		}

		tsNs, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid capture timestamp %q: %w", tsStr, err)
		}
		if tsNs < 0 {
			return nil, fmt.Errorf("invalid capture timestamp (negative): %d", tsNs)
		}

		b, err := hex.DecodeString(strings.ReplaceAll(hexStr, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("invalid capture hex payload: %w", err)
		}
		if len(b) == 0 {
			return nil, fmt.Errorf("invalid capture payload (empty)")
		}
		recs = append(recs, Record{At: time.Duration(tsNs), Sentence: b})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func readCBOR(r io.Reader) ([]Record, error) {
	dec := decMode.NewDecoder(r)
	var recs []Record
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				return recs, nil
			}
			return nil, fmt.Errorf("capture: decode record %d: %w", len(recs), err)
		}
		recs = append(recs, rec)
	}
}
