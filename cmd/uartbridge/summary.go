package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"uartbridge/internal/capture"
	"uartbridge/internal/nmea"
)

type captureSummary struct {
	Sessions     int
	Sentences    int
	BadChecksums int
	MaxDuration  time.Duration
	AddrCounts   map[string]int
}

func summarizeCapture(records []capture.Record) captureSummary {
	s := captureSummary{AddrCounts: map[string]int{}}
	if len(records) == 0 {
		return s
	}

	origin := time.Duration(0)
	hasSentences := false
	sessions := 0

	for _, r := range records {
		if r.IsStart() {
			sessions++
			origin = r.At
			continue
		}
		hasSentences = true

		s.Sentences++
		at := r.At - origin
		if at < 0 {
			at = 0
		}
		if at > s.MaxDuration {
			s.MaxDuration = at
		}

		sentence := nmea.Sentence(r.Sentence)
		if sentence.Verify() != nil {
			s.BadChecksums++
		}
		addr := sentence.Address()
		if addr == "" {
			addr = "?"
		}
		s.AddrCounts[addr]++
	}
	if sessions == 0 && hasSentences {
		sessions = 1
	}
	s.Sessions = sessions

	return s
}

func printCaptureSummary(out io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}

	recs, err := capture.ReadFile(path)
	if err != nil {
		return err
	}

	s := summarizeCapture(recs)

	fmt.Fprintf(out, "path: %s\n", path)
	fmt.Fprintf(out, "sessions: %d\n", s.Sessions)
	fmt.Fprintf(out, "sentences: %d\n", s.Sentences)
	fmt.Fprintf(out, "bad_checksums: %d\n", s.BadChecksums)
	fmt.Fprintf(out, "max_duration: %s\n", s.MaxDuration)

	keys := make([]string, 0, len(s.AddrCounts))
	for k := range s.AddrCounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(out, "address_counts:\n")
	for _, k := range keys {
		fmt.Fprintf(out, "  %s: %d\n", k, s.AddrCounts[k])
	}
	return nil
}

// replayCapture prints a capture back with its original pacing.
func replayCapture(out io.Writer, path string, speed float64, loop bool) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	recs, err := capture.ReadFile(path)
	if err != nil {
		return err
	}
	return capture.Play(recs, speed, loop, nil, func(sentence []byte) error {
		_, err := out.Write(sentence)
		return err
	})
}
