package capture

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
)

// Buffered records reach the file after flushRecords records or once
// flushInterval of capture time has passed, whichever comes first.
const (
	flushRecords  = 32
	flushInterval = time.Second
)

// Writer appends records to a capture file. Each Writer starts a new
// session with its own START marker.
type Writer struct {
	f       io.Closer
	w       *bufio.Writer
	format  Format
	start   time.Time
	session string
	closed  bool

	pending   int
	lastFlush time.Time
}

// Create opens path for appending so several runs can share one file.
func Create(path string, format Format) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	w, err := newWriter(f, f, format, time.Now())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

func newWriter(out io.Writer, c io.Closer, format Format, start time.Time) (*Writer, error) {
	ww := &Writer{
		f:         c,
		w:         bufio.NewWriterSize(out, 64*1024),
		format:    format,
		start:     start,
		session:   uuid.NewString(),
		lastFlush: start,
	}
	var err error
	switch format {
	case FormatText:
		_, err = fmt.Fprintf(ww.w, "START %s\n", ww.session)
	case FormatCBOR:
		err = encMode.NewEncoder(ww.w).Encode(Record{Session: ww.session})
	default:
		err = fmt.Errorf("capture: unknown format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return ww, nil
}

func (ww *Writer) Session() string { return ww.session }

func (ww *Writer) WriteSentence(now time.Time, sentence []byte) error {
	if ww.closed {
		return errors.New("capture writer is closed")
	}
	if len(sentence) == 0 {
		return errors.New("sentence is empty")
	}
	d := now.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	var err error
	if ww.format == FormatCBOR {
		err = encMode.NewEncoder(ww.w).Encode(Record{At: d, Sentence: sentence})
	} else {
		_, err = fmt.Fprintf(ww.w, "%d,%s\n", d.Nanoseconds(), hex.EncodeToString(sentence))
	}
	if err != nil {
		return err
	}

	ww.pending++
	if ww.pending >= flushRecords || now.Sub(ww.lastFlush) >= flushInterval {
		return ww.flushAt(now)
	}
	return nil
}

func (ww *Writer) flushAt(now time.Time) error {
	ww.pending = 0
	ww.lastFlush = now
	return ww.w.Flush()
}

func (ww *Writer) Flush() error {
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}
