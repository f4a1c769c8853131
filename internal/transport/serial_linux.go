//go:build linux

package transport

import (
	"fmt"
	"io"
	"log"
	"os"

	"golang.org/x/sys/unix"
)

func openDirect(opts Options) (*Transport, error) {
	p, err := openTTY(opts.Device, opts.Baud)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s baud=%d: %w", opts.Device, opts.Baud, err)
	}
	log.Printf("direct serial device=%s baud=%d", opts.Device, opts.Baud)
	return &Transport{Kind: Direct, ch: p, baud: opts.Baud, closers: []io.Closer{p}}, nil
}

// ttyPort reports queued input with TIOCINQ, so a direct tty gets the same
// level-then-read discipline as the bridge FIFO.
type ttyPort struct {
	f  *os.File
	fd int
}

func (p *ttyPort) Transmit(b []byte) error {
	for len(b) > 0 {
		n, err := p.f.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func (p *ttyPort) ReceiveAvailable() (int, error) {
	return unix.IoctlGetInt(p.fd, unix.TIOCINQ)
}

func (p *ttyPort) ReceiveOne() (byte, error) {
	var b [1]byte
	n, err := p.f.Read(b[:])
	if err != nil {
		return 0, err
	}
	if n != 1 {
		return 0, fmt.Errorf("transport: short read")
	}
	return b[0], nil
}

func (p *ttyPort) Close() error { return p.f.Close() }

func openTTY(path string, baud int) (*ttyPort, error) {
	flag := unix.O_RDWR | unix.O_NOCTTY
	fd, err := unix.Open(path, flag, 0)
	if err != nil {
		return nil, err
	}

	ok := false
	defer func() {
		if !ok {
			_ = unix.Close(fd)
		}
	}()

	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, err
	}

	spd, err := baudToUnix(baud)
	if err != nil {
		return nil, err
	}

	// Raw 8N1, no line discipline: CR LF must reach the framer untouched.
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL

	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 10

	t.Cflag &^= unix.CBAUD
	t.Cflag |= spd
	t.Ispeed = spd
	t.Ospeed = spd

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return nil, err
	}

	f := os.NewFile(uintptr(fd), path)
	if f == nil {
		return nil, fmt.Errorf("os.NewFile failed")
	}
	ok = true
	return &ttyPort{f: f, fd: fd}, nil
}

func baudToUnix(baud int) (uint32, error) {
	switch baud {
	case 1200:
		return unix.B1200, nil
	case 2400:
		return unix.B2400, nil
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	default:
		return 0, fmt.Errorf("unsupported baud %d", baud)
	}
}
