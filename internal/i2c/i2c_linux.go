//go:build linux

package i2c

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Every SC16IS750 access is a sub-address byte followed by one data byte.
// A read is the sub-address write and a repeated-start read of one byte in a
// single I2C_RDWR call, so no other master can get between the two halves.

// From <linux/i2c.h> and <linux/i2c-dev.h>.
const (
	flagRead     = 0x0001 // I2C_M_RD
	ioctlRdwr    = 0x0707 // I2C_RDWR
	maxMsgsPerTx = 2
)

// i2cMsg mirrors struct i2c_msg.
type i2cMsg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

// rdwrArg mirrors struct i2c_rdwr_ioctl_data.
type rdwrArg struct {
	msgs  uintptr
	nmsgs uint32
}

// Bus is an opened adapter such as /dev/i2c-1. Transfers on one Bus are
// serialized, so several Devs may share it.
type Bus struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

func Open(path string) (*Bus, error) {
	path = filepath.Clean(path)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("i2c: open %s: %w", path, err)
	}
	return &Bus{f: f, path: path}, nil
}

func (b *Bus) Path() string {
	if b == nil {
		return ""
	}
	return b.path
}

func (b *Bus) Close() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.f == nil {
		return nil
	}
	err := b.f.Close()
	b.f = nil
	return err
}

// Dev returns the device at 7-bit address addr. The address is checked when
// a transfer is attempted.
func (b *Bus) Dev(addr uint16) *Dev {
	if b == nil {
		return nil
	}
	return &Dev{bus: b, addr: addr}
}

type Dev struct {
	bus  *Bus
	addr uint16
}

func (d *Dev) Addr() uint16 {
	if d == nil {
		return 0
	}
	return d.addr
}

// ReadSub sends sub-address sub and reads back one byte.
func (d *Dev) ReadSub(sub byte) (byte, error) {
	w := [1]byte{sub}
	var r [1]byte
	if err := d.Transfer(w[:], r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

// WriteSub sends sub-address sub followed by value in one message.
func (d *Dev) WriteSub(sub, value byte) error {
	w := [2]byte{sub, value}
	return d.Transfer(w[:], nil)
}

// Transfer writes w then reads len(r) bytes, either half may be empty. Both
// halves go out in one ioctl.
func (d *Dev) Transfer(w, r []byte) error {
	if d == nil || d.bus == nil {
		return ErrNilDevice
	}
	if d.addr == 0 || d.addr > 0x7F {
		return fmt.Errorf("%w 0x%X", ErrInvalidAddr, d.addr)
	}

	msgs := make([]i2cMsg, 0, maxMsgsPerTx)
	if len(w) > 0 {
		msgs = append(msgs, i2cMsg{addr: d.addr, len: uint16(len(w)), buf: uintptr(unsafe.Pointer(&w[0]))})
	}
	if len(r) > 0 {
		msgs = append(msgs, i2cMsg{addr: d.addr, flags: flagRead, len: uint16(len(r)), buf: uintptr(unsafe.Pointer(&r[0]))})
	}
	if len(msgs) == 0 {
		return nil
	}

	d.bus.mu.Lock()
	defer d.bus.mu.Unlock()
	if d.bus.f == nil {
		return ErrClosed
	}

	arg := rdwrArg{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: uint32(len(msgs))}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.bus.f.Fd(), ioctlRdwr, uintptr(unsafe.Pointer(&arg)))
	// The kernel reads the buffers through uintptrs the GC cannot see.
	runtime.KeepAlive(w)
	runtime.KeepAlive(r)
	runtime.KeepAlive(msgs)
	if errno != 0 {
		return fmt.Errorf("i2c %s addr=0x%02X: %w", d.bus.path, d.addr, errno)
	}
	return nil
}
