//go:build !linux

package i2c

import "fmt"

var errUnsupported = fmt.Errorf("i2c: unsupported OS (need linux)")

type Bus struct{}

type Dev struct{}

func Open(path string) (*Bus, error) { return nil, errUnsupported }

func (b *Bus) Path() string { return "" }
func (b *Bus) Close() error { return nil }

func (b *Bus) Dev(addr uint16) *Dev { return nil }

func (d *Dev) Addr() uint16                   { return 0 }
func (d *Dev) ReadSub(sub byte) (byte, error) { return 0, errUnsupported }
func (d *Dev) WriteSub(sub, value byte) error { return errUnsupported }
func (d *Dev) Transfer(w, r []byte) error     { return errUnsupported }
