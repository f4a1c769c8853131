package i2c

import "errors"

var (
	ErrNilDevice   = errors.New("i2c device is nil")
	ErrClosed      = errors.New("i2c bus is closed")
	ErrInvalidAddr = errors.New("invalid i2c addr")
)
