package sc16is750

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidBaud         = errors.New("invalid baud")
	ErrInvalidTriggerLevel = errors.New("invalid fifo trigger level")
	ErrInvalidRegister     = errors.New("invalid register")
)

// TransportError reports a failed bus transaction. The bridge never retries;
// after a failure during Initialize the whole sequence must be re-run.
type TransportError struct {
	Op  Mode
	Reg Register
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sc16is750: %s reg=0x%02X failed: %v", e.Op, byte(e.Reg), e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ConfigError rejects a UART parameter before any register is written.
type ConfigError struct {
	Param string
	Value int
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("sc16is750: %s=%d: %v", e.Param, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
