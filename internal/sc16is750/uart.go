package sc16is750

import (
	"fmt"
	"math"
)

// DefaultCrystalHz is the 14.7456 MHz crystal fitted to most breakout boards.
const DefaultCrystalHz = 14745600

// UARTConfig is the line setup programmed by Initialize. Data bits (8), stop
// bits (1) and parity (none) are fixed.
type UARTConfig struct {
	CrystalHz int
	Baud      int

	// TriggerLevel is the RX/TX FIFO trigger level in characters. The chip
	// counts in steps of 4, so valid values are 4, 8, ... 60.
	TriggerLevel int

	// RxInterrupt enables the receive-data interrupt on the IRQ pin.
	RxInterrupt bool
}

// DefaultUARTConfig returns the configuration the GPS and RS-485 boards ship
// with for the given baud: 14.7456 MHz crystal, trigger level 4.
func DefaultUARTConfig(baud int) UARTConfig {
	return UARTConfig{CrystalHz: DefaultCrystalHz, Baud: baud, TriggerLevel: 4}
}

// Divisor returns round(crystal / (16*baud)), or a *ConfigError when the
// result does not fit the 16-bit divisor latch.
func Divisor(crystalHz, baud int) (uint16, error) {
	if baud <= 0 {
		return 0, &ConfigError{Param: "baud", Value: baud, Err: ErrInvalidBaud}
	}
	if crystalHz <= 0 {
		return 0, &ConfigError{Param: "crystal_hz", Value: crystalHz, Err: ErrInvalidBaud}
	}
	d := math.Round(float64(crystalHz) / (16 * float64(baud)))
	if d < 1 || d > 0xFFFF {
		return 0, &ConfigError{Param: "baud", Value: baud, Err: fmt.Errorf("%w: divisor %.0f out of range", ErrInvalidBaud, d)}
	}
	return uint16(d), nil
}

// TriggerLevelValue encodes level into the TLR layout: RX level in bits 7:4,
// TX level in bits 3:0, both in units of 4 characters.
func TriggerLevelValue(level int) (byte, error) {
	if level < 4 || level > 60 || level%4 != 0 {
		return 0, &ConfigError{Param: "trigger_level", Value: level, Err: ErrInvalidTriggerLevel}
	}
	n := byte(level / 4)
	return n<<4 | n, nil
}

type regWrite struct {
	reg   Register
	value byte
}

// initSequence returns the register writes for cfg in the order the chip
// requires. EFR must be written while LCR[7] is still set because it shares
// an offset with FCR. FIFO reset must precede FIFO enable.
func initSequence(cfg UARTConfig) ([]regWrite, error) {
	div, err := Divisor(cfg.CrystalHz, cfg.Baud)
	if err != nil {
		return nil, err
	}
	tlr, err := TriggerLevelValue(cfg.TriggerLevel)
	if err != nil {
		return nil, err
	}

	seq := []regWrite{
		{RegLCR, lcrDivisorLatch},
		{RegDLL, byte(div)},
		{RegDLH, byte(div >> 8)},
		{RegEFR, efrEnhanced},
		{RegLCR, lcr8N1},
		{RegMCR, mcrNormal},
		{RegFCR, fcrResetFIFOs},
		{RegFCR, fcrEnableFIFOs},
		{RegTLR, tlr},
	}
	if cfg.RxInterrupt {
		seq = append(seq, regWrite{RegIER, ierRxData})
	}
	return seq, nil
}

// Initialize programs baud, line format, FIFOs and trigger level. Invalid
// parameters fail before the first write. A bus failure part way through
// leaves the chip in an unknown state; re-run Initialize from the start.
// Running it again with the same cfg leaves the same register contents.
func (b *Bridge) Initialize(cfg UARTConfig) error {
	seq, err := initSequence(cfg)
	if err != nil {
		return err
	}
	for _, w := range seq {
		if err := b.Write(w.reg, w.value); err != nil {
			return fmt.Errorf("sc16is750: initialize: %w", err)
		}
	}
	return nil
}

// Status is an advisory read-back of the line and FIFO registers.
type Status struct {
	IIR   byte
	LCR   byte
	MCR   byte
	LSR   byte
	MSR   byte
	TXLVL byte
	RXLVL byte
}

func (s Status) String() string {
	return fmt.Sprintf("iir=0x%02X lcr=0x%02X mcr=0x%02X lsr=0x%02X msr=0x%02X txlvl=%d rxlvl=%d",
		s.IIR, s.LCR, s.MCR, s.LSR, s.MSR, s.TXLVL, s.RXLVL)
}

// Status reads the diagnostic registers. Nothing here is required for
// correct operation.
func (b *Bridge) Status() (Status, error) {
	var st Status
	fields := []struct {
		reg Register
		dst *byte
	}{
		{RegIIR, &st.IIR},
		{RegLCR, &st.LCR},
		{RegMCR, &st.MCR},
		{RegLSR, &st.LSR},
		{RegMSR, &st.MSR},
		{RegTXLVL, &st.TXLVL},
		{RegRXLVL, &st.RXLVL},
	}
	for _, f := range fields {
		v, err := b.Read(f.reg)
		if err != nil {
			return Status{}, err
		}
		*f.dst = v
	}
	return st, nil
}
