// Package sc16is750 drives an NXP SC16IS750 I2C-to-UART bridge.
//
// The chip is addressed one register at a time. Every transaction carries a
// sub-address byte built from the 4-bit register offset shifted left by three,
// with bit 7 set for reads. Several offsets are aliased: DLL/DLH replace
// RHR/IER while LCR bit 7 is set, and EFR shares its offset with FCR.
//
// A Bridge is not safe for concurrent use. It owns its bus device handle.
package sc16is750

// Register is a logical register offset (0x00-0x0F).
type Register byte

// Register map, pre-shift.
const (
	RegRHR   Register = 0x00 // receive holding (read)
	RegTHR   Register = 0x00 // transmit holding (write)
	RegIER   Register = 0x01 // interrupt enable, LCR[7] = 0
	RegFCR   Register = 0x02 // FIFO control (write)
	RegIIR   Register = 0x02 // interrupt identification (read)
	RegLCR   Register = 0x03 // line control
	RegMCR   Register = 0x04 // modem control
	RegMSR   Register = 0x05 // modem status
	RegLSR   Register = 0x06 // line status
	RegTLR   Register = 0x07 // trigger level, EFR[4] = 1 and MCR[2] = 1
	RegTXLVL Register = 0x08 // transmit FIFO free space
	RegRXLVL Register = 0x09 // receive FIFO occupancy
	RegDLL   Register = 0x00 // divisor latch low, LCR[7] = 1
	RegDLH   Register = 0x01 // divisor latch high, LCR[7] = 1
	RegEFR   Register = 0x02 // enhanced features, LCR[7] = 1
)

const maxRegister Register = 0x0F

// Register values written during initialization.
const (
	lcrDivisorLatch = 0x83 // LCR[7] set, 8 data bits, no parity, 1 stop bit
	lcr8N1          = 0x03
	efrEnhanced     = 0x10 // EFR[4]: enhanced functions, unlocks TLR
	mcrNormal       = 0x04 // MCR[2]: TCR/TLR enable
	fcrResetFIFOs   = 0x06 // self-clearing RX/TX FIFO reset
	fcrEnableFIFOs  = 0x07
	ierRxData       = 0x01
)

// FIFODepth is the size of each of the chip's RX and TX FIFOs.
const FIFODepth = 64

// Mode selects the direction of a register transaction.
type Mode byte

const (
	Write Mode = 0x00
	Read  Mode = 0x80
)

func (m Mode) String() string {
	if m == Read {
		return "read"
	}
	return "write"
}

// Address returns the sub-address byte the chip expects on the wire for reg
// accessed in mode m. Read and Write encodings of the same register differ
// only in bit 7.
func Address(reg Register, m Mode) byte {
	return byte(reg&maxRegister)<<3 | byte(m)
}
