package sc16is750

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

type writeOp struct {
	addr byte
	val  byte
}

// fakeBus models the chip at the sub-address level: writes are recorded and
// the last value written to each sub-address is kept.
type fakeBus struct {
	writes []writeOp
	regs   map[byte]byte
	reads  []byte

	rx []byte

	failWriteAt int // 1-based; 0 disables
	readErr     error
}

func newFakeBus() *fakeBus {
	return &fakeBus{regs: map[byte]byte{}}
}

func (f *fakeBus) WriteSub(addr, value byte) error {
	if f.failWriteAt > 0 && len(f.writes)+1 == f.failWriteAt {
		return errors.New("nack")
	}
	f.writes = append(f.writes, writeOp{addr: addr, val: value})
	f.regs[addr] = value
	return nil
}

func (f *fakeBus) ReadSub(addr byte) (byte, error) {
	f.reads = append(f.reads, addr)
	if f.readErr != nil {
		return 0, f.readErr
	}
	switch addr {
	case Address(RegRXLVL, Read):
		return byte(len(f.rx)), nil
	case Address(RegRHR, Read):
		if len(f.rx) == 0 {
			return 0, nil
		}
		b := f.rx[0]
		f.rx = f.rx[1:]
		return b, nil
	}
	return f.regs[addr], nil
}

func TestAddress_Encoding(t *testing.T) {
	cases := []struct {
		reg  Register
		mode Mode
		want byte
	}{
		{RegTHR, Write, 0x00},
		{RegRHR, Read, 0x80},
		{RegFCR, Write, 0x10},
		{RegLCR, Write, 0x18},
		{RegMCR, Write, 0x20},
		{RegTLR, Write, 0x38},
		{RegTXLVL, Read, 0xC0},
		{RegRXLVL, Read, 0xC8},
	}
	for _, tc := range cases {
		if got := Address(tc.reg, tc.mode); got != tc.want {
			t.Fatalf("Address(0x%02X,%s)=0x%02X want 0x%02X", byte(tc.reg), tc.mode, got, tc.want)
		}
	}
}

func TestAddress_ReadWriteDifferOnlyInBit7(t *testing.T) {
	for reg := Register(0); reg <= maxRegister; reg++ {
		r := Address(reg, Read)
		w := Address(reg, Write)
		if r^w != 0x80 {
			t.Fatalf("reg=0x%02X read=0x%02X write=0x%02X differ by 0x%02X", byte(reg), r, w, r^w)
		}
		if w&0x07 != 0 {
			t.Fatalf("reg=0x%02X low bits set in 0x%02X", byte(reg), w)
		}
	}
}

func TestBridge_RejectsRegisterOutOfRange(t *testing.T) {
	f := newFakeBus()
	b := newWithIO(f)
	if err := b.Write(0x10, 0); !errors.Is(err, ErrInvalidRegister) {
		t.Fatalf("err=%v want ErrInvalidRegister", err)
	}
	if _, err := b.Read(0x1F); !errors.Is(err, ErrInvalidRegister) {
		t.Fatalf("err=%v want ErrInvalidRegister", err)
	}
	if len(f.writes) != 0 || len(f.reads) != 0 {
		t.Fatalf("bus touched: writes=%d reads=%d", len(f.writes), len(f.reads))
	}
}

func TestBridge_TransportError(t *testing.T) {
	f := newFakeBus()
	f.readErr = errors.New("remote i/o error")
	b := newWithIO(f)

	_, err := b.Read(RegLSR)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err=%T %v want *TransportError", err, err)
	}
	if te.Op != Read || te.Reg != RegLSR {
		t.Fatalf("op=%s reg=0x%02X", te.Op, byte(te.Reg))
	}
	if !errors.Is(err, f.readErr) {
		t.Fatalf("cause not wrapped: %v", err)
	}
}

func TestDivisor_9600At14745600(t *testing.T) {
	d, err := Divisor(DefaultCrystalHz, 9600)
	if err != nil {
		t.Fatalf("Divisor: %v", err)
	}
	if d != 96 {
		t.Fatalf("divisor=%d want 96", d)
	}
}

func TestDivisor_ValidRange(t *testing.T) {
	for _, baud := range []int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200} {
		d, err := Divisor(DefaultCrystalHz, baud)
		if err != nil {
			t.Fatalf("baud=%d err=%v", baud, err)
		}
		if d == 0 {
			t.Fatalf("baud=%d divisor=0", baud)
		}
	}
}

func TestDivisor_Rounds(t *testing.T) {
	// 1.8432 MHz / (16*115200) = 1; 1.8432 MHz / (16*76800) = 1.5 rounds to 2.
	if d, _ := Divisor(1843200, 115200); d != 1 {
		t.Fatalf("divisor=%d want 1", d)
	}
	if d, _ := Divisor(1843200, 76800); d != 2 {
		t.Fatalf("divisor=%d want 2", d)
	}
}

func TestDivisor_OutOfRange(t *testing.T) {
	cases := []struct {
		name string
		xtal int
		baud int
	}{
		{"ZeroBaud", DefaultCrystalHz, 0},
		{"NegativeBaud", DefaultCrystalHz, -9600},
		{"DivisorRoundsToZero", DefaultCrystalHz, 2_000_000},
		{"DivisorTooLarge", DefaultCrystalHz, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Divisor(tc.xtal, tc.baud)
			if !errors.Is(err, ErrInvalidBaud) {
				t.Fatalf("err=%v want ErrInvalidBaud", err)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("err=%T want *ConfigError", err)
			}
		})
	}
}

func TestTriggerLevelValue(t *testing.T) {
	if v, err := TriggerLevelValue(4); err != nil || v != 0x11 {
		t.Fatalf("level 4 -> 0x%02X err=%v want 0x11", v, err)
	}
	if v, err := TriggerLevelValue(60); err != nil || v != 0xFF {
		t.Fatalf("level 60 -> 0x%02X err=%v want 0xFF", v, err)
	}
	for _, bad := range []int{0, 3, 6, 64} {
		if _, err := TriggerLevelValue(bad); !errors.Is(err, ErrInvalidTriggerLevel) {
			t.Fatalf("level %d err=%v want ErrInvalidTriggerLevel", bad, err)
		}
	}
}

func TestInitialize_WriteSequence(t *testing.T) {
	f := newFakeBus()
	b := newWithIO(f)

	if err := b.Initialize(DefaultUARTConfig(9600)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	want := []writeOp{
		{0x18, 0x83}, // LCR: divisor latch
		{0x00, 0x60}, // DLL
		{0x08, 0x00}, // DLH
		{0x10, 0x10}, // EFR
		{0x18, 0x03}, // LCR: 8N1
		{0x20, 0x04}, // MCR
		{0x10, 0x06}, // FCR: reset
		{0x10, 0x07}, // FCR: enable
		{0x38, 0x11}, // TLR
	}
	if !reflect.DeepEqual(f.writes, want) {
		t.Fatalf("writes=%x\nwant  %x", f.writes, want)
	}
	if len(f.reads) != 0 {
		t.Fatalf("initialize should not read back, got %d reads", len(f.reads))
	}
}

func TestInitialize_RxInterruptEnablesIER(t *testing.T) {
	f := newFakeBus()
	b := newWithIO(f)
	cfg := DefaultUARTConfig(4800)
	cfg.RxInterrupt = true

	if err := b.Initialize(cfg); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	last := f.writes[len(f.writes)-1]
	if last != (writeOp{0x08, 0x01}) {
		t.Fatalf("last write=%x want IER=0x01", last)
	}
	if f.writes[1] != (writeOp{0x00, 0xC0}) {
		t.Fatalf("DLL write=%x want 0xC0 for 4800 baud", f.writes[1])
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	once := newFakeBus()
	if err := newWithIO(once).Initialize(DefaultUARTConfig(9600)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	twice := newFakeBus()
	b := newWithIO(twice)
	for i := 0; i < 2; i++ {
		if err := b.Initialize(DefaultUARTConfig(9600)); err != nil {
			t.Fatalf("Initialize #%d: %v", i+1, err)
		}
	}

	if !reflect.DeepEqual(once.regs, twice.regs) {
		t.Fatalf("final regs differ:\nonce  %v\ntwice %v", once.regs, twice.regs)
	}
	if len(twice.writes) != 2*len(once.writes) {
		t.Fatalf("writes=%d want %d", len(twice.writes), 2*len(once.writes))
	}
}

func TestInitialize_InvalidConfigWritesNothing(t *testing.T) {
	cases := []struct {
		name string
		cfg  UARTConfig
		want error
	}{
		{"Baud", UARTConfig{CrystalHz: DefaultCrystalHz, Baud: 0, TriggerLevel: 4}, ErrInvalidBaud},
		{"Divisor", UARTConfig{CrystalHz: DefaultCrystalHz, Baud: 5, TriggerLevel: 4}, ErrInvalidBaud},
		{"Trigger", UARTConfig{CrystalHz: DefaultCrystalHz, Baud: 9600, TriggerLevel: 5}, ErrInvalidTriggerLevel},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeBus()
			err := newWithIO(f).Initialize(tc.cfg)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err=%v want %v", err, tc.want)
			}
			if len(f.writes) != 0 {
				t.Fatalf("writes=%d want 0", len(f.writes))
			}
		})
	}
}

func TestInitialize_StopsOnBusFailure(t *testing.T) {
	f := newFakeBus()
	f.failWriteAt = 4 // EFR
	err := newWithIO(f).Initialize(DefaultUARTConfig(9600))

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err=%v want *TransportError", err)
	}
	if te.Reg != RegEFR || te.Op != Write {
		t.Fatalf("failed reg=0x%02X op=%s", byte(te.Reg), te.Op)
	}
	if len(f.writes) != 3 {
		t.Fatalf("writes=%d want 3 (sequence must stop)", len(f.writes))
	}
}

func TestChannel_TransmitWritesTHRInOrder(t *testing.T) {
	f := newFakeBus()
	b := newWithIO(f)
	if err := b.Transmit([]byte("$P\r\n")); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	want := []writeOp{{0x00, '$'}, {0x00, 'P'}, {0x00, '\r'}, {0x00, '\n'}}
	if !reflect.DeepEqual(f.writes, want) {
		t.Fatalf("writes=%v want %v", f.writes, want)
	}
}

func TestChannel_Receive(t *testing.T) {
	f := newFakeBus()
	f.rx = []byte("ab")
	b := newWithIO(f)

	n, err := b.ReceiveAvailable()
	if err != nil || n != 2 {
		t.Fatalf("available=%d err=%v want 2", n, err)
	}
	for _, want := range []byte("ab") {
		got, err := b.ReceiveOne()
		if err != nil || got != want {
			t.Fatalf("got=%q err=%v want %q", got, err, want)
		}
	}
	if n, _ := b.ReceiveAvailable(); n != 0 {
		t.Fatalf("available=%d want 0", n)
	}
	if f.reads[0] != 0xC8 || f.reads[1] != 0x80 {
		t.Fatalf("reads=%x want RXLVL then RHR", f.reads)
	}
}

func TestStatus_ReadsDiagnosticRegisters(t *testing.T) {
	f := newFakeBus()
	f.regs[Address(RegLCR, Read)] = 0x03
	f.regs[Address(RegMCR, Read)] = 0x04
	f.regs[Address(RegLSR, Read)] = 0x60
	f.regs[Address(RegTXLVL, Read)] = 64
	b := newWithIO(f)

	st, err := b.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.LCR != 0x03 || st.MCR != 0x04 || st.LSR != 0x60 || st.TXLVL != 64 {
		t.Fatalf("status=%s", st)
	}
	if len(f.writes) != 0 {
		t.Fatalf("status must not write")
	}
}

func TestMaxPollInterval(t *testing.T) {
	if got := CharTime(9600); got < 1041*time.Microsecond || got > 1042*time.Microsecond {
		t.Fatalf("char time=%s", got)
	}
	iv := MaxPollInterval(9600)
	// One 82-byte sentence at 9600 baud takes ~85ms.
	if iv <= 0 || iv >= 82*CharTime(9600) {
		t.Fatalf("interval=%s not within one sentence period", iv)
	}
	if MaxPollInterval(0) != 0 {
		t.Fatalf("zero baud should give zero interval")
	}
}
