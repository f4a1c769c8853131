package sc16is750

// Transmit writes p to THR one byte at a time. There is no flow control:
// callers must not outrun the far end.
func (b *Bridge) Transmit(p []byte) error {
	for _, c := range p {
		if err := b.Write(RegTHR, c); err != nil {
			return err
		}
	}
	return nil
}

// ReceiveAvailable returns the number of bytes waiting in the RX FIFO.
func (b *Bridge) ReceiveAvailable() (int, error) {
	n, err := b.Read(RegRXLVL)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ReceiveOne pops one byte from RHR. The result is undefined when
// ReceiveAvailable reports zero.
func (b *Bridge) ReceiveOne() (byte, error) {
	return b.Read(RegRHR)
}

