package sc16is750

import "time"

var sleep = time.Sleep

const (
	resetPulse    = 1 * time.Millisecond
	resetRecovery = 5 * time.Millisecond
)

// CharTime is the time one 8N1 character (10 bits) occupies on the line.
func CharTime(baud int) time.Duration {
	if baud <= 0 {
		return 0
	}
	return time.Duration(10 * int64(time.Second) / int64(baud))
}

// MaxPollInterval bounds the gap between empty RXLVL polls at baud. Half the
// time it takes to fill the RX FIFO keeps the FIFO from overrunning and is
// well inside the transmission time of one 82-byte NMEA sentence.
func MaxPollInterval(baud int) time.Duration {
	return CharTime(baud) * FIFODepth / 2
}
