package udp

import (
	"fmt"
	"net"
)

// Forwarder sends each sentence as one datagram, the way chart plotters
// expect NMEA over UDP (conventionally port 10110).
type Forwarder struct {
	dest string
	conn udpConn
}

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type resolveFunc func(network, address string) (*net.UDPAddr, error)
type dialFunc func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)

func NewForwarder(dest string) (*Forwarder, error) {
	return newForwarder(dest, net.ResolveUDPAddr, func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return net.DialUDP(network, laddr, raddr)
	})
}

func newForwarder(dest string, resolve resolveFunc, dial dialFunc) (*Forwarder, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}

	// DialUDP selects a suitable local address automatically.
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}
	return &Forwarder{dest: dest, conn: conn}, nil
}

func (f *Forwarder) Dest() string { return f.dest }

func (f *Forwarder) Send(sentence []byte) error {
	if len(sentence) == 0 {
		return nil
	}
	_, err := f.conn.Write(sentence)
	return err
}

func (f *Forwarder) Close() error {
	if f == nil || f.conn == nil {
		return nil
	}
	return f.conn.Close()
}
