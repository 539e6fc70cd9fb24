package tunio

import "io"

// Stub is an in-memory Device for tests, grounded in
// wireguard-go/tun/tuntest's ChannelTUN: packets written by the core
// (i.e. decrypted from the wire) land on Inbound; packets the core should
// read (i.e. about to be encrypted) are fed in on Outbound.
type Stub struct {
	Inbound  chan []byte
	Outbound chan []byte
	name     string
	mtu      int
	closed   chan struct{}
}

// NewStub creates a ready-to-use in-memory TUN stand-in.
func NewStub(name string, mtu int) *Stub {
	return &Stub{
		Inbound:  make(chan []byte, 16),
		Outbound: make(chan []byte, 16),
		name:     name,
		mtu:      mtu,
		closed:   make(chan struct{}),
	}
}

func (s *Stub) ReadPacket(buf []byte) (int, error) {
	select {
	case <-s.closed:
		return 0, io.EOF
	case packet := <-s.Outbound:
		return copy(buf, packet), nil
	}
}

func (s *Stub) WritePacket(packet []byte) error {
	msg := make([]byte, len(packet))
	copy(msg, packet)
	select {
	case <-s.closed:
		return io.EOF
	case s.Inbound <- msg:
		return nil
	}
}

func (s *Stub) Name() string { return s.name }
func (s *Stub) MTU() int     { return s.mtu }

func (s *Stub) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}
