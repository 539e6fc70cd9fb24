package bond

import (
	"encoding/binary"
	"net"
)

// NetPacket is what a receive-fan-in task pushes onto the central queue:
// spec.md §4.5 — an immutable value carrying which link it arrived on, the
// source address (for endpoint floating), and the raw bytes.
type NetPacket struct {
	LinkIndex int
	Src       net.Addr
	Data      []byte
}

// wireGuard message types, carried in the first 4 little-endian bytes of
// every Noise-framed datagram (spec.md §4.4/§6). The core never interprets
// the rest of the bytes — only this classification tag.
const (
	wgTypeHandshakeInit     = 1
	wgTypeHandshakeResponse = 2
	wgTypeCookieReply       = 3
	wgTypeTransport         = 4

	// wgKeepaliveLen is the wire length of a transport-type packet that
	// carries a zero-length payload: a WireGuard-style keepalive.
	wgKeepaliveLen = 32
)

// packetClass is the dispatch classification of §4.4's table.
type packetClass int

const (
	classHandshake packetClass = iota
	classKeepalive
	classData
	classUnknown
)

// classify inspects the first 4 LE bytes of a Noise-framed datagram per
// spec.md §4.4's dispatch table. It never looks past the 4-byte tag plus,
// for the keepalive case, the overall length.
func classify(packet []byte) packetClass {
	if len(packet) < 4 {
		return classUnknown
	}
	msgType := binary.LittleEndian.Uint32(packet[:4])
	switch msgType {
	case wgTypeHandshakeInit, wgTypeHandshakeResponse, wgTypeCookieReply:
		return classHandshake
	case wgTypeTransport:
		if len(packet) == wgKeepaliveLen {
			return classKeepalive
		}
		return classData
	default:
		return classUnknown
	}
}
