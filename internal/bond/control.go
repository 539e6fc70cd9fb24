package bond

import "encoding/binary"

// Control frame layout (spec.md §4.1 / §6):
//
//	offset 0..4   ASCII "VTBD"
//	offset 4      type: 1 = PING, 2 = PONG
//	offset 5..13  8-byte big-endian token
//
// Exactly 13 bytes. Adapted from the teacher's frame.go, which splits a
// fixed-size header (length + type) from a variable payload; here the
// frame carries no payload at all, just a token, so the whole thing is a
// fixed 13-byte header.
const (
	controlMagic      = "VTBD"
	controlPacketLen  = 4 + 1 + 8
	tokenOffset       = 5

	// TypePing requests a PONG echoing the same token.
	TypePing byte = 1
	// TypePong is the reply to a PING, echoing its token verbatim.
	TypePong byte = 2
)

// BuildControlPacket encodes a 13-byte control frame.
func BuildControlPacket(msgType byte, token uint64) [controlPacketLen]byte {
	var buf [controlPacketLen]byte
	copy(buf[:4], controlMagic)
	buf[4] = msgType
	binary.BigEndian.PutUint64(buf[tokenOffset:], token)
	return buf
}

// ParseControlPacket recognizes a control frame: exactly 13 bytes, magic
// "VTBD". Any other length or magic mismatch means the bytes are not a
// control frame (e.g. they belong to the Noise tunnel) and ok is false.
func ParseControlPacket(data []byte) (msgType byte, token uint64, ok bool) {
	if len(data) != controlPacketLen {
		return 0, 0, false
	}
	if string(data[:4]) != controlMagic {
		return 0, 0, false
	}
	return data[4], binary.BigEndian.Uint64(data[tokenOffset:]), true
}
