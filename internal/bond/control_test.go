package bond

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestControlPacketRoundTrip(t *testing.T) {
	packet := BuildControlPacket(TypePing, 0x0102030405060708)

	msgType, token, ok := ParseControlPacket(packet[:])
	require.True(t, ok)
	require.Equal(t, TypePing, msgType)
	require.Equal(t, uint64(0x0102030405060708), token)
}

func TestParseControlPacketRejectsBadMagic(t *testing.T) {
	packet := BuildControlPacket(TypePong, 42)
	packet[0] = 'X'

	_, _, ok := ParseControlPacket(packet[:])
	require.False(t, ok)
}

func TestParseControlPacketRejectsWrongLength(t *testing.T) {
	_, _, ok := ParseControlPacket([]byte("VTBD"))
	require.False(t, ok)

	packet := BuildControlPacket(TypePing, 1)
	_, _, ok = ParseControlPacket(append(packet[:], 0))
	require.False(t, ok)
}
