package tunio

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStubWritePacketDeliversToInbound(t *testing.T) {
	stub := NewStub("test0", 1420)
	defer stub.Close()

	require.NoError(t, stub.WritePacket([]byte("hello")))

	select {
	case msg := <-stub.Inbound:
		require.Equal(t, "hello", string(msg))
	default:
		t.Fatal("expected message on Inbound")
	}
}

func TestStubReadPacketReturnsOutbound(t *testing.T) {
	stub := NewStub("test0", 1420)
	defer stub.Close()

	stub.Outbound <- []byte("world")

	buf := make([]byte, 64)
	n, err := stub.ReadPacket(buf)
	require.NoError(t, err)
	require.Equal(t, "world", string(buf[:n]))
}

func TestStubClosedReadReturnsEOF(t *testing.T) {
	stub := NewStub("test0", 1420)
	stub.Close()

	_, err := stub.ReadPacket(make([]byte, 16))
	require.ErrorIs(t, err, io.EOF)
}
