package supervisor

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/vtbond/vtbond/internal/bond"
	"github.com/vtbond/vtbond/internal/noiseik"
	"github.com/vtbond/vtbond/internal/tunio"
	"github.com/vtbond/vtbond/internal/vtbconf"
)

type fakeSender struct {
	sent [][]byte
}

func (s *fakeSender) WriteTo(p []byte, addr net.Addr) (int, error) {
	s.sent = append(s.sent, append([]byte(nil), p...))
	return len(p), nil
}

func genKeypair(seed byte) [32]byte {
	var priv [32]byte
	for i := range priv {
		priv[i] = seed + byte(i)
	}
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64
	return priv
}

func newTestSupervisor(t *testing.T) (*Supervisor, *tunio.Stub, *fakeSender, *noiseik.Driver) {
	t.Helper()
	remote := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 51820}
	link := bond.NewLink("primary", 1, remote)
	sender := &fakeSender{}
	manager := bond.NewManager([]*bond.Link{link}, []bond.Sender{sender}, vtbconf.BondingAggregate, time.Second, 0, clockwork.NewFakeClock(), nil, nil)

	priv := genKeypair(1)
	driver, err := noiseik.NewDriver(priv, [32]byte{}, nil)
	require.NoError(t, err)

	stub := tunio.NewStub("test0", 1420)
	sup := New(stub, manager, driver, 0, clockwork.NewFakeClock(), nil, nil)
	return sup, stub, sender, driver
}

func TestHandleOutgoingDropsPacketBeforeHandshake(t *testing.T) {
	sup, _, sender, _ := newTestSupervisor(t)
	sup.handleOutgoing([]byte("hello"))
	require.Empty(t, sender.sent)
}

func TestHandleIncomingControlPacketDoesNotReachTUN(t *testing.T) {
	sup, stub, sender, _ := newTestSupervisor(t)

	ping := bond.BuildControlPacket(bond.TypePing, 42)
	sup.handleIncoming(bond.NetPacket{
		LinkIndex: 0,
		Src:       &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 51820},
		Data:      ping[:],
	})

	require.Len(t, sender.sent, 1) // the PONG reply
	select {
	case <-stub.Inbound:
		t.Fatal("control packet should never reach the tun device")
	default:
	}
}

// erroringConn always fails to read, simulating a socket that will never
// recover (e.g. net.ErrClosed out from under the receive task).
type erroringConn struct{}

func (erroringConn) ReadFrom([]byte) (int, net.Addr, error) {
	return 0, nil, errors.New("simulated fatal socket error")
}

// A fatal socket error must retire the receive task, not spin it in a
// tight loop retrying forever (spec.md §4.5/§4.8).
func TestPumpLinkTerminatesOnFatalReadError(t *testing.T) {
	sup, _, _, _ := newTestSupervisor(t)

	done := make(chan struct{})
	go func() {
		sup.pumpLink(context.Background(), 0, erroringConn{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pumpLink did not terminate after a fatal read error")
	}
}
