package bond

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 51820}
}

func TestLinkUnavailableWithoutRemote(t *testing.T) {
	link := NewLink("wifi", 1, nil)
	require.False(t, link.IsAvailable(time.Now(), time.Second, 0, nil))
}

func TestLinkMarksDownAfterMissedPong(t *testing.T) {
	now := time.Now()
	link := NewLink("wifi", 1, sampleAddr())
	link.RecordPing(now)

	var reason string
	available := link.IsAvailable(now.Add(10*time.Second), time.Second, 5*time.Second, func(r string) {
		reason = r
	})

	require.False(t, available)
	require.Equal(t, "no pong", reason)
	downSince, has := link.DownSince()
	require.True(t, has)
	require.Equal(t, now.Add(10*time.Second), downSince)
}

func TestLinkSilenceAloneDoesNotMarkDownWithoutPriorActivity(t *testing.T) {
	link := NewLink("wifi", 1, sampleAddr())
	require.True(t, link.IsAvailable(time.Now().Add(time.Hour), time.Second, 5*time.Second, nil))
}

func TestLinkRecoversOnRx(t *testing.T) {
	now := time.Now()
	link := NewLink("wifi", 1, sampleAddr())
	link.markDown(now, "send error", nil)

	recovered := false
	link.RecordRx(now.Add(time.Second), func() { recovered = true })

	require.True(t, recovered)
	_, has := link.DownSince()
	require.False(t, has)
}

func TestLinkStaysDownWithinBackoffWindow(t *testing.T) {
	now := time.Now()
	link := NewLink("wifi", 1, sampleAddr())
	link.RecordSendError(now, nil)

	require.False(t, link.IsAvailable(now.Add(time.Second), 5*time.Second, 0, nil))
	require.True(t, link.IsAvailable(now.Add(10*time.Second), 5*time.Second, 0, nil))
}

func TestLinkOnMarkDownFiresOnlyOnce(t *testing.T) {
	now := time.Now()
	link := NewLink("wifi", 1, sampleAddr())

	calls := 0
	onMarkDown := func(string) { calls++ }

	link.RecordSendError(now, onMarkDown)
	link.RecordSendError(now.Add(time.Millisecond), onMarkDown)

	require.Equal(t, 1, calls)
}
