package noiseik

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func genKeypair(t *testing.T, seed byte) [32]byte {
	t.Helper()
	var priv [32]byte
	for i := range priv {
		priv[i] = seed + byte(i)
	}
	// Clamp per X25519 requirements, mirroring curve25519's own key
	// generation so the derived public key is well-formed.
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64
	return priv
}

func TestHandshakeAndTransportRoundTrip(t *testing.T) {
	initiatorPriv := genKeypair(t, 1)
	responderPriv := genKeypair(t, 100)

	initiatorPub, err := publicKeyOf(initiatorPriv)
	require.NoError(t, err)
	responderPub, err := publicKeyOf(responderPriv)
	require.NoError(t, err)

	initiator, err := NewDriver(initiatorPriv, responderPub, nil)
	require.NoError(t, err)
	responder, err := NewDriver(responderPriv, initiatorPub, nil)
	require.NoError(t, err)

	now := time.Now()

	initMsg, err := initiator.FormatHandshakeInitiation(now)
	require.NoError(t, err)

	_, reply, err := responder.Decapsulate(initMsg, now)
	require.NoError(t, err)
	require.NotNil(t, reply)
	require.True(t, responder.IsComplete())

	_, noReply, err := initiator.Decapsulate(reply, now)
	require.NoError(t, err)
	require.Nil(t, noReply)
	require.True(t, initiator.IsComplete())

	transport, err := initiator.Encapsulate([]byte("hello, peer"))
	require.NoError(t, err)

	plaintext, reply2, err := responder.Decapsulate(transport, now)
	require.NoError(t, err)
	require.Nil(t, reply2)
	require.Equal(t, "hello, peer", string(plaintext))
}

func TestKeepaliveIsRecognizedAndDropped(t *testing.T) {
	initiatorPriv := genKeypair(t, 5)
	responderPriv := genKeypair(t, 200)
	initiatorPub, _ := publicKeyOf(initiatorPriv)
	responderPub, _ := publicKeyOf(responderPriv)

	initiator, _ := NewDriver(initiatorPriv, responderPub, nil)
	responder, _ := NewDriver(responderPriv, initiatorPub, nil)

	now := time.Now()
	initMsg, _ := initiator.FormatHandshakeInitiation(now)
	_, reply, _ := responder.Decapsulate(initMsg, now)
	initiator.Decapsulate(reply, now)

	keepalive, err := initiator.FormatKeepalive()
	require.NoError(t, err)
	require.Len(t, keepalive, 32)

	plaintext, reply2, err := responder.Decapsulate(keepalive, now)
	require.NoError(t, err)
	require.Nil(t, plaintext)
	require.Nil(t, reply2)
}

func TestUpdateTimersRequestsRekeyBeforeHandshake(t *testing.T) {
	priv := genKeypair(t, 9)
	pub, _ := publicKeyOf(priv)
	d, err := NewDriver(priv, pub, nil)
	require.NoError(t, err)
	require.True(t, d.UpdateTimers(time.Now()))
}

// A slow peer (cellular, satellite — spec.md §1/§2) can easily take longer
// than one 250ms Supervisor rekey tick to answer a handshake initiation.
// UpdateTimers must not ask for a retransmit on every such tick, or the
// initiator would tear up its own in-flight noise.HandshakeState before the
// response ever arrives.
func TestUpdateTimersDoesNotRetransmitWhileInitiationPending(t *testing.T) {
	priv := genKeypair(t, 9)
	pub, _ := publicKeyOf(priv)
	d, err := NewDriver(priv, pub, nil)
	require.NoError(t, err)

	now := time.Now()
	_, err = d.FormatHandshakeInitiation(now)
	require.NoError(t, err)

	require.False(t, d.UpdateTimers(now.Add(250*time.Millisecond)))
	require.False(t, d.UpdateTimers(now.Add(4*time.Second)))
}

func TestUpdateTimersRetransmitsOncePendingInitiationTimesOut(t *testing.T) {
	priv := genKeypair(t, 9)
	pub, _ := publicKeyOf(priv)
	d, err := NewDriver(priv, pub, nil)
	require.NoError(t, err)

	now := time.Now()
	_, err = d.FormatHandshakeInitiation(now)
	require.NoError(t, err)

	require.True(t, d.UpdateTimers(now.Add(rekeyTimeout+time.Millisecond)))
}

func publicKeyOf(priv [32]byte) ([32]byte, error) {
	var pub [32]byte
	d, err := NewDriver(priv, [32]byte{}, nil)
	if err != nil {
		return pub, err
	}
	copy(pub[:], d.privateKey.Public)
	return pub, nil
}
