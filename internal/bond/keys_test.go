package bond

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeKeyAcceptsValid32Bytes(t *testing.T) {
	raw := make([]byte, KeySize)
	for i := range raw {
		raw[i] = byte(i)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)

	key, err := DecodeKey("private_key", encoded)
	require.NoError(t, err)
	require.Equal(t, raw, key[:])
}

func TestDecodeKeyRejectsWrongLength(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("too short"))
	_, err := DecodeKey("peer_public_key", encoded)
	require.Error(t, err)
}

func TestDecodeKeyRejectsInvalidBase64(t *testing.T) {
	_, err := DecodeKey("peer_public_key", "not base64!!!")
	require.Error(t, err)
}
