package bond

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/vtbond/vtbond/internal/vtberr"
)

// KeySize is the length in bytes of every Noise static/preshared key this
// daemon handles.
const KeySize = 32

// DecodeKey validates and decodes a base64-encoded 32-byte key. label names
// the field in error messages (e.g. "private_key") so a misconfigured
// daemon reports exactly which value is wrong, mirroring
// original_source/src/wireguard.rs's decode_key.
func DecodeKey(label, encoded string) ([KeySize]byte, error) {
	var key [KeySize]byte

	trimmed := strings.TrimSpace(encoded)
	decoded, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return key, fmt.Errorf("%w: invalid base64 for %s", vtberr.ErrInvalidConfig, label)
	}
	if len(decoded) != KeySize {
		return key, fmt.Errorf("%w: invalid %s length (expected %d bytes, got %d)",
			vtberr.ErrInvalidConfig, label, KeySize, len(decoded))
	}

	copy(key[:], decoded)
	return key, nil
}
