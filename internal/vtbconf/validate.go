package vtbconf

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/vtbond/vtbond/internal/vtberr"
)

// Resolve validates c and produces the defaulted, typed form the core
// packages consume. Boundary checks mirror
// original_source/src/config.rs's validate_config exactly; defaults mirror
// its Config::default().
func (c *Config) Resolve() (*Resolved, error) {
	r := &Resolved{}

	r.MTU = c.Network.MTU
	if r.MTU == 0 {
		r.MTU = 1420
	}
	if r.MTU < 1 || r.MTU > 65535 {
		return nil, fmt.Errorf("%w: mtu (%d) must be in 1..=65535", vtberr.ErrInvalidConfig, r.MTU)
	}
	r.BufferSize = c.Network.BufferSize
	if r.BufferSize == 0 {
		r.BufferSize = 65536
	}
	if r.BufferSize < r.MTU {
		return nil, fmt.Errorf("%w: buffer_size (%d) must be >= mtu (%d)", vtberr.ErrInvalidConfig, r.BufferSize, r.MTU)
	}
	r.Interface = c.Network.Interface
	r.Address = c.Network.Address
	r.Netmask = c.Network.Netmask
	r.Destination = c.Network.Destination

	privateKey, err := decodeKey32("private_key", c.WireGuard.PrivateKey)
	if err != nil {
		return nil, err
	}
	r.PrivateKey = privateKey

	peerKey, err := decodeKey32("peer_public_key", c.WireGuard.PeerPublicKey)
	if err != nil {
		return nil, err
	}
	r.PeerPublicKey = peerKey

	if strings.TrimSpace(c.WireGuard.PresharedKey) != "" {
		psk, err := decodeKey32("preshared_key", c.WireGuard.PresharedKey)
		if err != nil {
			return nil, err
		}
		r.PresharedKey = &psk
	}

	keepaliveSecs := 25
	if c.WireGuard.PersistentKeepalive != nil {
		keepaliveSecs = *c.WireGuard.PersistentKeepalive
	}
	if keepaliveSecs < 0 {
		return nil, fmt.Errorf("%w: persistent_keepalive must be >= 0", vtberr.ErrInvalidConfig)
	}
	r.PersistentKeepalive = time.Duration(keepaliveSecs) * time.Second

	mode, err := ParseBondingMode(c.WireGuard.BondingMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vtberr.ErrInvalidConfig, err)
	}
	r.BondingMode = mode

	errorBackoffSecs := DefaultErrorBackoffSecs
	if c.WireGuard.ErrorBackoffSecs != nil {
		errorBackoffSecs = *c.WireGuard.ErrorBackoffSecs
	}
	if errorBackoffSecs <= 0 {
		return nil, fmt.Errorf("%w: error_backoff_secs must be > 0", vtberr.ErrInvalidConfig)
	}
	r.ErrorBackoff = time.Duration(errorBackoffSecs) * time.Second

	healthIntervalMS := DefaultHealthCheckIntervalMS
	if c.WireGuard.HealthCheckInterval != nil {
		healthIntervalMS = *c.WireGuard.HealthCheckInterval
	}
	if healthIntervalMS <= 0 {
		return nil, fmt.Errorf("%w: health_check_interval_ms must be > 0", vtberr.ErrInvalidConfig)
	}
	r.HealthInterval = time.Duration(healthIntervalMS) * time.Millisecond

	if c.WireGuard.HealthCheckTimeout != nil {
		timeoutMS := *c.WireGuard.HealthCheckTimeout
		if timeoutMS <= 0 {
			return nil, fmt.Errorf("%w: health_check_timeout_ms must be > 0", vtberr.ErrInvalidConfig)
		}
		if timeoutMS <= healthIntervalMS {
			return nil, fmt.Errorf("%w: health_check_timeout_ms must be greater than health_check_interval_ms", vtberr.ErrInvalidConfig)
		}
		r.HealthTimeout = time.Duration(timeoutMS) * time.Millisecond
		r.HealthEnabled = true
	}

	if len(c.WireGuard.Links) == 0 {
		return nil, fmt.Errorf("%w: at least one link is required", vtberr.ErrInvalidConfig)
	}
	r.Links = make([]ResolvedLink, 0, len(c.WireGuard.Links))
	for i, link := range c.WireGuard.Links {
		name := link.Name
		if name == "" {
			name = fmt.Sprintf("link-%d", i)
		}
		weight := DefaultLinkWeight
		if link.Weight != nil {
			weight = *link.Weight
		}
		if weight <= 0 {
			return nil, fmt.Errorf("%w: link %q: weight must be > 0", vtberr.ErrInvalidConfig, name)
		}
		r.Links = append(r.Links, ResolvedLink{
			Name:     name,
			Bind:     link.Bind,
			Endpoint: link.Endpoint,
			Weight:   uint32(weight),
		})
	}

	r.LogLevel = c.Logging.Level
	if r.LogLevel == "" {
		r.LogLevel = "info"
	}
	r.LogFormat = c.Logging.Format
	if r.LogFormat == "" {
		r.LogFormat = "text"
	}
	r.MetricsListenAddr = c.Metrics.ListenAddr
	if r.MetricsListenAddr == "" {
		r.MetricsListenAddr = "127.0.0.1:9090"
	}

	return r, nil
}

// decodeKey32 validates and decodes a base64-encoded 32-byte key. Kept
// local to vtbconf (rather than calling internal/bond) to avoid a import
// cycle: internal/bond depends on vtbconf for BondingMode/ResolvedLink.
func decodeKey32(label, encoded string) ([32]byte, error) {
	var key [32]byte
	trimmed := strings.TrimSpace(encoded)
	if trimmed == "" {
		return key, fmt.Errorf("%w: %s is required", vtberr.ErrInvalidConfig, label)
	}
	decoded, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return key, fmt.Errorf("%w: invalid base64 for %s", vtberr.ErrInvalidConfig, label)
	}
	if len(decoded) != 32 {
		return key, fmt.Errorf("%w: invalid %s length (expected 32 bytes, got %d)",
			vtberr.ErrInvalidConfig, label, len(decoded))
	}
	copy(key[:], decoded)
	return key, nil
}
