// Package vtbconf is the configuration surface consumed by vtbond's core:
// a typed Config decoded from YAML, validated the moment it is loaded.
//
// This mirrors the teacher library's options.go — a Config struct with a
// Validate() method enforcing invariants, defaulted centrally — generalized
// from a functional-options API (sensible for a library embedded by Go
// callers) to a declarative, file-decoded struct (necessary here because
// this domain's configuration is operator-authored YAML, per
// original_source/src/config.rs, not Go call sites).
package vtbconf

import (
	"fmt"
	"strings"
	"time"
)

// BondingMode selects how data datagrams are dispatched across links.
type BondingMode int

const (
	// BondingAggregate spreads data datagrams across links by weighted
	// round-robin. It is the default.
	BondingAggregate BondingMode = iota
	// BondingRedundant mirrors every data datagram onto every available
	// link.
	BondingRedundant
	// BondingFailover sends on the single highest-weight available link,
	// falling back to any other available link on failure.
	BondingFailover
)

func (m BondingMode) String() string {
	switch m {
	case BondingAggregate:
		return "aggregate"
	case BondingRedundant:
		return "redundant"
	case BondingFailover:
		return "failover"
	default:
		return "unknown"
	}
}

// ParseBondingMode accepts the canonical names plus the aliases "bonding"
// and "bonded", both mapping to Aggregate, case-insensitively — exactly the
// alias table in spec.md §3.
func ParseBondingMode(s string) (BondingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "aggregate", "bonding", "bonded":
		return BondingAggregate, nil
	case "redundant":
		return BondingRedundant, nil
	case "failover":
		return BondingFailover, nil
	default:
		return 0, fmt.Errorf("unsupported bonding_mode: %q", s)
	}
}

// Defaults mirrored from original_source/src/config.rs's Config::default()
// and spec.md §3.
const (
	DefaultErrorBackoffSecs       = 5
	DefaultHealthCheckIntervalMS  = 1000
	DefaultLinkWeight             = 1
)

// Config is the root configuration object, decoded 1:1 from the YAML
// surface enumerated in spec.md §6.
type Config struct {
	Network   NetworkConfig   `yaml:"network"`
	WireGuard WireGuardConfig `yaml:"wireguard"`

	// Logging and Metrics are consumed only by cmd/vtbondd; the core
	// packages never read them (spec.md §1: logging's sink configuration
	// is an external collaborator's concern, not the core's).
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// NetworkConfig configures the TUN device. See spec.md §3/§6. cmd/vtbondd
// opens the device with Interface and MTU only: Address, Netmask and
// Destination are decoded and resolved but not applied to the device, and
// BufferSize is validated but the read buffers are a fixed 65536 bytes.
type NetworkConfig struct {
	MTU         int    `yaml:"mtu"`
	BufferSize  int    `yaml:"buffer_size"`
	Interface   string `yaml:"interface,omitempty"`
	Address     string `yaml:"address,omitempty"`
	Netmask     string `yaml:"netmask,omitempty"`
	Destination string `yaml:"destination,omitempty"`
}

// WireGuardConfig configures the Noise tunnel and the link set. See
// spec.md §3/§6. Optional numeric fields are pointers so "unset" (which
// Resolve defaults) and "explicit zero" are distinguishable; Resolve rejects
// an explicit zero where zero is out of range (persistent_keepalive accepts
// it).
type WireGuardConfig struct {
	PrivateKey          string             `yaml:"private_key"`
	PeerPublicKey       string             `yaml:"peer_public_key"`
	PresharedKey        string             `yaml:"preshared_key,omitempty"`
	PersistentKeepalive *int               `yaml:"persistent_keepalive,omitempty"`
	BondingMode         string             `yaml:"bonding_mode,omitempty"`
	ErrorBackoffSecs    *int               `yaml:"error_backoff_secs,omitempty"`
	HealthCheckInterval *int               `yaml:"health_check_interval_ms,omitempty"`
	HealthCheckTimeout  *int               `yaml:"health_check_timeout_ms,omitempty"`
	Links               []LinkConfig       `yaml:"links"`
}

// LinkConfig configures one underlying UDP transport. See spec.md §3/§6.
type LinkConfig struct {
	Name     string `yaml:"name,omitempty"`
	Bind     string `yaml:"bind,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Weight   *int   `yaml:"weight,omitempty"`
}

// LoggingConfig is ambient: it configures cmd/vtbondd's injected logger, not
// any core package. cmd/vtbondd reads only Level, and only "debug" changes
// anything (any other value logs at info); Format is decoded but not read,
// and output is always tint's colored text.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // text, json
}

// MetricsConfig is ambient: it configures cmd/vtbondd's Prometheus exporter.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr,omitempty"`
}

// Resolved is the validated, defaulted form of Config that the core
// packages consume. Building it is the one place optional-pointer fields
// collapse to concrete values.
type Resolved struct {
	MTU         int
	BufferSize  int
	Interface   string
	Address     string
	Netmask     string
	Destination string

	PrivateKey          [32]byte
	PeerPublicKey       [32]byte
	PresharedKey        *[32]byte
	PersistentKeepalive time.Duration

	BondingMode    BondingMode
	ErrorBackoff   time.Duration
	HealthInterval time.Duration
	HealthTimeout  time.Duration // zero means disabled
	HealthEnabled  bool

	Links []ResolvedLink

	// LogLevel, LogFormat, and MetricsListenAddr are ambient: never read by
	// the core packages. cmd/vtbondd's logger/exporter wiring reads LogLevel
	// and MetricsListenAddr; LogFormat is not read.
	LogLevel          string
	LogFormat         string
	MetricsListenAddr string
}

// ResolvedLink is one validated, defaulted link entry.
type ResolvedLink struct {
	Name     string
	Bind     string
	Endpoint string
	Weight   uint32
}
