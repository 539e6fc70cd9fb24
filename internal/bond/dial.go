package bond

import (
	"context"
	"fmt"
	"net"

	"github.com/vtbond/vtbond/internal/vtbconf"
	"github.com/vtbond/vtbond/internal/vtberr"
)

// DialedLink bundles a constructed Link with the UDP socket it owns, so
// callers can hand the socket to a per-link receive task while the Link
// itself lives inside the Manager.
type DialedLink struct {
	Link *Link
	Conn *net.UDPConn
}

// DialLinks binds one UDP socket per configured link and, where an
// endpoint is given, resolves it and seeds the Link's initial remote.
// Grounded on original_source/src/wireguard.rs's setup_links /
// create_link_socket / resolve_endpoint / default_bind_addr /
// parse_bind_addr: bind address resolution order is (1) the configured
// bind string, (2) an address family matched to the resolved remote
// endpoint, (3) the wildcard "0.0.0.0:0" when there is no endpoint to
// match against.
func DialLinks(ctx context.Context, links []vtbconf.ResolvedLink) ([]DialedLink, error) {
	out := make([]DialedLink, 0, len(links))
	for _, cfg := range links {
		var remote *net.UDPAddr
		if cfg.Endpoint != "" {
			resolved, err := resolveEndpoint(ctx, cfg.Endpoint)
			if err != nil {
				return nil, fmt.Errorf("%w: link %q: %w", vtberr.ErrNetwork, cfg.Name, err)
			}
			remote = resolved
		}

		bindAddr, err := bindAddrFor(cfg.Bind, remote)
		if err != nil {
			return nil, fmt.Errorf("%w: link %q: %w", vtberr.ErrInvalidConfig, cfg.Name, err)
		}

		conn, err := net.ListenUDP("udp", bindAddr)
		if err != nil {
			return nil, fmt.Errorf("%w: link %q: bind %s: %w", vtberr.ErrNetwork, cfg.Name, bindAddr, err)
		}

		var link *Link
		if remote != nil {
			link = NewLink(cfg.Name, cfg.Weight, remote)
		} else {
			link = NewLink(cfg.Name, cfg.Weight, nil)
		}

		out = append(out, DialedLink{Link: link, Conn: conn})
	}
	return out, nil
}

// resolveEndpoint resolves a "host:port" endpoint string, mirroring
// resolve_endpoint's use of the system resolver.
func resolveEndpoint(ctx context.Context, endpoint string) (*net.UDPAddr, error) {
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	resolver := net.DefaultResolver
	ips, err := resolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, fmt.Errorf("resolving endpoint %q: %w", endpoint, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("endpoint %q resolved to no addresses", endpoint)
	}
	addr := &net.UDPAddr{IP: ips[0]}
	if _, err := fmt.Sscanf(port, "%d", &addr.Port); err != nil {
		return nil, fmt.Errorf("invalid port in endpoint %q: %w", endpoint, err)
	}
	return addr, nil
}

// bindAddrFor implements parse_bind_addr / default_bind_addr: an explicit
// bind string is parsed and used verbatim; absent that, the wildcard
// address matching the remote's family is used (IPv6 "[::]:0" when the
// remote is an IPv6 address, else "0.0.0.0:0"); absent a remote too, the
// IPv4 wildcard is the default.
func bindAddrFor(bind string, remote *net.UDPAddr) (*net.UDPAddr, error) {
	if bind != "" {
		if _, _, err := net.SplitHostPort(bind); err != nil {
			// No "host:port" form: treat the whole string as a bare IP
			// address (host names are rejected), bound to an ephemeral port
			// (spec.md §6).
			ip := net.ParseIP(bind)
			if ip == nil {
				return nil, fmt.Errorf("invalid bind address %q", bind)
			}
			return &net.UDPAddr{IP: ip, Port: 0}, nil
		}
		addr, err := net.ResolveUDPAddr("udp", bind)
		if err != nil {
			return nil, fmt.Errorf("invalid bind address %q: %w", bind, err)
		}
		return addr, nil
	}
	if remote != nil && remote.IP.To4() == nil {
		return &net.UDPAddr{IP: net.IPv6unspecified, Port: 0}, nil
	}
	return &net.UDPAddr{IP: net.IPv4zero, Port: 0}, nil
}
