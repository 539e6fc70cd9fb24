// Package bond implements the dataplane and link-bonding engine: the
// control-frame codec, key decoding, per-link health state, and the
// LinkManager that schedules Noise-framed datagrams across a bonded set of
// UDP links.
package bond

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vtbond/vtbond/internal/vtbconf"
	"github.com/vtbond/vtbond/internal/vtbmetrics"
)

// Sender is the capability a Link needs to transmit: a bound UDP socket.
// Generalizes the teacher's Transport interface design (aznet.go) down to
// exactly the one method this domain needs — fixed UDP transports don't
// need the teacher's pluggable-driver Read/Close/MaxRawSize surface.
type Sender interface {
	WriteTo(p []byte, addr net.Addr) (int, error)
}

// Manager is the LinkManager of spec.md §4.4. All methods are
// single-threaded; the Supervisor is its only caller, so no internal
// synchronization exists (spec.md §5's "ownership partitioned by task").
type Manager struct {
	links  []*Link
	conns  []Sender
	mode   vtbconf.BondingMode

	errorBackoff  time.Duration
	healthTimeout time.Duration // zero disables probing

	nextIndex       int
	remainingWeight uint32

	clock   clockwork.Clock
	log     *slog.Logger
	metrics vtbmetrics.Metrics
}

// NewManager builds a Manager over the given links and their parallel
// senders (conns[i] sends for links[i]). clock/log/metrics follow the
// capability-injection pattern of the teacher's Config (options.go): a
// nil clock defaults to the real wall clock, nil log/metrics degrade to a
// discard logger and a no-op Metrics.
func NewManager(links []*Link, conns []Sender, mode vtbconf.BondingMode, errorBackoff, healthTimeout time.Duration, clock clockwork.Clock, log *slog.Logger, metrics vtbmetrics.Metrics) *Manager {
	if len(links) != len(conns) {
		panic("bond: links and conns must be parallel slices")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if metrics == nil {
		metrics = vtbmetrics.Noop{}
	}
	return &Manager{
		links:         links,
		conns:         conns,
		mode:          mode,
		errorBackoff:  errorBackoff,
		healthTimeout: healthTimeout,
		clock:         clock,
		log:           log,
		metrics:       metrics,
	}
}

// Links exposes the underlying link set, by index, for inspection (e.g. the
// Supervisor checks the link count and names links in its logs). Callers must not mutate
// returned Links' identity (index) but may read their state.
func (m *Manager) Links() []*Link { return m.links }

// HasEndpoints is true iff any link has a resolved remote (spec.md §4.4).
// Used at startup to decide whether to send the initial handshake
// initiation.
func (m *Manager) HasEndpoints() bool {
	for _, l := range m.links {
		if l.Remote() != nil {
			return true
		}
	}
	return false
}

// UpdateRemote implements endpoint floating (spec.md invariant 3 / §4.4):
// the peer's observed source address becomes the link's new remote, and
// the rx bookkeeping updates.
func (m *Manager) UpdateRemote(linkIndex int, src net.Addr, now time.Time) {
	if linkIndex < 0 || linkIndex >= len(m.links) {
		return
	}
	link := m.links[linkIndex]
	prev := link.Remote()
	if prev == nil || prev.String() != src.String() {
		m.log.Debug("link remote updated", "link", link.Name, "remote", src.String())
	}
	link.SetRemote(src)
	link.RecordRx(now, func() {
		m.log.Info("link recovered", "link", link.Name, "reason", "rx")
	})
	m.metrics.IncLinkRecv(link.Name)
}

// HandleControlPacket implements spec.md §4.4: it recognizes a 13-byte
// VTBD control frame, replies to PING with PONG (echoing the token) on the
// same link, and records RTT from a PONG whose token has already elapsed.
// It returns true iff data was a control frame (and was therefore consumed
// here, never reaching the Noise driver — invariant 6 of spec.md §3).
func (m *Manager) HandleControlPacket(linkIndex int, data []byte, epochMillis uint64) bool {
	msgType, token, ok := ParseControlPacket(data)
	if !ok {
		return false
	}
	if linkIndex < 0 || linkIndex >= len(m.links) {
		return true
	}

	now := m.clock.Now()
	switch msgType {
	case TypePing:
		reply := BuildControlPacket(TypePong, token)
		m.sendProbe(linkIndex, reply[:], now)
	case TypePong:
		if epochMillis >= token {
			m.links[linkIndex].RecordRTT(epochMillis - token)
			m.metrics.ObserveRTT(m.links[linkIndex].Name, epochMillis-token)
		}
	}
	return true
}

// SendHealthPings implements spec.md §4.4: when probing is enabled, emit
// one PING on every link whose remote is set — even links currently marked
// down, since probing is how they recover.
func (m *Manager) SendHealthPings(epochMillis uint64) {
	if m.healthTimeout <= 0 {
		return
	}
	packet := BuildControlPacket(TypePing, epochMillis)
	now := m.clock.Now()
	for i, link := range m.links {
		if link.Remote() == nil {
			continue
		}
		if m.sendProbe(i, packet[:], now) {
			link.RecordPing(now)
		}
	}
}

// SendPacket classifies a Noise-framed datagram and dispatches it per
// spec.md §4.4's table: handshake and keepalive packets always go out on
// every link; data packets follow the configured bonding mode.
func (m *Manager) SendPacket(packet []byte) error {
	switch classify(packet) {
	case classHandshake, classKeepalive:
		m.sendAll(packet)
		return nil
	default:
		switch m.mode {
		case vtbconf.BondingRedundant:
			now := m.clock.Now()
			sent := 0
			for i, link := range m.links {
				if link.IsAvailable(now, m.errorBackoff, m.healthTimeout, m.onMarkDown(link)) && m.sendToLink(i, packet, now) {
					sent++
				}
			}
			if sent == 0 && !m.sendAny(packet, now) {
				m.log.Warn("no remote endpoints to send to")
				m.metrics.IncPacketsDropped()
			}
		case vtbconf.BondingFailover:
			m.sendFailover(packet)
		default:
			m.sendRoundRobin(packet)
		}
		return nil
	}
}

func (m *Manager) sendAll(packet []byte) {
	now := m.clock.Now()
	sent := 0
	for i := range m.links {
		if m.sendToLink(i, packet, now) {
			sent++
		}
	}
	if sent == 0 {
		m.log.Warn("no remote endpoints to send to")
		m.metrics.IncPacketsDropped()
	}
}

func (m *Manager) sendRoundRobin(packet []byte) {
	now := m.clock.Now()
	n := len(m.links)
	if n == 0 {
		m.log.Warn("no remote endpoints to send to")
		m.metrics.IncPacketsDropped()
		return
	}

	for attempts := 0; attempts < n; attempts++ {
		index, ok := m.nextWeightedIndex(now)
		if !ok {
			break
		}
		if m.sendToLink(index, packet, now) {
			return
		}
	}

	if !m.sendAny(packet, now) {
		m.log.Warn("no remote endpoints to send to")
		m.metrics.IncPacketsDropped()
	}
}

func (m *Manager) sendFailover(packet []byte) {
	now := m.clock.Now()
	if index, ok := m.bestFailoverIndex(now); ok {
		if m.sendToLink(index, packet, now) {
			return
		}
	}
	if !m.sendAny(packet, now) {
		m.log.Warn("no remote endpoints to send to")
		m.metrics.IncPacketsDropped()
	}
}

// nextWeightedIndex implements the weighted round-robin scheduler of
// spec.md §4.4/invariant 5 and resolves the Open Question of spec.md §9 as
// directed: the quota resets whenever the cursor moves to a new link,
// whether that move happens because a quota was exhausted or because the
// cursor skipped an unavailable/zero-weight link.
func (m *Manager) nextWeightedIndex(now time.Time) (int, bool) {
	n := len(m.links)
	if n == 0 {
		return 0, false
	}

	for attempts := 0; attempts < n; attempts++ {
		index := m.nextIndex % n
		link := m.links[index]

		if link.Weight == 0 || !link.IsAvailable(now, m.errorBackoff, m.healthTimeout, m.onMarkDown(link)) {
			m.advanceCursor(n)
			continue
		}

		if m.remainingWeight == 0 {
			m.remainingWeight = link.Weight
		}

		m.remainingWeight--
		if m.remainingWeight == 0 {
			m.advanceCursor(n)
		}
		return index, true
	}

	return 0, false
}

func (m *Manager) bestFailoverIndex(now time.Time) (int, bool) {
	bestIndex := -1
	var bestWeight uint32
	for i, link := range m.links {
		if !link.IsAvailable(now, m.errorBackoff, m.healthTimeout, m.onMarkDown(link)) {
			continue
		}
		if bestIndex == -1 || link.Weight > bestWeight {
			bestIndex = i
			bestWeight = link.Weight
		}
	}
	if bestIndex == -1 {
		return 0, false
	}
	return bestIndex, true
}

func (m *Manager) sendAny(packet []byte, now time.Time) bool {
	for i := range m.links {
		if m.sendToLink(i, packet, now) {
			return true
		}
	}
	return false
}

func (m *Manager) sendToLink(index int, packet []byte, now time.Time) bool {
	link := m.links[index]
	remote := link.Remote()
	if remote == nil {
		return false
	}
	_, err := m.conns[index].WriteTo(packet, remote)
	if err != nil {
		link.RecordSendError(now, m.onMarkDown(link))
		m.metrics.IncLinkSendErr(link.Name)
		return false
	}
	link.RecordSendOK(m.onRecover(link))
	m.metrics.IncLinkSendOK(link.Name)
	return true
}

// sendProbe sends a control-frame packet and updates the same health
// bookkeeping as a data send (a successful probe also proves liveness).
func (m *Manager) sendProbe(index int, packet []byte, now time.Time) bool {
	return m.sendToLink(index, packet, now)
}

func (m *Manager) advanceCursor(n int) {
	m.nextIndex = (m.nextIndex + 1) % n
	m.remainingWeight = 0
}

func (m *Manager) onMarkDown(link *Link) func(string) {
	return func(reason string) {
		m.log.Warn("link marked down", "link", link.Name, "reason", reason)
	}
}

func (m *Manager) onRecover(link *Link) func() {
	return func() {
		m.log.Info("link recovered", "link", link.Name)
	}
}

// String renders a short human summary, for startup and diagnostics logs.
func (l *Link) String() string {
	remote := "none"
	if r := l.Remote(); r != nil {
		remote = r.String()
	}
	return fmt.Sprintf("%s(weight=%d, remote=%s)", l.Name, l.Weight, remote)
}
