// Package supervisor owns the single-threaded event loop that drives the
// whole daemon: reading the TUN device, receiving from every bonded link,
// driving the Noise handshake/rekey timer, and emitting health probes.
// Grounded on original_source/src/wireguard.rs's run() tokio::select!
// loop, rewritten around goroutines and channels: one receive-fan-in
// goroutine per link pushes onto a single bounded queue, and everything
// else happens on the Supervisor's own goroutine, which is therefore the
// sole mutator of bond.Manager and noiseik.Driver (spec.md §5).
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vtbond/vtbond/internal/bond"
	"github.com/vtbond/vtbond/internal/noiseik"
	"github.com/vtbond/vtbond/internal/tunio"
	"github.com/vtbond/vtbond/internal/vtbmetrics"
)

// queueDepth bounds the receive fan-in queue (spec.md §5): a slow
// Supervisor applies backpressure to receive tasks rather than let memory
// grow unboundedly.
const queueDepth = 1024

// noiseTickInterval is how often the Supervisor checks whether the Noise
// session needs a rekey, mirroring the Rust implementation's 250ms timer.
const noiseTickInterval = 250 * time.Millisecond

// Supervisor drives the daemon's main loop.
type Supervisor struct {
	tun     tunio.Device
	manager *bond.Manager
	noise   *noiseik.Driver

	healthInterval time.Duration

	clock   clockwork.Clock
	log     *slog.Logger
	metrics vtbmetrics.Metrics

	queue chan bond.NetPacket
}

// Conn is the read side a receive task pumps: the UDP socket for one
// bonded link.
type Conn interface {
	ReadFrom(p []byte) (int, net.Addr, error)
}

// New builds a Supervisor. The read side of each link's socket is
// supplied separately to Run, since this package only needs ReadFrom
// (the Manager already owns the write side via bond.Sender).
func New(tun tunio.Device, manager *bond.Manager, noise *noiseik.Driver, healthInterval time.Duration, clock clockwork.Clock, log *slog.Logger, metrics vtbmetrics.Metrics) *Supervisor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if metrics == nil {
		metrics = vtbmetrics.Noop{}
	}
	return &Supervisor{
		tun:            tun,
		manager:        manager,
		noise:          noise,
		healthInterval: healthInterval,
		clock:          clock,
		log:            log,
		metrics:        metrics,
		queue:          make(chan bond.NetPacket, queueDepth),
	}
}

// Run drives the event loop until ctx is canceled. It starts one receive
// task per link, issues the initial handshake if a link already has a
// remote endpoint, and then selects across the TUN device, the receive
// queue, the Noise rekey timer, and (if enabled) the health-probe timer.
func (s *Supervisor) Run(ctx context.Context, conns []Conn) error {
	if len(conns) != len(s.manager.Links()) {
		return fmt.Errorf("supervisor: %d conns for %d links", len(conns), len(s.manager.Links()))
	}

	for i, conn := range conns {
		go s.pumpLink(ctx, i, conn)
	}

	if s.manager.HasEndpoints() {
		if err := s.sendHandshakeInitiation(); err != nil {
			s.log.Warn("initial handshake failed", "error", err)
		}
	}

	noiseTicker := s.clock.NewTicker(noiseTickInterval)
	defer noiseTicker.Stop()

	var healthChan <-chan time.Time
	if s.healthInterval > 0 {
		healthTicker := s.clock.NewTicker(s.healthInterval)
		defer healthTicker.Stop()
		healthChan = healthTicker.Chan()
	}

	tunPackets := make(chan []byte)
	tunErrs := make(chan error, 1)
	go s.pumpTUN(ctx, tunPackets, tunErrs)

	for {
		select {
		case <-ctx.Done():
			return nil

		case packet := <-s.queue:
			s.handleIncoming(packet)

		case packet := <-tunPackets:
			s.handleOutgoing(packet)

		case err := <-tunErrs:
			return fmt.Errorf("tun read: %w", err)

		case <-noiseTicker.Chan():
			if s.manager.HasEndpoints() && s.noise.UpdateTimers(s.clock.Now()) {
				if err := s.sendHandshakeInitiation(); err != nil {
					s.log.Warn("rekey handshake failed", "error", err)
				}
			}

		case <-healthChan:
			s.manager.SendHealthPings(uint64(s.clock.Now().UnixMilli()))
		}
	}
}

// pumpLink is the per-link receive fan-in task: it blocks on the socket,
// and pushes every datagram onto the shared queue (blocking if full,
// applying backpressure per spec.md §5). Per spec.md §4.5/§4.8, the task
// terminates on any fatal socket error — it does not spin retrying a
// socket that will never recover (e.g. net.ErrClosed) — mirroring
// original_source/src/wireguard.rs's receive task, which breaks its loop
// on any recv_from error. The link simply stops receiving; this does not
// terminate the Supervisor.
func (s *Supervisor) pumpLink(ctx context.Context, index int, conn Conn) {
	buf := make([]byte, 65536)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("link read error, retiring receive task", "link", s.manager.Links()[index].Name, "error", err)
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case s.queue <- bond.NetPacket{LinkIndex: index, Src: addr, Data: data}:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Supervisor) pumpTUN(ctx context.Context, out chan<- []byte, errs chan<- error) {
	buf := make([]byte, 65536)
	for {
		n, err := s.tun.ReadPacket(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case errs <- err:
			case <-ctx.Done():
			}
			return
		}
		if n == 0 {
			continue
		}
		packet := make([]byte, n)
		copy(packet, buf[:n])
		select {
		case out <- packet:
		case <-ctx.Done():
			return
		}
	}
}

// handleIncoming implements spec.md §4.4/§4.5's dispatch: control frames
// are consumed by the Manager; everything else reaches the Noise driver,
// which either yields application plaintext for the TUN device or
// consumes a handshake-phase message and perhaps produces a reply, which
// SendPacket (as for any handshake packet) sends on every link.
func (s *Supervisor) handleIncoming(packet bond.NetPacket) {
	now := s.clock.Now()
	s.manager.UpdateRemote(packet.LinkIndex, packet.Src, now)

	if s.manager.HandleControlPacket(packet.LinkIndex, packet.Data, uint64(now.UnixMilli())) {
		return
	}

	plaintext, reply, err := s.noise.Decapsulate(packet.Data, now)
	if err != nil {
		s.log.Warn("dropping undecryptable packet", "link", packet.LinkIndex, "error", err)
		s.metrics.IncPacketsDropped()
		return
	}
	if reply != nil {
		if err := s.manager.SendPacket(reply); err != nil {
			s.log.Warn("sending handshake reply failed", "error", err)
		}
		return
	}
	if plaintext == nil {
		return
	}
	if err := s.tun.WritePacket(plaintext); err != nil {
		s.log.Warn("writing to tun failed", "error", err)
	}
}

func (s *Supervisor) handleOutgoing(packet []byte) {
	if !s.noise.IsComplete() {
		s.log.Debug("dropping outbound packet: handshake not complete")
		s.metrics.IncPacketsDropped()
		return
	}
	framed, err := s.noise.Encapsulate(packet)
	if err != nil {
		s.log.Warn("encapsulating outbound packet failed", "error", err)
		return
	}
	if err := s.manager.SendPacket(framed); err != nil {
		s.log.Warn("sending outbound packet failed", "error", err)
	}
}

func (s *Supervisor) sendHandshakeInitiation() error {
	msg, err := s.noise.FormatHandshakeInitiation(s.clock.Now())
	if err != nil {
		return err
	}
	s.metrics.IncHandshakeInitiated()
	return s.manager.SendPacket(msg)
}
