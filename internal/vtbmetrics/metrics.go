// Package vtbmetrics tracks per-link send/receive/drop counters and RTT
// samples. Adapted from the transaction-counter shape the teacher library
// uses for its storage-backed transports, generalized from per-transaction
// byte counters to per-link dataplane counters.
package vtbmetrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is implemented by anything that wants to observe LinkManager and
// Supervisor activity. Drivers/links call Inc*/Observe*; collectors read via
// a concrete implementation's own accessors (DefaultMetrics) or by scraping
// (Prometheus).
type Metrics interface {
	IncLinkSendOK(link string)
	IncLinkSendErr(link string)
	IncLinkRecv(link string)
	IncPacketsDropped()
	IncHandshakeInitiated()
	ObserveRTT(link string, ms uint64)
}

// DefaultMetrics implements Metrics with atomic counters, in the same style
// as the teacher's DefaultMetrics. Used directly in tests; components built
// without a Metrics fall back to Noop, not to DefaultMetrics.
type DefaultMetrics struct {
	sendOK             atomic.Int64
	sendErr            atomic.Int64
	recv               atomic.Int64
	dropped            atomic.Int64
	handshakeInitiated atomic.Int64
	lastRTTMillis      atomic.Uint64
}

// NewDefault creates a new DefaultMetrics instance.
func NewDefault() *DefaultMetrics { return &DefaultMetrics{} }

func (m *DefaultMetrics) IncLinkSendOK(string)           { m.sendOK.Add(1) }
func (m *DefaultMetrics) IncLinkSendErr(string)          { m.sendErr.Add(1) }
func (m *DefaultMetrics) IncLinkRecv(string)             { m.recv.Add(1) }
func (m *DefaultMetrics) IncPacketsDropped()             { m.dropped.Add(1) }
func (m *DefaultMetrics) IncHandshakeInitiated()         { m.handshakeInitiated.Add(1) }
func (m *DefaultMetrics) ObserveRTT(_ string, ms uint64) { m.lastRTTMillis.Store(ms) }

func (m *DefaultMetrics) SendOK() int64             { return m.sendOK.Load() }
func (m *DefaultMetrics) SendErr() int64            { return m.sendErr.Load() }
func (m *DefaultMetrics) Recv() int64               { return m.recv.Load() }
func (m *DefaultMetrics) Dropped() int64            { return m.dropped.Load() }
func (m *DefaultMetrics) HandshakeInitiated() int64 { return m.handshakeInitiated.Load() }
func (m *DefaultMetrics) LastRTTMillis() uint64     { return m.lastRTTMillis.Load() }

// Prometheus implements Metrics by registering labeled counter/gauge vectors
// on the supplied registry, in the same spirit as the doublezero pack's use
// of prometheus/client_golang for service telemetry.
type Prometheus struct {
	sendOK             *prometheus.CounterVec
	sendErr            *prometheus.CounterVec
	recv               *prometheus.CounterVec
	dropped            prometheus.Counter
	handshakeInitiated prometheus.Counter
	rtt                *prometheus.GaugeVec
}

// NewPrometheus registers the vtbond dataplane metric families on reg and
// returns a Metrics implementation backed by them.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		sendOK: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vtbond",
			Subsystem: "link",
			Name:      "send_ok_total",
			Help:      "Successful sends per link.",
		}, []string{"link"}),
		sendErr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vtbond",
			Subsystem: "link",
			Name:      "send_err_total",
			Help:      "Failed sends per link.",
		}, []string{"link"}),
		recv: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vtbond",
			Subsystem: "link",
			Name:      "recv_total",
			Help:      "Datagrams received per link.",
		}, []string{"link"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vtbond",
			Name:      "packets_dropped_total",
			Help:      "Packets dropped: no link available, undecryptable inbound, or outbound before the handshake completed.",
		}),
		handshakeInitiated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vtbond",
			Name:      "handshake_initiated_total",
			Help:      "Noise handshake initiations sent.",
		}),
		rtt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "vtbond",
			Subsystem: "link",
			Name:      "rtt_ms",
			Help:      "Most recent control-channel RTT per link, in milliseconds.",
		}, []string{"link"}),
	}
	reg.MustRegister(p.sendOK, p.sendErr, p.recv, p.dropped, p.handshakeInitiated, p.rtt)
	return p
}

func (p *Prometheus) IncLinkSendOK(link string)      { p.sendOK.WithLabelValues(link).Inc() }
func (p *Prometheus) IncLinkSendErr(link string)     { p.sendErr.WithLabelValues(link).Inc() }
func (p *Prometheus) IncLinkRecv(link string)        { p.recv.WithLabelValues(link).Inc() }
func (p *Prometheus) IncPacketsDropped()             { p.dropped.Inc() }
func (p *Prometheus) IncHandshakeInitiated()         { p.handshakeInitiated.Inc() }
func (p *Prometheus) ObserveRTT(link string, ms uint64) {
	p.rtt.WithLabelValues(link).Set(float64(ms))
}

// Noop discards every observation. Used as a safe zero value for components
// constructed without a Metrics dependency.
type Noop struct{}

func (Noop) IncLinkSendOK(string)       {}
func (Noop) IncLinkSendErr(string)      {}
func (Noop) IncLinkRecv(string)         {}
func (Noop) IncPacketsDropped()         {}
func (Noop) IncHandshakeInitiated()     {}
func (Noop) ObserveRTT(string, uint64)  {}
