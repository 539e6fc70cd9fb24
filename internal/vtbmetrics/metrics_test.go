package vtbmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestDefaultMetricsCounts(t *testing.T) {
	m := NewDefault()
	m.IncLinkSendOK("a")
	m.IncLinkSendOK("a")
	m.IncLinkSendErr("a")
	m.IncLinkRecv("a")
	m.IncPacketsDropped()
	m.IncHandshakeInitiated()
	m.ObserveRTT("a", 42)

	require.Equal(t, int64(2), m.SendOK())
	require.Equal(t, int64(1), m.SendErr())
	require.Equal(t, int64(1), m.Recv())
	require.Equal(t, int64(1), m.Dropped())
	require.Equal(t, int64(1), m.HandshakeInitiated())
	require.Equal(t, uint64(42), m.LastRTTMillis())
}

func TestPrometheusRegistersAndRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheus(reg)

	m.IncLinkSendOK("wifi")
	m.ObserveRTT("wifi", 15)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestNoopMetricsDoesNotPanic(t *testing.T) {
	var m Metrics = Noop{}
	m.IncLinkSendOK("a")
	m.IncLinkSendErr("a")
	m.IncLinkRecv("a")
	m.IncPacketsDropped()
	m.IncHandshakeInitiated()
	m.ObserveRTT("a", 1)
}
