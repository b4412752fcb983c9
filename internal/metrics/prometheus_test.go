package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Exchanges.WithLabelValues("text", OutcomeSuccess).Inc()
	m.DeviceFailures.Inc()
	m.BackendRequests.WithLabelValues("/api/chat", "2xx").Add(2)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Exchanges.WithLabelValues("text", OutcomeSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.DeviceFailures))
	require.Equal(t, 2.0, testutil.ToFloat64(m.BackendRequests.WithLabelValues("/api/chat", "2xx")))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	// a second set on a fresh registry must not collide
	require.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}
