package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPipelineCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPipeline(reg)

	p.GamesSeen.Inc()
	p.Settlements.WithLabelValues("settled").Inc()
	p.Settlements.WithLabelValues("settled").Inc()
	p.Errors.WithLabelValues("request").Inc()
	p.Pending.Set(4)

	require.Equal(t, 1.0, testutil.ToFloat64(p.GamesSeen))
	require.Equal(t, 2.0, testutil.ToFloat64(p.Settlements.WithLabelValues("settled")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.Errors.WithLabelValues("request")))
	require.Equal(t, 4.0, testutil.ToFloat64(p.Pending))
}
