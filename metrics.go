package procstream

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wagiedev/procstream-go/internal/metrics"
)

// RegisterMetrics registers the module's Prometheus metrics (spawned and
// terminated processes, bytes, chunks and messages per stream) with the
// given registerer. Metrics are collected whether or not they are
// registered; registration only makes them visible.
func RegisterMetrics(reg prometheus.Registerer) error {
	return metrics.Register(reg)
}
