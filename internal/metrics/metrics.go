// Package metrics provides Prometheus instrumentation for process sessions.
//
// Counters are always incremented; they only become visible once the caller
// registers them with a Prometheus registry via Register.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	processesSpawned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "procstream_processes_spawned_total",
			Help: "Total child processes spawned",
		},
	)

	processesTerminated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "procstream_processes_terminated_total",
			Help: "Total best-effort terminations issued",
		},
	)

	bytesRead = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procstream_bytes_read_total",
			Help: "Total bytes read from child output streams",
		},
		[]string{"stream"},
	)

	chunksDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procstream_chunks_delivered_total",
			Help: "Total chunks handed off from stream readers to the consumer",
		},
		[]string{"stream"},
	)

	messagesParsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procstream_messages_parsed_total",
			Help: "Total delimited messages assembled from child output",
		},
		[]string{"stream"},
	)
)

// Register registers all session metrics with the given registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		processesSpawned,
		processesTerminated,
		bytesRead,
		chunksDelivered,
		messagesParsed,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}

	return nil
}

// streamLabel maps the is-stderr flag to the metric label value.
func streamLabel(stderr bool) string {
	if stderr {
		return "stderr"
	}

	return "stdout"
}

// ProcessSpawned records a successful spawn.
func ProcessSpawned() {
	processesSpawned.Inc()
}

// ProcessTerminated records a best-effort termination attempt.
func ProcessTerminated() {
	processesTerminated.Inc()
}

// BytesRead records bytes read from one output stream.
func BytesRead(stderr bool, n int) {
	bytesRead.WithLabelValues(streamLabel(stderr)).Add(float64(n))
}

// ChunkDelivered records one chunk handed off to the consumer.
func ChunkDelivered(stderr bool) {
	chunksDelivered.WithLabelValues(streamLabel(stderr)).Inc()
}

// MessagesParsed records delimited messages assembled from one stream.
func MessagesParsed(stderr bool, n int) {
	if n > 0 {
		messagesParsed.WithLabelValues(streamLabel(stderr)).Add(float64(n))
	}
}
