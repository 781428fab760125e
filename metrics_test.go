package procstream

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg))

	// Run a session so the counters have something to show.
	s := spawnSession(t, "echo metered")
	collectEvents(t, s)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string

	for _, fam := range families {
		names = append(names, fam.GetName())
	}

	joined := strings.Join(names, ",")
	assert.Contains(t, joined, "procstream_processes_spawned_total")
	assert.Contains(t, joined, "procstream_bytes_read_total")
}
