package proctrack

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	suppressedErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proctrack_suppressed_kernel_errors_total",
			Help: "Kernel facility errors mapped to success by lifecycle policy",
		},
		[]string{"op"},
	)

	attachMoves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proctrack_attach_moves_total",
		Help: "Processes detached from a stale container and reattached",
	})

	createWorkers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proctrack_create_workers_total",
			Help: "Creation workers spawned, by result",
		},
		[]string{"result"},
	)
)

// suppressed records a kernel error that lifecycle policy turned into
// success.
func suppressed(op string) {
	suppressedErrors.WithLabelValues(op).Inc()
}
