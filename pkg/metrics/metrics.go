package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every quorum-rescue metric
var Registry = prometheus.NewRegistry()

var (
	// Procedure metrics
	StepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quorum_rescue_step_duration_seconds",
			Help:    "Duration of each recovery step in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 15, 30, 60},
		},
		[]string{"operation", "step"},
	)

	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorum_rescue_operations_total",
			Help: "Total number of operations by result",
		},
		[]string{"operation", "result"},
	)

	BackupsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quorum_rescue_backups_total",
			Help: "Total number of configuration snapshots written",
		},
	)

	// Service metrics
	ServiceState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quorum_rescue_service_state",
			Help: "Filesystem daemon mode (0 = stopped, 1 = local-authoritative, 2 = normal)",
		},
	)
)

// Operation results
const (
	ResultSuccess = "success"
	ResultNoop    = "noop"
	ResultFailure = "failure"
)

func init() {
	// Register all metrics
	Registry.MustRegister(StepDuration)
	Registry.MustRegister(OperationsTotal)
	Registry.MustRegister(BackupsTotal)
	Registry.MustRegister(ServiceState)
}

// WriteTextfile writes the registry to path in the text exposition format.
// The write is atomic, so node_exporter never reads a partial file.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
