package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	stageRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "transpilectl",
			Subsystem: "stage",
			Name:      "runs_total",
			Help:      "Stage runs by outcome and failure kind.",
		},
		[]string{"stage", "outcome", "kind"},
	)
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "transpilectl",
			Subsystem: "stage",
			Name:      "duration_seconds",
			Help:      "Stage wall time in seconds, tool invocation included.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage", "outcome"},
	)
	pipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "transpilectl",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs by transpile success and validation result.",
		},
		[]string{"success", "validation"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(stageRuns, stageDuration, pipelineRuns)
	})
}

// RecordStage counts one classified stage. kind is empty on success.
func RecordStage(stage, outcome, kind string, duration time.Duration) {
	RegisterMetrics()
	if kind == "" {
		kind = "none"
	}
	stageRuns.WithLabelValues(stage, outcome, kind).Inc()
	stageDuration.WithLabelValues(stage, outcome).Observe(duration.Seconds())
}

// RecordPipeline counts one pipeline run. validation is nil when the
// validate stage did not run.
func RecordPipeline(success bool, validation *bool) {
	RegisterMetrics()
	validationLabel := "skipped"
	if validation != nil {
		validationLabel = strconv.FormatBool(*validation)
	}
	pipelineRuns.WithLabelValues(strconv.FormatBool(success), validationLabel).Inc()
}

// WriteTextfile dumps the default registry in the node_exporter textfile
// format. One-shot runs have no scrape window, so this is how their metrics
// leave the process.
func WriteTextfile(path string) error {
	RegisterMetrics()
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
