package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const MetricPrefix = "launchpad_"

// Outcomes of a resolution
const (
	ResolutionSucceeded        = "succeeded"
	ResolutionNoClusterMatched = "no_cluster_matched"
	ResolutionNoCommandMatched = "no_command_matched"
	ResolutionError            = "error"
)

var resolutionsCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: MetricPrefix + "resolutions_total",
		Help: "Number of cluster and command resolutions by outcome",
	},
	[]string{"outcome"},
)

var resolutionTierHist = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    MetricPrefix + "resolution_tier",
		Help:    "Index of the cluster criteria tier that resolved a job",
		Buckets: []float64{0, 1, 2, 3, 5, 10},
	},
)

var taskDurationHist = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    MetricPrefix + "setup_task_duration_seconds",
		Help:    "Time taken by a job setup task",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
	},
	[]string{"task", "result"},
)

var stagedFilesCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: MetricPrefix + "staged_files_total",
		Help: "Number of files fetched into job working directories",
	},
	[]string{"entity", "kind"},
)

type Metrics struct {
	gatherer prometheus.Gatherer
}

var m = &Metrics{gatherer: prometheus.DefaultGatherer}

func Get() *Metrics {
	return m
}

func (m *Metrics) RecordResolution(outcome string, tier int) {
	resolutionsCounter.With(map[string]string{"outcome": outcome}).Inc()
	if outcome == ResolutionSucceeded {
		resolutionTierHist.Observe(float64(tier))
	}
}

func (m *Metrics) RecordTask(task string, duration time.Duration, err error) {
	result := "succeeded"
	if err != nil {
		result = "failed"
	}
	taskDurationHist.With(map[string]string{"task": task, "result": result}).Observe(duration.Seconds())
}

func (m *Metrics) RecordStagedFile(entity string, kind string) {
	stagedFilesCounter.With(map[string]string{"entity": entity, "kind": kind}).Inc()
}

// WriteTextfile writes all registered metrics to path in the prometheus text format,
// for collection by the node exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return errors.WithStack(prometheus.WriteToTextfile(path, m.gatherer))
}
