package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// File processing metrics
	FilesProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "massbalance_files_processed_total",
		Help: "Total number of drawings processed",
	})

	FilesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "massbalance_files_failed_total",
		Help: "Drawings that could not be processed, by cause",
	}, []string{"cause"})

	FileProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "massbalance_file_processing_duration_seconds",
		Help:    "Time taken to process a single drawing",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	})

	// Section and bin metrics
	SectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "massbalance_sections_total",
		Help: "Sections processed, by outcome",
	}, []string{"status"})

	BinsIntegratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "massbalance_bins_integrated_total",
		Help: "Total number of bins integrated",
	})

	CoverageErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "massbalance_coverage_errors_total",
		Help: "Bins without grade or terrain coverage",
	})

	// Worker pool metrics
	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "massbalance_active_workers",
		Help: "Current number of active workers",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "massbalance_queue_depth",
		Help: "Current depth of the file processing queue",
	})

	// Sinks
	SinkWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "massbalance_sink_writes_total",
		Help: "Results written to each sink",
	}, []string{"sink"})

	SinkErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "massbalance_sink_errors_total",
		Help: "Failed result writes, by sink",
	}, []string{"sink"})

	SinkWriteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "massbalance_sink_write_duration_seconds",
		Help:    "Time taken to hand a result to a sink",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"sink"})

	// Job queue
	JobsReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "massbalance_jobs_received_total",
		Help: "Calculation jobs consumed from RabbitMQ, by outcome",
	}, []string{"outcome"})
)
