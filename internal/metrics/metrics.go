// Package metrics holds the prometheus collectors of the capture pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "visionstream"

// Metrics groups the pipeline counters.
type Metrics struct {
	FramesCaptured    prometheus.Counter
	FramesEmitted     prometheus.Counter
	EmptyFrames       prometheus.Counter
	EncodeFailures    prometheus.Counter
	InferenceFailures prometheus.Counter
	InferenceDuration prometheus.Histogram
	Detections        *prometheus.CounterVec
	Snapshots         prometheus.Counter
	Uploads           *prometheus.CounterVec
	ActiveStreams     prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FramesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_captured_total",
			Help:      "Frames read from the camera.",
		}),
		FramesEmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_emitted_total",
			Help:      "Annotated frames written to stream consumers.",
		}),
		EmptyFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_frames_total",
			Help:      "Successful camera reads that returned an empty frame.",
		}),
		EncodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encode_failures_total",
			Help:      "Frames dropped because JPEG encoding failed.",
		}),
		InferenceFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_failures_total",
			Help:      "Inference passes that failed and were treated as no detections.",
		}),
		InferenceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Time spent in the detector per frame.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		Detections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Detections by class label.",
		}, []string{"label"}),
		Snapshots: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Snapshots archived.",
		}),
		Uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Single-image inference requests by result.",
		}, []string{"result"}),
		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Stream sessions currently open.",
		}),
	}
}

// NewNop returns metrics registered with a private registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
