package ai

import (
	"time"
	"visionstream/internal/logger"
	"visionstream/internal/metrics"
	"visionstream/internal/model"

	"gocv.io/x/gocv"
)

// Pipeline runs detection and annotation for one frame. Failures inside either
// step never reach the caller: a failed inference yields no detections and a
// failed annotation leaves the frame as it is.
type Pipeline struct {
	detector  Detector
	annotator *Annotator
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

// NewPipeline creates a Pipeline.
func NewPipeline(detector Detector, annotator *Annotator, logger *logger.Logger, metrics *metrics.Metrics) *Pipeline {
	return &Pipeline{
		detector:  detector,
		annotator: annotator,
		logger:    logger,
		metrics:   metrics,
	}
}

// Process detects objects in frame, annotates it in place and returns the detections.
func (p *Pipeline) Process(frame *gocv.Mat) []model.Detection {
	detections := p.detect(*frame)
	p.annotate(frame, detections)
	return detections
}

// detect calls the detector, converting errors and panics into no detections.
func (p *Pipeline) detect(frame gocv.Mat) (detections []model.Detection) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Inference panicked: %v", r)
			p.metrics.InferenceFailures.Inc()
			detections = nil
		}
	}()

	detections, err := p.detector.Detect(frame)
	p.metrics.InferenceDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.logger.Warning("Inference failed, continuing without detections: %v", err)
		p.metrics.InferenceFailures.Inc()
		return nil
	}

	for _, det := range detections {
		p.metrics.Detections.WithLabelValues(det.Label).Inc()
	}
	return detections
}

func (p *Pipeline) annotate(frame *gocv.Mat, detections []model.Detection) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Annotation panicked: %v", r)
		}
	}()
	p.annotator.Annotate(frame, detections)
}

// Annotator returns the annotator used by the pipeline.
func (p *Pipeline) Annotator() *Annotator {
	return p.annotator
}
