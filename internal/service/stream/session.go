// Package stream implements the capture loop: it pulls frames from a camera,
// runs them through the detection pipeline and hands them out one encoded
// part at a time, so the consumer's pace sets the capture rate.
package stream

import (
	"context"
	"io"
	"sync"
	"time"
	"visionstream/internal/logger"
	"visionstream/internal/metrics"
	"visionstream/internal/model"
	"visionstream/internal/service/ai"

	"gocv.io/x/gocv"
)

// JPEGContentType is the content type of every part.
const JPEGContentType = "image/jpeg"

// State is the position of a session in its capture cycle.
type State int

const (
	Idle State = iota
	Capturing
	Captured
	Annotated
	Encoded
	Emitted
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Captured:
		return "captured"
	case Annotated:
		return "annotated"
	case Encoded:
		return "encoded"
	case Emitted:
		return "emitted"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Processor detects and annotates a frame in place.
type Processor interface {
	Process(frame *gocv.Mat) []model.Detection
}

// Observer is told about every frame before it is emitted. Observers must not
// block and must treat the frame as read-only.
type Observer func(frame *model.Frame)

// Options tune a session.
type Options struct {
	JPEGQuality int
	// MaxEmptyFrames is how many consecutive empty reads are skipped before
	// the session stops.
	MaxEmptyFrames int
}

// Session is one stream consumer's capture loop. It owns its frame source
// and is not safe for concurrent use.
type Session struct {
	source    FrameSource
	processor Processor
	observers []Observer
	options   Options
	logger    *logger.Logger
	metrics   *metrics.Metrics

	frame gocv.Mat
	state State
	seq   uint64
	empty int

	onClose   func()
	closeOnce sync.Once
	closeErr  error
}

// NewSession creates a session over an already acquired source. The session
// takes ownership of source and releases it in Close.
func NewSession(source FrameSource, processor Processor, options Options, logger *logger.Logger, metrics *metrics.Metrics, observers ...Observer) *Session {
	return &Session{
		source:    source,
		processor: processor,
		observers: observers,
		options:   options,
		logger:    logger,
		metrics:   metrics,
		frame:     gocv.NewMat(),
		state:     Idle,
	}
}

// OnClose registers fn to run once when the session is closed.
func (s *Session) OnClose(fn func()) {
	s.onClose = fn
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Emitted returns the number of parts produced so far.
func (s *Session) Emitted() uint64 {
	return s.seq
}

// Next runs capture cycles until one produces a part. It returns io.EOF once
// the source has ended and ctx.Err() when ctx is done; in both cases the
// session is closed.
func (s *Session) Next(ctx context.Context) (Part, error) {
	for {
		if s.state == Stopped {
			return Part{}, io.EOF
		}
		if err := ctx.Err(); err != nil {
			s.logger.Info("Stream consumer gone after %d frames", s.seq)
			s.Close()
			return Part{}, err
		}

		s.state = Capturing
		if ok := s.source.Read(&s.frame); !ok {
			s.logger.Info("Camera source ended after %d frames", s.seq)
			s.Close()
			return Part{}, io.EOF
		}
		if s.frame.Empty() {
			s.metrics.EmptyFrames.Inc()
			s.empty++
			if s.empty > s.options.MaxEmptyFrames {
				s.logger.Warning("Camera returned %d empty frames in a row, ending stream", s.empty)
				s.Close()
				return Part{}, io.EOF
			}
			continue
		}
		s.empty = 0
		s.state = Captured
		s.metrics.FramesCaptured.Inc()
		capturedAt := time.Now()

		detections := s.processor.Process(&s.frame)
		s.state = Annotated

		data, err := ai.EncodeJPEG(s.frame, s.options.JPEGQuality)
		if err != nil {
			s.logger.Error("Dropping frame: %v", err)
			s.metrics.EncodeFailures.Inc()
			continue
		}
		s.state = Encoded

		s.seq++
		frame := &model.Frame{
			Seq:        s.seq,
			CapturedAt: capturedAt,
			Width:      s.frame.Cols(),
			Height:     s.frame.Rows(),
			JPEG:       data,
			Detections: detections,
		}
		for _, observe := range s.observers {
			observe(frame)
		}

		s.state = Emitted
		s.metrics.FramesEmitted.Inc()
		return Part{Seq: s.seq, ContentType: JPEGContentType, Body: data}, nil
	}
}

// Close stops the session and releases the camera. It is safe to call more
// than once; later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.state = Stopped
		s.closeErr = s.source.Close()
		s.frame.Close()
		if s.onClose != nil {
			s.onClose()
		}
	})
	return s.closeErr
}
