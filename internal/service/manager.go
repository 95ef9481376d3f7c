package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"visionstream/internal/config"
	"visionstream/internal/logger"
	"visionstream/internal/metrics"
	"visionstream/internal/model"
	"visionstream/internal/service/ai"
	"visionstream/internal/service/storage"
	"visionstream/internal/service/stream"
	"visionstream/internal/service/websocket"
)

var (
	ErrStreamBusy   = errors.New("stream already has a consumer")
	ErrShuttingDown = errors.New("pipeline is shutting down")
)

// InferenceResult is the outcome of a single-image inference.
type InferenceResult struct {
	Image      []byte
	Width      int
	Height     int
	Detections []model.Detection
}

// Manager owns the shared pipeline pieces and hands out stream sessions.
type Manager struct {
	pipeline         *ai.Pipeline
	archiver         *storage.Archiver
	websocketService *websocket.HubService
	preview          *stream.Preview
	cache            *stream.FrameCache
	openCamera       stream.SourceOpener
	config           *config.Config
	logger           *logger.Logger
	metrics          *metrics.Metrics

	streaming atomic.Bool

	// Users of the pipeline still running; Drain waits for them.
	mu       sync.Mutex
	active   int
	draining bool
	idle     chan struct{}
}

func NewManager(pipeline *ai.Pipeline, archiver *storage.Archiver, websocketService *websocket.HubService, openCamera stream.SourceOpener, config *config.Config, logger *logger.Logger, metrics *metrics.Metrics) *Manager {
	return &Manager{
		pipeline:         pipeline,
		archiver:         archiver,
		websocketService: websocketService,
		preview:          stream.NewPreview(logger),
		cache:            &stream.FrameCache{},
		openCamera:       openCamera,
		config:           config,
		logger:           logger,
		metrics:          metrics,
		idle:             make(chan struct{}),
	}
}

// OpenStream acquires the camera and returns a session feeding the frame
// cache, the MJPEG preview and the websocket viewers. Only one session may be
// open at a time; the caller must Close it.
func (m *Manager) OpenStream(ctx context.Context) (*stream.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !m.streaming.CompareAndSwap(false, true) {
		return nil, ErrStreamBusy
	}
	if !m.acquire() {
		m.streaming.Store(false)
		return nil, ErrShuttingDown
	}

	source, err := stream.Acquire(m.openCamera, m.config.CameraIndex, m.config.FallbackCameraIndex, m.logger)
	if err != nil {
		m.streaming.Store(false)
		m.release()
		return nil, err
	}

	options := stream.Options{
		JPEGQuality:    m.config.JPEGQuality,
		MaxEmptyFrames: m.config.MaxEmptyFrames,
	}
	session := stream.NewSession(source, m.pipeline, options, m.logger, m.metrics,
		m.cache.Store,
		m.preview.Publish,
		m.websocketService.BroadcastFrame,
	)

	m.metrics.ActiveStreams.Inc()
	session.OnClose(func() {
		m.metrics.ActiveStreams.Dec()
		m.streaming.Store(false)
		m.release()
	})
	return session, nil
}

func (m *Manager) acquire() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draining {
		return false
	}
	m.active++
	return true
}

func (m *Manager) release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active--
	if m.draining && m.active == 0 {
		close(m.idle)
	}
}

// Drain refuses new streams and inferences and waits up to timeout for the
// running ones to finish. It reports whether the pipeline is idle, after
// which the detector may be released.
func (m *Manager) Drain(timeout time.Duration) bool {
	m.mu.Lock()
	if !m.draining {
		m.draining = true
		if m.active == 0 {
			close(m.idle)
		}
	}
	m.mu.Unlock()

	select {
	case <-m.idle:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Capture archives the latest annotated frame and returns its path.
func (m *Manager) Capture() (string, error) {
	frame, ok := m.cache.Load()
	if !ok {
		return "", storage.ErrNoFrameAvailable
	}
	return m.archiver.Archive(frame)
}

// InferOnce detects and annotates a single encoded image. It shares the
// detector with the live stream but leaves the frame cache alone.
func (m *Manager) InferOnce(data []byte) (*InferenceResult, error) {
	if !m.acquire() {
		return nil, ErrShuttingDown
	}
	defer m.release()

	frame, err := ai.DecodeImage(data)
	if err != nil {
		m.metrics.Uploads.WithLabelValues("rejected").Inc()
		return nil, err
	}
	defer frame.Close()

	detections := m.pipeline.Process(&frame)

	encoded, err := ai.EncodeJPEG(frame, m.config.JPEGQuality)
	if err != nil {
		m.metrics.Uploads.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	m.metrics.Uploads.WithLabelValues("ok").Inc()
	return &InferenceResult{
		Image:      encoded,
		Width:      frame.Cols(),
		Height:     frame.Rows(),
		Detections: detections,
	}, nil
}

// LastFrame returns the most recent annotated frame, if any.
func (m *Manager) LastFrame() (*model.Frame, bool) {
	return m.cache.Load()
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.websocketService
}

func (m *Manager) GetArchiver() *storage.Archiver {
	return m.archiver
}

// GetPreview returns the MJPEG fan-out handler of the live stream.
func (m *Manager) GetPreview() *stream.Preview {
	return m.preview
}
