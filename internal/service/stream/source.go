package stream

import (
	"errors"
	"fmt"
	"visionstream/internal/logger"

	"gocv.io/x/gocv"
)

var ErrCameraUnavailable = errors.New("camera unavailable")

// FrameSource yields raw frames. Read blocks until a frame is available and
// returns false once the source has ended or disconnected.
// *gocv.VideoCapture satisfies it.
type FrameSource interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// SourceOpener opens the source with the given device index.
type SourceOpener func(index int) (FrameSource, error)

// OpenCamera opens a local capture device.
func OpenCamera(index int) (FrameSource, error) {
	capture, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %v", ErrCameraUnavailable, index, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: device %d not opened", ErrCameraUnavailable, index)
	}
	return capture, nil
}

// Acquire opens the configured device, falling back to the fallback index
// exactly once before giving up. A fallback equal to index is not retried.
func Acquire(open SourceOpener, index, fallback int, logger *logger.Logger) (FrameSource, error) {
	source, err := open(index)
	if err == nil {
		logger.Info("Camera %d opened", index)
		return source, nil
	}
	if fallback == index {
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}

	logger.Warning("Camera %d unavailable (%v), falling back to camera %d", index, err, fallback)
	source, fallbackErr := open(fallback)
	if fallbackErr != nil {
		return nil, fmt.Errorf("%w: %v; fallback: %v", ErrCameraUnavailable, err, fallbackErr)
	}
	logger.Info("Camera %d opened", fallback)
	return source, nil
}
