package stream

import (
	"net/http"
	"sync"
	"visionstream/internal/logger"
	"visionstream/internal/model"
)

// Preview fans the frames of the running session out to any number of
// read-only viewers. Each viewer holds at most one pending frame; a viewer
// that falls behind skips to the newest one.
type Preview struct {
	mu      sync.Mutex
	viewers map[chan *model.Frame]struct{}
	logger  *logger.Logger
}

func NewPreview(logger *logger.Logger) *Preview {
	return &Preview{
		viewers: make(map[chan *model.Frame]struct{}),
		logger:  logger,
	}
}

// Publish hands frame to every viewer without waiting on any of them.
func (p *Preview) Publish(frame *model.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for ch := range p.viewers {
		select {
		case ch <- frame:
			continue
		default:
		}
		// Replace the stale pending frame.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- frame:
		default:
		}
	}
}

// Viewers returns the number of connected viewers.
func (p *Preview) Viewers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.viewers)
}

func (p *Preview) subscribe() chan *model.Frame {
	ch := make(chan *model.Frame, 1)
	p.mu.Lock()
	p.viewers[ch] = struct{}{}
	p.mu.Unlock()
	return ch
}

func (p *Preview) unsubscribe(ch chan *model.Frame) {
	p.mu.Lock()
	delete(p.viewers, ch)
	p.mu.Unlock()
}

// ServeHTTP streams published frames until the client leaves or the request
// context ends. It never opens the camera itself.
func (p *Preview) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ch := p.subscribe()
	defer p.unsubscribe(ch)

	w.Header().Set("Content-Type", MediaType)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	p.logger.Info("Preview viewer %s connected", r.RemoteAddr)
	defer p.logger.Info("Preview viewer %s disconnected", r.RemoteAddr)

	writer := NewPartWriter(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case frame := <-ch:
			part := Part{Seq: frame.Seq, ContentType: JPEGContentType, Body: frame.JPEG}
			if err := writer.WritePart(part); err != nil {
				return
			}
		}
	}
}
