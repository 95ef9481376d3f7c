package stream

import (
	"sync/atomic"
	"visionstream/internal/model"
)

// FrameCache holds the most recently annotated frame. Stores replace the whole
// frame, so readers never observe a partially written one.
type FrameCache struct {
	last atomic.Pointer[model.Frame]
}

// Store publishes frame as the latest one.
func (c *FrameCache) Store(frame *model.Frame) {
	c.last.Store(frame)
}

// Load returns the latest frame, if any has been published.
func (c *FrameCache) Load() (*model.Frame, bool) {
	frame := c.last.Load()
	return frame, frame != nil
}
