package model

import "time"

// Frame is an annotated, already encoded camera frame. It is immutable once
// published; the pixel data it came from belongs to the capture session.
type Frame struct {
	Seq        uint64
	CapturedAt time.Time
	Width      int
	Height     int
	JPEG       []byte
	Detections []Detection
}
