package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"visionstream/internal/logger"
	"visionstream/internal/metrics"
	"visionstream/internal/model"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// fakeSource yields frames whose top-left pixel encodes the frame number, then ends.
type fakeSource struct {
	frames  int
	glitch  map[int]bool // reads that return an empty frame
	reads   int
	served  int
	closed  int
	onRead  func(n int)
	closeFn func() error
}

func (f *fakeSource) Read(m *gocv.Mat) bool {
	f.reads++
	if f.onRead != nil {
		f.onRead(f.reads)
	}
	if f.glitch[f.reads] {
		m.Close()
		*m = gocv.NewMat()
		return true
	}
	if f.served >= f.frames {
		return false
	}
	f.served++
	value := float64(f.served * 10)
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, value, value, 0), 24, 32, gocv.MatTypeCV8UC3)
	defer frame.Close()
	frame.CopyTo(m)
	return true
}

func (f *fakeSource) Close() error {
	f.closed++
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fakeProcessor struct {
	calls int
}

func (p *fakeProcessor) Process(frame *gocv.Mat) []model.Detection {
	p.calls++
	return []model.Detection{{Box: model.Box{X2: 4, Y2: 4}, Label: "mask", Confidence: 0.7}}
}

func newTestSession(source FrameSource, m *metrics.Metrics, observers ...Observer) (*Session, *fakeProcessor) {
	processor := &fakeProcessor{}
	options := Options{JPEGQuality: 80, MaxEmptyFrames: 2}
	return NewSession(source, processor, options, logger.Discard(), m, observers...), processor
}

func TestSession_EmitsOnePartPerFrameInOrder(t *testing.T) {
	const n = 5
	source := &fakeSource{frames: n}
	m := metrics.NewNop()
	session, processor := newTestSession(source, m)

	var parts []Part
	for {
		part, err := session.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		parts = append(parts, part)
	}

	require.Len(t, parts, n)
	for i, part := range parts {
		assert.Equal(t, uint64(i+1), part.Seq)
		assert.Equal(t, JPEGContentType, part.ContentType)
		assert.Equal(t, []byte{0xFF, 0xD8}, part.Body[:2])
	}
	assert.Equal(t, n, processor.calls)
	assert.Equal(t, Stopped, session.State())
	assert.Equal(t, 1, source.closed)
	assert.Equal(t, float64(n), testutil.ToFloat64(m.FramesEmitted))

	// Further calls keep reporting the end without touching the camera again.
	_, err := session.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, n+1, source.reads)
}

func TestSession_WritesBoundaryDelimitedStream(t *testing.T) {
	const n = 3
	session, _ := newTestSession(&fakeSource{frames: n}, metrics.NewNop())

	var out bytes.Buffer
	writer := NewPartWriter(&out)
	for {
		part, err := session.Next(context.Background())
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
		require.NoError(t, writer.WritePart(part))
	}

	stream := out.String()
	assert.True(t, strings.HasPrefix(stream, "--frame\r\nContent-Type: image/jpeg\r\n\r\n"))
	assert.Equal(t, n, strings.Count(stream, "--frame\r\n"))
	assert.True(t, strings.HasSuffix(stream, "\r\n"))
	assert.NotContains(t, stream, "--frame--")
}

func TestSession_CachesLatestFrameBeforeEmitting(t *testing.T) {
	cache := &FrameCache{}
	source := &fakeSource{frames: 3}
	session, _ := newTestSession(source, metrics.NewNop(), cache.Store)

	_, ok := cache.Load()
	assert.False(t, ok)

	for i := 1; i <= 3; i++ {
		part, err := session.Next(context.Background())
		require.NoError(t, err)

		frame, ok := cache.Load()
		require.True(t, ok)
		assert.Equal(t, part.Seq, frame.Seq)
		assert.Equal(t, part.Body, frame.JPEG)
		assert.Equal(t, 32, frame.Width)
		assert.Equal(t, 24, frame.Height)
		assert.Len(t, frame.Detections, 1)
	}
}

func TestSession_SkipsTransientEmptyFrames(t *testing.T) {
	source := &fakeSource{frames: 2, glitch: map[int]bool{2: true, 3: true}}
	m := metrics.NewNop()
	session, _ := newTestSession(source, m)

	count := 0
	for {
		_, err := session.Next(context.Background())
		if err != nil {
			break
		}
		count++
	}

	assert.Equal(t, 2, count)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EmptyFrames))
}

func TestSession_TooManyEmptyFramesEndsStream(t *testing.T) {
	source := &fakeSource{frames: 10, glitch: map[int]bool{1: true, 2: true, 3: true}}
	session, processor := newTestSession(source, metrics.NewNop())

	_, err := session.Next(context.Background())

	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 0, processor.calls)
	assert.Equal(t, 1, source.closed)
}

func TestSession_ConsumerDisconnectReleasesCamera(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	source := &fakeSource{frames: 100}
	session, _ := newTestSession(source, metrics.NewNop())

	released := false
	session.OnClose(func() { released = true })

	_, err := session.Next(ctx)
	require.NoError(t, err)

	cancel()
	_, err = session.Next(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, source.closed)
	assert.True(t, released)
	assert.Equal(t, Stopped, session.State())
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	closeErr := errors.New("device busy")
	source := &fakeSource{closeFn: func() error { return closeErr }}
	session, _ := newTestSession(source, metrics.NewNop())

	calls := 0
	session.OnClose(func() { calls++ })

	assert.ErrorIs(t, session.Close(), closeErr)
	assert.ErrorIs(t, session.Close(), closeErr)
	assert.Equal(t, 1, source.closed)
	assert.Equal(t, 1, calls)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "emitted", Emitted.String())
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "unknown", State(42).String())
}
