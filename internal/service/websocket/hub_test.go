package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"visionstream/internal/logger"
	"visionstream/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
	failErr  error
}

func (c *fakeClient) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failErr != nil {
		return c.failErr
	}
	c.messages = append(c.messages, data)
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeClient) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.messages...)
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func startHub(t *testing.T) (*HubService, context.CancelFunc, chan error) {
	t.Helper()
	hub := NewHubService(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()
	t.Cleanup(cancel)
	return hub, cancel, done
}

func TestHub_BroadcastFrame(t *testing.T) {
	hub, _, _ := startHub(t)
	client := &fakeClient{}
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.BroadcastFrame(&model.Frame{
		Seq:        7,
		JPEG:       []byte{0xFF, 0xD8, 0xFF, 0xD9},
		Detections: []model.Detection{{Label: "mask", Confidence: 0.8}},
	})

	require.Eventually(t, func() bool { return len(client.received()) == 1 }, time.Second, 5*time.Millisecond)

	var msg FrameMessage
	require.NoError(t, json.Unmarshal(client.received()[0], &msg))
	assert.Equal(t, uint64(7), msg.Seq)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xD9}, msg.Image)
	require.Len(t, msg.Detections, 1)
	assert.Equal(t, "mask", msg.Detections[0].Label)
}

func TestHub_FailingClientIsDropped(t *testing.T) {
	hub, _, _ := startHub(t)
	bad := &fakeClient{failErr: errors.New("broken pipe")}
	good := &fakeClient{}
	hub.Register(bad)
	hub.Register(good)
	require.Eventually(t, func() bool { return hub.GetClientCount() == 2 }, time.Second, 5*time.Millisecond)

	require.True(t, hub.Broadcast([]byte("hello")))

	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, bad.isClosed())
	assert.Eventually(t, func() bool { return len(good.received()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	hub := NewHubService(logger.Discard())

	for i := 0; i < broadcastBuffer; i++ {
		assert.True(t, hub.Broadcast([]byte("x")))
	}
	assert.False(t, hub.Broadcast([]byte("dropped")))
}

func TestHub_UnregisterAndStop(t *testing.T) {
	hub, cancel, done := startHub(t)
	first := &fakeClient{}
	second := &fakeClient{}
	hub.Register(first)
	hub.Register(second)

	hub.Unregister(first)
	require.Eventually(t, first.isClosed, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.True(t, second.isClosed())
	assert.Equal(t, 0, hub.GetClientCount())

	late := &fakeClient{}
	hub.Register(late)
	assert.True(t, late.isClosed())
	hub.Unregister(late)
}

// stalledClient blocks in WriteMessage until released.
type stalledClient struct {
	writing chan struct{}
	release chan struct{}
	once    sync.Once
}

func newStalledClient() *stalledClient {
	return &stalledClient{writing: make(chan struct{}), release: make(chan struct{})}
}

func (c *stalledClient) WriteMessage(_ int, _ []byte) error {
	c.once.Do(func() { close(c.writing) })
	<-c.release
	return nil
}

func (c *stalledClient) Close() error { return nil }

func TestHub_StalledViewerDoesNotBlockBroadcastFrame(t *testing.T) {
	hub, _, _ := startHub(t)
	stalled := newStalledClient()
	t.Cleanup(func() { close(stalled.release) })

	hub.Register(stalled)
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.True(t, hub.Broadcast([]byte("first")))
	select {
	case <-stalled.writing:
	case <-time.After(time.Second):
		t.Fatal("hub never wrote to the viewer")
	}

	returned := make(chan struct{})
	go func() {
		for i := 0; i < 3*broadcastBuffer; i++ {
			hub.BroadcastFrame(&model.Frame{Seq: uint64(i + 1), JPEG: []byte{0xFF, 0xD8, 0xFF, 0xD9}})
		}
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("BroadcastFrame blocked behind a stalled viewer")
	}
	assert.Equal(t, 1, hub.GetClientCount())
}
