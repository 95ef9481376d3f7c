// Package websocket fans annotated frames out to live viewers.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"visionstream/internal/logger"
	"visionstream/internal/model"

	"github.com/gorilla/websocket"
)

// broadcastBuffer is how many messages may wait for the hub loop before new
// ones are dropped.
const broadcastBuffer = 4

// Client is a viewer connection. *websocket.Conn satisfies it.
type Client interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// FrameMessage is the JSON payload sent to viewers for each frame.
type FrameMessage struct {
	Seq        uint64            `json:"seq"`
	Image      []byte            `json:"image"`
	Detections []model.Detection `json:"detections"`
}

type HubService struct {
	clients    map[Client]bool
	broadcast  chan []byte
	register   chan Client
	unregister chan Client
	done       chan struct{}
	mutex      sync.RWMutex
	count      atomic.Int32
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan Client),
		unregister: make(chan Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every remaining client.
func (h *HubService) Run(ctx context.Context) error {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.count.Store(int32(len(h.clients)))
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", h.GetClientCount())

		case client := <-h.unregister:
			h.remove(client)
			h.logger.Info("Viewer disconnected. Total: %d", h.GetClientCount())

		case message := <-h.broadcast:
			for _, client := range h.snapshot() {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Error("Error sending message: %v", err)
					h.remove(client)
				}
			}
		}
	}
}

// snapshot copies the registered clients so writes happen without the lock.
func (h *HubService) snapshot() []Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	clients := make([]Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

func (h *HubService) remove(client Client) {
	h.mutex.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.count.Store(int32(len(h.clients)))
	h.mutex.Unlock()
	if ok {
		client.Close()
	}
}

func (h *HubService) shutdown() {
	close(h.done)
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
	h.count.Store(0)
}

// Register adds a viewer. If the hub has stopped the client is closed instead.
func (h *HubService) Register(client Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes and closes a viewer.
func (h *HubService) Unregister(client Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues message for every viewer. It never blocks; when the hub is
// behind the message is dropped and false is returned.
func (h *HubService) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		return false
	}
}

// BroadcastFrame sends frame to viewers when any are connected. It never
// waits on the hub loop, so a stalled viewer cannot hold up the caller.
func (h *HubService) BroadcastFrame(frame *model.Frame) {
	if h.GetClientCount() == 0 {
		return
	}

	message, err := json.Marshal(FrameMessage{
		Seq:        frame.Seq,
		Image:      frame.JPEG,
		Detections: frame.Detections,
	})
	if err != nil {
		h.logger.Error("Error encoding frame %d: %v", frame.Seq, err)
		return
	}
	h.Broadcast(message)
}

func (h *HubService) GetClientCount() int {
	return int(h.count.Load())
}
