package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// sseBuffer is the per-subscriber queue depth. A subscriber that falls
// this far behind is dropped rather than allowed to stall the broadcast.
const sseBuffer = 16

// SSEEvent is one message on the event stream
type SSEEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SSEHub fans events out to text/event-stream subscribers. The hub owns
// the subscriber channels and closes them on unsubscribe or drop.
type SSEHub struct {
	mu      sync.Mutex
	clients map[chan SSEEvent]struct{}
}

// NewSSEHub creates an empty hub
func NewSSEHub() *SSEHub {
	return &SSEHub{clients: make(map[chan SSEEvent]struct{})}
}

// Subscribe registers a new stream and returns its channel
func (h *SSEHub) Subscribe() chan SSEEvent {
	ch := make(chan SSEEvent, sseBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes the stream and closes its channel. Safe to call
// for a channel the hub has already dropped.
func (h *SSEHub) Unsubscribe(ch chan SSEEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

// Broadcast delivers the event to every subscriber without blocking;
// subscribers with a full queue are dropped.
func (h *SSEHub) Broadcast(event SSEEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- event:
		default:
			delete(h.clients, ch)
			close(ch)
		}
	}
}

// ClientCount reports the number of connected streams
func (h *SSEHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (s *Server) sseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		client := s.sseHub.Subscribe()
		defer s.sseHub.Unsubscribe(client)

		for {
			select {
			case <-r.Context().Done():
				return
			case event, open := <-client:
				if !open {
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
				flusher.Flush()
			}
		}
	}
}
