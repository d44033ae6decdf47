package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/exoforge/exo-orchestrator/internal/journal"
)

const feedWriteTimeout = 10 * time.Second

// Feed pushes journal events to websocket subscribers. Unlike the SSE
// stream it survives proxies that buffer text/event-stream responses.
type Feed struct {
	upgrader websocket.Upgrader
	conns    map[*feedConn]bool
	mu       sync.RWMutex
}

// feedConn wraps a websocket connection with a write lock. Gorilla
// connections do not allow concurrent writers.
type feedConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *feedConn) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
	return c.conn.WriteJSON(v)
}

// NewFeed creates an event feed with no subscribers.
func NewFeed() *Feed {
	return &Feed{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		conns: make(map[*feedConn]bool),
	}
}

// Handle upgrades the request and subscribes the connection to the feed.
func (f *Feed) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("feed upgrade failed: %v", err)
		return
	}

	fc := &feedConn{conn: conn}
	f.mu.Lock()
	f.conns[fc] = true
	f.mu.Unlock()

	go f.reader(fc)
}

// reader drains incoming messages until the peer goes away. The feed is
// one-directional, so anything the client sends is discarded.
func (f *Feed) reader(fc *feedConn) {
	fc.conn.SetReadLimit(512)
	for {
		if _, _, err := fc.conn.ReadMessage(); err != nil {
			f.drop(fc)
			return
		}
	}
}

func (f *Feed) drop(fc *feedConn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.conns[fc]; ok {
		delete(f.conns, fc)
		fc.conn.Close()
	}
}

// Broadcast sends the event to every subscriber. Connections that fail
// the write are dropped.
func (f *Feed) Broadcast(e journal.Event) {
	f.mu.RLock()
	snapshot := make([]*feedConn, 0, len(f.conns))
	for fc := range f.conns {
		snapshot = append(snapshot, fc)
	}
	f.mu.RUnlock()

	for _, fc := range snapshot {
		if err := fc.writeJSON(e); err != nil {
			f.drop(fc)
		}
	}
}

// Count returns the number of connected subscribers.
func (f *Feed) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.conns)
}
