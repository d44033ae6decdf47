package journal

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Recorder wraps a Store with an asynchronous write queue so that callers
// never wait on journal latency. Events are persisted by a single writer
// goroutine and fanned out to subscribers; when the queue is saturated the
// event is dropped with a warning rather than blocking the caller.
type Recorder struct {
	store *Store

	writeChan chan Event
	writeDone chan struct{}
	closeOnce sync.Once

	subs map[chan Event]bool
	mu   sync.RWMutex
}

// NewRecorder creates a Recorder and starts its writer goroutine.
// A nil store is allowed; events are then only fanned out to subscribers.
func NewRecorder(store *Store) *Recorder {
	r := &Recorder{
		store:     store,
		writeChan: make(chan Event, 100),
		writeDone: make(chan struct{}),
		subs:      make(map[chan Event]bool),
	}
	go r.writer()
	return r
}

// Emit queues an event for persistence and fan-out. Never blocks.
func (r *Recorder) Emit(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	select {
	case r.writeChan <- e:
	default:
		log.Printf("journal: write queue full, dropping event %s (trace %s)", e.Type, e.TraceID)
	}
}

// writer persists events sequentially to avoid lock contention
func (r *Recorder) writer() {
	for e := range r.writeChan {
		if r.store != nil {
			if err := r.store.Append(e); err != nil {
				log.Printf("journal: append %s: %v", e.Type, err)
			}
		}
		r.fanout(e)
	}
	close(r.writeDone)
}

func (r *Recorder) fanout(e Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for sub := range r.subs {
		select {
		case sub <- e:
		default:
			// Slow subscriber, skip this event for it
		}
	}
}

// Subscribe returns a channel receiving every event as it is recorded
func (r *Recorder) Subscribe() chan Event {
	ch := make(chan Event, 16)
	r.mu.Lock()
	r.subs[ch] = true
	r.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel
func (r *Recorder) Unsubscribe(ch chan Event) {
	r.mu.Lock()
	if r.subs[ch] {
		delete(r.subs, ch)
		close(ch)
	}
	r.mu.Unlock()
}

// Close drains the queue and stops the writer goroutine
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.writeChan)
		<-r.writeDone
	})
}
