package stream

import (
	"context"
	"sync"
	"time"

	"kadro.org/internal/obs"
)

// Event is the payload delivered to connected security dashboard observers
// for every logged security event.
type Event struct {
	ID        string            `json:"id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	IPAddress string            `json:"ip_address"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Stream fan-outs security events to all active subscribers (SSE clients on
// the operational dashboard). Publishing never blocks on a slow observer.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan Event)}
}

// Subscribe registers an observer and returns a channel which will receive
// events. The channel is closed and the observer removed when the provided
// context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()
	obs.StreamSubscriberGauge(1)

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
		obs.StreamSubscriberGauge(-1)
	}()

	return ch
}

// Publish fan-outs the event to all subscribers. Events are dropped for
// subscribers whose buffers are full so the write path is never delayed.
func (s *Stream) Publish(evt Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribers returns the current observer count.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
