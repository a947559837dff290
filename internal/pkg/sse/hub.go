package sse

import (
	"context"
	"sync"

	"github.com/cmlabs-hris/attendance-core/internal/pkg/events"
)

// Event is one message delivered to a stream subscriber.
type Event struct {
	Event string
	Data  interface{}
}

// Subscriber identifies a stream owner.
type Subscriber struct {
	OrgID  string
	UserID string
}

// Hub fans domain events out to the streams of the user they concern.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]map[chan Event]struct{}
	bufferSize  int
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[Subscriber]map[chan Event]struct{}),
		bufferSize:  10,
	}
}

// Subscribe registers a stream and returns its channel and cleanup function.
func (h *Hub) Subscribe(sub Subscriber) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, h.bufferSize)
	if h.subscribers[sub] == nil {
		h.subscribers[sub] = make(map[chan Event]struct{})
	}
	h.subscribers[sub][ch] = struct{}{}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers[sub], ch)
			close(ch)
			if len(h.subscribers[sub]) == 0 {
				delete(h.subscribers, sub)
			}
		})
	}
	return ch, cleanup
}

// Publish delivers event to every stream of sub. Full streams skip the event.
func (h *Hub) Publish(sub Subscriber, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[sub] {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount returns the number of open streams for sub.
func (h *Hub) SubscriberCount(sub Subscriber) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[sub])
}

// Forward subscribes the hub to the given bus topics and returns a function
// that detaches it.
func (h *Hub) Forward(bus *events.Bus, topics ...events.Topic) func() {
	if len(topics) == 0 {
		topics = []events.Topic{events.TopicPunched, events.TopicRequested, events.TopicResolved, events.TopicRecordUpdated}
	}
	unsubs := make([]func(), 0, len(topics))
	for _, topic := range topics {
		unsubs = append(unsubs, bus.Subscribe(topic, h.handle))
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

func (h *Hub) handle(_ context.Context, e events.Event) {
	if e.UserID == "" {
		return
	}
	h.Publish(Subscriber{OrgID: e.OrgID, UserID: e.UserID}, Event{Event: string(e.Topic), Data: e.Payload})
}
