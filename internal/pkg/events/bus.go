package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Topic names a domain notification.
type Topic string

const (
	TopicPunched       Topic = "punched"
	TopicRequested     Topic = "requested"
	TopicResolved      Topic = "resolved"
	TopicRecordUpdated Topic = "record.updated"
)

// Event is a fire-and-forget domain notification.
type Event struct {
	Topic   Topic
	OrgID   string
	UserID  string
	Payload interface{}
	At      time.Time
}

// Handler receives events on the bus worker goroutine.
type Handler func(ctx context.Context, e Event)

// Publisher is what domain services depend on.
type Publisher interface {
	Publish(e Event)
}

// Discard drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}

// Bus queues events and dispatches them to subscribers on a single worker.
// Publish never blocks: when the queue is full the event is dropped.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic]map[int]Handler
	nextID   int
	queue    chan Event
	closed   bool
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewBus starts the dispatch worker.
func NewBus(queueSize int, logger *slog.Logger) *Bus {
	if queueSize <= 0 {
		queueSize = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{
		handlers: make(map[Topic]map[int]Handler),
		queue:    make(chan Event, queueSize),
		logger:   logger,
	}
	b.wg.Add(1)
	go b.worker()
	return b
}

// Subscribe registers h for topic and returns an unsubscribe function.
func (b *Bus) Subscribe(topic Topic, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[topic][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[topic], id)
		if len(b.handlers[topic]) == 0 {
			delete(b.handlers, topic)
		}
	}
}

func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	select {
	case b.queue <- e:
	default:
		b.logger.Warn("event dropped: queue full", "topic", e.Topic, "org_id", e.OrgID, "user_id", e.UserID)
	}
}

// Close stops accepting events and waits until queued ones are dispatched.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	b.wg.Wait()
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for e := range b.queue {
		b.dispatch(e)
	}
}

func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	subs := make([]Handler, 0, len(b.handlers[e.Topic]))
	for _, h := range b.handlers[e.Topic] {
		subs = append(subs, h)
	}
	b.mu.RUnlock()

	for _, h := range subs {
		func() {
			defer func() {
				if p := recover(); p != nil {
					b.logger.Error("event handler panicked", "topic", e.Topic, "panic", p)
				}
			}()
			h(context.Background(), e)
		}()
	}
}
