package events

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_DeliversToSubscribers(t *testing.T) {
	bus := NewBus(10, nil)

	var mu sync.Mutex
	var got []Topic
	bus.Subscribe(TopicPunched, func(ctx context.Context, e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Topic)
	})
	bus.Subscribe(TopicResolved, func(ctx context.Context, e Event) {
		panic("handler failure must not stop the bus")
	})

	bus.Publish(Event{Topic: TopicResolved, OrgID: "org"})
	bus.Publish(Event{Topic: TopicPunched, OrgID: "org", UserID: "u1"})
	bus.Publish(Event{Topic: TopicRequested})
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Topic{TopicPunched}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(10, nil)
	count := 0
	unsubscribe := bus.Subscribe(TopicRecordUpdated, func(ctx context.Context, e Event) {
		count++
	})
	unsubscribe()

	bus.Publish(Event{Topic: TopicRecordUpdated})
	bus.Close()
	assert.Equal(t, 0, count)
}

func TestBus_PublishAfterCloseIsDropped(t *testing.T) {
	bus := NewBus(1, nil)
	bus.Close()
	assert.NotPanics(t, func() {
		bus.Publish(Event{Topic: TopicPunched})
	})
	bus.Close()
}
