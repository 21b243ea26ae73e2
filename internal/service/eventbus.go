package service

import (
	"sync"
	"time"
)

const EventVideosChanged = "videos_changed"

type Event struct {
	Type  string    `json:"type"`
	JobID string    `json:"job_id,omitempty"`
	At    time.Time `json:"at"`
}

type EventPublisher interface {
	Publish(event Event)
}

// EventBus fans events out to every subscriber. Delivery is best-effort:
// a subscriber whose buffer is full misses the event.
type EventBus struct {
	subscribers map[chan Event]struct{}
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[chan Event]struct{}),
	}
}

func (eb *EventBus) Subscribe() chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Event, 16)
	eb.subscribers[ch] = struct{}{}
	return ch
}

func (eb *EventBus) Unsubscribe(ch chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if _, ok := eb.subscribers[ch]; ok {
		delete(eb.subscribers, ch)
		close(ch)
	}
}

func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Drop event if subscriber is slow
		}
	}
}

func (eb *EventBus) Subscribers() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}
