package bus

import (
	"context"
	"sync"
)

// MemoryBroadcaster is an in-process Broadcaster for tests and local runs
// without a NATS server.
type MemoryBroadcaster struct {
	mu     sync.Mutex
	events map[string][]Event
	subs   map[string][]func(Event)
}

func NewMemoryBroadcaster() *MemoryBroadcaster {
	return &MemoryBroadcaster{
		events: make(map[string][]Event),
		subs:   make(map[string][]func(Event)),
	}
}

func (m *MemoryBroadcaster) Broadcast(_ context.Context, topic string, event Event) error {
	m.mu.Lock()
	m.events[topic] = append(m.events[topic], event)
	subs := append([]func(Event){}, m.subs[topic]...)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(event)
	}
	return nil
}

func (m *MemoryBroadcaster) Subscribe(topic string, fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[topic] = append(m.subs[topic], fn)
}

// Events returns everything broadcast on a topic so far, in order.
func (m *MemoryBroadcaster) Events(topic string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events[topic]...)
}
