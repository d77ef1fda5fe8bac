package transport

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

// Bus connects every node created on it. Buses are independent; there is no
// process-wide default.
type Bus struct {
	bus evbus.Bus

	// mu orders latch updates against new subscriptions so a subscriber
	// sees the latched value exactly once.
	mu      sync.Mutex
	latched map[string]any
}

func NewBus() *Bus {
	return &Bus{
		bus:     evbus.New(),
		latched: make(map[string]any),
	}
}

func (b *Bus) publish(topic string, msg any, latch bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if latch {
		b.latched[topic] = msg
	}
	b.bus.Publish(topic, msg)
}

func (b *Bus) subscribe(topic string, handler func(any)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.bus.Subscribe(topic, handler); err != nil {
		return err
	}
	if msg, ok := b.latched[topic]; ok {
		handler(msg)
	}
	return nil
}

// Latched returns the last latched message on a fully resolved topic.
func (b *Bus) Latched(topic string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg, ok := b.latched[topic]
	return msg, ok
}

// HasSubscribers reports whether any handler was ever attached to topic.
func (b *Bus) HasSubscribers(topic string) bool {
	return b.bus.HasCallback(topic)
}
