package transport

import (
	"path"
	"strings"
	"sync"
	"sync/atomic"
)

// Node is a namespaced endpoint on a Bus.
type Node struct {
	bus       *Bus
	namespace string
	callbacks *CallbackQueue

	mu   sync.Mutex
	ok   bool
	subs []*Subscriber
	pubs []*Publisher
}

// NewNode creates a node in namespace. A nil queue gives the node its own.
func NewNode(bus *Bus, namespace string, callbacks *CallbackQueue) *Node {
	if callbacks == nil {
		callbacks = NewCallbackQueue()
	}
	return &Node{
		bus:       bus,
		namespace: namespace,
		callbacks: callbacks,
		ok:        true,
	}
}

func (n *Node) Namespace() string { return n.namespace }

func (n *Node) Callbacks() *CallbackQueue { return n.callbacks }

// Resolve maps a relative topic into the node's namespace. Absolute topics
// (leading "/") are returned cleaned but otherwise unchanged.
func (n *Node) Resolve(topic string) string {
	if strings.HasPrefix(topic, "/") {
		return path.Clean(topic)
	}
	return path.Join("/", n.namespace, topic)
}

// Ok is false once Shutdown has been called.
func (n *Node) Ok() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ok
}

// Advertise creates a publisher. A latched publisher's last message is
// replayed to every later subscriber.
func (n *Node) Advertise(topic string, latch bool) (*Publisher, error) {
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.ok {
		return nil, ErrNodeShutdown
	}
	p := &Publisher{bus: n.bus, topic: n.Resolve(topic), latch: latch}
	p.active.Store(true)
	n.pubs = append(n.pubs, p)
	return p, nil
}

// SubscribeRaw attaches fn to topic. fn runs from the node's callback queue.
func (n *Node) SubscribeRaw(topic string, fn func(any)) (*Subscriber, error) {
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.ok {
		return nil, ErrNodeShutdown
	}

	s := &Subscriber{topic: n.Resolve(topic)}
	s.active.Store(true)
	cq := n.callbacks
	handler := func(msg any) {
		if !s.active.Load() {
			return
		}
		cq.Add(func() {
			if s.active.Load() {
				fn(msg)
			}
		})
	}
	if err := n.bus.subscribe(s.topic, handler); err != nil {
		return nil, err
	}
	n.subs = append(n.subs, s)
	return s, nil
}

// Subscribe attaches a typed handler; messages of other types are ignored.
func Subscribe[T any](n *Node, topic string, fn func(T)) (*Subscriber, error) {
	return n.SubscribeRaw(topic, func(msg any) {
		if m, ok := msg.(T); ok {
			fn(m)
		}
	})
}

// Shutdown deactivates every publisher and subscriber of the node and
// disables its callback queue. It is idempotent.
func (n *Node) Shutdown() {
	n.mu.Lock()
	if !n.ok {
		n.mu.Unlock()
		return
	}
	n.ok = false
	subs, pubs := n.subs, n.pubs
	n.subs, n.pubs = nil, nil
	n.mu.Unlock()

	for _, s := range subs {
		s.Shutdown()
	}
	for _, p := range pubs {
		p.Shutdown()
	}
	n.callbacks.Disable()
}

// Publisher sends messages on one resolved topic.
type Publisher struct {
	bus    *Bus
	topic  string
	latch  bool
	active atomic.Bool
}

func (p *Publisher) Topic() string { return p.topic }

// Publish sends msg. It returns ErrNodeShutdown after the owning node shut
// down. A nil publisher is a disabled channel and publishes nothing.
func (p *Publisher) Publish(msg any) error {
	if p == nil {
		return nil
	}
	if !p.active.Load() {
		return ErrNodeShutdown
	}
	p.bus.publish(p.topic, msg, p.latch)
	return nil
}

func (p *Publisher) Shutdown() { p.active.Store(false) }

// Subscriber is a handle on one subscription.
//
// EventBus matches handlers by code pointer, so closures cannot be removed
// from it individually; a shut down subscriber stays attached but inert.
type Subscriber struct {
	topic  string
	active atomic.Bool
}

func (s *Subscriber) Topic() string { return s.topic }

func (s *Subscriber) Shutdown() { s.active.Store(false) }
