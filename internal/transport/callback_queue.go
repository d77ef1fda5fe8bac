package transport

import (
	"sync"
	"time"
)

// CallbackQueue collects delivered messages as closures until their owner
// runs them.
type CallbackQueue struct {
	mu       sync.Mutex
	pending  []func()
	notify   chan struct{}
	disabled bool

	// running serializes batches so callbacks run in delivery order even
	// when two goroutines call CallAvailable.
	running sync.Mutex
}

func NewCallbackQueue() *CallbackQueue {
	return &CallbackQueue{notify: make(chan struct{})}
}

// Add enqueues cb. It is a no-op once the queue is disabled.
func (q *CallbackQueue) Add(cb func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.disabled {
		return
	}
	q.pending = append(q.pending, cb)
	q.wake()
}

func (q *CallbackQueue) wake() {
	close(q.notify)
	q.notify = make(chan struct{})
}

// CallAvailable runs every pending callback. If none are pending it first
// waits up to timeout for one to arrive. It returns the number run.
func (q *CallbackQueue) CallAvailable(timeout time.Duration) int {
	q.mu.Lock()
	if len(q.pending) == 0 && timeout > 0 && !q.disabled {
		arrived := q.notify
		q.mu.Unlock()

		t := time.NewTimer(timeout)
		select {
		case <-arrived:
			t.Stop()
		case <-t.C:
		}
		q.mu.Lock()
	}
	q.mu.Unlock()

	q.running.Lock()
	defer q.running.Unlock()

	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, cb := range batch {
		cb()
	}
	return len(batch)
}

func (q *CallbackQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Disable drops pending callbacks, refuses new ones and releases waiters.
func (q *CallbackQueue) Disable() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.disabled {
		return
	}
	q.disabled = true
	q.pending = nil
	q.wake()
}
