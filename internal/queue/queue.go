// Package queue holds actuation commands between their arrival on the
// transport and their admission into the propulsion model.
//
// The queue is the only structure shared between the simulation goroutine and
// transport delivery. Its mutex is held only while the slice is mutated; no
// caller ever waits while holding it.
package queue

import (
	"sync"
	"time"
)

// Stamped is a command with a nominal simulation timestamp. Zero means the
// producer did not stamp it.
type Stamped interface {
	Timestamp() time.Duration
}

// Window bounds which commands may act at a given simulation time.
type Window struct {
	Tolerance time.Duration
	Delay     time.Duration
}

// Upper is the latest command stamp admissible at now.
func (w Window) Upper(now time.Duration) time.Duration {
	return now - w.Delay + w.Tolerance
}

// Admits reports whether a command stamped at stamp may act at now.
func (w Window) Admits(stamp, now time.Duration) bool {
	return stamp == 0 || stamp <= w.Upper(now)
}

// Pump delivers pending transport callbacks, blocking up to timeout when none
// are pending. A transport callback queue satisfies it.
type Pump interface {
	CallAvailable(timeout time.Duration) int
}

// Queue is a FIFO of pending commands.
type Queue[T Stamped] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
}

func New[T Stamped]() *Queue[T] {
	return &Queue[T]{notify: make(chan struct{})}
}

// Push appends cmd and wakes any drain waiting for arrivals.
func (q *Queue[T]) Push(cmd T) {
	q.mu.Lock()
	q.items = append(q.items, cmd)
	close(q.notify)
	q.notify = make(chan struct{})
	q.mu.Unlock()
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear drops every pending command.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}

// admit pops eligible commands from the head. It stops at the first
// ineligible command so arrival order is never broken.
func (q *Queue[T]) admit(now time.Duration, w Window, out []T) ([]T, bool, <-chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for n < len(q.items) && w.Admits(q.items[n].Timestamp(), now) {
		out = append(out, q.items[n])
		n++
	}
	if n > 0 {
		var zero T
		for i := 0; i < n; i++ {
			q.items[i] = zero
		}
		q.items = q.items[n:]
	}
	return out, len(q.items) == 0, q.notify
}

// Drain admits every eligible command at simulation time now.
//
// With wait > 0 and nothing admissible in an empty queue, Drain blocks the
// caller for up to wait of wall-clock time for a command to arrive. When pump
// is non-nil the wait is spent delivering transport callbacks; otherwise it
// waits on Push. It returns as soon as something is admitted. timedOut
// reports that the whole budget elapsed with the queue still empty.
func (q *Queue[T]) Drain(now time.Duration, w Window, wait time.Duration, pump Pump) (admitted []T, timedOut bool) {
	deadline := time.Now().Add(wait)
	for {
		var empty bool
		var arrived <-chan struct{}
		admitted, empty, arrived = q.admit(now, w, admitted)
		if len(admitted) > 0 || !empty || wait <= 0 {
			return admitted, false
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, true
		}

		if pump != nil {
			pump.CallAvailable(remaining)
			continue
		}

		t := time.NewTimer(remaining)
		select {
		case <-arrived:
			t.Stop()
		case <-t.C:
		}
	}
}
