package viz

import (
	"sync"
	"time"

	"github.com/san-kum/rotorbridge/internal/experiment"
)

// Feed is an experiment observer that forwards every n-th sample to a
// Monitor. Samples are dropped rather than stalling the flight when the
// display falls behind. With realtime set, the flight is slowed down so that
// simulated time does not run ahead of the wall clock.
type Feed struct {
	every    int
	realtime bool
	samples  chan experiment.Sample
	done     chan Done

	mu    sync.Mutex
	n     int
	start time.Time
	once  sync.Once
}

// Done ends a feed.
type Done struct {
	Result *experiment.Result
	Err    error
}

func NewFeed(every int, realtime bool) *Feed {
	if every < 1 {
		every = 1
	}
	return &Feed{
		every:    every,
		realtime: realtime,
		samples:  make(chan experiment.Sample, 256),
		done:     make(chan Done, 1),
	}
}

func (f *Feed) OnStep(s experiment.Sample) {
	f.mu.Lock()
	if f.n == 0 {
		f.start = time.Now()
	}
	f.n++
	pass := f.n%f.every == 0
	start := f.start
	f.mu.Unlock()

	if f.realtime {
		if ahead := s.Time - time.Since(start); ahead > 0 {
			time.Sleep(ahead)
		}
	}
	if !pass {
		return
	}
	select {
	case f.samples <- s:
	default:
	}
}

// Finish reports the end of the flight. Only the first call counts.
func (f *Feed) Finish(res *experiment.Result, err error) {
	f.once.Do(func() { f.done <- Done{Result: res, Err: err} })
}

// Samples and Finished are exposed for callers that drain the feed without
// a terminal.
func (f *Feed) Samples() <-chan experiment.Sample { return f.samples }
func (f *Feed) Finished() <-chan Done             { return f.done }
