package transport

import (
	"sync"
	"testing"
	"time"
)

type ping struct{ n int }

func TestResolve(t *testing.T) {
	tests := []struct {
		ns, topic, want string
	}{
		{"", "motor_pwm", "/motor_pwm"},
		{"uav1", "motor_pwm", "/uav1/motor_pwm"},
		{"uav1", "quadro/trigger", "/uav1/quadro/trigger"},
		{"uav1", "/clock", "/clock"},
		{"/uav1/", "wrench_out", "/uav1/wrench_out"},
	}
	for _, tt := range tests {
		n := NewNode(NewBus(), tt.ns, nil)
		if got := n.Resolve(tt.topic); got != tt.want {
			t.Errorf("Resolve(%q in %q) = %q, want %q", tt.topic, tt.ns, got, tt.want)
		}
	}
}

func TestDeliveryWaitsForCallAvailable(t *testing.T) {
	bus := NewBus()
	pubNode := NewNode(bus, "a", nil)
	subNode := NewNode(bus, "a", nil)

	var got []int
	if _, err := Subscribe(subNode, "topic", func(p ping) { got = append(got, p.n) }); err != nil {
		t.Fatal(err)
	}
	pub, err := pubNode.Advertise("topic", false)
	if err != nil {
		t.Fatal(err)
	}

	pub.Publish(ping{1})
	pub.Publish(ping{2})
	if len(got) != 0 {
		t.Fatal("callback ran on the publisher's goroutine")
	}
	if n := subNode.Callbacks().CallAvailable(0); n != 2 {
		t.Fatalf("ran %d callbacks", n)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("got %v", got)
	}
}

func TestNamespacesIsolate(t *testing.T) {
	bus := NewBus()
	a := NewNode(bus, "a", nil)
	b := NewNode(bus, "b", nil)

	hits := 0
	Subscribe(b, "topic", func(ping) { hits++ })
	pub, _ := a.Advertise("topic", false)
	pub.Publish(ping{})
	b.Callbacks().CallAvailable(0)
	if hits != 0 {
		t.Error("message crossed namespaces")
	}
}

func TestLatchedReplay(t *testing.T) {
	bus := NewBus()
	n := NewNode(bus, "", nil)
	pub, _ := n.Advertise("supply", true)
	pub.Publish(ping{42})

	late := NewNode(bus, "", nil)
	var got ping
	Subscribe(late, "supply", func(p ping) { got = p })
	late.Callbacks().CallAvailable(0)
	if got.n != 42 {
		t.Errorf("late subscriber got %+v", got)
	}
	if _, ok := bus.Latched("/supply"); !ok {
		t.Error("latched value not recorded")
	}
}

func TestCallAvailableTimeout(t *testing.T) {
	q := NewCallbackQueue()
	start := time.Now()
	if n := q.CallAvailable(20 * time.Millisecond); n != 0 {
		t.Fatalf("ran %d", n)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("returned before timeout")
	}

	go func() {
		time.Sleep(5 * time.Millisecond)
		q.Add(func() {})
	}()
	start = time.Now()
	if n := q.CallAvailable(time.Second); n != 1 {
		t.Fatalf("ran %d", n)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("did not wake on arrival")
	}
}

func TestShutdown(t *testing.T) {
	bus := NewBus()
	n := NewNode(bus, "", nil)
	pub, _ := n.Advertise("x", false)

	hits := 0
	Subscribe(n, "x", func(ping) { hits++ })
	pub.Publish(ping{})

	n.Shutdown()
	n.Shutdown()

	if n.Ok() {
		t.Error("node still ok")
	}
	if n.Callbacks().CallAvailable(0) != 0 || hits != 0 {
		t.Error("pending callbacks survived shutdown")
	}
	if err := pub.Publish(ping{}); err != ErrNodeShutdown {
		t.Errorf("publish after shutdown: %v", err)
	}
	if _, err := n.Advertise("y", false); err != ErrNodeShutdown {
		t.Errorf("advertise after shutdown: %v", err)
	}

	start := time.Now()
	n.Callbacks().CallAvailable(time.Second)
	if time.Since(start) > 100*time.Millisecond {
		t.Error("disabled queue still waits")
	}
}

func TestNilPublisherIsDisabled(t *testing.T) {
	var p *Publisher
	if err := p.Publish(ping{}); err != nil {
		t.Errorf("nil publisher: %v", err)
	}
	if _, err := NewNode(NewBus(), "", nil).Advertise("", false); err != ErrEmptyTopic {
		t.Errorf("empty topic: %v", err)
	}
}

func TestConcurrentDrainKeepsOrder(t *testing.T) {
	bus := NewBus()
	n := NewNode(bus, "", nil)
	pub, _ := n.Advertise("seq", false)

	var mu sync.Mutex
	var got []int
	Subscribe(n, "seq", func(p ping) {
		mu.Lock()
		got = append(got, p.n)
		mu.Unlock()
	})

	const total = 2000
	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					n.Callbacks().CallAvailable(time.Millisecond)
				}
			}
		}()
	}
	for i := 0; i < total; i++ {
		pub.Publish(ping{i})
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		l := len(got)
		mu.Unlock()
		if l == total {
			break
		}
		time.Sleep(time.Millisecond)
	}
	close(done)
	wg.Wait()

	if len(got) != total {
		t.Fatalf("delivered %d of %d", len(got), total)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("position %d holds %d", i, v)
		}
	}
}
