// Package transport provides namespaced topic publish/subscribe on top of
// github.com/asaskevich/EventBus.
//
// Messages published on a [Bus] are never handed to subscriber code on the
// publisher's goroutine. Each [Node] owns a [CallbackQueue]; delivery only
// enqueues, and the node's owner decides when callbacks run by calling
// [CallbackQueue.CallAvailable]. This mirrors the spin-on-demand model the
// bridge needs: the simulation goroutine drains callbacks at a fixed point in
// every step, and an optional background goroutine may drain them too.
//
//	bus := transport.NewBus()
//	node := transport.NewNode(bus, "uav1", nil)
//	pub, _ := node.Advertise("wrench_out", false)
//	transport.Subscribe(node, "motor_pwm", func(m msgs.MotorPWM) { ... })
//	node.Callbacks().CallAvailable(10 * time.Millisecond)
package transport
