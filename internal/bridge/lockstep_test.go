package bridge_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/rotorbridge/internal/bridge"
	"github.com/san-kum/rotorbridge/internal/config"
	"github.com/san-kum/rotorbridge/internal/controllers"
	"github.com/san-kum/rotorbridge/internal/engine"
	"github.com/san-kum/rotorbridge/internal/msgs"
	"github.com/san-kum/rotorbridge/internal/propulsion"
	"github.com/san-kum/rotorbridge/internal/transport"
)

var _ = Describe("Bridge with the propulsion model", func() {
	var (
		world *engine.World
		body  *engine.RigidBody
		bus   *transport.Bus
		cfg   *config.Config
		steps []bridge.Step
	)

	BeforeEach(func() {
		var err error
		world, err = engine.NewWorld(ms)
		Expect(err).NotTo(HaveOccurred())
		cfg = config.DefaultConfig()
		body, err = engine.NewRigidBody("base_link", cfg.Body.Mass, cfg.Body.Inertia)
		Expect(err).NotTo(HaveOccurred())
		world.AddBody(body)
		bus = transport.NewBus()
		steps = nil
	})

	load := func() *bridge.Bridge {
		b, err := bridge.Load(world, body, cfg, bus)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(b.Close)
		b.AddObserver(func(s bridge.Step) { steps = append(steps, s) })
		return b
	}

	step := func(n int) {
		for i := 0; i < n; i++ {
			Expect(world.Step()).To(Succeed())
		}
	}

	It("admits a command stamped now on the step it arrives", func() {
		load()
		pub, err := transport.NewNode(bus, "", nil).Advertise("motor_pwm", false)
		Expect(err).NotTo(HaveOccurred())

		step(4)
		Expect(pub.Publish(msgs.MotorPWM{Stamp: 5 * ms, PWM: []uint8{150, 150, 150, 150}})).To(Succeed())
		step(1)

		Expect(steps).To(HaveLen(5))
		Expect(steps[3].Applied).To(BeFalse())
		Expect(steps[4].Applied).To(BeTrue())
		Expect(steps[4].Status.Voltage[0]).To(BeNumerically(">", 0))
	})

	It("holds a future command until its stamp is within tolerance, then admits it once", func() {
		cfg.Bridge.ControlTolerance = 0.002
		b := load()
		pub, err := transport.NewNode(bus, "", nil).Advertise("motor_pwm", false)
		Expect(err).NotTo(HaveOccurred())

		Expect(pub.Publish(msgs.MotorPWM{Stamp: 10 * ms, PWM: []uint8{100, 100, 100, 100}})).To(Succeed())
		step(12)

		var applied []time.Duration
		for _, s := range steps {
			if s.Applied {
				applied = append(applied, s.Time)
			}
		}
		Expect(applied).To(Equal([]time.Duration{8 * ms}))
		Expect(b.Model().(*propulsion.Model).Pending()).To(BeZero())
	})

	It("applies commands no earlier than their stamp plus the delay", func() {
		cfg.Bridge.ControlDelay = 0.005
		load()
		pub, err := transport.NewNode(bus, "", nil).Advertise("motor_pwm", false)
		Expect(err).NotTo(HaveOccurred())

		Expect(pub.Publish(msgs.MotorPWM{Stamp: 2 * ms, PWM: []uint8{80, 80, 80, 80}})).To(Succeed())
		Expect(pub.Publish(msgs.MotorPWM{Stamp: 3 * ms, PWM: []uint8{90, 90, 90, 90}})).To(Succeed())
		step(10)

		var applied []time.Duration
		for _, s := range steps {
			if s.Applied {
				applied = append(applied, s.Time)
			}
		}
		Expect(applied).To(Equal([]time.Duration{7 * ms, 8 * ms}))
	})

	It("gives up after the wait budget and switches the motors off", func() {
		cfg.Bridge.ControlRate = 100
		load()

		start := time.Now()
		step(10)
		Expect(time.Since(start)).To(BeNumerically("<", 1500*ms))
		Expect(time.Since(start)).To(BeNumerically(">=", 900*ms))
		Expect(steps[9].Trigger).To(BeTrue())
		Expect(steps[9].Status.On).To(BeFalse())

		// motors off: later triggers no longer wait
		start = time.Now()
		step(50)
		Expect(time.Since(start)).To(BeNumerically("<", 500*ms))

		world.Reset()
		Expect(steps[len(steps)-1].Status.On).To(BeFalse())
		step(1)
		Expect(steps[len(steps)-1].Status.On).To(BeTrue())
	})

	It("flies in lockstep with a trigger-driven controller", func() {
		cfg.Bridge.ControlRate = 100
		cfg.Bridge.ControlTolerance = 0.01

		var mu sync.Mutex
		var obs controllers.Observation
		world.ConnectUpdateBegin(func() {
			mu.Lock()
			defer mu.Unlock()
			pos, vel := body.Position(), body.WorldLinearVel()
			obs = controllers.Observation{Time: world.SimTime(), Altitude: pos.Z, Climb: vel.Z}
		})
		sense := func() controllers.Observation {
			mu.Lock()
			defer mu.Unlock()
			return obs
		}

		pid := controllers.NewPID(cfg.Controller.Kp, cfg.Controller.Ki, cfg.Controller.Kd, cfg.Controller.Target)
		node, err := controllers.NewNode(bus, "", controllers.NodeConfig{
			TriggerTopic: config.DefaultTriggerTopic,
			CommandTopic: config.DefaultCommandTopic,
			HoverPWM:     cfg.Controller.HoverPWM,
		}, pid, sense)
		Expect(err).NotTo(HaveOccurred())
		ctx, cancel := context.WithCancel(context.Background())
		DeferCleanup(cancel)
		node.Start(ctx)
		DeferCleanup(node.Close)

		load()
		start := time.Now()
		step(3000)
		Expect(time.Since(start)).To(BeNumerically("<", 20*time.Second))

		triggers, applied := 0, 0
		for _, s := range steps {
			Expect(s.Status.On).To(BeTrue())
			if s.Trigger {
				triggers++
				if s.Applied {
					applied++
				}
			}
		}
		Expect(triggers).To(Equal(300))
		Expect(applied).To(Equal(triggers))
		Eventually(node.Sent).WithTimeout(time.Second).Should(Equal(300))
		Expect(body.Position().Z).To(BeNumerically(">", 0.2))
		Expect(body.Position().Z).To(BeNumerically("<", 3))
	})
})
