package bridge_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/rotorbridge/internal/bridge"
	"github.com/san-kum/rotorbridge/internal/config"
	"github.com/san-kum/rotorbridge/internal/dynamo"
	"github.com/san-kum/rotorbridge/internal/msgs"
	"github.com/san-kum/rotorbridge/internal/queue"
	"github.com/san-kum/rotorbridge/internal/transport"
)

const ms = time.Millisecond

var _ = Describe("Bridge", func() {
	var (
		world *fakeWorld
		link  *fakeLink
		model *fakeModel
		bus   *transport.Bus
		cfg   *config.Config
		gs    *station
		b     *bridge.Bridge
	)

	BeforeEach(func() {
		world = &fakeWorld{}
		link = &fakeLink{}
		model = newFakeModel()
		bus = transport.NewBus()
		cfg = config.DefaultConfig()
		gs = newStation(bus, "")
	})

	load := func(opts ...bridge.Option) {
		var err error
		b, err = bridge.Load(world, link, cfg, bus, append([]bridge.Option{bridge.WithPropulsion(model)}, opts...)...)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(b.Close)
	}

	Describe("Load", func() {
		It("fails when the parameter namespace is missing", func() {
			cfg.Bridge.ParamNamespace = "octocopter"
			_, err := bridge.Load(world, link, cfg, bus)
			Expect(err).To(MatchError(config.ErrMissingModelParams))
			Expect(world.connects).To(BeZero())
		})

		It("rejects a negative control delay before arming", func() {
			cfg.Bridge.ControlDelay = -0.05
			_, err := bridge.Load(world, link, cfg, bus, bridge.WithPropulsion(model))
			Expect(err).To(MatchError(config.ErrInvalid))
			Expect(world.connects).To(BeZero())
		})

		It("resolves timing with the rate taking precedence", func() {
			cfg.Bridge.ControlRate = 50
			cfg.Bridge.ControlPeriod = 0.5
			cfg.Bridge.ControlTolerance = 0.002
			cfg.Bridge.ControlDelay = 0.015
			load()

			period, window := b.Timing()
			Expect(period).To(Equal(20 * ms))
			Expect(window).To(Equal(queue.Window{Tolerance: 2 * ms, Delay: 15 * ms}))
		})

		It("falls back to the period and disables the timer without either", func() {
			cfg.Bridge.ControlPeriod = 0.25
			load()
			period, _ := b.Timing()
			Expect(period).To(Equal(250 * ms))

			b.Close()
			cfg.Bridge.ControlPeriod = 0
			world = &fakeWorld{}
			load()
			period, _ = b.Timing()
			Expect(period).To(BeZero())
			world.run(100, ms)
			gs.collect()
			Expect(gs.triggers).To(BeEmpty())
		})

		It("resets the model, latches the supply and connects to the world", func() {
			cfg.Bridge.SupplyVoltage = 16.4
			load()

			Expect(model.resets).To(Equal(1))
			Expect(world.connects).To(Equal(1))

			gs.collect()
			Expect(gs.supplies).To(HaveLen(1))
			Expect(gs.supplies[0].Voltage[0]).To(Equal(16.4))

			late := transport.NewNode(bus, "", nil)
			var replayed []msgs.Supply
			_, err := transport.Subscribe(late, "supply", func(s msgs.Supply) { replayed = append(replayed, s) })
			Expect(err).NotTo(HaveOccurred())
			late.Callbacks().CallAvailable(0)
			Expect(replayed).To(HaveLen(1))
		})

		It("publishes under the robot namespace", func() {
			cfg.Bridge.RobotNamespace = "uav1"
			cfg.Bridge.ControlRate = 1000
			load()
			uav := newStation(bus, "uav1")

			world.run(5, ms)
			gs.collect()
			uav.collect()
			Expect(gs.wrenches).To(BeEmpty())
			Expect(uav.wrenches).To(HaveLen(5))
			Expect(uav.triggers).To(HaveLen(5))
		})

		It("skips every disabled channel but still drives the link", func() {
			cfg.Bridge.TriggerTopic = ""
			cfg.Bridge.VoltageTopicName = ""
			cfg.Bridge.WrenchTopic = ""
			cfg.Bridge.SupplyTopic = ""
			cfg.Bridge.StatusTopic = ""
			cfg.Bridge.ControlRate = 1000
			load()

			world.run(1500, ms)
			gs.collect()
			Expect(gs.triggers).To(BeEmpty())
			Expect(gs.wrenches).To(BeEmpty())
			Expect(gs.statuses).To(BeEmpty())
			Expect(gs.supplies).To(BeEmpty())
			Expect(link.forces).To(HaveLen(1500))
			Expect(model.calls).To(HaveLen(1500))
		})
	})

	Describe("Update", func() {
		It("does nothing when simulation time has not advanced", func() {
			cfg.Bridge.ControlRate = 1000
			load()
			var steps []bridge.Step
			b.AddObserver(func(s bridge.Step) { steps = append(steps, s) })

			world.stepTo(5 * ms)
			gs.collect()
			Expect(steps).To(HaveLen(1))

			world.stepTo(5 * ms)
			world.stepTo(3 * ms)
			gs.collect()

			Expect(steps).To(HaveLen(1))
			Expect(gs.wrenches).To(HaveLen(1))
			Expect(gs.triggers).To(HaveLen(1))
			Expect(gs.statuses).To(HaveLen(1))
			Expect(link.forces).To(HaveLen(1))
			Expect(link.torques).To(HaveLen(1))
			Expect(model.dts).To(HaveLen(1))
		})

		It("fires the trigger on every third 4 ms step for a 10 ms period", func() {
			cfg.Bridge.ControlPeriod = 0.01
			load()
			var fired []int
			n := 0
			b.AddObserver(func(s bridge.Step) {
				n++
				if s.Trigger {
					fired = append(fired, n)
				}
			})

			world.run(12, 4*ms)
			gs.collect()

			Expect(fired).To(Equal([]int{3, 6, 9, 12}))
			Expect(gs.triggers).To(HaveLen(4))
			for i, clk := range gs.triggers {
				Expect(clk.Stamp).To(Equal(time.Duration(12*(i+1)) * ms))
			}
		})

		It("keeps trigger intervals at or above the period", func() {
			cfg.Bridge.ControlRate = 30
			load()
			world.run(1000, 3*ms)
			gs.collect()

			period, _ := b.Timing()
			Expect(len(gs.triggers)).To(BeNumerically(">", 50))
			for i := 1; i < len(gs.triggers); i++ {
				gap := gs.triggers[i].Stamp - gs.triggers[i-1].Stamp
				Expect(gap).To(BeNumerically(">=", period))
				Expect(gap).To(BeNumerically("<", period+3*ms))
			}
		})

		It("publishes motor status exactly on triggered steps", func() {
			cfg.Bridge.ControlPeriod = 0.01
			load()
			var triggered []time.Duration
			b.AddObserver(func(s bridge.Step) {
				if s.Trigger {
					triggered = append(triggered, s.Time)
				}
			})

			world.run(50, 4*ms)
			gs.collect()

			Expect(gs.statuses).To(HaveLen(len(triggered)))
			for i, st := range gs.statuses {
				Expect(st.Stamp).To(Equal(triggered[i]))
			}
			_, _, lastStatus, _ := b.Timestamps()
			Expect(lastStatus).To(Equal(triggered[len(triggered)-1]))
		})

		It("publishes no status when the channel is disabled", func() {
			cfg.Bridge.StatusTopic = ""
			cfg.Bridge.ControlRate = 500
			load()
			world.run(20, ms)
			gs.collect()
			Expect(gs.triggers).NotTo(BeEmpty())
			Expect(gs.statuses).To(BeEmpty())
		})

		It("publishes the wrench every step", func() {
			model.wrench = msgs.Wrench{Force: dynamo.Vec3{Z: 12}}
			load()
			world.run(7, 2*ms)
			gs.collect()
			Expect(gs.wrenches).To(HaveLen(7))
			Expect(gs.wrenches[6].Force.Z).To(Equal(12.0))
		})

		It("rate-limits supply to one publish per simulated second", func() {
			load()
			var stamps []time.Duration
			b.AddObserver(func(bridge.Step) {
				gs.collect()
				for len(stamps) < len(gs.supplies)-1 {
					stamps = append(stamps, world.now)
				}
			})

			world.run(800, 4*ms)

			// the first supply is the load-time latch
			Expect(gs.supplies).To(HaveLen(4))
			Expect(stamps).To(Equal([]time.Duration{time.Second, 2 * time.Second, 3 * time.Second}))
		})

		It("feeds body-frame velocities and elapsed time to the model", func() {
			link.linear = dynamo.Vec3{X: 1, Z: -0.5}
			link.angular = dynamo.Vec3{Y: 0.2}
			load()

			world.stepTo(4 * ms)
			world.stepTo(10 * ms)

			Expect(model.twists).To(HaveLen(2))
			Expect(model.twists[1]).To(Equal(msgs.Twist{Linear: link.linear, Angular: link.angular}))
			Expect(model.dts).To(HaveLen(2))
			Expect(model.dts[0]).To(BeNumerically("~", 0.004, 1e-12))
			Expect(model.dts[1]).To(BeNumerically("~", 0.006, 1e-12))
		})

		It("applies torque about the centre of mass", func() {
			link.cog = dynamo.Vec3{X: 0.1}
			model.wrench = msgs.Wrench{
				Force:  dynamo.Vec3{Z: 10},
				Torque: dynamo.Vec3{X: 1},
			}
			load()
			world.stepTo(ms)

			Expect(link.forces).To(Equal([]dynamo.Vec3{{Z: 10}}))
			// (1,0,0) - (0.1,0,0) x (0,0,10) = (1,0,0) - (0,-1,0)
			Expect(link.torques).To(HaveLen(1))
			Expect(link.torques[0].X).To(BeNumerically("~", 1, 1e-12))
			Expect(link.torques[0].Y).To(BeNumerically("~", 1, 1e-12))
			Expect(link.torques[0].Z).To(BeNumerically("~", 0, 1e-12))
		})

		Context("wait budget", func() {
			BeforeEach(func() {
				cfg.Bridge.ControlPeriod = 0.01
				cfg.Bridge.ControlTolerance = 0.003
				cfg.Bridge.ControlDelay = 0.001
			})

			It("waits one second only on triggered steps while the motors are on", func() {
				load()
				world.run(6, 5*ms)

				waits := make([]time.Duration, 0, len(model.calls))
				for _, c := range model.calls {
					waits = append(waits, c.wait)
					Expect(c.window).To(Equal(queue.Window{Tolerance: 3 * ms, Delay: ms}))
				}
				Expect(waits).To(Equal([]time.Duration{0, time.Second, 0, time.Second, 0, time.Second}))
			})

			It("never waits while the motors are off", func() {
				model.on = false
				load()
				world.run(6, 5*ms)
				Expect(model.calls).To(HaveLen(6))
				for _, c := range model.calls {
					Expect(c.wait).To(BeZero())
				}
			})

			It("builds one status snapshot per step", func() {
				load()
				before := model.statusCalls
				world.run(6, 5*ms)
				Expect(model.statusCalls - before).To(Equal(6))
			})

			It("services the callback queue itself without a queue thread", func() {
				load()
				world.run(2, 5*ms)
				Expect(model.calls[1].hasPump).To(BeTrue())
			})

			It("leaves delivery to the queue thread when one runs", func() {
				cfg.Bridge.QueueThread = true
				load()
				world.run(2, 5*ms)
				Expect(model.calls[1].hasPump).To(BeFalse())
			})
		})
	})

	Describe("Reset", func() {
		It("zeroes the timestamps and rebaselines dt", func() {
			cfg.Bridge.ControlPeriod = 0.01
			load()
			world.run(300, 4*ms)
			last, trig, status, supply := b.Timestamps()
			Expect(last).To(Equal(1200 * ms))
			Expect(trig).NotTo(BeZero())
			Expect(status).NotTo(BeZero())
			Expect(supply).To(Equal(time.Second))

			gs.collect()
			published := len(gs.wrenches)
			b.Reset()
			b.Reset()
			gs.collect()

			last, trig, status, supply = b.Timestamps()
			Expect([]time.Duration{last, trig, status, supply}).To(HaveEach(BeZero()))
			Expect(model.resets).To(Equal(3))
			Expect(gs.wrenches).To(HaveLen(published))

			// the world restarts from zero: the first step is processed
			world.now = 0
			world.stepTo(4 * ms)
			Expect(model.dts[len(model.dts)-1]).To(BeNumerically("~", 0.004, 1e-12))
		})

		It("may be called while the world is stepping", func() {
			cfg.Bridge.ControlPeriod = 0.01
			load()
			done := make(chan struct{})
			go func() {
				defer close(done)
				for i := 0; i < 50; i++ {
					b.Reset()
				}
			}()
			world.run(200, ms)
			Eventually(done).WithTimeout(time.Second).Should(BeClosed())

			Expect(model.resets).To(Equal(51))
			Expect(model.dts).To(HaveEach(BeNumerically(">", 0)))
			last, _, _, _ := b.Timestamps()
			Expect(last).To(BeNumerically("<=", 200*ms))
		})
	})

	Describe("Close", func() {
		It("detaches from the world and shuts the node down", func() {
			load()
			world.run(3, ms)
			b.Close()
			b.Close()

			Expect(world.disconnected).To(Equal(1))
			world.run(3, ms)
			Expect(model.dts).To(HaveLen(3))

			pub, err := transport.NewNode(bus, "", nil).Advertise("motor_pwm", false)
			Expect(err).NotTo(HaveOccurred())
			Expect(pub.Publish(msgs.MotorPWM{PWM: []uint8{1, 2, 3, 4}})).To(Succeed())
			b.Update()
			Expect(model.commands()).To(BeEmpty())
		})

		It("joins the queue thread", func() {
			cfg.Bridge.QueueThread = true
			load()
			done := make(chan struct{})
			go func() {
				b.Close()
				close(done)
			}()
			Eventually(done).WithTimeout(time.Second).Should(BeClosed())
		})
	})

	Describe("command delivery", func() {
		var ctl *transport.Publisher

		BeforeEach(func() {
			var err error
			ctl, err = transport.NewNode(bus, "", nil).Advertise("motor_pwm", false)
			Expect(err).NotTo(HaveOccurred())
		})

		It("delivers commands during the step without a queue thread", func() {
			load()
			Expect(ctl.Publish(msgs.MotorPWM{Stamp: ms, PWM: []uint8{9, 9, 9, 9}})).To(Succeed())
			Expect(model.commands()).To(BeEmpty())

			world.stepTo(ms)
			Expect(model.commands()).To(HaveLen(1))
		})

		It("delivers commands between steps with a queue thread", func() {
			cfg.Bridge.QueueThread = true
			load()
			for i := 1; i <= 3; i++ {
				Expect(ctl.Publish(msgs.MotorPWM{Stamp: time.Duration(i) * ms, PWM: []uint8{1, 1, 1, 1}})).To(Succeed())
			}
			Eventually(model.commands).WithTimeout(time.Second).Should(HaveLen(3))
			stamps := []time.Duration{}
			for _, c := range model.commands() {
				stamps = append(stamps, c.Stamp)
			}
			Expect(stamps).To(Equal([]time.Duration{ms, 2 * ms, 3 * ms}))
		})
	})

	It("keeps instances independent", func() {
		cfg.Bridge.ControlRate = 100
		load()
		first := b

		otherWorld := &fakeWorld{}
		otherModel := newFakeModel()
		otherCfg := config.DefaultConfig()
		otherCfg.Bridge.RobotNamespace = "uav2"
		otherCfg.Bridge.ControlRate = 250
		second, err := bridge.Load(otherWorld, &fakeLink{}, otherCfg, bus, bridge.WithPropulsion(otherModel))
		Expect(err).NotTo(HaveOccurred())
		defer second.Close()

		world.run(10, ms)
		otherWorld.run(3, ms)

		l1, _, _, _ := first.Timestamps()
		l2, _, _, _ := second.Timestamps()
		Expect(l1).To(Equal(10 * ms))
		Expect(l2).To(Equal(3 * ms))
		Expect(model.dts).To(HaveLen(10))
		Expect(otherModel.dts).To(HaveLen(3))
	})
})
