package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/san-kum/rotorbridge/internal/dynamo"
	"github.com/san-kum/rotorbridge/internal/msgs"
)

func wrench(fz, tx float64) msgs.Wrench {
	return msgs.Wrench{Force: dynamo.Vec3{Z: fz}, Torque: dynamo.Vec3{X: tx}}
}

func status(running bool, volts, amps float64) msgs.MotorStatus {
	s := msgs.MotorStatus{Running: running, On: true}
	for i := 0; i < msgs.NumMotors; i++ {
		s.Voltage = append(s.Voltage, volts)
		s.Current = append(s.Current, amps)
	}
	return s
}

func TestMetricsAccumulate(t *testing.T) {
	ms := Standard(0.5)
	samples := []struct {
		w msgs.Wrench
		s msgs.MotorStatus
	}{
		{wrench(10, 0.1), status(true, 8, 2)},
		{wrench(20, -1.0), status(true, 8, 2)},
		{wrench(0, 0), status(false, 0, 0)},
		{wrench(30, 0.2), status(true, 8, 2)},
	}
	for i, smp := range samples {
		for _, m := range ms {
			m.Observe(smp.w, smp.s, time.Duration(i)*time.Second)
		}
	}

	got := Summary(ms)
	want := map[string]float64{
		"mean_thrust":    15,
		"peak_torque":    1,
		"motor_uptime":   0.75,
		"control_effort": 6,
		// 64 W held for 0-1 s and 1-2 s, 0 W for 2-3 s
		"energy":    128,
		"stability": 0.75,
	}
	for name, w := range want {
		if math.Abs(got[name]-w) > 1e-9 {
			t.Errorf("%s = %f, want %f", name, got[name], w)
		}
	}
}

func TestMetricsReset(t *testing.T) {
	for _, m := range Standard(1) {
		m.Observe(wrench(5, 2), status(true, 10, 1), 0)
		m.Observe(wrench(5, 2), status(true, 10, 1), time.Second)
		m.Reset()
		want := 0.0
		if m.Name() == "stability" {
			want = 1
		}
		if v := m.Value(); v != want {
			t.Errorf("%s after reset = %f, want %f", m.Name(), v, want)
		}
	}
}

func TestEnergyIgnoresBackwardsTime(t *testing.T) {
	e := NewEnergy()
	e.Observe(msgs.Wrench{}, status(true, 10, 1), 2*time.Second)
	e.Observe(msgs.Wrench{}, status(true, 10, 1), time.Second)
	if e.Value() != 0 {
		t.Errorf("energy = %f, want 0", e.Value())
	}
}

func gathered(t *testing.T, reg *prometheus.Registry, name, robot string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "robot" && lp.GetValue() == robot {
					if c := m.GetCounter(); c != nil {
						return c.GetValue()
					}
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{robot=%q} not gathered", name, robot)
	return 0
}

func TestRecorderProbe(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	if err != nil {
		t.Fatal(err)
	}

	a, b := r.Probe("uav1"), r.Probe("uav2")
	a.Step(12.5)
	a.Step(13)
	a.Trigger()
	a.Applied()
	a.Timeout()
	a.Supply(14.2)
	b.Skipped()

	if v := gathered(t, reg, "rotorbridge_steps_total", "uav1"); v != 2 {
		t.Errorf("uav1 steps = %f, want 2", v)
	}
	if v := gathered(t, reg, "rotorbridge_thrust_newtons", "uav1"); v != 13 {
		t.Errorf("uav1 thrust = %f, want 13", v)
	}
	if v := gathered(t, reg, "rotorbridge_skipped_steps_total", "uav2"); v != 1 {
		t.Errorf("uav2 skipped = %f, want 1", v)
	}
	if v := gathered(t, reg, "rotorbridge_steps_total", "uav2"); v != 0 {
		t.Errorf("uav2 steps = %f, want 0", v)
	}
}

func TestRecorderDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewRecorder(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := NewRecorder(reg); err == nil {
		t.Error("second registration succeeded")
	}
}

func TestNilProbeIsNoop(t *testing.T) {
	var r *Recorder
	p := r.Probe("x")
	p.Step(1)
	p.Skipped()
	p.Trigger()
	p.Applied()
	p.Timeout()
	p.Supply(1)
}
