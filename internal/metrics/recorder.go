package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the prometheus collectors shared by every bridge in a
// process. Each bridge reports through its own Probe.
type Recorder struct {
	steps    *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	triggers *prometheus.CounterVec
	applied  *prometheus.CounterVec
	timeouts *prometheus.CounterVec
	thrust   *prometheus.GaugeVec
	voltage  *prometheus.GaugeVec
}

// NewRecorder registers the bridge collectors with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rotorbridge_steps_total",
			Help: "Simulation steps processed by the bridge",
		}, []string{"robot"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rotorbridge_skipped_steps_total",
			Help: "Steps ignored because simulation time did not advance",
		}, []string{"robot"}),
		triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rotorbridge_triggers_total",
			Help: "Control timer fires",
		}, []string{"robot"}),
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rotorbridge_command_batches_total",
			Help: "Steps on which at least one motor command was applied",
		}, []string{"robot"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rotorbridge_command_timeouts_total",
			Help: "Command waits that expired and disabled the motors",
		}, []string{"robot"}),
		thrust: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rotorbridge_thrust_newtons",
			Help: "Collective thrust of the last step",
		}, []string{"robot"}),
		voltage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rotorbridge_supply_voltage_volts",
			Help: "Last published battery voltage",
		}, []string{"robot"}),
	}
	for _, c := range []prometheus.Collector{r.steps, r.skipped, r.triggers, r.applied, r.timeouts, r.thrust, r.voltage} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Probe returns the label-bound view for one robot. A nil Recorder yields a
// nil Probe, whose methods are no-ops.
func (r *Recorder) Probe(robot string) *Probe {
	if r == nil {
		return nil
	}
	return &Probe{
		steps:    r.steps.WithLabelValues(robot),
		skipped:  r.skipped.WithLabelValues(robot),
		triggers: r.triggers.WithLabelValues(robot),
		applied:  r.applied.WithLabelValues(robot),
		timeouts: r.timeouts.WithLabelValues(robot),
		thrust:   r.thrust.WithLabelValues(robot),
		voltage:  r.voltage.WithLabelValues(robot),
	}
}

// Probe is a Recorder bound to a single robot label.
type Probe struct {
	steps, skipped, triggers, applied, timeouts prometheus.Counter
	thrust, voltage                             prometheus.Gauge
}

func (p *Probe) Step(thrust float64) {
	if p == nil {
		return
	}
	p.steps.Inc()
	p.thrust.Set(thrust)
}

func (p *Probe) Skipped() {
	if p != nil {
		p.skipped.Inc()
	}
}

func (p *Probe) Trigger() {
	if p != nil {
		p.triggers.Inc()
	}
}

func (p *Probe) Applied() {
	if p != nil {
		p.applied.Inc()
	}
}

func (p *Probe) Timeout() {
	if p != nil {
		p.timeouts.Inc()
	}
}

func (p *Probe) Supply(volts float64) {
	if p != nil {
		p.voltage.Set(volts)
	}
}
