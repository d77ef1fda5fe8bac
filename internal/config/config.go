// Package config holds the run configuration: bridge parameters, the world
// and vehicle, the external controller and the propulsion parameter sets.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/rotorbridge/internal/dynamo"
	"github.com/san-kum/rotorbridge/internal/logging"
	"github.com/san-kum/rotorbridge/internal/propulsion"
)

var (
	// ErrMissingModelParams is returned when no propulsion parameter set
	// exists under the configured paramNamespace.
	ErrMissingModelParams = errors.New("config: missing propulsion model parameters")

	// ErrInvalid marks a value that fails validation.
	ErrInvalid = errors.New("config: invalid value")
)

const (
	DefaultParamNamespace = "quadrotor_propulsion"
	DefaultTriggerTopic   = "quadro/trigger"
	DefaultCommandTopic   = "motor_pwm"
	DefaultWrenchTopic    = "wrench_out"
	DefaultSupplyTopic    = "supply"
	DefaultStatusTopic    = "motor_status"

	DefaultStepSize = 0.001
	DefaultDuration = 10.0
	DefaultMass     = 1.477
	DefaultKp       = 40.0
	DefaultKi       = 5.0
	DefaultKd       = 25.0
	DefaultHoverPWM = 135
)

// Bridge carries the per-plugin keys. Times are in seconds, rates in Hz.
// An empty topic disables that channel.
type Bridge struct {
	RobotNamespace   string  `yaml:"robotNamespace"`
	ParamNamespace   string  `yaml:"paramNamespace"`
	TriggerTopic     string  `yaml:"triggerTopic"`
	VoltageTopicName string  `yaml:"voltageTopicName"`
	WrenchTopic      string  `yaml:"wrenchTopic"`
	SupplyTopic      string  `yaml:"supplyTopic"`
	StatusTopic      string  `yaml:"statusTopic"`
	ControlRate      float64 `yaml:"controlRate"`
	ControlPeriod    float64 `yaml:"controlPeriod"`
	ControlTolerance float64 `yaml:"controlTolerance"`
	ControlDelay     float64 `yaml:"controlDelay"`
	SupplyVoltage    float64 `yaml:"supplyVoltage"`
	QueueThread      bool    `yaml:"queueThread"`
}

// DefaultBridge returns the bridge keys with their stock values.
func DefaultBridge() Bridge {
	return Bridge{
		ParamNamespace:   DefaultParamNamespace,
		TriggerTopic:     DefaultTriggerTopic,
		VoltageTopicName: DefaultCommandTopic,
		WrenchTopic:      DefaultWrenchTopic,
		SupplyTopic:      DefaultSupplyTopic,
		StatusTopic:      DefaultStatusTopic,
		SupplyVoltage:    propulsion.DefaultSupplyVoltage,
	}
}

type World struct {
	StepSize   float64 `yaml:"step_size"`
	Duration   float64 `yaml:"duration"`
	Integrator string  `yaml:"integrator"`
	Gravity    float64 `yaml:"gravity"`
}

type Body struct {
	Name     string      `yaml:"name"`
	Mass     float64     `yaml:"mass"`
	Inertia  dynamo.Vec3 `yaml:"inertia"`
	CoG      dynamo.Vec3 `yaml:"cog"`
	Altitude float64     `yaml:"altitude"`
}

// Controller configures the external altitude-hold node.
type Controller struct {
	Type     string  `yaml:"type"`
	Kp       float64 `yaml:"kp"`
	Ki       float64 `yaml:"ki"`
	Kd       float64 `yaml:"kd"`
	Target   float64 `yaml:"target"`
	HoverPWM float64 `yaml:"hover_pwm"`
}

type Config struct {
	Bridge     Bridge                           `yaml:"bridge"`
	World      World                            `yaml:"world"`
	Body       Body                             `yaml:"body"`
	Controller Controller                       `yaml:"controller"`
	Log        logging.Options                  `yaml:"log"`
	Params     map[string]propulsion.Parameters `yaml:"params"`
}

func DefaultConfig() *Config {
	return &Config{
		Bridge: DefaultBridge(),
		World: World{
			StepSize:   DefaultStepSize,
			Duration:   DefaultDuration,
			Integrator: "rk4",
			Gravity:    9.81,
		},
		Body: Body{
			Name:    "base_link",
			Mass:    DefaultMass,
			Inertia: dynamo.Vec3{X: 0.01152, Y: 0.01152, Z: 0.0218},
		},
		Controller: Controller{
			Type:     "pid",
			Kp:       DefaultKp,
			Ki:       DefaultKi,
			Kd:       DefaultKd,
			Target:   1.0,
			HoverPWM: DefaultHoverPWM,
		},
		Log: logging.Options{Level: "info"},
		Params: map[string]propulsion.Parameters{
			DefaultParamNamespace: propulsion.DefaultParameters(),
		},
	}
}

// Load reads a YAML file over the defaults, so absent keys keep their
// default values and an explicit "" disables a topic.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Params = make(map[string]propulsion.Parameters, len(c.Params))
	for k, v := range c.Params {
		out.Params[k] = v
	}
	out.Log.Outputs = append([]string(nil), c.Log.Outputs...)
	return &out
}

// ModelParams resolves the propulsion parameters for the bridge's
// paramNamespace.
func (c *Config) ModelParams() (propulsion.Parameters, error) {
	p, ok := c.Params[c.Bridge.ParamNamespace]
	if !ok {
		return propulsion.Parameters{}, fmt.Errorf("%w: namespace %q", ErrMissingModelParams, c.Bridge.ParamNamespace)
	}
	return p, nil
}

// Validate rejects values the bridge cannot run with. A missing parameter
// namespace is reported by ModelParams, not here.
func (c *Config) Validate() error {
	if err := c.Bridge.Validate(); err != nil {
		return err
	}
	if c.World.StepSize <= 0 {
		return fmt.Errorf("%w: world.step_size must be positive", ErrInvalid)
	}
	if c.World.Duration <= 0 {
		return fmt.Errorf("%w: world.duration must be positive", ErrInvalid)
	}
	if c.Body.Mass <= 0 {
		return fmt.Errorf("%w: body.mass must be positive", ErrInvalid)
	}
	if c.Controller.HoverPWM < 0 || c.Controller.HoverPWM > 255 {
		return fmt.Errorf("%w: controller.hover_pwm must be within 0..255", ErrInvalid)
	}
	for ns, p := range c.Params {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: params %q: %v", ErrInvalid, ns, err)
		}
	}
	return nil
}

func (b Bridge) Validate() error {
	checks := []struct {
		key string
		v   float64
	}{
		{"controlRate", b.ControlRate},
		{"controlPeriod", b.ControlPeriod},
		{"controlTolerance", b.ControlTolerance},
		{"controlDelay", b.ControlDelay},
		{"supplyVoltage", b.SupplyVoltage},
	}
	for _, c := range checks {
		if c.v < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %g", ErrInvalid, c.key, c.v)
		}
	}
	return nil
}
