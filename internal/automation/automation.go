// Package automation runs scripted batches of flights: YAML scenarios and
// Monte Carlo robustness trials.
package automation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"

	"github.com/san-kum/rotorbridge/internal/config"
	"github.com/san-kum/rotorbridge/internal/experiment"
	"github.com/san-kum/rotorbridge/internal/optim"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Scenario is a named sequence of flights.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep flies one preset with optional tunable overrides.
type ScenarioStep struct {
	Name       string             `yaml:"name"`
	Preset     string             `yaml:"preset"`
	Duration   float64            `yaml:"duration"`
	Controller string             `yaml:"controller"`
	Target     *float64           `yaml:"target"`
	Params     map[string]float64 `yaml:"params"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("automation: scenario %q has no steps", sc.Name)
	}
	return &sc, nil
}

// Config resolves a step against the preset table.
func (s ScenarioStep) Config() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if s.Preset != "" {
		if cfg = config.GetPreset(s.Preset); cfg == nil {
			return nil, fmt.Errorf("automation: unknown preset %q", s.Preset)
		}
	}
	if s.Duration > 0 {
		cfg.World.Duration = s.Duration
	}
	if s.Controller != "" {
		cfg.Controller.Type = s.Controller
	}
	if s.Target != nil {
		cfg.Controller.Target = *s.Target
	}
	return optim.Apply(cfg, s.Params)
}

type StepResult struct {
	Step   ScenarioStep
	Config *config.Config
	Result *experiment.Result
}

// RunScenario flies each step in order and stops at the first failure.
func RunScenario(ctx context.Context, sc *Scenario, reg *experiment.Registry, log *zap.Logger) ([]StepResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	results := make([]StepResult, 0, len(sc.Steps))
	for i, step := range sc.Steps {
		log.Info("scenario step", zap.String("scenario", sc.Name), zap.Int("step", i+1),
			zap.Int("of", len(sc.Steps)), zap.String("name", step.Name))

		cfg, err := step.Config()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		exp := experiment.New(cfg, experiment.WithLogger(log))
		if err := exp.Setup(reg); err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}
		res, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}
		results = append(results, StepResult{Step: step, Config: cfg, Result: res})
	}
	return results, nil
}

// MonteCarloConfig perturbs tunable parameters uniformly by up to
// ±Perturbation[name] around their base values.
type MonteCarloConfig struct {
	Base         *config.Config
	Perturbation map[string]float64
	NumTrials    int
	Seed         int64
	// Band is the allowed final altitude error for a trial to count as stable.
	Band float64
}

type MonteCarloResult struct {
	TrialID  int
	Params   map[string]float64
	Altitude float64
	Stable   bool
	Err      error
}

func baseValue(cfg *config.Config, name string) float64 {
	switch name {
	case "kp":
		return cfg.Controller.Kp
	case "ki":
		return cfg.Controller.Ki
	case "kd":
		return cfg.Controller.Kd
	case "hover_pwm":
		return cfg.Controller.HoverPWM
	case "rate":
		return cfg.Bridge.ControlRate
	case "tolerance":
		return cfg.Bridge.ControlTolerance
	case "delay":
		return cfg.Bridge.ControlDelay
	}
	return 0
}

// RunMonteCarlo flies NumTrials perturbed copies of Base one after another.
// Negative perturbed values are clamped to zero.
func RunMonteCarlo(ctx context.Context, mc *MonteCarloConfig, reg *experiment.Registry, log *zap.Logger) ([]MonteCarloResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	names := make([]string, 0, len(mc.Perturbation))
	for n := range mc.Perturbation {
		if _, ok := optim.Tunable[n]; !ok {
			return nil, fmt.Errorf("automation: cannot perturb %q (tunable: %v)", n, optim.TunableNames())
		}
		names = append(names, n)
	}
	sort.Strings(names)

	rng := rand.New(rand.NewSource(mc.Seed))
	results := make([]MonteCarloResult, 0, mc.NumTrials)
	for trial := 0; trial < mc.NumTrials; trial++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		params := make(map[string]float64, len(names))
		for _, n := range names {
			v := baseValue(mc.Base, n) + (rng.Float64()*2-1)*mc.Perturbation[n]
			params[n] = math.Max(v, 0)
		}

		r := MonteCarloResult{TrialID: trial, Params: params}
		alt, err := fly(ctx, mc.Base, params, reg, log)
		if err != nil {
			r.Err = err
		} else {
			r.Altitude = alt
			r.Stable = math.Abs(alt-mc.Base.Controller.Target) <= mc.Band
		}
		results = append(results, r)

		if (trial+1)%10 == 0 {
			log.Info("monte carlo progress", zap.Int("done", trial+1), zap.Int("trials", mc.NumTrials))
		}
	}
	return results, nil
}

func fly(ctx context.Context, base *config.Config, params map[string]float64, reg *experiment.Registry, log *zap.Logger) (float64, error) {
	cfg, err := optim.Apply(base, params)
	if err != nil {
		return 0, err
	}
	exp := experiment.New(cfg, experiment.WithLogger(log))
	if err := exp.Setup(reg); err != nil {
		return 0, err
	}
	res, err := exp.Run(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Samples) == 0 {
		return 0, fmt.Errorf("automation: run recorded no samples")
	}
	return res.Samples[len(res.Samples)-1].Position.Z, nil
}

func MonteCarloStats(results []MonteCarloResult) (stable, unstable, failed int) {
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
		case r.Stable:
			stable++
		default:
			unstable++
		}
	}
	return
}
