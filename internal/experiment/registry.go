package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/rotorbridge/internal/config"
	"github.com/san-kum/rotorbridge/internal/controllers"
	"github.com/san-kum/rotorbridge/internal/dynamo"
	"github.com/san-kum/rotorbridge/internal/integrators"
	"github.com/san-kum/rotorbridge/internal/metrics"
)

// Registry maps configuration names to body integrators and altitude
// controllers.
type Registry struct {
	integrators map[string]func() dynamo.Integrator
	controllers map[string]func(config.Controller) dynamo.Controller
}

func NewRegistry() *Registry {
	r := &Registry{
		integrators: make(map[string]func() dynamo.Integrator),
		controllers: make(map[string]func(config.Controller) dynamo.Controller),
	}

	for _, name := range integrators.Names() {
		r.integrators[name] = func() dynamo.Integrator {
			integ, _ := integrators.New(name)
			return integ
		}
	}

	r.controllers["none"] = func(config.Controller) dynamo.Controller {
		return controllers.NewNone(1)
	}
	r.controllers["pid"] = func(c config.Controller) dynamo.Controller {
		pid := controllers.NewPID(c.Kp, c.Ki, c.Kd, c.Target)
		pid.Limit = 40
		return pid
	}

	return r
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	if name == "" {
		name = "rk4"
	}
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetController(cfg config.Controller) (dynamo.Controller, error) {
	fn, ok := r.controllers[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown controller: %s", cfg.Type)
	}
	return fn(cfg), nil
}

func (r *Registry) ListControllers() []string {
	return sortedKeys(r.controllers)
}

func (r *Registry) ListIntegrators() []string {
	return sortedKeys(r.integrators)
}

// DefaultMetrics are recorded for every run.
func (r *Registry) DefaultMetrics() []metrics.Metric {
	return metrics.Standard(0.5)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
