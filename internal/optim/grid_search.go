// Package optim searches bridge and controller settings for the best flight.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/rotorbridge/internal/config"
	"github.com/san-kum/rotorbridge/internal/experiment"
)

var ErrNoTrials = errors.New("optim: no trial succeeded")

// Objective scores one parameter combination.
type Objective func(ctx context.Context, params map[string]float64) (float64, error)

type Trial struct {
	Params map[string]float64
	Score  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	maximize   bool
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Maximize flips the search to prefer higher scores.
func (g *GridSearch) Maximize() *GridSearch {
	g.maximize = true
	return g
}

// Search evaluates every grid point in order. Failed trials are kept in the
// returned list but never win. Cancellation stops the search.
func (g *GridSearch) Search(ctx context.Context, obj Objective) (Trial, []Trial, error) {
	if len(g.paramNames) != len(g.ranges) {
		return Trial{}, nil, fmt.Errorf("optim: %d names for %d ranges", len(g.paramNames), len(g.ranges))
	}

	var trials []Trial
	err := g.walk(ctx, 0, map[string]float64{}, func(p map[string]float64) {
		score, err := obj(ctx, p)
		trials = append(trials, Trial{Params: p, Score: score, Err: err})
	})
	if err != nil {
		return Trial{}, trials, err
	}

	best := -1
	for i, t := range trials {
		if t.Err != nil || math.IsNaN(t.Score) {
			continue
		}
		if best < 0 || g.better(t.Score, trials[best].Score) {
			best = i
		}
	}
	if best < 0 {
		return Trial{}, trials, ErrNoTrials
	}
	return trials[best], trials, nil
}

func (g *GridSearch) better(a, b float64) bool {
	if g.maximize {
		return a > b
	}
	return a < b
}

func (g *GridSearch) walk(ctx context.Context, depth int, current map[string]float64, visit func(map[string]float64)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		visit(current)
		return nil
	}
	for _, v := range g.ranges[depth] {
		next := make(map[string]float64, len(current)+1)
		for k, cv := range current {
			next[k] = cv
		}
		next[g.paramNames[depth]] = v
		if err := g.walk(ctx, depth+1, next, visit); err != nil {
			return err
		}
	}
	return nil
}

// Tunable names the config fields a grid may vary.
var Tunable = map[string]func(*config.Config, float64){
	"kp":        func(c *config.Config, v float64) { c.Controller.Kp = v },
	"ki":        func(c *config.Config, v float64) { c.Controller.Ki = v },
	"kd":        func(c *config.Config, v float64) { c.Controller.Kd = v },
	"hover_pwm": func(c *config.Config, v float64) { c.Controller.HoverPWM = v },
	"rate":      func(c *config.Config, v float64) { c.Bridge.ControlRate = v },
	"tolerance": func(c *config.Config, v float64) { c.Bridge.ControlTolerance = v },
	"delay":     func(c *config.Config, v float64) { c.Bridge.ControlDelay = v },
}

func TunableNames() []string {
	names := make([]string, 0, len(Tunable))
	for n := range Tunable {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply returns a copy of base with params written into it.
func Apply(base *config.Config, params map[string]float64) (*config.Config, error) {
	cfg := base.Clone()
	for name, v := range params {
		set, ok := Tunable[name]
		if !ok {
			return nil, fmt.Errorf("optim: unknown parameter %q (tunable: %v)", name, TunableNames())
		}
		set(cfg, v)
	}
	return cfg, cfg.Validate()
}

// FlightObjective flies base with the trial parameters applied and scores
// the named summary metric.
func FlightObjective(base *config.Config, reg *experiment.Registry, metric string, opts ...experiment.Option) Objective {
	return func(ctx context.Context, params map[string]float64) (float64, error) {
		cfg, err := Apply(base, params)
		if err != nil {
			return 0, err
		}
		exp := experiment.New(cfg, opts...)
		if err := exp.Setup(reg); err != nil {
			return 0, err
		}
		res, err := exp.Run(ctx)
		if err != nil {
			return 0, err
		}
		v, ok := res.Metrics[metric]
		if !ok {
			return 0, fmt.Errorf("optim: run has no metric %q", metric)
		}
		return v, nil
	}
}
