package experiment

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/san-kum/rotorbridge/internal/config"
	"github.com/san-kum/rotorbridge/internal/metrics"
	"github.com/san-kum/rotorbridge/internal/transport"
)

// Ensemble flies several vehicles at once, each with its own world and
// bridge, all sharing one transport bus under distinct namespaces.
type Ensemble struct {
	base     *config.Config
	numRuns  int
	vary     func(i int, cfg *config.Config)
	log      *zap.Logger
	recorder *metrics.Recorder
}

// NewEnsemble prepares numRuns copies of base. vary, if set, adjusts copy i
// before it is set up.
func NewEnsemble(base *config.Config, numRuns int, vary func(i int, cfg *config.Config)) *Ensemble {
	return &Ensemble{base: base, numRuns: numRuns, vary: vary, log: zap.NewNop()}
}

func (e *Ensemble) SetLogger(l *zap.Logger)          { e.log = l }
func (e *Ensemble) SetRecorder(r *metrics.Recorder) { e.recorder = r }

// Configs returns the per-run configurations Run would use.
func (e *Ensemble) Configs() []*config.Config {
	cfgs := make([]*config.Config, e.numRuns)
	for i := range cfgs {
		cfg := e.base.Clone()
		cfg.Bridge.RobotNamespace = fmt.Sprintf("uav%d", i)
		if e.vary != nil {
			e.vary(i, cfg)
		}
		cfgs[i] = cfg
	}
	return cfgs
}

func (e *Ensemble) Run(ctx context.Context, reg *Registry) ([]*Result, error) {
	cfgs := e.Configs()
	bus := transport.NewBus()
	results := make([]*Result, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			exp := New(cfgs[idx], WithBus(bus), WithLogger(e.log), WithRecorder(e.recorder))
			if err := exp.Setup(reg); err != nil {
				errs[idx] = fmt.Errorf("run %d: %w", idx, err)
				return
			}
			results[idx], errs[idx] = exp.Run(ctx)
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}
