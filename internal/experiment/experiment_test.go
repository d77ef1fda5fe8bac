package experiment

import (
	"context"
	"errors"
	"testing"

	"github.com/san-kum/rotorbridge/internal/config"
)

func shortConfig() *config.Config {
	cfg := config.GetPreset("lockstep")
	cfg.World.Duration = 2
	return cfg
}

func TestRunBeforeSetup(t *testing.T) {
	exp := New(config.DefaultConfig())
	if _, err := exp.Run(context.Background()); !errors.Is(err, ErrNotSetup) {
		t.Fatalf("got %v, want ErrNotSetup", err)
	}
}

func TestSetupRejectsMissingParams(t *testing.T) {
	cfg := shortConfig()
	cfg.Bridge.ParamNamespace = "missing"
	err := New(cfg).Setup(NewRegistry())
	if !errors.Is(err, config.ErrMissingModelParams) {
		t.Fatalf("got %v, want ErrMissingModelParams", err)
	}
}

func TestSetupRejectsUnknownNames(t *testing.T) {
	cfg := shortConfig()
	cfg.World.Integrator = "leapfrog"
	if err := New(cfg).Setup(NewRegistry()); err == nil {
		t.Error("expected error for unknown integrator")
	}

	cfg = shortConfig()
	cfg.Controller.Type = "mpc"
	if err := New(cfg).Setup(NewRegistry()); err == nil {
		t.Error("expected error for unknown controller")
	}
}

func TestLockstepRun(t *testing.T) {
	exp := New(shortConfig())
	if err := exp.Setup(NewRegistry()); err != nil {
		t.Fatal(err)
	}
	var observed int
	exp.AddObserver(ObserverFunc(func(Sample) { observed++ }))

	res, err := exp.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if res.StepsTaken != 2000 || observed != 2000 || len(res.Samples) != 2000 {
		t.Errorf("steps=%d observed=%d samples=%d, want 2000", res.StepsTaken, observed, len(res.Samples))
	}
	if res.Triggers != 200 {
		t.Errorf("triggers = %d, want 200", res.Triggers)
	}
	if res.Applied != res.Triggers {
		t.Errorf("applied %d of %d triggered steps", res.Applied, res.Triggers)
	}
	last := res.Samples[len(res.Samples)-1]
	if !last.On {
		t.Error("motors switched off during run")
	}
	if last.Position.Z < 0.2 {
		t.Errorf("altitude %f, expected the vehicle to climb", last.Position.Z)
	}
	if res.Metrics["mean_thrust"] <= 0 {
		t.Errorf("mean_thrust = %f", res.Metrics["mean_thrust"])
	}
	if res.SimTime.Seconds() != 2 {
		t.Errorf("sim time = %v", res.SimTime)
	}

	if _, err := exp.Run(context.Background()); err == nil {
		t.Error("second Run succeeded")
	}
}

func TestRunWithoutController(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.World.Duration = 0.5
	cfg.Controller.Type = "off"
	exp := New(cfg)
	if err := exp.Setup(NewRegistry()); err != nil {
		t.Fatal(err)
	}
	res, err := exp.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied != 0 || res.Commands != 0 {
		t.Errorf("applied=%d commands=%d without a controller", res.Applied, res.Commands)
	}
	if z := res.Samples[len(res.Samples)-1].Position.Z; z != 0 {
		t.Errorf("idle vehicle left the ground: z=%f", z)
	}
}

func TestRunWithoutCommandTopic(t *testing.T) {
	cfg := shortConfig()
	cfg.World.Duration = 0.5
	cfg.Bridge.VoltageTopicName = ""
	cfg.Bridge.ControlRate = 0
	cfg.Bridge.ControlPeriod = 0
	exp := New(cfg)
	if err := exp.Setup(NewRegistry()); err != nil {
		t.Fatalf("setup with the command channel disabled: %v", err)
	}
	res, err := exp.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Commands != 0 || res.Applied != 0 {
		t.Errorf("commands=%d applied=%d with no command topic", res.Commands, res.Applied)
	}
	if len(res.Samples) == 0 || !res.Samples[len(res.Samples)-1].On {
		t.Error("motors should stay on when no step waits for a command")
	}
}

func TestRunCancelled(t *testing.T) {
	exp := New(shortConfig())
	if err := exp.Setup(NewRegistry()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := exp.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestEnsembleRunsIndependentVehicles(t *testing.T) {
	base := shortConfig()
	base.World.Duration = 1
	targets := []float64{0.5, 1.0, 1.5}
	ens := NewEnsemble(base, len(targets), func(i int, cfg *config.Config) {
		cfg.Controller.Target = targets[i]
	})

	cfgs := ens.Configs()
	if cfgs[2].Bridge.RobotNamespace != "uav2" || cfgs[1].Controller.Target != 1.0 {
		t.Fatalf("unexpected ensemble configs: %+v", cfgs[2].Bridge)
	}
	if base.Bridge.RobotNamespace != "" {
		t.Fatal("ensemble mutated the base config")
	}

	results, err := ens.Run(context.Background(), NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	for i, res := range results {
		if res.Triggers != 100 || res.Applied != res.Triggers {
			t.Errorf("run %d: triggers=%d applied=%d", i, res.Triggers, res.Applied)
		}
		if res.Commands != res.Triggers {
			t.Errorf("run %d: controller sent %d commands for %d triggers", i, res.Commands, res.Triggers)
		}
	}
}

func TestRegistryLists(t *testing.T) {
	reg := NewRegistry()
	if got := reg.ListControllers(); len(got) != 2 || got[0] != "none" || got[1] != "pid" {
		t.Errorf("controllers = %v", got)
	}
	if got := reg.ListIntegrators(); len(got) != 2 || got[0] != "euler" || got[1] != "rk4" {
		t.Errorf("integrators = %v", got)
	}
	if _, err := reg.GetIntegrator(""); err != nil {
		t.Errorf("empty integrator name: %v", err)
	}
}
