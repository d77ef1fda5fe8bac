package config

import "sort"

// Presets adjust the bridge timing on top of DefaultConfig.
var Presets = map[string]func(*Config){
	// trigger-driven lockstep at 100 Hz: every command is awaited
	"lockstep": func(c *Config) {
		c.Bridge.ControlRate = 100
		c.Bridge.ControlTolerance = 0.01
	},
	// commands apply 20 ms after their stamp
	"delayed": func(c *Config) {
		c.Bridge.ControlRate = 100
		c.Bridge.ControlDelay = 0.02
		c.Bridge.ControlTolerance = 0.005
	},
	// no control timer; commands apply when they arrive
	"freerun": func(c *Config) {
		c.Bridge.ControlRate = 0
		c.Bridge.ControlPeriod = 0
		c.Bridge.QueueThread = true
	},
	"fast": func(c *Config) {
		c.Bridge.ControlRate = 500
		c.Bridge.ControlTolerance = 0.002
		c.World.StepSize = 0.0005
	},
}

// GetPreset returns DefaultConfig with the named preset applied, or nil.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
