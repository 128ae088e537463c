package config

import (
	"sort"

	"github.com/san-kum/canosim/internal/integrate"
)

func presetFrom(samples, bootstrap int, opts *integrate.Options) *Config {
	cfg := DefaultConfig()
	cfg.Samples = samples
	cfg.Bootstrap = bootstrap
	cfg.Solver = SolverConfig{
		InitialStep: opts.InitialStep,
		MinStep:     opts.MinStep,
		MaxStep:     opts.MaxStep,
		AbsTol:      opts.AbsTol,
		RelTol:      opts.RelTol,
		MaxSteps:    opts.MaxSteps,
	}
	return cfg
}

// Presets are named analysis profiles trading runtime for precision.
var Presets = map[string]func() *Config{
	"quick": func() *Config {
		return presetFrom(100, 100, integrate.FastOptions())
	},
	"default": func() *Config {
		return presetFrom(DefaultSamples, 0, integrate.DefaultOptions())
	},
	"publication": func() *Config {
		return presetFrom(2000, 1000, integrate.AccurateOptions())
	},
}

func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
