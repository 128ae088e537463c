// Package config holds the analysis configuration: growth parameter
// marginals, time grid, sample counts, and solver settings.
package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/canosim/internal/growth"
	"github.com/san-kum/canosim/internal/integrate"
	"github.com/san-kum/canosim/internal/sample"
)

const (
	DefaultInitialState = 10.0
	DefaultStartYear    = 1.0
	DefaultEndYear      = 300.0
	DefaultStep         = 1.0
	DefaultSamples      = 500
	DefaultSeed         = 42
)

type DistConfig struct {
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"std_dev"`
}

type TimeGrid struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
	Step  float64 `yaml:"step"`
}

type SolverConfig struct {
	InitialStep float64 `yaml:"initial_step"`
	MinStep     float64 `yaml:"min_step"`
	MaxStep     float64 `yaml:"max_step"`
	AbsTol      float64 `yaml:"abs_tol"`
	RelTol      float64 `yaml:"rel_tol"`
	MaxSteps    int     `yaml:"max_steps"`
}

type Config struct {
	InitialState  float64               `yaml:"initial_state"`
	Times         TimeGrid              `yaml:"times"`
	Samples       int                   `yaml:"samples"`
	Bootstrap     int                   `yaml:"bootstrap"` // 0 means samples
	Seed          int64                 `yaml:"seed"`
	Workers       int                   `yaml:"workers"` // 0 means NumCPU
	Solver        SolverConfig          `yaml:"solver"`
	Distributions map[string]DistConfig `yaml:"distributions"`
}

func DefaultConfig() *Config {
	opts := integrate.DefaultOptions()
	return &Config{
		InitialState: DefaultInitialState,
		Times:        TimeGrid{Start: DefaultStartYear, End: DefaultEndYear, Step: DefaultStep},
		Samples:      DefaultSamples,
		Seed:         DefaultSeed,
		Solver: SolverConfig{
			InitialStep: opts.InitialStep,
			MinStep:     opts.MinStep,
			MaxStep:     opts.MaxStep,
			AbsTol:      opts.AbsTol,
			RelTol:      opts.RelTol,
			MaxSteps:    opts.MaxSteps,
		},
		Distributions: map[string]DistConfig{
			growth.ParamR:               {Mean: 0.01, StdDev: 0.003},
			growth.ParamK:               {Mean: 250, StdDev: 25},
			growth.ParamG:               {Mean: 2, StdDev: 0.5},
			growth.ParamCanopyThreshold: {Mean: 50, StdDev: 5},
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
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

// Validate reports malformed configuration. These are fatal at setup
// time, before any sampling or integration.
func (c *Config) Validate() error {
	if c.Samples <= 0 {
		return fmt.Errorf("samples must be positive, got %d", c.Samples)
	}
	if c.Bootstrap < 0 {
		return fmt.Errorf("bootstrap must be non-negative, got %d", c.Bootstrap)
	}
	if c.Times.Step <= 0 {
		return fmt.Errorf("time step must be positive, got %f", c.Times.Step)
	}
	if c.Times.End < c.Times.Start {
		return fmt.Errorf("time grid end %f before start %f", c.Times.End, c.Times.Start)
	}
	names := growth.ParamNames()
	for _, name := range names {
		if _, ok := c.Distributions[name]; !ok {
			return fmt.Errorf("missing distribution for parameter %q", name)
		}
	}
	for key, d := range c.Distributions {
		known := false
		for _, name := range names {
			if name == key {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("distribution for unknown parameter %q", key)
		}
		if d.StdDev < 0 {
			return fmt.Errorf("negative standard deviation for %q", key)
		}
	}
	return nil
}

// TimePoints expands the grid into the ordered output times. Points
// are computed positionally as Start + i*Step; an accumulating sum
// drifts under fractional steps and can gain or lose the final point.
func (c *Config) TimePoints() []float64 {
	ratio := (c.Times.End - c.Times.Start) / c.Times.Step
	steps := int(math.Floor(ratio*(1+1e-12) + 1e-12))
	times := make([]float64, steps+1)
	for i := range times {
		times[i] = c.Times.Start + float64(i)*c.Times.Step
	}
	return times
}

// Dists converts the configured marginals for the sampler.
func (c *Config) Dists() map[string]sample.Dist {
	out := make(map[string]sample.Dist, len(c.Distributions))
	for name, d := range c.Distributions {
		out[name] = sample.Dist{Mean: d.Mean, StdDev: d.StdDev}
	}
	return out
}

// NominalParams returns the parameter set at the distribution means.
func (c *Config) NominalParams() (growth.Params, error) {
	values := make(map[string]float64, len(c.Distributions))
	for name, d := range c.Distributions {
		values[name] = d.Mean
	}
	return growth.FromValues(values)
}

// SolverOptions converts the solver section for the integrator.
func (c *Config) SolverOptions() *integrate.Options {
	return &integrate.Options{
		InitialStep: c.Solver.InitialStep,
		MinStep:     c.Solver.MinStep,
		MaxStep:     c.Solver.MaxStep,
		AbsTol:      c.Solver.AbsTol,
		RelTol:      c.Solver.RelTol,
		MaxSteps:    c.Solver.MaxSteps,
	}
}
