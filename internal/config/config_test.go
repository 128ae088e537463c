package config

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/san-kum/canosim/internal/growth"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Samples <= 0 {
		t.Error("samples should be positive")
	}
	if len(cfg.Distributions) != 4 {
		t.Errorf("expected 4 distributions, got %d", len(cfg.Distributions))
	}
}

func TestValidate(t *testing.T) {
	check := func(name string, mutate func(*Config)) {
		cfg := DefaultConfig()
		mutate(cfg)
		if cfg.Validate() == nil {
			t.Errorf("%s: expected validation failure", name)
		}
	}

	check("zero samples", func(c *Config) { c.Samples = 0 })
	check("negative bootstrap", func(c *Config) { c.Bootstrap = -1 })
	check("zero step", func(c *Config) { c.Times.Step = 0 })
	check("end before start", func(c *Config) { c.Times.End = c.Times.Start - 1 })
	check("missing distribution", func(c *Config) { delete(c.Distributions, growth.ParamG) })
	check("unknown distribution", func(c *Config) { c.Distributions["mystery"] = DistConfig{} })
	check("negative std dev", func(c *Config) {
		c.Distributions[growth.ParamR] = DistConfig{Mean: 0.01, StdDev: -1}
	})
}

func TestTimePoints(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Times = TimeGrid{Start: 1, End: 300, Step: 1}

	times := cfg.TimePoints()
	if len(times) != 300 {
		t.Fatalf("expected 300 points, got %d", len(times))
	}
	if times[0] != 1 || math.Abs(times[299]-300) > 1e-9 {
		t.Errorf("grid endpoints wrong: %f .. %f", times[0], times[299])
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			t.Fatalf("grid not strictly increasing at %d", i)
		}
	}
}

func TestTimePointsFractionalStep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Times = TimeGrid{Start: 1, End: 300, Step: 0.1}

	times := cfg.TimePoints()
	if len(times) != 2991 {
		t.Fatalf("expected 2991 points, got %d", len(times))
	}
	if math.Abs(times[len(times)-1]-300) > 1e-9 {
		t.Errorf("final point = %v, want 300", times[len(times)-1])
	}

	cfg.Times = TimeGrid{Start: 0, End: 1, Step: 0.3}
	times = cfg.TimePoints()
	if len(times) != 4 {
		t.Fatalf("expected 4 points, got %v", times)
	}
	if math.Abs(times[3]-0.9) > 1e-9 {
		t.Errorf("final point = %v, want 0.9", times[3])
	}
}

func TestNominalParams(t *testing.T) {
	cfg := DefaultConfig()
	p, err := cfg.NominalParams()
	if err != nil {
		t.Fatalf("NominalParams: %v", err)
	}
	if p.K != 250 || p.CanopyThreshold != 50 {
		t.Errorf("unexpected nominal params: %+v", p)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Samples = 1234
	cfg.Distributions[growth.ParamK] = DistConfig{Mean: 300, StdDev: 10}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Samples != 1234 {
		t.Errorf("samples = %d, want 1234", loaded.Samples)
	}
	if d := loaded.Distributions[growth.ParamK]; d.Mean != 300 || d.StdDev != 10 {
		t.Errorf("K distribution = %+v", d)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("quick")
	if cfg == nil {
		t.Fatal("expected quick preset")
	}
	if cfg.Samples != 100 {
		t.Errorf("quick samples = %d, want 100", cfg.Samples)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("quick preset invalid: %v", err)
	}

	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for unknown preset")
	}
}

func TestListPresets(t *testing.T) {
	names := ListPresets()
	if len(names) != 3 {
		t.Fatalf("expected 3 presets, got %v", names)
	}
	for _, name := range names {
		if GetPreset(name) == nil {
			t.Errorf("preset %q not gettable", name)
		}
	}
}
