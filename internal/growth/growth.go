// Package growth defines the two-regime canopy growth model.
//
// Below the canopy closure threshold the stock grows exponentially at
// rate r. At or above the threshold growth switches to a linear,
// capacity-limited regime approaching the carrying capacity K.
package growth

import (
	"fmt"
	"math"
)

// Parameter names in canonical column order. Sampling, design
// construction, and index reporting all use this order.
const (
	ParamR               = "r"
	ParamK               = "K"
	ParamG               = "g"
	ParamCanopyThreshold = "canopy_threshold"
)

// ParamNames returns the canonical parameter order.
func ParamNames() []string {
	return []string{ParamR, ParamK, ParamG, ParamCanopyThreshold}
}

type Params struct {
	R               float64 // exponential growth rate
	K               float64 // carrying capacity
	G               float64 // linear growth rate above threshold
	CanopyThreshold float64 // regime switch point
}

type InvalidParameterError struct {
	Name  string
	Value float64
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%g", e.Name, e.Value)
}

// Validate rejects parameter sets that would produce a non-finite or
// undefined derivative. Negative r or g are valid numeric regimes.
func (p Params) Validate() error {
	if math.IsNaN(p.K) || p.K <= 0 {
		return &InvalidParameterError{Name: ParamK, Value: p.K}
	}
	if math.IsNaN(p.CanopyThreshold) || p.CanopyThreshold <= 0 {
		return &InvalidParameterError{Name: ParamCanopyThreshold, Value: p.CanopyThreshold}
	}
	if math.IsNaN(p.R) || math.IsInf(p.R, 0) {
		return &InvalidParameterError{Name: ParamR, Value: p.R}
	}
	if math.IsNaN(p.G) || math.IsInf(p.G, 0) {
		return &InvalidParameterError{Name: ParamG, Value: p.G}
	}
	if math.IsInf(p.K, 0) || math.IsInf(p.CanopyThreshold, 0) {
		return &InvalidParameterError{Name: ParamK, Value: p.K}
	}
	return nil
}

// FromValues builds a validated parameter set from a sampled row keyed
// by parameter name.
func FromValues(values map[string]float64) (Params, error) {
	for _, name := range ParamNames() {
		if _, ok := values[name]; !ok {
			return Params{}, fmt.Errorf("missing parameter %q", name)
		}
	}
	p := Params{
		R:               values[ParamR],
		K:               values[ParamK],
		G:               values[ParamG],
		CanopyThreshold: values[ParamCanopyThreshold],
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Values returns the parameter set keyed by name.
func (p Params) Values() map[string]float64 {
	return map[string]float64{
		ParamR:               p.R,
		ParamK:               p.K,
		ParamG:               p.G,
		ParamCanopyThreshold: p.CanopyThreshold,
	}
}

// Derive computes the instantaneous rate of change of the stock.
// The switch is a hard threshold on the current state; a state exactly
// at the threshold takes the capacity-limited branch.
func (p Params) Derive(t, state float64) float64 {
	if state < p.CanopyThreshold {
		return p.R * state
	}
	return p.G * (1 - state/p.K)
}
