// Package integrate advances a scalar ODE across requested output time
// points using an adaptive embedded Runge-Kutta pair.
package integrate

import (
	"errors"
	"fmt"
	"math"
)

// Func computes the derivative dy/dt at time t and state y.
type Func func(t, y float64) float64

// Options control step-size selection and error tolerances.
type Options struct {
	InitialStep float64
	MinStep     float64
	MaxStep     float64
	AbsTol      float64
	RelTol      float64
	MaxSteps    int
}

// DefaultOptions are balanced settings for yearly-scale growth runs.
func DefaultOptions() *Options {
	return &Options{
		InitialStep: 0.1,
		MinStep:     1e-8,
		MaxStep:     1.0,
		AbsTol:      1e-8,
		RelTol:      1e-6,
		MaxSteps:    100000,
	}
}

// FastOptions trade accuracy for speed. Useful for large sample counts.
func FastOptions() *Options {
	return &Options{
		InitialStep: 0.5,
		MinStep:     1e-6,
		MaxStep:     5.0,
		AbsTol:      1e-4,
		RelTol:      1e-3,
		MaxSteps:    20000,
	}
}

// AccurateOptions are for publication-grade runs.
func AccurateOptions() *Options {
	return &Options{
		InitialStep: 0.01,
		MinStep:     1e-10,
		MaxStep:     0.5,
		AbsTol:      1e-10,
		RelTol:      1e-8,
		MaxSteps:    1000000,
	}
}

// Trajectory is the state sampled at the requested output times,
// strictly increasing in time.
type Trajectory struct {
	Times  []float64
	States []float64
}

func (tr *Trajectory) Len() int { return len(tr.Times) }

func (tr *Trajectory) At(i int) (t, y float64) {
	return tr.Times[i], tr.States[i]
}

func (tr *Trajectory) Final() float64 {
	return tr.States[len(tr.States)-1]
}

// InstabilityError reports a non-finite derivative or state during
// integration, carrying the last valid time/state pair.
type InstabilityError struct {
	T     float64
	State float64
}

func (e *InstabilityError) Error() string {
	return fmt.Sprintf("non-finite derivative; last valid state %g at t=%g", e.State, e.T)
}

// ConvergenceError reports step-size underflow or an exceeded step budget.
type ConvergenceError struct {
	T      float64
	Reason string
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("integration failed to converge at t=%g: %s", e.T, e.Reason)
}

var ErrNoTimePoints = errors.New("no output time points")

func validateTimes(times []float64) error {
	if len(times) == 0 {
		return ErrNoTimePoints
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return fmt.Errorf("time points must be strictly increasing: t[%d]=%g, t[%d]=%g",
				i-1, times[i-1], i, times[i])
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
