package integrate

import "math"

// Dormand-Prince 5(4) coefficients
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 + 92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

const (
	safety   = 0.9
	minScale = 0.1
	maxScale = 5.0
)

// Integrate advances f from the initial state across the requested
// output times. Internal step sizes are chosen adaptively and need not
// coincide with output points; output values come from cubic Hermite
// interpolation inside accepted steps. The initial state belongs to
// times[0], or to t=0 when times[0] is later.
func Integrate(f Func, initial float64, times []float64, opts *Options) (*Trajectory, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := validateTimes(times); err != nil {
		return nil, err
	}

	tr := &Trajectory{
		Times:  make([]float64, 0, len(times)),
		States: make([]float64, 0, len(times)),
	}

	t := times[0]
	if t > 0 {
		t = 0
	}
	tEnd := times[len(times)-1]

	y := initial
	out := 0
	if times[0] == t {
		tr.Times = append(tr.Times, times[0])
		tr.States = append(tr.States, y)
		out = 1
	}

	fy := f(t, y)
	if !isFinite(fy) {
		return tr, &InstabilityError{T: t, State: y}
	}

	dt := opts.InitialStep
	steps := 0

	for out < len(times) {
		if steps >= opts.MaxSteps {
			return tr, &ConvergenceError{T: t, Reason: "step budget exceeded"}
		}
		steps++

		if t+dt > tEnd {
			dt = tEnd - t
		}
		if t+dt == t {
			return tr, &ConvergenceError{T: t, Reason: "step size underflow"}
		}

		k1 := fy
		k2 := f(t+a2*dt, y+dt*b21*k1)
		k3 := f(t+a3*dt, y+dt*(b31*k1+b32*k2))
		k4 := f(t+a4*dt, y+dt*(b41*k1+b42*k2+b43*k3))
		k5 := f(t+a5*dt, y+dt*(b51*k1+b52*k2+b53*k3+b54*k4))
		k6 := f(t+dt, y+dt*(b61*k1+b62*k2+b63*k3+b64*k4+b65*k5))

		yNew := y + dt*(c1*k1+c3*k3+c4*k4+c5*k5+c6*k6)
		k7 := f(t+dt, yNew)

		if !isFinite(k2) || !isFinite(k3) || !isFinite(k4) || !isFinite(k5) ||
			!isFinite(k6) || !isFinite(k7) || !isFinite(yNew) {
			return tr, &InstabilityError{T: t, State: y}
		}

		errEst := dt * (dc1*k1 + dc3*k3 + dc4*k4 + dc5*k5 + dc6*k6 + dc7*k7)
		scale := opts.AbsTol + opts.RelTol*math.Max(math.Abs(y), math.Abs(yNew))
		if scale == 0 {
			scale = opts.AbsTol
		}
		errNorm := math.Abs(errEst) / scale

		if errNorm <= 1 {
			tNew := t + dt
			eps := 1e-10 * (1 + math.Abs(tNew))
			for out < len(times) && times[out] <= tNew+eps {
				theta := (times[out] - t) / dt
				if theta > 1 {
					theta = 1
				}
				tr.Times = append(tr.Times, times[out])
				tr.States = append(tr.States, hermite(theta, y, yNew, dt, k1, k7))
				out++
			}
			t, y, fy = tNew, yNew, k7

			if errNorm > 0 {
				fac := math.Min(maxScale, safety*math.Pow(1/errNorm, 0.2))
				dt = math.Min(opts.MaxStep, dt*fac)
			} else {
				dt = math.Min(opts.MaxStep, dt*maxScale)
			}
		} else {
			fac := math.Max(minScale, safety*math.Pow(1/errNorm, 0.2))
			dt *= fac
			if dt < opts.MinStep {
				return tr, &ConvergenceError{T: t, Reason: "step size underflow"}
			}
		}
	}

	return tr, nil
}

// hermite evaluates the cubic Hermite interpolant on [t, t+h] at
// fraction theta, matching state and derivative at both ends.
func hermite(theta, y0, y1, h, f0, f1 float64) float64 {
	t2 := theta * theta
	t3 := t2 * theta
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + theta
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2
	return h00*y0 + h10*h*f0 + h01*y1 + h11*h*f1
}
