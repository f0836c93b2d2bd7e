// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package descent

import (
	"math"

	"github.com/pkg/errors"
)

const (
	p5  = 0.5
	p66 = 0.66
	// extrapolation factors applied while no bracket exists
	xTrapLower = 1.1
	xTrapUpper = 4.0
)

// StrongWolfe finds a step λ that satisfies both strong Wolfe conditions:
//
//   - sufficient decrease: f(λ) ≤ f(0) + c₁λf′(0)
//   - curvature: |f′(λ)| ≤ c₂|f′(0)|
//
// following the bracketing and sectioning procedure of Moré and Thuente,
// with safeguarded cubic and quadratic interpolation for the trial steps.
//
// The search first works on the modified function
//
//	ψ(λ) = f(λ) - f(0) - c₁λf′(0)
//
// until a step with ψ(λ) ≤ 0 and f′(λ) ≥ 0 is found, and then sections an
// interval containing a minimizer of f itself. If c₁ < c₂ and the function
// is bounded below, a step satisfying both conditions always exists; when
// interpolation stalls on rounding errors the best bracketed step is
// accepted provided it still decreases f, otherwise failure is reported.
type StrongWolfe struct {
	// Slope is the sufficient decrease constant c₁ (default 1e-4).
	Slope float64
	// Curvature is the curvature condition constant c₂ (default 0.9).
	Curvature float64
	// StepTol is the relative width of the bracket below which the
	// search settles on its best step (default 1e-10).
	StepTol float64
	// MinStep and MaxStep bound the step (defaults 1e-20 and 1e+20).
	MinStep, MaxStep float64
}

func (w *StrongWolfe) normalize() (LineSearch, error) {
	s := *w
	if s.Slope == 0 {
		s.Slope = searchSlope
	}
	if s.Curvature == 0 {
		s.Curvature = searchCurve
	}
	if s.StepTol == 0 {
		s.StepTol = 1e-10
	}
	if s.MinStep == 0 {
		s.MinStep = 1e-20
	}
	if s.MaxStep == 0 {
		s.MaxStep = 1e+20
	}
	switch {
	case s.Slope <= 0 || s.Slope >= 1:
		return nil, errors.New("wolfe: slope constant must be in (0,1)")
	case s.Curvature <= s.Slope || s.Curvature >= 1:
		return nil, errors.New("wolfe: curvature constant must be in (c1,1)")
	case s.StepTol < 0:
		return nil, errors.New("wolfe: step tolerance must not less than 0")
	case s.MinStep < 0:
		return nil, errors.New("wolfe: min step must not less than 0")
	case s.MaxStep < s.MinStep:
		return nil, errors.New("wolfe: max step must not less than min step")
	}
	return &s, nil
}

// stepPoint is one endpoint of the sectioning interval:
// a step with its function value and directional derivative.
type stepPoint struct {
	s, f, g float64
}

func (w *StrongWolfe) search(r *rayEval, stp float64) (float64, errInfo) {

	gtest := w.Slope * r.g0
	stp = math.Min(math.Max(stp, w.MinStep), w.MaxStep)

	// lo is the endpoint with the least (modified) function value so far,
	// hi the opposite endpoint once a minimizer has been bracketed.
	brackt := false
	stage1 := true
	lo := stepPoint{zero, r.f0, r.g0}
	hi := stepPoint{zero, r.f0, r.g0}

	width := w.MaxStep - w.MinStep
	width1 := width / p5
	stmin, stmax := zero, stp+xTrapUpper*stp

	for {
		f, g, fine := r.at(stp)
		if !fine {
			if r.spent {
				return w.settle(r, lo)
			}
			return stp, r.failInfo()
		}
		ftest := r.f0 + stp*gtest

		// Test for convergence or stalling.
		switch {
		case brackt && (stp <= stmin || stp >= stmax):
			// Rounding errors prevent further progress.
			return w.settle(r, lo)
		case brackt && stmax-stmin <= w.StepTol*stmax:
			return w.settle(r, lo)
		case stp == w.MaxStep && f <= ftest && g <= gtest:
			return stp, ok // the decrease continues beyond the step bound
		case stp == w.MinStep && (f > ftest || g >= gtest):
			return stp, errSearchFailed
		case f <= ftest && math.Abs(g) <= w.Curvature*(-r.g0):
			return stp, ok
		}

		if stage1 && f <= ftest && g >= zero {
			stage1 = false
		}

		p := stepPoint{stp, f, g}
		if stage1 && f <= lo.f && f > ftest {
			// Work on ψ instead of f while the modified function value
			// is still positive at the trial step.
			shift := func(q stepPoint) stepPoint {
				return stepPoint{q.s, q.f - q.s*gtest, q.g - gtest}
			}
			unshift := func(q stepPoint) stepPoint {
				return stepPoint{q.s, q.f + q.s*gtest, q.g + gtest}
			}
			lom, him := shift(lo), shift(hi)
			stp = trialStep(&lom, &him, shift(p), &brackt, stmin, stmax)
			lo, hi = unshift(lom), unshift(him)
		} else {
			stp = trialStep(&lo, &hi, p, &brackt, stmin, stmax)
		}

		// Force a bisection step when the interval decays too slowly.
		if brackt {
			if math.Abs(hi.s-lo.s) >= p66*width1 {
				stp = lo.s + p5*(hi.s-lo.s)
			}
			width1 = width
			width = math.Abs(hi.s - lo.s)
		}

		if brackt {
			stmin = math.Min(lo.s, hi.s)
			stmax = math.Max(lo.s, hi.s)
		} else {
			stmin = stp + xTrapLower*(stp-lo.s)
			stmax = stp + xTrapUpper*(stp-lo.s)
		}

		stp = math.Min(math.Max(stp, w.MinStep), w.MaxStep)

		if brackt && (stp <= stmin || stp >= stmax) ||
			(brackt && stmax-stmin <= w.StepTol*stmax) {
			stp = lo.s
		}
	}
}

// settle accepts the best bracketed step when the sectioning cannot make
// further progress. The step must still be a strict decrease from f(0);
// the driver re-evaluates the objective there.
func (w *StrongWolfe) settle(r *rayEval, lo stepPoint) (float64, errInfo) {
	if lo.s > zero && lo.f < r.f0 {
		return lo.s, ok
	}
	return lo.s, errSearchFailed
}

// cubicMin returns the minimizer of the cubic interpolating the value and
// derivative at two step points.
func cubicMin(a, b stepPoint) float64 {
	theta := three*(a.f-b.f)/(b.s-a.s) + a.g + b.g
	s := math.Max(math.Abs(theta), math.Max(math.Abs(a.g), math.Abs(b.g)))
	gamma := s * math.Sqrt((theta/s)*(theta/s)-(a.g/s)*(b.g/s))
	if b.s < a.s {
		gamma = -gamma
	}
	p := (gamma - a.g) + theta
	q := ((gamma - a.g) + gamma) + b.g
	return a.s + p/q*(b.s-a.s)
}

// secantMin returns the minimizer of the secant on the derivatives of two
// step points.
func secantMin(a, b stepPoint) float64 {
	return a.s + (a.g/(a.g-b.g))*(b.s-a.s)
}

// trialStep computes a safeguarded trial step and updates the interval
// [lo, hi] so that it keeps containing a step satisfying sufficient
// decrease and the curvature condition.
//
// lo holds the step with the least function value; the derivative at lo is
// negative in the direction of p. When brackt is set a minimizer lies
// between lo and hi.
func trialStep(lo, hi *stepPoint, p stepPoint, brackt *bool, stmin, stmax float64) float64 {

	sgnd := p.g * (lo.g / math.Abs(lo.g))

	var stpf float64
	switch {
	case p.f > lo.f:
		// A higher function value: the minimum is bracketed. Take the
		// cubic step if it is closer to lo than the quadratic step,
		// otherwise their average.
		stpc := cubicMin(*lo, p)
		stpq := lo.s + ((lo.g/((lo.f-p.f)/(p.s-lo.s)+lo.g))/two)*(p.s-lo.s)
		if math.Abs(stpc-lo.s) < math.Abs(stpq-lo.s) {
			stpf = stpc
		} else {
			stpf = stpc + (stpq-stpc)/two
		}
		*brackt = true

	case sgnd < zero:
		// A lower value with derivatives of opposite sign: the minimum
		// is bracketed. Take the cubic step if it is farther from p than
		// the secant step, otherwise the secant step.
		stpc := cubicMin(p, *lo)
		stpq := secantMin(p, *lo)
		if math.Abs(stpc-p.s) > math.Abs(stpq-p.s) {
			stpf = stpc
		} else {
			stpf = stpq
		}
		*brackt = true

	case math.Abs(p.g) < math.Abs(lo.g):
		// A lower value with a shrinking derivative of the same sign.
		// The cubic may not have a minimizer in the step direction; use
		// it only when it tends to infinity the right way or its
		// minimizer lies beyond p.
		theta := three*(lo.f-p.f)/(p.s-lo.s) + lo.g + p.g
		s := math.Max(math.Abs(theta), math.Max(math.Abs(lo.g), math.Abs(p.g)))
		gamma := s * math.Sqrt(math.Max(zero, (theta/s)*(theta/s)-(lo.g/s)*(p.g/s)))
		if p.s > lo.s {
			gamma = -gamma
		}
		q := (gamma + (lo.g - p.g)) + gamma
		rr := ((gamma - p.g) + theta) / q

		var stpc float64
		switch {
		case rr < zero && gamma != zero:
			stpc = p.s + rr*(lo.s-p.s)
		case p.s > lo.s:
			stpc = stmax
		default:
			stpc = stmin
		}
		stpq := secantMin(p, *lo)

		if *brackt {
			if math.Abs(stpc-p.s) < math.Abs(stpq-p.s) {
				stpf = stpc
			} else {
				stpf = stpq
			}
			if p.s > lo.s {
				stpf = math.Min(p.s+p66*(hi.s-p.s), stpf)
			} else {
				stpf = math.Max(p.s+p66*(hi.s-p.s), stpf)
			}
		} else {
			if math.Abs(stpc-p.s) > math.Abs(stpq-p.s) {
				stpf = stpc
			} else {
				stpf = stpq
			}
			stpf = math.Min(stmax, stpf)
			stpf = math.Max(stmin, stpf)
		}

	default:
		// A lower value with a growing derivative of the same sign: step
		// to the far endpoint when bracketed, otherwise to the bound.
		switch {
		case *brackt:
			stpf = cubicMin(p, *hi)
		case p.s > lo.s:
			stpf = stmax
		default:
			stpf = stmin
		}
	}

	// Update the interval which contains a minimizer.
	if p.f > lo.f {
		*hi = p
	} else {
		if sgnd < zero {
			*hi = *lo
		}
		*lo = p
	}

	return stpf
}
