// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package descent

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// searchEvalBudget bounds the function/gradient evaluations of a single
// line search regardless of the variant's own trial limit.
const searchEvalBudget = 40

const (
	searchSlope    = 1.0e-4 // sufficient decrease constant c₁
	searchCurve    = 0.9    // curvature condition constant c₂
	searchShrink   = 0.5    // backtracking contraction factor
	searchMinStep  = 1.0e-12
	searchMaxTrial = 30
)

// LineSearch finds a step λ along a descent direction d such that
// f(x + λd) satisfies the acceptance criterion of the variant.
// All variants are deterministic given identical inputs and report failure
// instead of accepting a non-decreasing step.
type LineSearch interface {
	// search drives the ray evaluator from the initial estimate stp
	// and returns the accepted step.
	search(r *rayEval, stp float64) (float64, errInfo)
	// normalize validates the parameters and fills defaults.
	normalize() (LineSearch, error)
}

// rayEval evaluates the objective along the ray x₀ + λd.
// It owns the trial buffers, enforces the evaluation budget and screens
// every result for NaN/Inf.
type rayEval struct {
	spec *iterSpec
	ctx  *iterCtx

	x0 []float64 // iterate at step zero
	d  []float64 // search direction

	f0 float64 // function value at step zero
	g0 float64 // directional derivative at step zero

	budget int

	last         float64 // last evaluated step
	fLast, gLast float64 // value and derivative at the last step

	spent    bool // evaluation budget exhausted
	bad      bool // non-finite value observed
	panicked bool // evaluation callback panicked
}

// at evaluates φ(λ) = f(x₀ + λd) and φ′(λ) = g(x₀ + λd)ᵀd.
// A false flag means the trial is unusable and the search must stop.
func (r *rayEval) at(stp float64) (f, der float64, fine bool) {
	if r.budget <= 0 {
		r.spent = true
		return r.fLast, r.gLast, false
	}
	r.budget--
	return r.eval(stp)
}

// eval is the budget-free evaluation used to materialize an accepted step.
func (r *rayEval) eval(stp float64) (f, der float64, fine bool) {
	ctx := r.ctx
	floats.AddScaledTo(ctx.xt, r.x0, stp, r.d)

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.panicked = true
			}
		}()
		p := r.spec.problem
		f = p.Value(ctx.xt)
		p.Gradient(ctx.xt, ctx.gt)
		ctx.totalEval++
	}()
	if r.panicked {
		return f, der, false
	}

	der = floats.Dot(ctx.gt, r.d)
	if !isFinite(f) || !isFinite(der) || !allFinite(ctx.gt) {
		r.bad = true
		return f, der, false
	}

	r.last, r.fLast, r.gLast = stp, f, der
	return f, der, true
}

// armijo reports the sufficient decrease condition f ≤ f₀ + c₁λφ′(0).
func (r *rayEval) armijo(c1, stp, f float64) bool {
	return f <= r.f0+c1*stp*r.g0
}

func (r *rayEval) failInfo() errInfo {
	switch {
	case r.panicked:
		return errEvalPanic
	case r.bad:
		return errNotFinite
	default:
		return errSearchFailed
	}
}

// Backtracking is the Armijo line search with fixed contraction:
// the step shrinks by Contraction until sufficient decrease holds.
type Backtracking struct {
	// Slope is the sufficient decrease constant c₁ (default 1e-4).
	Slope float64
	// Contraction is the step shrink factor (default 0.5).
	Contraction float64
	// MinStep is the underflow threshold below which the search fails
	// (default 1e-12).
	MinStep float64
	// MaxTrials bounds the number of trial evaluations (default 30).
	MaxTrials int
}

func (b *Backtracking) normalize() (LineSearch, error) {
	s := *b
	if s.Slope == 0 {
		s.Slope = searchSlope
	}
	if s.Contraction == 0 {
		s.Contraction = searchShrink
	}
	if s.MinStep == 0 {
		s.MinStep = searchMinStep
	}
	if s.MaxTrials == 0 {
		s.MaxTrials = searchMaxTrial
	}
	switch {
	case s.Slope <= 0 || s.Slope >= 1:
		return nil, errors.New("backtracking: slope constant must be in (0,1)")
	case s.Contraction <= 0 || s.Contraction >= 1:
		return nil, errors.New("backtracking: contraction must be in (0,1)")
	case s.MinStep < 0:
		return nil, errors.New("backtracking: min step must not less than 0")
	case s.MaxTrials < 0:
		return nil, errors.New("backtracking: max trials must not less than 0")
	}
	return &s, nil
}

func (b *Backtracking) search(r *rayEval, stp float64) (float64, errInfo) {
	for trial := 0; trial < b.MaxTrials; trial++ {
		f, _, fine := r.at(stp)
		if !fine {
			return stp, r.failInfo()
		}
		if r.armijo(b.Slope, stp, f) {
			return stp, ok
		}
		stp *= b.Contraction
		if stp < b.MinStep {
			break
		}
	}
	return stp, errSearchFailed
}

// Interpolating is the Armijo line search with polynomial interpolation:
// the first shrink minimizes a quadratic fit through φ(0), φ′(0) and the
// rejected trial; subsequent shrinks minimize a cubic through the last two
// trials. Candidates are clamped to the safeguard interval [0.1λ, 0.5λ]
// and degenerate fits fall back to plain halving.
type Interpolating struct {
	// Slope is the sufficient decrease constant c₁ (default 1e-4).
	Slope float64
	// MinStep is the underflow threshold below which the search fails
	// (default 1e-12).
	MinStep float64
	// MaxTrials bounds the number of trial evaluations (default 30).
	MaxTrials int
}

func (b *Interpolating) normalize() (LineSearch, error) {
	s := *b
	if s.Slope == 0 {
		s.Slope = searchSlope
	}
	if s.MinStep == 0 {
		s.MinStep = searchMinStep
	}
	if s.MaxTrials == 0 {
		s.MaxTrials = searchMaxTrial
	}
	switch {
	case s.Slope <= 0 || s.Slope >= 1:
		return nil, errors.New("interpolating: slope constant must be in (0,1)")
	case s.MinStep < 0:
		return nil, errors.New("interpolating: min step must not less than 0")
	case s.MaxTrials < 0:
		return nil, errors.New("interpolating: max trials must not less than 0")
	}
	return &s, nil
}

func (b *Interpolating) search(r *rayEval, stp float64) (float64, errInfo) {

	f, _, fine := r.at(stp)
	if !fine {
		return stp, r.failInfo()
	}
	if r.armijo(b.Slope, stp, f) {
		return stp, ok
	}

	// Quadratic model through φ(0), φ′(0), φ(λ₀).
	next := -r.g0 * stp * stp / (two * (f - r.f0 - r.g0*stp))
	prevStp, prevF := stp, f
	stp = clampStep(next, stp)

	for trial := 1; trial < b.MaxTrials; trial++ {
		if stp < b.MinStep {
			break
		}
		if f, _, fine = r.at(stp); !fine {
			return stp, r.failInfo()
		}
		if r.armijo(b.Slope, stp, f) {
			return stp, ok
		}
		next = cubicArmijoMin(r.f0, r.g0, prevStp, prevF, stp, f)
		prevStp, prevF = stp, f
		stp = clampStep(next, stp)
	}
	return stp, errSearchFailed
}

// clampStep safeguards an interpolated candidate into [0.1λ, 0.5λ],
// falling back to halving when the fit was degenerate.
func clampStep(next, stp float64) float64 {
	if math.IsNaN(next) || math.IsInf(next, 0) || next <= 0 {
		return stp * searchShrink
	}
	return math.Min(math.Max(next, 0.1*stp), searchShrink*stp)
}

// cubicArmijoMin returns the minimizer of the cubic interpolant through
// φ(0), φ′(0) and the two rejected trials (λ₀,f₀) and (λ₁,f₁).
func cubicArmijoMin(phi0, der0, stp0, f0, stp1, f1 float64) float64 {
	r0 := f0 - phi0 - der0*stp0
	r1 := f1 - phi0 - der0*stp1
	denom := stp0 * stp0 * stp1 * stp1 * (stp1 - stp0)
	if denom == 0 {
		return math.NaN()
	}
	a := (stp0*stp0*r1 - stp1*stp1*r0) / denom
	b := (-stp0*stp0*stp0*r1 + stp1*stp1*stp1*r0) / denom
	if a == 0 { // the cubic degenerates to a quadratic
		return -der0 / (two * b)
	}
	disc := b*b - three*a*der0
	if disc < 0 {
		return math.NaN()
	}
	return (-b + math.Sqrt(disc)) / (three * a)
}

// Bisection searches a step satisfying the strong Wolfe conditions by
// expanding an upper bound outward until a bracket is found and then
// halving the bracket.
type Bisection struct {
	// Slope is the sufficient decrease constant c₁ (default 1e-4).
	Slope float64
	// Curvature is the curvature condition constant c₂ (default 0.9).
	Curvature float64
	// Expand is the outward growth factor before a bracket exists
	// (default 2).
	Expand float64
	// MaxTrials bounds the number of trial evaluations (default 30).
	MaxTrials int
}

func (b *Bisection) normalize() (LineSearch, error) {
	s := *b
	if s.Slope == 0 {
		s.Slope = searchSlope
	}
	if s.Curvature == 0 {
		s.Curvature = searchCurve
	}
	if s.Expand == 0 {
		s.Expand = 2
	}
	if s.MaxTrials == 0 {
		s.MaxTrials = searchMaxTrial
	}
	switch {
	case s.Slope <= 0 || s.Slope >= 1:
		return nil, errors.New("bisection: slope constant must be in (0,1)")
	case s.Curvature <= s.Slope || s.Curvature >= 1:
		return nil, errors.New("bisection: curvature constant must be in (c1,1)")
	case s.Expand <= 1:
		return nil, errors.New("bisection: expand factor must greater than 1")
	case s.MaxTrials < 0:
		return nil, errors.New("bisection: max trials must not less than 0")
	}
	return &s, nil
}

func (b *Bisection) search(r *rayEval, stp float64) (float64, errInfo) {

	lo, hi := zero, math.Inf(1)

	for trial := 0; trial < b.MaxTrials; trial++ {
		f, der, fine := r.at(stp)
		if !fine {
			return stp, r.failInfo()
		}

		switch {
		case !r.armijo(b.Slope, stp, f):
			// Too long: the decrease failed, shrink towards lo.
			hi = stp
		case math.Abs(der) <= b.Curvature*(-r.g0):
			return stp, ok
		case der < 0:
			// Too short: decrease holds but the slope is still negative.
			lo = stp
		default:
			// Walked past a minimizer: the slope turned positive.
			hi = stp
		}

		if math.IsInf(hi, 1) {
			stp = b.Expand * lo
		} else {
			stp = (lo + hi) / two
			if hi-lo <= epsmch*hi {
				break
			}
		}
	}
	return stp, errSearchFailed
}
