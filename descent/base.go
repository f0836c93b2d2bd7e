// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package descent

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	zero  = 0.0
	one   = 1.0
	two   = 2.0
	three = 3.0
)

// epsmch is the machine epsilon for float64.
var epsmch = math.Nextafter(1, 2) - 1

// Status reports how a call to Fit terminated.
// The high bits tag the status class so callers may test the class
// without enumerating every member.
type Status int

const (
	iterLoop   Status = 0
	statusConv Status = 1 << (8 + iota)
	statusStop
	statusFail
)

const (
	// Converged the gradient norm dropped below the tolerance.
	Converged = statusConv | Status(iota)
	// ProgressStop the relative reduction of the function value
	// dropped below FDiffTolerance.
	ProgressStop
)

const (
	// IterationLimit the iteration cap was reached before convergence.
	// This is a normal outcome, not an error.
	IterationLimit = statusStop | Status(iota)
	// EvaluationLimit the evaluation cap was reached before convergence.
	EvaluationLimit
)

const (
	// SearchFailure no acceptable step was found within the trial budget.
	SearchFailure = statusFail | Status(iota)
	// AscentDirection the computed direction was not a descent direction
	// even after a restart.
	AscentDirection
	// NotFinite a NaN or Inf value was produced by the problem.
	NotFinite
	// EvalPanic an evaluation callback panicked.
	EvalPanic
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case ProgressStop:
		return "function progress below tolerance"
	case IterationLimit:
		return "iteration limit"
	case EvaluationLimit:
		return "evaluation limit"
	case SearchFailure:
		return "line search failure"
	case AscentDirection:
		return "ascent direction"
	case NotFinite:
		return "non-finite value"
	case EvalPanic:
		return "evaluation panic"
	}
	return "unknown"
}

// errInfo carries recoverable conditions between the driver phases.
type errInfo int

const (
	ok errInfo = iota
	// errDerivative the directional derivative at the iterate is not negative.
	errDerivative
	// errSearchFailed the line search spent its budget without an acceptable step.
	errSearchFailed
	// errNotFinite a trial evaluation produced NaN or Inf.
	errNotFinite
	// errEvalPanic an evaluation callback panicked during the line search.
	errEvalPanic
	// warnRestartLoop the solver memory should be refreshed and the iteration retried.
	warnRestartLoop
)

// iterSpec is the immutable portion of an optimization run.
type iterSpec struct {
	n int // problem dimension
	m int // L-BFGS correction number

	method  Method
	problem Problem
	hessian Hessian // nil unless the problem carries one and Method needs it

	stop   Termination
	search LineSearch
	logger Logger
}

// iterLoc is the current iterate: the only state the caller observes.
type iterLoc struct {
	f float64
	x []float64
	g []float64
}

func (loc *iterLoc) save(x []float64, f *float64, g []float64) {
	copy(x, loc.x)
	copy(g, loc.g)
	*f = loc.f
}

func (loc *iterLoc) load(x []float64, f float64, g []float64) {
	copy(loc.x, x)
	copy(loc.g, g)
	loc.f = f
}

// iterCtx is the mutable per-Fit state owned by a Workspace.
type iterCtx struct {
	iter      int // iteration counter
	totalEval int // function/gradient evaluation counter

	d  []float64 // search direction
	t  []float64 // iterate saved before the line search
	r  []float64 // gradient saved before the line search
	xt []float64 // trial iterate
	gt []float64 // trial gradient

	fOld  float64 // function value saved before the line search
	stp   float64 // accepted step length
	gd    float64 // directional derivative gᵀd at the iterate
	dNorm float64 // ‖d‖₂
	gNorm float64 // ‖g‖∞ at the iterate

	// conjugate gradient state
	gPrev   []float64
	dPrev   []float64
	sinceCG int // iterations since the last restart

	// L-BFGS correction history (ring buffer of at most m pairs)
	corrS [][]float64
	corrY [][]float64
	rho   []float64
	alpha []float64
	head  int
	count int
	gamma float64 // initial inverse-Hessian scaling
	skips int     // corrections rejected by the curvature test

	// Newton state
	hess *mat.SymDense
	hReg *mat.SymDense
	chol mat.Cholesky
	rhs  *mat.VecDense
	sol  *mat.VecDense
}

func (ctx *iterCtx) clear() {
	ctx.iter = 0
	ctx.totalEval = 0
	ctx.fOld = zero
	ctx.stp = zero
	ctx.gd = zero
	ctx.dNorm = zero
	ctx.gNorm = zero
	ctx.sinceCG = 0
	ctx.head = 0
	ctx.count = 0
	ctx.gamma = one
	ctx.skips = 0
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if !isFinite(x) {
			return false
		}
	}
	return true
}
