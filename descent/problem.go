// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package descent

import (
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/optlib/numdiff"
)

// Problem is the capability contract between the solvers and an objective
// function over ℝⁿ.
//
// Evaluations must be pure functions of x: re-evaluation at the same point
// must yield the same value, and no state visible to the solver may change
// which function is being minimized during a Fit call. The length of x (and
// g) must equal Dim; the optimizer never calls with any other length.
type Problem interface {
	// Dim returns the fixed dimension n of the variable space.
	Dim() int
	// Value returns f(x).
	Value(x []float64) float64
	// Gradient stores ∇f(x) into g.
	Gradient(x, g []float64)
}

// Hessian is the optional second-order capability of a Problem.
// A problem advertises it by implementing the interface.
type Hessian interface {
	Problem
	// Hessian stores ∇²f(x) into h, which has order Dim.
	Hessian(x []float64, h *mat.SymDense)
}

// HasHessian reports whether p carries second-order information.
func HasHessian(p Problem) bool {
	_, has := p.(Hessian)
	return has
}

// Numeric adapts a value-only function into a Problem, supplying the
// gradient and the Hessian by finite differences. The zero value of Diff
// selects central differences with automatic step sizes.
type Numeric struct {
	N    int
	Fn   func(x []float64) float64
	Diff numdiff.Spec
}

func (p *Numeric) Dim() int { return p.N }

func (p *Numeric) Value(x []float64) float64 { return p.Fn(x) }

func (p *Numeric) Gradient(x, g []float64) { p.Diff.Gradient(p.Fn, x, g) }

func (p *Numeric) Hessian(x []float64, h *mat.SymDense) { p.Diff.Hessian(p.Fn, x, h) }

// NumericHessian decorates a first-order Problem with a finite-difference
// Hessian so the Newton solver can run on it. The analytic gradient of the
// wrapped problem is kept as is.
type NumericHessian struct {
	Problem
	Diff numdiff.Spec
}

func (p *NumericHessian) Hessian(x []float64, h *mat.SymDense) {
	p.Diff.Hessian(p.Problem.Value, x, h)
}
