// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package objective provides ready-made test functions for the descent
// solvers: convex quadratics with known minimizers and the classic
// Rosenbrock valleys.
package objective

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Quadratic is the strictly convex function
//
//	f(x) = ½ xᵀAx - bᵀx
//
// for a symmetric positive definite A. Its unique minimizer solves Ax = b,
// which makes the residual ‖Ax - b‖₂ a direct measure of solution quality.
type Quadratic struct {
	A *mat.SymDense
	B *mat.VecDense
}

func (q *Quadratic) Dim() int { return q.A.SymmetricDim() }

func (q *Quadratic) Value(x []float64) float64 {
	n := q.A.SymmetricDim()
	xv := mat.NewVecDense(n, x)
	ax := mat.NewVecDense(n, nil)
	ax.MulVec(q.A, xv)
	return 0.5*mat.Dot(ax, xv) - mat.Dot(q.B, xv)
}

func (q *Quadratic) Gradient(x, g []float64) {
	n := q.A.SymmetricDim()
	gv := mat.NewVecDense(n, g)
	gv.MulVec(q.A, mat.NewVecDense(n, x))
	gv.SubVec(gv, q.B)
}

func (q *Quadratic) Hessian(x []float64, h *mat.SymDense) {
	h.CopySym(q.A)
}

// Residual returns ‖Ax - b‖₂, the distance of Ax from b.
func (q *Quadratic) Residual(x []float64) float64 {
	n := q.A.SymmetricDim()
	r := mat.NewVecDense(n, nil)
	r.MulVec(q.A, mat.NewVecDense(n, x))
	r.SubVec(r, q.B)
	return floats.Norm(r.RawVector().Data, 2)
}

// RandomQuadratic builds a reproducible SPD quadratic of order n:
// A = MᵀM + I for a matrix M with standard normal entries, which keeps A
// positive definite with moderate conditioning.
func RandomQuadratic(n int, seed uint64) *Quadratic {
	rng := rand.New(rand.NewPCG(seed, seed))

	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			m.Set(i, j, rng.NormFloat64())
		}
	}

	a := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var s float64
			for k := 0; k < n; k++ {
				s += m.At(k, i) * m.At(k, j)
			}
			if i == j {
				s += 1
			}
			a.SetSym(i, j, s)
		}
	}

	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		b.SetVec(i, rng.NormFloat64())
	}
	return &Quadratic{A: a, B: b}
}
