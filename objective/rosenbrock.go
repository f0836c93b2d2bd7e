// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objective

import (
	"gonum.org/v1/gonum/mat"
)

// Rosenbrock is the two-dimensional banana function
//
//	f(x,y) = (1-x)² + 100(y-x²)²
//
// with its global minimum f = 0 at (1,1). The curved narrow valley makes it
// a standard stress test for line searches and curvature handling.
type Rosenbrock struct{}

func (Rosenbrock) Dim() int { return 2 }

func (Rosenbrock) Value(v []float64) float64 {
	x, y := v[0], v[1]
	t1, t2 := 1-x, y-x*x
	return t1*t1 + 100*t2*t2
}

func (Rosenbrock) Gradient(v, g []float64) {
	x, y := v[0], v[1]
	t := y - x*x
	g[0] = -2*(1-x) - 400*x*t
	g[1] = 200 * t
}

func (Rosenbrock) Hessian(v []float64, h *mat.SymDense) {
	x, y := v[0], v[1]
	h.SetSym(0, 0, 2-400*y+1200*x*x)
	h.SetSym(0, 1, -400*x)
	h.SetSym(1, 1, 200)
}

// ExtRosenbrock is the chained n-dimensional extension
//
//	f(x) = Σᵢ 100(xᵢ₊₁-xᵢ²)² + (1-xᵢ)²
//
// with minimum f = 0 at (1,…,1). It carries first-order information only,
// so second-order solvers must pair it with a finite-difference Hessian.
type ExtRosenbrock struct {
	N int
}

func (p ExtRosenbrock) Dim() int { return p.N }

func (p ExtRosenbrock) Value(x []float64) float64 {
	var f float64
	for i := 0; i+1 < p.N; i++ {
		t1, t2 := 1-x[i], x[i+1]-x[i]*x[i]
		f += t1*t1 + 100*t2*t2
	}
	return f
}

func (p ExtRosenbrock) Gradient(x, g []float64) {
	for i := range g {
		g[i] = 0
	}
	for i := 0; i+1 < p.N; i++ {
		t := x[i+1] - x[i]*x[i]
		g[i] += -2*(1-x[i]) - 400*x[i]*t
		g[i+1] += 200 * t
	}
}
