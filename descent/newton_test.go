// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package descent

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// hessProblem plugs a fixed Hessian matrix under a quadratic gradient so
// the direction solve can be checked in isolation.
type hessProblem struct {
	h *mat.SymDense
}

func (p hessProblem) Dim() int                  { return p.h.SymmetricDim() }
func (p hessProblem) Value(x []float64) float64 { return 0 }
func (p hessProblem) Gradient(x, g []float64)   {}

func (p hessProblem) Hessian(x []float64, h *mat.SymDense) {
	h.CopySym(p.h)
}

func newtonFixture(h Hessian) (*iterSpec, *iterCtx) {
	n := h.Dim()
	spec := &iterSpec{n: n, method: Newton, problem: h, hessian: h, logger: Logger{Level: LogNoop}}
	ctx := &iterCtx{
		d:    make([]float64, n),
		hess: mat.NewSymDense(n, nil),
		hReg: mat.NewSymDense(n, nil),
		rhs:  mat.NewVecDense(n, nil),
		sol:  mat.NewVecDense(n, nil),
	}
	return spec, ctx
}

func TestNewtonSolvesDefinite(t *testing.T) {

	h := mat.NewSymDense(2, []float64{4, 1, 1, 3})
	spec, ctx := newtonFixture(hessProblem{h})

	g := []float64{1, 2}
	loc := &iterLoc{x: make([]float64, 2), g: g}

	if info := (newtonDir{}).next(loc, spec, ctx); info != ok {
		t.Fatalf("next failed with %d", info)
	}

	// H·d must equal -g.
	for i := 0; i < 2; i++ {
		var hd float64
		for j := 0; j < 2; j++ {
			hd += h.At(i, j) * ctx.d[j]
		}
		if math.Abs(hd+g[i]) > 1e-12 {
			t.Fatalf("H·d + g = %g at row %d", hd+g[i], i)
		}
	}
}

func TestNewtonRegularizesIndefinite(t *testing.T) {

	// diag(-1, 1) has no Cholesky factorization until shifted.
	h := mat.NewSymDense(2, []float64{-1, 0, 0, 1})
	spec, ctx := newtonFixture(hessProblem{h})

	g := []float64{1, 1}
	loc := &iterLoc{x: make([]float64, 2), g: g}

	if info := (newtonDir{}).next(loc, spec, ctx); info != ok {
		t.Fatalf("next failed with %d", info)
	}
	if floats.Dot(g, ctx.d) >= 0 {
		t.Fatalf("regularized direction is not descent: %v", ctx.d)
	}
}

func TestNewtonRejectsNonFinite(t *testing.T) {

	h := mat.NewSymDense(2, []float64{math.NaN(), 0, 0, 1})
	spec, ctx := newtonFixture(hessProblem{h})

	loc := &iterLoc{x: make([]float64, 2), g: []float64{1, 1}}
	if info := (newtonDir{}).next(loc, spec, ctx); info != errNotFinite {
		t.Fatalf("expected non-finite report, got %d", info)
	}
}

type panicHessian struct {
	hessProblem
}

func (panicHessian) Hessian(x []float64, h *mat.SymDense) {
	panic("hessian assembly failed")
}

func TestNewtonRecoversPanic(t *testing.T) {

	base := hessProblem{mat.NewSymDense(2, []float64{1, 0, 0, 1})}
	spec, ctx := newtonFixture(panicHessian{base})

	loc := &iterLoc{x: make([]float64, 2), g: []float64{1, 1}}
	if info := (newtonDir{}).next(loc, spec, ctx); info != errEvalPanic {
		t.Fatalf("expected panic report, got %d", info)
	}
}
