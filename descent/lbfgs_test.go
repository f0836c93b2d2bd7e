// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package descent

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func lbfgsFixture(n, m int) (*iterSpec, *iterCtx) {
	spec := &iterSpec{n: n, m: m, logger: Logger{Level: LogNoop}}
	ctx := &iterCtx{
		d:  make([]float64, n),
		t:  make([]float64, n),
		r:  make([]float64, n),
		xt: make([]float64, n),
		gt: make([]float64, n),

		corrS: make([][]float64, m),
		corrY: make([][]float64, m),
		rho:   make([]float64, m),
		alpha: make([]float64, m),
		gamma: one,
	}
	for i := 0; i < m; i++ {
		ctx.corrS[i] = make([]float64, n)
		ctx.corrY[i] = make([]float64, n)
	}
	return spec, ctx
}

// feed pushes one step (xOld→xNew, gOld→gNew) through accept.
func feed(spec *iterSpec, ctx *iterCtx, xOld, gOld, xNew, gNew []float64) {
	copy(ctx.t, xOld)
	copy(ctx.r, gOld)
	loc := &iterLoc{x: xNew, g: gNew}
	lbfgsDir{}.accept(loc, spec, ctx)
}

func TestTwoLoopEmptyHistory(t *testing.T) {

	spec, ctx := lbfgsFixture(3, 4)
	loc := &iterLoc{x: []float64{0, 0, 0}, g: []float64{1, -2, 3}}

	if info := (lbfgsDir{}).next(loc, spec, ctx); info != ok {
		t.Fatalf("next failed with %d", info)
	}
	for i, g := range loc.g {
		if ctx.d[i] != -g {
			t.Fatal("empty history must yield steepest descent")
		}
	}
}

func TestTwoLoopIdentityCurvature(t *testing.T) {

	// On f(x) = ½‖x‖² every pair satisfies y = s, so the implicit inverse
	// Hessian is the identity and the direction must equal -g exactly.
	spec, ctx := lbfgsFixture(2, 4)

	feed(spec, ctx,
		[]float64{4, 2}, []float64{4, 2},
		[]float64{3, 1}, []float64{3, 1})
	feed(spec, ctx,
		[]float64{3, 1}, []float64{3, 1},
		[]float64{1, 2}, []float64{1, 2})

	loc := &iterLoc{x: []float64{1, 2}, g: []float64{1, 2}}
	if info := (lbfgsDir{}).next(loc, spec, ctx); info != ok {
		t.Fatalf("next failed with %d", info)
	}
	for i, g := range loc.g {
		if math.Abs(ctx.d[i]+g) > 1e-12 {
			t.Fatalf("identity curvature must reproduce -g, got %v", ctx.d)
		}
	}
}

func TestHistoryRingOverwrite(t *testing.T) {

	const m = 3
	spec, ctx := lbfgsFixture(1, m)

	// Six accepted steps on f(x) = ½x² from descending iterates.
	x := 64.0
	for i := 0; i < 6; i++ {
		feed(spec, ctx,
			[]float64{x}, []float64{x},
			[]float64{x / 2}, []float64{x / 2})
		x /= 2
	}

	if ctx.count != m {
		t.Fatalf("history count = %d, want %d", ctx.count, m)
	}
	// The oldest surviving pair comes from the fourth step: s = -4.
	oldest := ctx.corrS[ctx.head][0]
	if oldest != -4 {
		t.Fatalf("ring kept wrong pair: oldest s = %g", oldest)
	}
}

func TestCurvatureSkip(t *testing.T) {

	spec, ctx := lbfgsFixture(2, 4)

	// s = (1,0), y = (-1,0): sᵀy < 0 must be rejected.
	feed(spec, ctx,
		[]float64{0, 0}, []float64{1, 0},
		[]float64{1, 0}, []float64{0, 0})

	if ctx.count != 0 {
		t.Fatal("negative curvature pair entered the history")
	}
	if ctx.skips != 1 {
		t.Fatalf("skips = %d, want 1", ctx.skips)
	}
	if ctx.gamma != one {
		t.Fatal("scaling changed by a skipped pair")
	}
}

func TestLBFGSRefresh(t *testing.T) {

	spec, ctx := lbfgsFixture(2, 4)
	if (lbfgsDir{}).refresh(ctx) {
		t.Fatal("refresh with empty history must report false")
	}

	feed(spec, ctx,
		[]float64{4, 2}, []float64{4, 2},
		[]float64{3, 1}, []float64{3, 1})
	if !(lbfgsDir{}).refresh(ctx) {
		t.Fatal("refresh with history must report true")
	}
	if ctx.count != 0 || ctx.head != 0 || ctx.gamma != one {
		t.Fatal("refresh left stale state")
	}

	// After the reset the direction degrades to steepest descent.
	loc := &iterLoc{x: []float64{1, 2}, g: []float64{5, -7}}
	if info := (lbfgsDir{}).next(loc, spec, ctx); info != ok {
		t.Fatalf("next failed with %d", info)
	}
	if !floats.Equal(ctx.d, []float64{-5, 7}) {
		t.Fatal("direction after refresh is not -g")
	}
}
