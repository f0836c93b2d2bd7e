// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package descent

import (
	"gonum.org/v1/gonum/floats"
)

// cgDir implements the Polak–Ribière conjugate gradient with the β ≥ 0
// clamp. The recurrence restarts from steepest descent every n iterations
// and whenever conjugacy produces a non-descent direction.
type cgDir struct{}

func (cgDir) prepare(spec *iterSpec, ctx *iterCtx) {
	clearSlice(ctx.gPrev)
	clearSlice(ctx.dPrev)
}

func (cgDir) next(loc *iterLoc, spec *iterSpec, ctx *iterCtx) errInfo {

	g := loc.g

	beta := zero
	if ctx.sinceCG < spec.n {
		// β = gₖ·(gₖ-gₖ₋₁) / gₖ₋₁·gₖ₋₁ clamped to ≥ 0, so a string of
		// poor directions degrades to a restart instead of compounding.
		ggPrev := floats.Dot(ctx.gPrev, ctx.gPrev)
		if ggPrev > zero {
			beta = (floats.Dot(g, g) - floats.Dot(g, ctx.gPrev)) / ggPrev
			if beta < zero {
				beta = zero
			}
		}
	}

	if beta == zero {
		ctx.sinceCG = 0
	}
	for i, gi := range g {
		ctx.d[i] = -gi + beta*ctx.dPrev[i]
	}

	if beta != zero && floats.Dot(g, ctx.d) >= zero {
		if log := spec.logger; log.enable(LogEval) {
			log.log("Conjugacy lost; restarting from steepest descent.\n")
		}
		steepest(loc, ctx)
		ctx.sinceCG = 0
	}
	return ok
}

func (cgDir) accept(loc *iterLoc, spec *iterSpec, ctx *iterCtx) {
	// ctx.r still holds the gradient the direction was built from.
	copy(ctx.gPrev, ctx.r)
	copy(ctx.dPrev, ctx.d)
	ctx.sinceCG++
}

func (cgDir) refresh(ctx *iterCtx) bool {
	if ctx.sinceCG == 0 {
		// The failed direction was already steepest descent.
		return false
	}
	clearSlice(ctx.gPrev)
	clearSlice(ctx.dPrev)
	ctx.sinceCG = 0
	return true
}

func clearSlice(v []float64) {
	for i := range v {
		v[i] = zero
	}
}
