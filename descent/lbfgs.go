// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package descent

import (
	"gonum.org/v1/gonum/floats"
)

// lbfgsDir implements the limited-memory BFGS direction with the two-loop
// recursion of Nocedal. At most m correction pairs (sᵢ,yᵢ) live in a ring
// buffer; pairs violating the curvature condition sᵀy > 0 are skipped so
// the implicit inverse Hessian stays positive definite.
type lbfgsDir struct{}

func (lbfgsDir) prepare(spec *iterSpec, ctx *iterCtx) {}

// next computes d = -Hₖ·g where Hₖ is the implicit inverse Hessian built
// from the stored corrections, seeded with γI.
func (lbfgsDir) next(loc *iterLoc, spec *iterSpec, ctx *iterCtx) errInfo {

	copy(ctx.d, loc.g)
	if ctx.count == 0 {
		floats.Scale(-one, ctx.d)
		return ok
	}

	// The pair at head is the oldest; walk newest to oldest first.
	for k := ctx.count - 1; k >= 0; k-- {
		i := (ctx.head + k) % spec.m
		ctx.alpha[i] = ctx.rho[i] * floats.Dot(ctx.corrS[i], ctx.d)
		floats.AddScaled(ctx.d, -ctx.alpha[i], ctx.corrY[i])
	}

	floats.Scale(ctx.gamma, ctx.d)

	for k := 0; k < ctx.count; k++ {
		i := (ctx.head + k) % spec.m
		beta := ctx.rho[i] * floats.Dot(ctx.corrY[i], ctx.d)
		floats.AddScaled(ctx.d, ctx.alpha[i]-beta, ctx.corrS[i])
	}

	floats.Scale(-one, ctx.d)
	return ok
}

// accept folds the step into the correction history:
//
//	sₖ = xₖ₊₁ - xₖ,  yₖ = gₖ₊₁ - gₖ
//
// dropping the oldest pair once the ring is full. The pair is skipped when
// sᵀy ≤ ε‖y‖² since such curvature would destroy positive definiteness.
func (lbfgsDir) accept(loc *iterLoc, spec *iterSpec, ctx *iterCtx) {

	// The trial buffers already served their purpose this iteration.
	s, y := ctx.xt, ctx.gt
	floats.SubTo(s, loc.x, ctx.t)
	floats.SubTo(y, loc.g, ctx.r)

	sy := floats.Dot(s, y)
	yy := floats.Dot(y, y)
	if sy <= epsmch*yy {
		ctx.skips++
		if log := spec.logger; log.enable(LogEval) {
			log.log("ys = %10.3e  curvature condition violated: BFGS update skipped\n", sy)
		}
		return
	}

	idx := (ctx.head + ctx.count) % spec.m
	if ctx.count < spec.m {
		ctx.count++
	} else {
		ctx.head = (ctx.head + 1) % spec.m
	}
	copy(ctx.corrS[idx], s)
	copy(ctx.corrY[idx], y)
	ctx.rho[idx] = one / sy
	ctx.gamma = sy / yy
}

func (lbfgsDir) refresh(ctx *iterCtx) bool {
	if ctx.count == 0 {
		return false
	}
	ctx.head = 0
	ctx.count = 0
	ctx.gamma = one
	return true
}
