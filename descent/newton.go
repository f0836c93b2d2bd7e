// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package descent

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// regScale seeds the Tikhonov shift relative to the largest
	// diagonal magnitude of the Hessian.
	regScale = 1e-3
	// regGrow multiplies the shift between factorization attempts.
	regGrow = 10.0
	// regAttempts bounds the shifted factorizations before the solver
	// falls back to steepest descent.
	regAttempts = 8
)

// newtonDir solves H·d = -g with a Cholesky factorization.
// An indefinite Hessian is shifted towards H + τI until the factorization
// succeeds; when no shift helps the direction falls back to -g.
type newtonDir struct{}

func (newtonDir) prepare(spec *iterSpec, ctx *iterCtx) {}

func (newtonDir) next(loc *iterLoc, spec *iterSpec, ctx *iterCtx) errInfo {

	panicked := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
			}
		}()
		spec.hessian.Hessian(loc.x, ctx.hess)
		ctx.totalEval++
	}()
	if panicked {
		return errEvalPanic
	}
	if !allFinite(ctx.hess.RawSymmetric().Data) {
		return errNotFinite
	}

	if ctx.chol.Factorize(ctx.hess) {
		return solveNewton(loc, ctx)
	}

	// The Hessian is not positive definite: shift the spectrum with a
	// growing multiple of the identity until Cholesky succeeds.
	n := spec.n
	var maxDiag float64
	for i := 0; i < n; i++ {
		maxDiag = math.Max(maxDiag, math.Abs(ctx.hess.At(i, i)))
	}
	tau := regScale * maxDiag
	if tau == zero {
		tau = regScale
	}

	for attempt := 0; attempt < regAttempts; attempt++ {
		ctx.hReg.CopySym(ctx.hess)
		for i := 0; i < n; i++ {
			ctx.hReg.SetSym(i, i, ctx.hess.At(i, i)+tau)
		}
		if ctx.chol.Factorize(ctx.hReg) {
			if log := spec.logger; log.enable(LogEval) {
				log.log("Hessian shifted with tau = %10.3e\n", tau)
			}
			return solveNewton(loc, ctx)
		}
		tau *= regGrow
	}

	if log := spec.logger; log.enable(LogLast) {
		log.log("Hessian factorization failed; using steepest descent.\n")
	}
	steepest(loc, ctx)
	return ok
}

// solveNewton back-substitutes -g through the current factorization.
func solveNewton(loc *iterLoc, ctx *iterCtx) errInfo {
	for i, g := range loc.g {
		ctx.rhs.SetVec(i, -g)
	}
	if err := ctx.chol.SolveVecTo(ctx.sol, ctx.rhs); err != nil {
		steepest(loc, ctx)
		return ok
	}
	copy(ctx.d, ctx.sol.RawVector().Data)
	if floats.Dot(loc.g, ctx.d) >= zero {
		// The solve lost the descent property to conditioning.
		steepest(loc, ctx)
	}
	return ok
}

func steepest(loc *iterLoc, ctx *iterCtx) {
	for i, g := range loc.g {
		ctx.d[i] = -g
	}
}

func (newtonDir) accept(loc *iterLoc, spec *iterSpec, ctx *iterCtx) {}

func (newtonDir) refresh(ctx *iterCtx) bool { return false }
