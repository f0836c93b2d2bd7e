// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package descent

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// direction computes the descent direction for one solver variant.
// All per-iteration state lives in the iterCtx so workspaces stay reusable.
type direction interface {
	// prepare resets the solver state at the start of a Fit call.
	prepare(spec *iterSpec, ctx *iterCtx)
	// next stores the search direction into ctx.d.
	next(loc *iterLoc, spec *iterSpec, ctx *iterCtx) errInfo
	// accept updates the solver state after a successful step.
	accept(loc *iterLoc, spec *iterSpec, ctx *iterCtx)
	// refresh discards accumulated state so the iteration can restart
	// from steepest descent, or reports that nothing can be refreshed.
	refresh(ctx *iterCtx) bool
}

// iterDriver is the main driver for iterations in an optimization process,
// responsible for managing the flow of the optimization.
type iterDriver struct {
	optimizer *Optimizer
	workspace *Workspace
	location  *iterLoc
	direction direction
}

// nextLocation evaluates the function and gradient at the current iterate,
// guarding against callback panics and non-finite results.
func (d *iterDriver) nextLocation(iter Status) Status {
	o, w, loc := d.optimizer, d.workspace, d.location
	func() {
		defer func() {
			if r := recover(); r != nil {
				iter = EvalPanic
			}
		}()
		loc.f = o.problem.Value(loc.x)
		o.problem.Gradient(loc.x, loc.g)
		w.totalEval++
	}()
	if iter == iterLoop && (!isFinite(loc.f) || !allFinite(loc.g)) {
		iter = NotFinite
	}
	return iter
}

// newIteration handles the transition to a new iteration, checking for
// stopping conditions like exceeding iteration or evaluation limits.
func (d *iterDriver) newIteration(iter Status) Status {
	o, w := d.optimizer, d.workspace
	w.iter++
	if w.iter > o.stop.MaxIterations {
		iter = IterationLimit
	} else if o.stop.MaxEvaluations > 0 && w.totalEval >= o.stop.MaxEvaluations {
		iter = EvaluationLimit
	}
	return iter
}

// checkConvergence checks if the convergence criteria have been met based on
// the gradient norm and the progress in function value reduction.
func (d *iterDriver) checkConvergence(iter Status) Status {
	o, w, loc := d.optimizer, d.workspace, d.location
	w.gNorm = floats.Norm(loc.g, math.Inf(1))
	if w.gNorm <= o.stop.GradTolerance {
		iter = Converged
	} else if w.iter > 0 && o.stop.FDiffTolerance > zero {
		change := math.Max(math.Abs(w.fOld), math.Max(math.Abs(loc.f), one))
		if w.fOld-loc.f <= o.stop.FDiffTolerance*change {
			iter = ProgressStop
		}
	}
	return iter
}

// mainLoop is the main execution loop of the iteration process: evaluate,
// compute a direction, search a step, update solver state, check stopping.
func (d *iterDriver) mainLoop() (task Status) {

	loc := d.location
	spec := &d.optimizer.iterSpec
	ctx := &d.workspace.iterCtx
	log := spec.logger

	ctx.clear()
	d.direction.prepare(spec, ctx)
	d.printInit()

	// Calculate f₀ and g₀
	if task = d.nextLocation(iterLoop); task == iterLoop {
		task = d.checkConvergence(task)
		if log.enable(LogEval) {
			log.log("At iterate %5d    f= %12.5e    |g|= %12.5e\n", ctx.iter, loc.f, ctx.gNorm)
		}
	}

	info := ok
	retried := false
	for task == iterLoop {

		if log.enable(LogTrace) {
			log.log("\n\nITERATION %5d\n", ctx.iter+1)
		}

		if info = d.direction.next(loc, spec, ctx); info == ok {
			info = d.searchStep()
		}

		if info != ok {
			switch info {
			case errNotFinite:
				task = NotFinite
			case errEvalPanic:
				task = EvalPanic
			default:
				// A failed search direction is retried once from a fresh
				// steepest-descent state before giving up.
				if !retried && d.direction.refresh(ctx) {
					retried = true
					info = ok
					if log.enable(LogLast) {
						log.log("Refreshing solver memory and restarting iteration.\n")
					}
					continue
				}
				if info == errDerivative {
					task = AscentDirection
				} else {
					task = SearchFailure
				}
			}
			break
		}
		retried = false

		task = d.newIteration(task)
		task = d.checkConvergence(task)
		d.printIter()

		if task == iterLoop {
			d.direction.accept(loc, spec, ctx)
		}
	}

	d.printExit(task, info)
	return
}

// searchStep runs the configured line search along ctx.d and applies the
// accepted step to the iterate. On failure the previous iterate is restored.
func (d *iterDriver) searchStep() (info errInfo) {

	loc := d.location
	spec := &d.optimizer.iterSpec
	ctx := &d.workspace.iterCtx

	ctx.gd = floats.Dot(loc.g, ctx.d)
	ctx.dNorm = floats.Norm(ctx.d, 2)
	if ctx.gd >= zero || ctx.dNorm == zero {
		// Line search is impossible when the directional derivative ≥ 0.
		if log := spec.logger; log.enable(LogLast) {
			log.log("Ascent direction in search gd = %f\n", ctx.gd)
		}
		return errDerivative
	}

	stp := one
	if ctx.iter == 0 && spec.method != Newton {
		stp = math.Min(one, one/ctx.dNorm)
	}

	// Save original x, f, g
	loc.save(ctx.t, &ctx.fOld, ctx.r)

	ray := rayEval{
		spec: spec, ctx: ctx,
		x0: ctx.t, d: ctx.d,
		f0: loc.f, g0: ctx.gd,
		budget: searchEvalBudget,
	}

	stp, info = spec.search.search(&ray, stp)
	if info == ok && ray.last != stp {
		// Materialize the accepted point when the final trial was elsewhere.
		if _, _, fine := ray.eval(stp); !fine {
			info = ray.failInfo()
		}
	}
	if info == ok && !(ray.fLast < ctx.fOld) {
		// Never silently accept a non-decreasing step.
		info = errSearchFailed
	}

	if info == ok {
		copy(loc.x, ctx.xt)
		copy(loc.g, ctx.gt)
		loc.f = ray.fLast
		ctx.stp = stp
	} else {
		// Restore the previous iterate
		loc.load(ctx.t, ctx.fOld, ctx.r)
		if log := spec.logger; log.enable(LogLast) && info == errSearchFailed {
			log.log("Line search cannot locate an adequate point after %d function and gradient evaluations.\n",
				searchEvalBudget-ray.budget)
		}
	}
	return
}

// printInit logs the setup of the optimization process.
func (d *iterDriver) printInit() {
	spec := &d.optimizer.iterSpec
	if log := spec.logger; log.enable(LogLast) {
		log.log("RUNNING THE %s CODE\n", spec.method)
		log.log("           * * *\n")
		log.log("Machine precision = %10.3e\n", epsmch)
		log.log("N = %d\n", spec.n)
	}
}

// printIter logs the current iteration details.
func (d *iterDriver) printIter() {

	loc := d.location
	spec := &d.optimizer.iterSpec
	ctx := &d.workspace.iterCtx
	log := spec.logger

	if log.enable(LogTrace) {
		log.log("LINE SEARCH; step = %12.5e  norm of step = %12.5e\n", ctx.stp, ctx.stp*ctx.dNorm)
		log.log("At iterate %5d    f= %12.5e    |g|= %12.5e\n", ctx.iter, loc.f, ctx.gNorm)
	} else if log.enable(LogEval) {
		if ctx.iter%int(log.Level) == 0 {
			log.log("At iterate %5d    f= %12.5e    |g|= %12.5e\n", ctx.iter, loc.f, ctx.gNorm)
		}
	}
}

// printExit logs the final statistics and exit conditions.
func (d *iterDriver) printExit(task Status, info errInfo) {

	loc := d.location
	spec := &d.optimizer.iterSpec
	ctx := &d.workspace.iterCtx

	log := spec.logger
	if !log.enable(LogLast) {
		return
	}

	log.log("\n           * * *\n")
	log.log("\n   N      Tit      Tnf   Skip    |g|          F\n")
	log.log("%5d %6d %7d %6d %6.2e %9.5e\n",
		spec.n, ctx.iter, ctx.totalEval, ctx.skips, ctx.gNorm, loc.f)

	log.log("\nSTATUS: %s\n", task)

	if info == errNotFinite {
		log.log(" Non-finite function or gradient value.\n")
		log.log("   Previous x, f and g restored.\n")
	}
}
