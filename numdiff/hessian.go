// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package numdiff

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Hessian stores the finite-difference estimate of ∇²fn(x) into h,
// which must have order len(x). The central four-point stencil is always
// used regardless of Method since second differences of first-order
// accuracy are too crude for curvature.
//
//	∂²f/∂xᵢ²    ≈ (f(x+hᵢeᵢ) - 2f(x) + f(x-hᵢeᵢ)) / hᵢ²
//	∂²f/∂xᵢ∂xⱼ ≈ (f₊₊ - f₊₋ - f₋₊ + f₋₋) / (4hᵢhⱼ)
//
// The point x is perturbed in place and restored before returning.
func (s Spec) Hessian(fn func(x []float64) float64, x []float64, h *mat.SymDense) {
	n := len(x)
	if h.SymmetricDim() != n {
		panic("bound check error")
	}

	f0 := fn(x)
	step := make([]float64, n)
	for i, v := range x {
		step[i] = math.Abs(s.hessStep(v))
	}

	for i := 0; i < n; i++ {
		xi, hi := x[i], step[i]

		x[i] = xi + hi
		fp := fn(x)
		x[i] = xi - hi
		fm := fn(x)
		x[i] = xi
		h.SetSym(i, i, (fp-2*f0+fm)/(hi*hi))

		for j := i + 1; j < n; j++ {
			xj, hj := x[j], step[j]

			x[i], x[j] = xi+hi, xj+hj
			fpp := fn(x)
			x[i], x[j] = xi+hi, xj-hj
			fpm := fn(x)
			x[i], x[j] = xi-hi, xj+hj
			fmp := fn(x)
			x[i], x[j] = xi-hi, xj-hj
			fmm := fn(x)
			x[i], x[j] = xi, xj

			h.SetSym(i, j, (fpp-fpm-fmp+fmm)/(4*hi*hj))
		}
	}
}

// hessStep widens the automatic step to ε^¼: second differences divide by
// h², so the first-derivative step would drown the stencil in rounding.
func (s Spec) hessStep(v float64) float64 {
	h := s.AbsStep
	if h == 0 && s.RelStep != 0 {
		h = math.Copysign(s.RelStep, v) * math.Abs(v)
	}
	if d := (v + h) - v; d == 0 {
		h = math.Copysign(quartEps, v) * math.Max(1.0, math.Abs(v))
	}
	return h
}
