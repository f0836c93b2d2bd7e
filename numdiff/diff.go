// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package numdiff estimates derivatives of scalar functions over ℝⁿ by
// finite differences.
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
package numdiff

import "math"

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
var cubeEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/3)
var quartEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/4)

type Method int

const (
	// Central use the second order accuracy central difference.
	Central Method = iota
	// Forward use the first order accuracy forward difference.
	Forward
)

// Spec selects a differencing method and its step sizes.
// The zero value uses central differences with automatic steps.
type Spec struct {
	// Finite difference method to use.
	Method Method
	// Absolute step size to use for every coordinate.
	// The RelStep rule applies when AbsStep is zero.
	AbsStep float64
	// Relative step size used to compute the absolute step as
	// h = RelStep × sign(x₀) × abs(x₀). When both AbsStep and RelStep are
	// zero the step is h = eps × sign(x₀) × max(1, abs(x₀)) with eps
	// matched to the method order.
	RelStep float64
}

// step returns the absolute step for coordinate value v.
func (s Spec) step(v float64) float64 {
	var eps float64
	switch s.Method {
	case Forward:
		eps = sqrtEps
	case Central:
		eps = cubeEps
	default:
		panic("unknown method")
	}

	h := s.AbsStep
	if h == 0 && s.RelStep != 0 {
		h = math.Copysign(s.RelStep, v) * math.Abs(v)
	}
	// Guard against steps that vanish under rounding.
	if d := (v + h) - v; d == 0 {
		h = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
	}
	return h
}

// Gradient stores the finite-difference estimate of ∇fn(x) into g.
// The point x is perturbed in place and restored before returning.
func (s Spec) Gradient(fn func(x []float64) float64, x, g []float64) {
	if len(g) < len(x) {
		panic("bound check error")
	}

	if s.Method == Forward {
		f0 := fn(x)
		for i, v := range x {
			h := s.step(v)
			x[i] = v + h
			g[i] = (fn(x) - f0) / h
			x[i] = v
		}
		return
	}

	for i, v := range x {
		h := s.step(v)
		x[i] = v - h
		f1 := fn(x)
		x[i] = v + h
		f2 := fn(x)
		x[i] = v
		g[i] = (f2 - f1) / (2 * h)
	}
}
