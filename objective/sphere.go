// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objective

import (
	"gonum.org/v1/gonum/mat"
)

// Sphere is f(x) = Σ xᵢ², the simplest convex test with minimum at the
// origin. Every descent method should solve it in a handful of iterations.
type Sphere struct {
	N int
}

func (p Sphere) Dim() int { return p.N }

func (p Sphere) Value(x []float64) float64 {
	var f float64
	for _, v := range x {
		f += v * v
	}
	return f
}

func (p Sphere) Gradient(x, g []float64) {
	for i, v := range x {
		g[i] = 2 * v
	}
}

func (p Sphere) Hessian(x []float64, h *mat.SymDense) {
	n := h.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if i == j {
				h.SetSym(i, j, 2)
			} else {
				h.SetSym(i, j, 0)
			}
		}
	}
}
