// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objective

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/optlib/numdiff"
)

// checkGradient compares an analytic gradient against finite differences.
func checkGradient(t *testing.T, value func([]float64) float64, gradient func(x, g []float64), x []float64) {
	t.Helper()
	n := len(x)
	got := make([]float64, n)
	gradient(x, got)

	want := make([]float64, n)
	numdiff.Spec{}.Gradient(value, x, want)

	for i := 0; i < n; i++ {
		assert.InDelta(t, want[i], got[i], 1e-5, "gradient component %d", i)
	}
}

func TestRosenbrock(t *testing.T) {

	p := Rosenbrock{}
	require.Equal(t, 2, p.Dim())
	assert.Equal(t, 0.0, p.Value([]float64{1, 1}))

	checkGradient(t, p.Value, p.Gradient, []float64{-1.2, 1})
	checkGradient(t, p.Value, p.Gradient, []float64{0.3, -0.7})

	h := mat.NewSymDense(2, nil)
	p.Hessian([]float64{-1.2, 1}, h)

	want := mat.NewSymDense(2, nil)
	numdiff.Spec{}.Hessian(p.Value, []float64{-1.2, 1}, want)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(t, want.At(i, j), h.At(i, j), 1e-3, "hessian entry (%d,%d)", i, j)
		}
	}
}

func TestExtRosenbrock(t *testing.T) {

	p := ExtRosenbrock{N: 6}
	require.Equal(t, 6, p.Dim())

	ones := []float64{1, 1, 1, 1, 1, 1}
	assert.Equal(t, 0.0, p.Value(ones))

	g := make([]float64, 6)
	p.Gradient(ones, g)
	for i, v := range g {
		assert.Zero(t, v, "gradient component %d at the minimizer", i)
	}

	checkGradient(t, p.Value, p.Gradient, []float64{-1.2, 1, 0.3, -0.7, 2, 0})
}

func TestSphere(t *testing.T) {

	p := Sphere{N: 3}
	assert.Equal(t, 14.0, p.Value([]float64{1, 2, 3}))

	checkGradient(t, p.Value, p.Gradient, []float64{1, -2, 3})

	h := mat.NewSymDense(3, nil)
	p.Hessian(nil, h)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if i == j {
				assert.Equal(t, 2.0, h.At(i, j))
			} else {
				assert.Zero(t, h.At(i, j))
			}
		}
	}
}

func TestQuadratic(t *testing.T) {

	a := mat.NewSymDense(2, []float64{2, 1, 1, 4})
	b := mat.NewVecDense(2, []float64{1, -2})
	q := &Quadratic{A: a, B: b}

	require.Equal(t, 2, q.Dim())

	x := []float64{0.5, -0.25}
	checkGradient(t, q.Value, q.Gradient, x)

	h := mat.NewSymDense(2, nil)
	q.Hessian(x, h)
	assert.True(t, mat.EqualApprox(h, a, 0), "hessian must equal A")

	// At the solution of Ax = b the residual and the gradient vanish.
	var chol mat.Cholesky
	require.True(t, chol.Factorize(a))
	sol := mat.NewVecDense(2, nil)
	require.NoError(t, chol.SolveVecTo(sol, b))

	assert.InDelta(t, 0, q.Residual(sol.RawVector().Data), 1e-12)
}

func TestRandomQuadratic(t *testing.T) {

	q := RandomQuadratic(16, 99)
	require.Equal(t, 16, q.Dim())

	// A must be positive definite.
	var chol mat.Cholesky
	assert.True(t, chol.Factorize(q.A), "random quadratic is not SPD")

	// Identical seeds reproduce the instance, different seeds do not.
	same := RandomQuadratic(16, 99)
	assert.True(t, mat.EqualApprox(q.A, same.A, 0))
	assert.True(t, mat.EqualApprox(q.B, same.B, 0))

	other := RandomQuadratic(16, 100)
	assert.False(t, mat.EqualApprox(q.A, other.A, 1e-12))
}
