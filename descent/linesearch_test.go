// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package descent

import (
	"math"
	"testing"
)

func quadRay() (*rayEval, func(float64) float64) {
	// φ(s) = (s-2)², minimizer at s = 2.
	phi := func(s float64) float64 { return (s - 2) * (s - 2) }
	der := func(s float64) float64 { return 2 * (s - 2) }
	return newScalarRay(phi, der), phi
}

func TestBacktrackingAccepts(t *testing.T) {

	ray, phi := quadRay()
	search, err := (&Backtracking{}).normalize()
	if err != nil {
		t.Fatal(err)
	}

	stp, info := search.search(ray, 1)
	if info != ok {
		t.Fatalf("search failed with %d", info)
	}
	if !ray.armijo(searchSlope, stp, phi(stp)) {
		t.Fatalf("sufficient decrease violated at stp = %g", stp)
	}
}

func TestBacktrackingTrialLimit(t *testing.T) {

	// The step along d = -1e6 from x₀ = 1 overshoots so wildly that a few
	// halvings cannot recover sufficient decrease.
	phi := func(s float64) float64 { v := 1 - 1e6*s; return v * v }
	der := func(s float64) float64 { return -2e6 * (1 - 1e6*s) }

	ray := newScalarRay(phi, der)
	search, err := (&Backtracking{MaxTrials: 3}).normalize()
	if err != nil {
		t.Fatal(err)
	}

	if _, info := search.search(ray, 1); info != errSearchFailed {
		t.Fatalf("expected search failure, got %d", info)
	}
}

func TestInterpolatingAccepts(t *testing.T) {

	// φ(s) = s⁴ - s: a long first step forces interpolation.
	phi := func(s float64) float64 { return math.Pow(s, 4) - s }
	der := func(s float64) float64 { return 4*math.Pow(s, 3) - 1 }

	ray := newScalarRay(phi, der)
	search, err := (&Interpolating{}).normalize()
	if err != nil {
		t.Fatal(err)
	}

	stp, info := search.search(ray, 10)
	if info != ok {
		t.Fatalf("search failed with %d", info)
	}
	if !ray.armijo(searchSlope, stp, phi(stp)) {
		t.Fatalf("sufficient decrease violated at stp = %g", stp)
	}
	if stp >= 10 {
		t.Fatalf("step did not shrink: %g", stp)
	}
}

func TestInterpolatingSafeguard(t *testing.T) {

	// Candidates must stay inside [0.1λ, 0.5λ] whatever the fit says.
	for _, next := range []float64{math.NaN(), math.Inf(1), -3, 0, 1e-30, 42} {
		got := clampStep(next, 1)
		if !(got >= 0.1 && got <= 0.5) {
			t.Fatalf("clampStep(%g, 1) = %g escapes the safeguard", next, got)
		}
	}
}

func TestBisectionSatisfiesWolfe(t *testing.T) {

	ray, _ := quadRay()
	search, err := (&Bisection{}).normalize()
	if err != nil {
		t.Fatal(err)
	}

	// Start far short of the minimizer so the bracket must expand first.
	stp, info := search.search(ray, 1e-3)
	if info != ok {
		t.Fatalf("search failed with %d", info)
	}
	der := 2 * (stp - 2)
	if math.Abs(der) > searchCurve*(-ray.g0) {
		t.Fatalf("curvature condition violated at stp = %g", stp)
	}
	if !ray.armijo(searchSlope, stp, (stp-2)*(stp-2)) {
		t.Fatalf("sufficient decrease violated at stp = %g", stp)
	}
}

func TestRayBudgetExhausted(t *testing.T) {

	ray, _ := quadRay()
	ray.budget = 2

	search, err := (&Backtracking{}).normalize()
	if err != nil {
		t.Fatal(err)
	}

	// Far beyond the minimizer every trial is rejected until the budget runs out.
	_, info := search.search(ray, 1e9)
	if info != errSearchFailed {
		t.Fatalf("expected search failure, got %d", info)
	}
	if !ray.spent {
		t.Fatal("budget exhaustion not recorded")
	}
}

func TestRayScreensNonFinite(t *testing.T) {

	ray := newScalarRay(
		func(s float64) float64 {
			if s > 0.5 {
				return math.NaN()
			}
			return -s
		},
		func(s float64) float64 { return -1 },
	)

	search, err := (&Backtracking{}).normalize()
	if err != nil {
		t.Fatal(err)
	}

	if _, info := search.search(ray, 1); info != errNotFinite {
		t.Fatalf("expected non-finite report, got %d", info)
	}
}

func TestRayRecoversPanic(t *testing.T) {

	ray := newScalarRay(
		func(s float64) float64 {
			if s > 0 {
				panic("model blew up")
			}
			return 0
		},
		func(s float64) float64 { return -1 },
	)

	search, err := (&Backtracking{}).normalize()
	if err != nil {
		t.Fatal(err)
	}

	if _, info := search.search(ray, 1); info != errEvalPanic {
		t.Fatalf("expected panic report, got %d", info)
	}
}
