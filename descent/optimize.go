// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package descent provides iterative solvers for unconstrained smooth
// minimization: Newton's method, nonlinear conjugate gradient and L-BFGS,
// each driven by a pluggable line search.
package descent

import (
	"os"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Method selects the direction-computation strategy.
type Method int

const (
	// LBFGS limited-memory BFGS with the two-loop recursion.
	LBFGS Method = iota
	// ConjGrad nonlinear conjugate gradient (Polak–Ribière, clamped to ≥ 0).
	ConjGrad
	// Newton damped Newton with Cholesky regularization fallback.
	Newton
)

func (m Method) String() string {
	switch m {
	case LBFGS:
		return "l-bfgs"
	case ConjGrad:
		return "cg"
	case Newton:
		return "newton"
	}
	return "unknown"
}

// Termination specifies the stopping criteria for the solvers.
type Termination struct {
	// The iteration stop when the number of iterations exceeds limit.
	// Zero selects the default of 500.
	MaxIterations int
	// The iteration stop when the total number of function and gradient
	// evaluations exceeds limit. Zero means no limit.
	MaxEvaluations int
	// The iteration stop with Converged when the gradient satisfied:
	//   ‖ gₖ ‖∞ ≤ 𝚐𝚝𝚘𝚕
	// Zero selects the default of 1e-8.
	GradTolerance float64
	// The iteration stop with ProgressStop when the function value satisfied:
	//   (fₖ - fₖ₊₁)/𝚖𝚊𝚡(|fₖ|,|fₖ₊₁|,1) ≤ 𝚏𝚝𝚘𝚕
	// Zero disables the test.
	FDiffTolerance float64
}

// Spec specifies a minimization problem and how to solve it.
type Spec struct {
	Problem Problem
	Method  Method
	// Memory is the L-BFGS correction number m (default 8).
	Memory int
	Stop   Termination
	// Search is the line-search variant. Nil selects the method default:
	// StrongWolfe for LBFGS and ConjGrad, Interpolating for Newton.
	Search LineSearch
}

const (
	defaultMemory  = 8
	defaultMaxIter = 500
	defaultGrdTol  = 1e-8
)

// New validates the spec and creates an optimizer for it.
func (s *Spec) New(logger *Logger) (optimizer *Optimizer, err error) {

	if logger == nil {
		logger = &Logger{Level: LogNoop}
	}
	if logger.Msg == nil {
		logger.Msg = os.Stdout
	}

	p, stop := s.Problem, s.Stop

	m := s.Memory
	if m == 0 {
		m = defaultMemory
	}
	if stop.MaxIterations == 0 {
		stop.MaxIterations = defaultMaxIter
	}
	if stop.GradTolerance == 0 {
		stop.GradTolerance = defaultGrdTol
	}

	var n int
	if p != nil {
		n = p.Dim()
	}

	var hess Hessian
	if s.Method == Newton {
		hess, _ = p.(Hessian)
	}

	switch {
	case p == nil:
		err = errors.New("problem is required")
	case n <= 0:
		err = errors.New("problem dimension must greater than 0")
	case s.Method < LBFGS || s.Method > Newton:
		err = errors.Errorf("unknown method %d", s.Method)
	case s.Method == Newton && hess == nil:
		err = errors.New("newton requires a Hessian: implement descent.Hessian or wrap with NumericHessian")
	case s.Method == LBFGS && m < 0:
		err = errors.New("correction number must greater than 0")
	case stop.MaxIterations < 0:
		err = errors.New("max iteration must greater than 1")
	case stop.MaxEvaluations < 0:
		err = errors.New("max evaluation must not less than 0")
	case stop.GradTolerance < zero:
		err = errors.New("gradient tolerance must not less than 0")
	case stop.FDiffTolerance < zero:
		err = errors.New("function progress tolerance must not less than 0")
	}
	if err != nil {
		return
	}

	search := s.Search
	if search == nil {
		switch s.Method {
		case Newton:
			search = &Interpolating{}
		case ConjGrad:
			// CG directions degrade without a tight curvature bound.
			search = &StrongWolfe{Curvature: 0.1}
		default:
			search = &StrongWolfe{}
		}
	}
	if search, err = search.normalize(); err != nil {
		return
	}

	optimizer = &Optimizer{
		iterSpec{
			n: n, m: m,
			method:  s.Method,
			problem: p,
			hessian: hess,
			stop:    stop,
			search:  search,
			logger:  *logger,
		},
	}
	return
}

// Optimizer runs one of the descent methods over a fixed problem.
type Optimizer struct {
	iterSpec
}

// Workspace contains the state and scratch buffers of the optimization
// process. Given problem dimension n and correction number m, the work
// space is approximately float64[2×mn + 6×n] (plus n×n for Newton).
type Workspace struct {
	n, m int
	iterCtx
}

// Result contains the final result of the optimization process.
type Result struct {
	OK      bool      // Whether the optimization converged.
	F       float64   // Final function value.
	X, G    []float64 // Final solution and gradient.
	Summary           // Optimization summary.
}

// Summary contains a summary of the optimization process.
type Summary struct {
	Status  Status // Final status after optimization.
	NumIter int    // Number of iterations performed.
	NumEval int    // Number of function and gradient evaluations performed.
}

// Init allocate the workspace for the optimizer.
// To avoid race conditions, separate workspaces need to be created for each
// goroutine. But multiple workspaces could share one optimizer.
func (o *Optimizer) Init() *Workspace {
	w := new(Workspace)
	w.n, w.m = o.n, o.m

	n := o.n
	w.d = make([]float64, n)
	w.t = make([]float64, n)
	w.r = make([]float64, n)
	w.xt = make([]float64, n)
	w.gt = make([]float64, n)

	switch o.method {
	case ConjGrad:
		w.gPrev = make([]float64, n)
		w.dPrev = make([]float64, n)
	case LBFGS:
		m := o.m
		w.corrS = make([][]float64, m)
		w.corrY = make([][]float64, m)
		for i := 0; i < m; i++ {
			w.corrS[i] = make([]float64, n)
			w.corrY[i] = make([]float64, n)
		}
		w.rho = make([]float64, m)
		w.alpha = make([]float64, m)
	case Newton:
		w.hess = mat.NewSymDense(n, nil)
		w.hReg = mat.NewSymDense(n, nil)
		w.rhs = mat.NewVecDense(n, nil)
		w.sol = mat.NewVecDense(n, nil)
	}
	return w
}

// Fit runs the optimization process using the initial guess x and workspace w.
func (o *Optimizer) Fit(x []float64, w *Workspace) *Result {

	if len(x) != o.n {
		panic("initial x dimension not match spec")
	}

	if w.n != o.n || w.m != o.m {
		panic("workspace dimension not match spec")
	}

	loc := iterLoc{
		x: slices.Repeat(x, 1),
		g: make([]float64, len(x)),
	}

	var dir direction
	switch o.method {
	case ConjGrad:
		dir = cgDir{}
	case Newton:
		dir = newtonDir{}
	default:
		dir = lbfgsDir{}
	}

	driver := iterDriver{
		optimizer: o,
		workspace: w,
		location:  &loc,
		direction: dir,
	}

	res := driver.mainLoop()
	return &Result{
		OK: res&statusConv > 0,
		X:  loc.x, F: loc.f, G: loc.g,
		Summary: Summary{
			Status:  res,
			NumIter: w.iter,
			NumEval: w.totalEval,
		},
	}
}
