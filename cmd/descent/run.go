// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/curioloop/optlib/descent"
	"github.com/curioloop/optlib/objective"
)

var (
	objName string
	method  string
	search  string
	dim     int
	seed    uint64
	iters   int
	evals   int
	gtol    float64
	ftol    float64
	memory  int
	start   string
	trace   int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Minimize a benchmark objective",
	Long:  `Runs one solver over a built-in objective and prints the solution.`,
	RunE:  runMinimize,
}

func init() {
	runCmd.Flags().StringVar(&objName, "objective", "quadratic", "Objective: quadratic, rosenbrock, extrosen, sphere")
	runCmd.Flags().StringVar(&method, "method", "lbfgs", "Solver: lbfgs, cg, newton")
	runCmd.Flags().StringVar(&search, "search", "", "Line search: wolfe, backtrack, interp, bisect (default per solver)")
	runCmd.Flags().IntVar(&dim, "dim", 10, "Problem dimension (quadratic, extrosen, sphere)")
	runCmd.Flags().Uint64Var(&seed, "seed", 42, "Random seed for the quadratic objective")
	runCmd.Flags().IntVar(&iters, "iters", 0, "Max iterations (0 = default)")
	runCmd.Flags().IntVar(&evals, "evals", 0, "Max evaluations (0 = unlimited)")
	runCmd.Flags().Float64Var(&gtol, "gtol", 0, "Gradient tolerance (0 = default)")
	runCmd.Flags().Float64Var(&ftol, "ftol", 0, "Function progress tolerance (0 = disabled)")
	runCmd.Flags().IntVar(&memory, "memory", 0, "L-BFGS correction number (0 = default)")
	runCmd.Flags().StringVar(&start, "start", "", "Comma-separated initial point (default per objective)")
	runCmd.Flags().IntVar(&trace, "trace", -1, "Solver trace level (-1 silent, 0 summary, k every k iterations, 99 full)")

	rootCmd.AddCommand(runCmd)
}

func runMinimize(cmd *cobra.Command, args []string) error {

	problem, x0, err := buildObjective()
	if err != nil {
		return err
	}

	var m descent.Method
	switch method {
	case "lbfgs":
		m = descent.LBFGS
	case "cg":
		m = descent.ConjGrad
	case "newton":
		m = descent.Newton
		if !descent.HasHessian(problem) {
			problem = &descent.NumericHessian{Problem: problem}
		}
	default:
		return errors.Errorf("unknown method %q", method)
	}

	var ls descent.LineSearch
	switch search {
	case "":
	case "wolfe":
		ls = &descent.StrongWolfe{}
	case "backtrack":
		ls = &descent.Backtracking{}
	case "interp":
		ls = &descent.Interpolating{}
	case "bisect":
		ls = &descent.Bisection{}
	default:
		return errors.Errorf("unknown line search %q", search)
	}

	spec := descent.Spec{
		Problem: problem,
		Method:  m,
		Memory:  memory,
		Stop: descent.Termination{
			MaxIterations:  iters,
			MaxEvaluations: evals,
			GradTolerance:  gtol,
			FDiffTolerance: ftol,
		},
		Search: ls,
	}

	opt, err := spec.New(&descent.Logger{Level: descent.LogLevel(trace), Msg: os.Stderr})
	if err != nil {
		return err
	}

	slog.Info("Starting minimization", "objective", objName, "method", method, "dim", problem.Dim())

	begin := time.Now()
	res := opt.Fit(x0, opt.Init())
	elapsed := time.Since(begin)

	slog.Info("Finished", "status", res.Status.String(), "iters", res.NumIter,
		"evals", res.NumEval, "elapsed", elapsed)

	fmt.Printf("status: %s\n", res.Status)
	fmt.Printf("f     : %.10e\n", res.F)
	fmt.Printf("iters : %d\n", res.NumIter)
	fmt.Printf("evals : %d\n", res.NumEval)
	if q, isQuad := problem.(*objective.Quadratic); isQuad {
		fmt.Printf("resid : %.3e\n", q.Residual(res.X))
	}
	if len(res.X) <= 16 {
		fmt.Printf("x     : %v\n", res.X)
	}

	if !res.OK {
		return errors.Errorf("minimization did not converge: %s", res.Status)
	}
	return nil
}

// buildObjective constructs the problem and its default starting point.
func buildObjective() (descent.Problem, []float64, error) {

	if dim <= 0 {
		return nil, nil, errors.New("dimension must greater than 0")
	}

	var p descent.Problem
	var x0 []float64

	switch objName {
	case "quadratic":
		p = objective.RandomQuadratic(dim, seed)
		x0 = make([]float64, dim)
	case "rosenbrock":
		p = objective.Rosenbrock{}
		x0 = []float64{-1.2, 1}
	case "extrosen":
		p = objective.ExtRosenbrock{N: dim}
		x0 = make([]float64, dim)
		for i := range x0 {
			if i%2 == 0 {
				x0[i] = -1.2
			} else {
				x0[i] = 1
			}
		}
	case "sphere":
		p = objective.Sphere{N: dim}
		x0 = make([]float64, dim)
		for i := range x0 {
			x0[i] = 1
		}
	default:
		return nil, nil, errors.Errorf("unknown objective %q", objName)
	}

	if start != "" {
		parts := strings.Split(start, ",")
		if len(parts) != p.Dim() {
			return nil, nil, errors.Errorf("start point needs %d components, got %d", p.Dim(), len(parts))
		}
		x0 = make([]float64, len(parts))
		for i, s := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "bad start component %q", s)
			}
			x0[i] = v
		}
	}
	return p, x0, nil
}
