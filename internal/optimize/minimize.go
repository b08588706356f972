// Package optimize implements bounded nonlinear minimization for the
// strength model's likelihood fit. The contract is the box-constrained
// scalar objective, not a particular solver: callers supply a function,
// a starting point, and per-coordinate bounds, and get back the best
// point found or an error signalling divergence.
package optimize

import (
	"errors"
	"fmt"
	"math"
)

// Problem describes one bounded minimization.
type Problem struct {
	// Func is the scalar objective. It must be defined everywhere inside
	// the box; non-finite values abort the run.
	Func func(x []float64) float64
	// X0 is the starting point, projected into the box before use.
	X0 []float64
	// Lower and Upper are per-coordinate box constraints.
	Lower []float64
	Upper []float64
}

// Options tunes the solver. Zero values select the defaults.
type Options struct {
	MaxIter  int     // default 200
	GradStep float64 // central-difference step, default 1e-6
	Tol      float64 // objective improvement tolerance, default 1e-8
}

// Result is the outcome of a successful minimization.
type Result struct {
	X          []float64
	Value      float64
	Iterations int
}

var (
	ErrBadProblem = errors.New("optimize: invalid problem")
	ErrDiverged   = errors.New("optimize: objective not finite")
	ErrLineSearch = errors.New("optimize: line search failed to improve")
)

// Minimize runs projected gradient descent with central-difference
// gradients and backtracking line search. Each candidate step is clipped
// back into the box before evaluation.
func Minimize(p Problem, opts Options) (Result, error) {
	n := len(p.X0)
	if p.Func == nil || n == 0 || len(p.Lower) != n || len(p.Upper) != n {
		return Result{}, ErrBadProblem
	}
	for i := 0; i < n; i++ {
		if p.Lower[i] > p.Upper[i] {
			return Result{}, fmt.Errorf("%w: bounds inverted at %d", ErrBadProblem, i)
		}
	}

	maxIter := opts.MaxIter
	if maxIter <= 0 {
		maxIter = 200
	}
	h := opts.GradStep
	if h <= 0 {
		h = 1e-6
	}
	tol := opts.Tol
	if tol <= 0 {
		tol = 1e-8
	}

	x := project(append([]float64(nil), p.X0...), p.Lower, p.Upper)
	fx := p.Func(x)
	if !isFinite(fx) {
		return Result{}, ErrDiverged
	}

	grad := make([]float64, n)
	trial := make([]float64, n)

	for iter := 1; iter <= maxIter; iter++ {
		gradNorm := 0.0
		for i := 0; i < n; i++ {
			xi := x[i]
			x[i] = clamp(xi+h, p.Lower[i], p.Upper[i])
			fPlus := p.Func(x)
			x[i] = clamp(xi-h, p.Lower[i], p.Upper[i])
			fMinus := p.Func(x)
			x[i] = xi
			if !isFinite(fPlus) || !isFinite(fMinus) {
				return Result{}, ErrDiverged
			}
			grad[i] = (fPlus - fMinus) / (2 * h)
			gradNorm += grad[i] * grad[i]
		}
		gradNorm = math.Sqrt(gradNorm)
		if gradNorm < 1e-12 {
			return Result{X: x, Value: fx, Iterations: iter}, nil
		}

		// Backtracking: shrink the step until the objective improves.
		step := 1.0 / math.Max(1, gradNorm)
		improved := false
		for try := 0; try < 30; try++ {
			for i := 0; i < n; i++ {
				trial[i] = clamp(x[i]-step*grad[i], p.Lower[i], p.Upper[i])
			}
			ft := p.Func(trial)
			if !isFinite(ft) {
				return Result{}, ErrDiverged
			}
			if ft < fx {
				copy(x, trial)
				if fx-ft < tol {
					return Result{X: x, Value: ft, Iterations: iter}, nil
				}
				fx = ft
				improved = true
				break
			}
			step /= 2
		}
		if !improved {
			// No direction shrinks the objective further; treat the
			// current point as converged unless we never moved at all.
			if iter == 1 {
				return Result{}, ErrLineSearch
			}
			return Result{X: x, Value: fx, Iterations: iter}, nil
		}
	}

	return Result{X: x, Value: fx, Iterations: maxIter}, nil
}

func project(x, lower, upper []float64) []float64 {
	for i := range x {
		x[i] = clamp(x[i], lower[i], upper[i])
	}
	return x
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
