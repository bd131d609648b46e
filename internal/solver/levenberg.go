package solver

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/fiducial-data/tagmapper/internal/keyspace"
)

// Params controls the Levenberg-Marquardt loop. AbsTol is the absolute
// cost-decrease threshold; RelTol is relative and disabled when zero, so
// termination is driven by near-zero absolute improvement or the iteration
// cap.
type Params struct {
	MaxIterations int
	AbsTol        float64
	RelTol        float64
}

// DefaultParams mirrors the production configuration: tight absolute
// tolerance, relative tolerance off.
func DefaultParams() Params {
	return Params{MaxIterations: 100, AbsTol: 1e-10, RelTol: 0}
}

// Result is the outcome of a solve. FinalCost is the unnormalized
// half-sum-of-squares of the whitened residuals; non-convergence is not an
// error, callers judge quality from cost and iteration count.
type Result struct {
	Values     *Values
	FinalCost  float64
	Iterations int
}

// ordering assigns each optimized variable a contiguous block in the
// tangent-space state vector.
type ordering struct {
	keys    []keyspace.Key
	offsets map[keyspace.Key]int
	n       int
}

// newOrdering collects the variables referenced by the graph's factors, in
// ascending key order. Variables present in vals but referenced by no
// factor are left out and pass through a solve untouched.
func newOrdering(g *Graph, vals *Values) (*ordering, error) {
	seen := make(map[keyspace.Key]struct{})
	for _, f := range g.Factors() {
		for _, k := range f.Keys() {
			if !vals.Has(k) {
				return nil, fmt.Errorf("factor references missing variable %v: %w", k, ErrUnknownVariable)
			}
			seen[k] = struct{}{}
		}
	}
	ord := &ordering{offsets: make(map[keyspace.Key]int)}
	for k := range seen {
		ord.keys = append(ord.keys, k)
	}
	sort.Slice(ord.keys, func(i, j int) bool { return ord.keys[i] < ord.keys[j] })
	for _, k := range ord.keys {
		ord.offsets[k] = ord.n
		ord.n += tangentDim(k)
	}
	return ord, nil
}

// cost evaluates the total half-sum-of-squares of whitened residuals.
func cost(g *Graph, vals *Values) float64 {
	var c float64
	for _, f := range g.Factors() {
		r := f.Residual(vals)
		whiten(r, f.Noise())
		for _, v := range r {
			c += 0.5 * v * v
		}
	}
	return c
}

// linearize stacks the whitened Jacobian and residual of every factor at
// the current values.
func linearize(g *Graph, vals *Values, ord *ordering) (*mat.Dense, *mat.VecDense) {
	m := 0
	for _, f := range g.Factors() {
		m += f.Dim()
	}
	jac := mat.NewDense(m, ord.n, nil)
	res := mat.NewVecDense(m, nil)

	row := 0
	for _, f := range g.Factors() {
		r := f.Residual(vals)
		whiten(r, f.Noise())
		for i, v := range r {
			res.SetVec(row+i, v)
		}
		sig := f.Noise().Sigmas()
		for arg, k := range f.Keys() {
			var block *mat.Dense
			if af, ok := f.(AnalyticFactor); ok {
				block = af.Jacobian(vals, arg)
			}
			if block == nil {
				block = numericJacobian(f, vals, arg)
			}
			col := ord.offsets[k]
			for i := 0; i < f.Dim(); i++ {
				w := 1.0
				if sig[i] > 0 {
					w = 1 / sig[i]
				}
				for j := 0; j < tangentDim(k); j++ {
					jac.Set(row+i, col+j, w*block.At(i, j))
				}
			}
		}
		row += f.Dim()
	}
	return jac, res
}

// Solve runs Levenberg-Marquardt from the initial values. The returned
// values hold the solution for every optimized variable and the untouched
// initial value for everything else; the input store is not mutated.
// Deterministic for identical factors, initial values, and parameters.
func Solve(g *Graph, initial *Values, p Params) (Result, error) {
	vals := initial.Clone()
	ord, err := newOrdering(g, vals)
	if err != nil {
		return Result{}, err
	}
	cur := cost(g, vals)
	if ord.n == 0 {
		return Result{Values: vals, FinalCost: cur}, nil
	}

	lambda := 1e-5
	const lambdaMax = 1e10
	iterations := 0

	for iterations < p.MaxIterations {
		jac, res := linearize(g, vals, ord)

		var hess mat.Dense
		hess.Mul(jac.T(), jac)
		var grad mat.VecDense
		grad.MulVec(jac.T(), res)

		improved := false
		for lambda <= lambdaMax {
			damped := mat.NewSymDense(ord.n, nil)
			for i := 0; i < ord.n; i++ {
				for j := i; j < ord.n; j++ {
					v := 0.5 * (hess.At(i, j) + hess.At(j, i))
					if i == j {
						v += lambda
					}
					damped.SetSym(i, j, v)
				}
			}
			var chol mat.Cholesky
			if !chol.Factorize(damped) {
				lambda *= 10
				continue
			}
			var dx mat.VecDense
			if err := chol.SolveVecTo(&dx, &grad); err != nil {
				lambda *= 10
				continue
			}

			trial := vals.Clone()
			for _, k := range ord.keys {
				off := ord.offsets[k]
				dim := tangentDim(k)
				delta := make([]float64, dim)
				for i := 0; i < dim; i++ {
					delta[i] = -dx.AtVec(off + i)
				}
				if err := trial.retract(k, delta); err != nil {
					return Result{}, err
				}
			}
			next := cost(g, trial)
			if next < cur {
				improved = true
				decrease := cur - next
				vals, cur = trial, next
				iterations++
				if lambda > 1e-12 {
					lambda /= 10
				}
				if decrease < p.AbsTol {
					return Result{Values: vals, FinalCost: cur, Iterations: iterations}, nil
				}
				if p.RelTol > 0 && decrease < p.RelTol*cur {
					return Result{Values: vals, FinalCost: cur, Iterations: iterations}, nil
				}
				break
			}
			lambda *= 10
		}
		if !improved {
			break
		}
	}
	return Result{Values: vals, FinalCost: cur, Iterations: iterations}, nil
}
