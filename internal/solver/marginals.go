package solver

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/fiducial-data/tagmapper/internal/keyspace"
)

// ErrNoMarginal reports a covariance query for a variable the marginals
// were not computed over.
var ErrNoMarginal = errors.New("no marginal available")

// Marginals holds per-variable covariance blocks extracted from the
// inverse of the Gauss-Newton information matrix (JᵀWJ)⁻¹ at a fixed
// linearization point. It goes stale on any subsequent graph mutation;
// staleness is not tracked, callers recompute after edits.
type Marginals struct {
	cov map[keyspace.Key]*mat.SymDense
}

// ComputeMarginals linearizes the graph at vals and inverts the full
// information matrix. Fails if the problem is under-constrained (singular
// information matrix, e.g. unanchored gauge freedom).
func ComputeMarginals(g *Graph, vals *Values) (*Marginals, error) {
	ord, err := newOrdering(g, vals)
	if err != nil {
		return nil, err
	}
	if ord.n == 0 {
		return &Marginals{cov: map[keyspace.Key]*mat.SymDense{}}, nil
	}
	jac, _ := linearize(g, vals, ord)
	var hess mat.Dense
	hess.Mul(jac.T(), jac)

	info := mat.NewSymDense(ord.n, nil)
	for i := 0; i < ord.n; i++ {
		for j := i; j < ord.n; j++ {
			info.SetSym(i, j, 0.5*(hess.At(i, j)+hess.At(j, i)))
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(info) {
		return nil, fmt.Errorf("information matrix is singular; problem under-constrained")
	}
	var full mat.SymDense
	if err := chol.InverseTo(&full); err != nil {
		return nil, fmt.Errorf("invert information matrix: %w", err)
	}

	m := &Marginals{cov: make(map[keyspace.Key]*mat.SymDense, len(ord.keys))}
	for _, k := range ord.keys {
		off := ord.offsets[k]
		dim := tangentDim(k)
		block := mat.NewSymDense(dim, nil)
		for i := 0; i < dim; i++ {
			for j := i; j < dim; j++ {
				block.SetSym(i, j, full.At(off+i, off+j))
			}
		}
		m.cov[k] = block
	}
	return m, nil
}

// MarginalCovariance returns the covariance block for key, tangent-ordered
// (rotation first for poses).
func (m *Marginals) MarginalCovariance(k keyspace.Key) (*mat.SymDense, error) {
	if m == nil {
		return nil, fmt.Errorf("marginals not computed: %w", ErrNoMarginal)
	}
	block, ok := m.cov[k]
	if !ok {
		return nil, fmt.Errorf("key %v: %w", k, ErrNoMarginal)
	}
	return block, nil
}
