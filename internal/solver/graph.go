package solver

import (
	"github.com/fiducial-data/tagmapper/internal/geom"
	"github.com/fiducial-data/tagmapper/internal/keyspace"
)

// Graph is an append-only ordered sequence of factors. Factors are never
// removed; a growing problem is re-solved in full each time.
type Graph struct {
	factors []Factor
}

// NewGraph returns an empty factor graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Add appends a factor.
func (g *Graph) Add(f Factor) {
	g.factors = append(g.factors, f)
}

// AddPrior appends a prior factor anchoring key to pose.
func (g *Graph) AddPrior(key keyspace.Key, pose geom.Pose, noise NoiseModel) {
	g.Add(NewPriorFactor(key, pose, noise))
}

// Len returns the number of factors.
func (g *Graph) Len() int {
	return len(g.factors)
}

// Factors returns the factor sequence in insertion order. The slice is
// shared; callers must not mutate it.
func (g *Graph) Factors() []Factor {
	return g.factors
}
