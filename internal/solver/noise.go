package solver

// NoiseModel scales residuals into unit-variance (whitened) space.
type NoiseModel interface {
	Dim() int
	// Sigmas returns the per-component standard deviations.
	Sigmas() []float64
}

type diagonalNoise struct {
	sigmas []float64
}

func (n *diagonalNoise) Dim() int          { return len(n.sigmas) }
func (n *diagonalNoise) Sigmas() []float64 { return n.sigmas }

// Isotropic builds a noise model with the same sigma on every component.
func Isotropic(dim int, sigma float64) NoiseModel {
	s := make([]float64, dim)
	for i := range s {
		s[i] = sigma
	}
	return &diagonalNoise{sigmas: s}
}

// Diagonal builds a noise model from per-component sigmas.
func Diagonal(sigmas []float64) NoiseModel {
	s := make([]float64, len(sigmas))
	copy(s, sigmas)
	return &diagonalNoise{sigmas: s}
}

// whiten scales residual r by the inverse sigmas, in place.
func whiten(r []float64, n NoiseModel) {
	sig := n.Sigmas()
	for i := range r {
		if sig[i] > 0 {
			r[i] /= sig[i]
		}
	}
}
