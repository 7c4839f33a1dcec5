package selection

import (
	"math"
)

const defaultSigma = 1.0

// Kernel is the n×n similarity matrix driving selection. The diagonal
// holds each candidate's normalized quality (score/100); off-diagonal
// entries hold RBF similarity in [0,1] and are symmetric.
type Kernel [][]float64

// BuildKernel constructs the kernel from feature vectors and raw quality
// scores. sigma is the RBF bandwidth; non-positive values fall back to the
// default of 1.0. Identical vectors get off-diagonal similarity of exactly
// 1.0 so true duplicates are never spared the diversity penalty by
// floating-point noise.
func BuildKernel(vectors []Vector, qualityScores []float64, sigma float64) Kernel {
	if sigma <= 0 {
		sigma = defaultSigma
	}

	n := len(vectors)
	kernel := make(Kernel, n)
	for i := range kernel {
		kernel[i] = make([]float64, n)
		kernel[i][i] = qualityScores[i] / 100.0
	}

	denom := 2 * sigma * sigma
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dist2 := squaredDistance(vectors[i], vectors[j])

			var sim float64
			if dist2 == 0 {
				sim = 1.0
			} else {
				sim = math.Exp(-dist2 / denom)
			}

			kernel[i][j] = sim
			kernel[j][i] = sim
		}
	}

	return kernel
}

// MeanPairwiseSimilarity averages K[i][j] over all unordered pairs of the
// given indices. Defined as 0 for fewer than two indices.
func (k Kernel) MeanPairwiseSimilarity(indices []int) float64 {
	if len(indices) < 2 {
		return 0
	}

	var sum float64
	pairs := 0
	for a := 0; a < len(indices); a++ {
		for b := a + 1; b < len(indices); b++ {
			sum += k[indices[a]][indices[b]]
			pairs++
		}
	}
	return sum / float64(pairs)
}

func squaredDistance(a, b Vector) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
