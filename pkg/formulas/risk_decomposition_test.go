package formulas

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestComputeRiskFromCov_TwoAssetScenario(t *testing.T) {
	cov := [][]float64{
		{0.04, 0.01},
		{0.01, 0.09},
	}

	res := ComputeRiskFromCov(cov, []float64{0.5, 0.5}, 252)

	// 0.25*0.04 + 2*0.25*0.01 + 0.25*0.09
	expectedVar := 0.01 + 0.005 + 0.0225
	sigma := math.Sqrt(expectedVar)

	assert.InDelta(t, expectedVar, res.Variance, 1e-15)
	assert.InDelta(t, sigma, res.Volatility, 1e-15)
	assert.InDelta(t, sigma*math.Sqrt(252), res.VolAnn, 1e-12)
	assert.False(t, res.VarianceClamped)

	// Σw = [0.025, 0.05]
	assert.InDeltaSlice(t, []float64{0.025 / sigma, 0.05 / sigma}, res.MCR, 1e-12)
	assert.InDeltaSlice(t, []float64{0.0125 / sigma, 0.025 / sigma}, res.RiskContrib, 1e-12)
	assert.InDeltaSlice(t, []float64{1.0 / 3.0, 2.0 / 3.0}, res.RiskShare, 1e-12)

	// Risk contributions add back up to total volatility.
	assert.InDelta(t, sigma, res.RiskContrib[0]+res.RiskContrib[1], 1e-12)
}

func TestComputeRiskFromCov_IdentityEqualWeights(t *testing.T) {
	cov := [][]float64{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
	w := []float64{0.25, 0.25, 0.25, 0.25}

	res := ComputeRiskFromCov(cov, w, DefaultAnnualizationFactor)

	assert.InDelta(t, 0.5, res.Volatility, 1e-15)
	for i := range w {
		assert.InDelta(t, 0.25, res.RiskShare[i], 1e-12)
		assert.InDelta(t, w[i]/res.Volatility, res.MCR[i], 1e-12)
		assert.InDelta(t, res.RiskContrib[0], res.RiskContrib[i], 1e-15, "equal contributions")
	}
}

func TestComputeRiskFromCov_RiskSharesSumToOne(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 25; trial++ {
		n := 2 + rng.Intn(12)
		cov := randomCovariance(rng, n)

		w := make([]float64, n)
		for i := range w {
			w[i] = rng.Float64() + 0.01
		}

		res := ComputeRiskFromCov(cov, w, DefaultAnnualizationFactor)
		require.Greater(t, res.Variance, 0.0)

		sum := 0.0
		for _, s := range res.RiskShare {
			sum += s
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "trial %d (n=%d)", trial, n)

		rcSum := 0.0
		for _, rc := range res.RiskContrib {
			rcSum += rc
		}
		assert.InDelta(t, res.Volatility, rcSum, 1e-9, "risk contributions sum to volatility")
	}
}

func TestComputeRiskFromCov_ZeroWeights(t *testing.T) {
	cov := [][]float64{{0.04, 0.01}, {0.01, 0.09}}

	res := ComputeRiskFromCov(cov, []float64{0, 0}, 252)

	assert.Equal(t, []float64{0, 0}, res.Weights)
	assert.Equal(t, 0.0, res.VolAnn)
	assert.Equal(t, []float64{0, 0}, res.MCR)
	assert.Equal(t, []float64{0, 0}, res.RiskContrib)
	assert.Equal(t, []float64{0, 0}, res.RiskShare)
}

func TestComputeRiskFromCov_ZeroCovariance(t *testing.T) {
	cov := [][]float64{{0, 0}, {0, 0}}

	res := ComputeRiskFromCov(cov, []float64{1, 3}, 252)

	assert.InDeltaSlice(t, []float64{0.25, 0.75}, res.Weights, 1e-15)
	assert.Equal(t, 0.0, res.Volatility)
	assert.Equal(t, []float64{0, 0}, res.MCR)
	assert.Equal(t, []float64{0, 0}, res.RiskShare)
}

func TestComputeRiskFromCov_NegativeVarianceIsClamped(t *testing.T) {
	// Not PSD: w'Σw < 0 for equal weights.
	cov := [][]float64{
		{0.01, -0.02},
		{-0.02, 0.01},
	}

	res := ComputeRiskFromCov(cov, []float64{1, 1}, 252)

	assert.True(t, res.VarianceClamped)
	assert.Less(t, res.RawVariance, 0.0)
	assert.Equal(t, 0.0, res.Variance)
	assert.Equal(t, 0.0, res.VolAnn)
	assert.Equal(t, []float64{0, 0}, res.MCR)
	assert.Equal(t, []float64{0, 0}, res.RiskShare)
}

func TestComputeRiskFromCov_MissingEntriesReadAsZero(t *testing.T) {
	ragged := [][]float64{
		{0.04},
		{0.0, 0.09},
	}
	full := [][]float64{
		{0.04, 0.0},
		{0.0, 0.09},
	}

	got := ComputeRiskFromCov(ragged, []float64{0.5, 0.5}, 252)
	want := ComputeRiskFromCov(full, []float64{0.5, 0.5}, 252)

	assert.Equal(t, want, got)
}

func TestComputeRiskFromCov_DefaultAnnualization(t *testing.T) {
	cov := [][]float64{{0.0004}}

	res := ComputeRiskFromCov(cov, []float64{1}, 0)

	assert.InDelta(t, 0.02*math.Sqrt(252), res.VolAnn, 1e-12)
	assert.InDelta(t, 1.0, res.RiskShare[0], 1e-15)
}

func TestComputeRiskFromCov_EmptyPortfolio(t *testing.T) {
	res := ComputeRiskFromCov(nil, nil, 252)

	assert.Empty(t, res.Weights)
	assert.Empty(t, res.RiskShare)
	assert.Equal(t, 0.0, res.VolAnn)
}

func TestComputeRiskFromCov_DeterministicAndPure(t *testing.T) {
	cov := [][]float64{
		{0.04, 0.006, 0.002},
		{0.006, 0.09, 0.01},
		{0.002, 0.01, 0.0225},
	}
	w := []float64{3, 5, 2}
	covCopy := [][]float64{
		append([]float64(nil), cov[0]...),
		append([]float64(nil), cov[1]...),
		append([]float64(nil), cov[2]...),
	}

	first := ComputeRiskFromCov(cov, w, 252)
	second := ComputeRiskFromCov(cov, w, 252)

	assert.Equal(t, first, second)
	assert.Equal(t, []float64{3, 5, 2}, w, "weights must not be mutated")
	assert.Equal(t, covCopy, cov, "covariance must not be mutated")
}

// randomCovariance returns A·A' for a random n×(n+2) matrix, which is PSD.
func randomCovariance(rng *rand.Rand, n int) [][]float64 {
	k := n + 2
	a := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			a.Set(i, j, rng.NormFloat64()*0.02)
		}
	}

	var cov mat.Dense
	cov.Mul(a, a.T())

	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = mat.Row(nil, i, &cov)
	}
	return out
}
