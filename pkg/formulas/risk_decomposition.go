package formulas

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultAnnualizationFactor is the number of trading days per year used to
// scale period volatility.
const DefaultAnnualizationFactor = 252

// RiskDecomposition is the volatility breakdown of one portfolio.
// All slices are index-aligned with the covariance matrix symbol order.
type RiskDecomposition struct {
	Weights     []float64 `json:"w"`
	Variance    float64   `json:"variance"`
	Volatility  float64   `json:"vol"`
	VolAnn      float64   `json:"volAnn"`
	MCR         []float64 `json:"mcr"`
	RiskContrib []float64 `json:"riskContrib"`
	RiskShare   []float64 `json:"riskShare"`

	// VarianceClamped is set when w'Σw came out negative and was floored at 0.
	// RawVariance keeps the unclamped value for diagnostics.
	VarianceClamped bool    `json:"varianceClamped"`
	RawVariance     float64 `json:"rawVariance"`
}

// ComputeRiskFromCov decomposes portfolio volatility into per-asset contributions.
//
//	w        = normalize(weights)
//	Σw       = cov · w            (missing entries read as 0)
//	σ        = sqrt(max(w'Σw, 0))
//	MCR_i    = (Σw)_i / σ          (0 when σ == 0)
//	RC_i     = w_i · MCR_i
//	share_i  = RC_i / ΣRC          (0 when ΣRC == 0)
//	volAnn   = σ · sqrt(annualizationFactor)
//
// Callers guarantee len(weights) matches the covariance dimension; a ragged or
// short matrix is padded with zeros. A non-positive annualizationFactor falls
// back to DefaultAnnualizationFactor.
func ComputeRiskFromCov(cov [][]float64, weights []float64, annualizationFactor int) RiskDecomposition {
	if annualizationFactor <= 0 {
		annualizationFactor = DefaultAnnualizationFactor
	}

	w := NormalizeWeights(weights)
	n := len(w)

	res := RiskDecomposition{
		Weights:     w,
		MCR:         make([]float64, n),
		RiskContrib: make([]float64, n),
		RiskShare:   make([]float64, n),
	}
	if n == 0 {
		return res
	}

	sigmaW := covTimesWeights(cov, w)

	variance := floats.Dot(w, sigmaW)
	res.RawVariance = variance
	if variance < 0 {
		variance = 0
		res.VarianceClamped = true
	}
	sigma := math.Sqrt(variance)

	res.Variance = variance
	res.Volatility = sigma
	res.VolAnn = sigma * math.Sqrt(float64(annualizationFactor))

	if sigma > 0 {
		for i := range sigmaW {
			res.MCR[i] = sigmaW[i] / sigma
		}
	}

	floats.MulTo(res.RiskContrib, w, res.MCR)

	if rcSum := floats.Sum(res.RiskContrib); rcSum != 0 {
		for i, rc := range res.RiskContrib {
			res.RiskShare[i] = rc / rcSum
		}
	}

	return res
}

// covTimesWeights returns cov·w as a fresh slice of len(w).
func covTimesWeights(cov [][]float64, w []float64) []float64 {
	n := len(w)

	sigma := mat.NewDense(n, n, nil)
	for i := 0; i < n && i < len(cov); i++ {
		row := cov[i]
		for j := 0; j < n && j < len(row); j++ {
			sigma.Set(i, j, row[j])
		}
	}

	var product mat.VecDense
	product.MulVec(sigma, mat.NewVecDense(n, w))

	return mat.Col(nil, 0, &product)
}
