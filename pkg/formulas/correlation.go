package formulas

import "math"

// CorrelationFromCovariance converts a covariance matrix to correlations.
//
// Formula: corr(i,j) = cov(i,j) / (sqrt(cov(i,i)) * sqrt(cov(j,j)))
//
// Entries that come out NaN or infinite (zero or negative variances) are set to
// 0 and the diagonal is always 1, so the result is usable for display even when
// some assets have degenerate variance. Missing entries read as 0.
func CorrelationFromCovariance(cov [][]float64) [][]float64 {
	n := len(cov)

	stdDevs := make([]float64, n)
	for i := 0; i < n; i++ {
		stdDevs[i] = math.Sqrt(entry(cov, i, i))
	}

	corr := make([][]float64, n)
	for i := 0; i < n; i++ {
		corr[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				corr[i][j] = 1
				continue
			}
			v := entry(cov, i, j) / (stdDevs[i] * stdDevs[j])
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			corr[i][j] = v
		}
	}

	return corr
}

func entry(m [][]float64, i, j int) float64 {
	if i >= len(m) || j >= len(m[i]) {
		return 0
	}
	return m[i][j]
}
