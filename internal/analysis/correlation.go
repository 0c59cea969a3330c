package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Correlate computes the pairwise correlation matrix of the given return
// series, ordered by tickers. The diagonal is exactly 1; a pair involving a
// constant series (zero variance) gets correlation 0 instead of NaN.
func Correlate(returns map[string][]float64, tickers []string) (*mat.SymDense, error) {
	n := len(tickers)
	if n == 0 {
		return nil, fmt.Errorf("no tickers")
	}
	rows := -1
	for _, t := range tickers {
		r, ok := returns[t]
		if !ok {
			return nil, fmt.Errorf("missing return series for %s", t)
		}
		if rows == -1 {
			rows = len(r)
		} else if len(r) != rows {
			return nil, fmt.Errorf("return series for %s has %d points, want %d", t, len(r), rows)
		}
	}
	if rows < 2 {
		return nil, fmt.Errorf("need at least 2 observations, got %d", rows)
	}

	data := mat.NewDense(rows, n, nil)
	for j, t := range tickers {
		for i, v := range returns[t] {
			data.Set(i, j, v)
		}
	}
	corr := mat.NewSymDense(n, nil)
	stat.CorrelationMatrix(corr, data, nil)
	for i := 0; i < n; i++ {
		corr.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			if v := corr.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				corr.SetSym(i, j, 0)
			}
		}
	}
	return corr, nil
}
