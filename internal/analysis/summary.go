package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summarize computes the headline performance statistics of a daily return
// series. riskFree is the annual risk-free rate. Ratios with a zero
// denominator come back undefined rather than NaN.
func Summarize(returns []float64, riskFree float64) PerformanceSummary {
	s := PerformanceSummary{Observations: len(returns)}
	if len(returns) == 0 {
		return s
	}

	mean := stat.Mean(returns, nil)
	s.AnnualReturn = math.Pow(1+mean, TradingDaysPerYear) - 1
	if len(returns) > 1 {
		s.AnnualVolatility = stat.StdDev(returns, nil) * math.Sqrt(TradingDaysPerYear)
	}
	s.MaxDrawdown = maxDrawdown(returns)
	s.VaR95 = historicalVaR(returns, 0.95)
	if len(returns) > 2 {
		s.Skew = stat.Skew(returns, nil)
		s.Kurtosis = stat.ExKurtosis(returns, nil)
	}

	excess := s.AnnualReturn - riskFree
	if s.AnnualVolatility > 0 {
		s.Sharpe = DefinedRatio(excess / s.AnnualVolatility)
	}
	if dd := downsideDeviation(returns); dd > 0 {
		s.Sortino = DefinedRatio(excess / (dd * math.Sqrt(TradingDaysPerYear)))
	}
	if s.MaxDrawdown < 0 {
		s.Calmar = DefinedRatio(s.AnnualReturn / math.Abs(s.MaxDrawdown))
	}
	return s
}

// maxDrawdown is the deepest peak-to-trough drop of the compounded growth
// curve, as a non-positive fraction.
func maxDrawdown(returns []float64) float64 {
	acc := 1.0
	peak := 1.0
	worst := 0.0
	for _, r := range returns {
		acc *= 1 + r
		if acc > peak {
			peak = acc
		}
		if dd := acc/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}

// historicalVaR is the interpolated (1-confidence) quantile of the empirical
// return distribution. For 95% confidence this is the 5th percentile, a
// negative number in any losing sample.
func historicalVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)
	pos := (1 - confidence) * float64(len(sorted)-1)
	lo := int(pos)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}

// downsideDeviation is the population standard deviation of the negative
// returns only. Zero when there are no losing days.
func downsideDeviation(returns []float64) float64 {
	var neg []float64
	for _, r := range returns {
		if r < 0 {
			neg = append(neg, r)
		}
	}
	if len(neg) == 0 {
		return 0
	}
	var sumSq float64
	for _, r := range neg {
		sumSq += r * r
	}
	return math.Sqrt(sumSq / float64(len(neg)))
}
