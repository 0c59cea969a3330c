package analysis

import (
	"fmt"
	"math"
)

// ComputeReturns converts an aligned price series into daily returns. The
// first observation is consumed as the base, so the output has len(prices)-1
// points. Log mode uses ln(p_t / p_{t-1}), simple mode p_t/p_{t-1} - 1.
func ComputeReturns(prices []float64, mode ReturnMode) ([]float64, error) {
	if len(prices) < 2 {
		return nil, fmt.Errorf("need at least 2 prices, got %d", len(prices))
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		if prev <= 0 {
			return nil, fmt.Errorf("non-positive price %v at index %d", prev, i-1)
		}
		switch mode {
		case ReturnLog:
			out = append(out, math.Log(prices[i]/prev))
		case ReturnSimple, "":
			out = append(out, prices[i]/prev-1)
		default:
			return nil, fmt.Errorf("unknown return mode %q", mode)
		}
	}
	return out, nil
}

// BlendReturns combines per-asset daily returns into one portfolio series
// using static weights held for the whole period. Weights are applied to
// each day's cross-section; no rebalancing drift is modeled.
func BlendReturns(returns map[string][]float64, weights map[string]float64) ([]float64, error) {
	if len(returns) == 0 {
		return nil, fmt.Errorf("no return series to blend")
	}
	n := -1
	for t, r := range returns {
		if n == -1 {
			n = len(r)
		} else if len(r) != n {
			return nil, fmt.Errorf("return series for %s has %d points, want %d", t, len(r), n)
		}
		if _, ok := weights[t]; !ok {
			return nil, fmt.Errorf("missing weight for %s", t)
		}
	}
	out := make([]float64, n)
	for t, r := range returns {
		w := weights[t]
		for i, v := range r {
			out[i] += w * v
		}
	}
	return out, nil
}

// AssetStatistics computes per-asset stats for every return series.
func AssetStatistics(returns map[string][]float64, weights map[string]float64, riskFree float64) map[string]AssetStats {
	out := make(map[string]AssetStats, len(returns))
	for t, r := range returns {
		s := Summarize(r, riskFree)
		out[t] = AssetStats{
			Ticker:           t,
			Weight:           weights[t],
			AnnualReturn:     s.AnnualReturn,
			AnnualVolatility: s.AnnualVolatility,
			Sharpe:           s.Sharpe,
			MaxDrawdown:      s.MaxDrawdown,
		}
	}
	return out
}

// CumulativeGrowth turns a daily return series into a growth-of-1 curve.
func CumulativeGrowth(returns []float64) []float64 {
	out := make([]float64, len(returns))
	acc := 1.0
	for i, r := range returns {
		acc *= 1 + r
		out[i] = acc
	}
	return out
}

// DrawdownSeries returns the running drawdown from the peak of the growth
// curve, as non-positive fractions.
func DrawdownSeries(returns []float64) []float64 {
	out := make([]float64, len(returns))
	acc := 1.0
	peak := 1.0
	for i, r := range returns {
		acc *= 1 + r
		if acc > peak {
			peak = acc
		}
		out[i] = acc/peak - 1
	}
	return out
}
