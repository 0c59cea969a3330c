package analysis

import (
	"fmt"
	"math"
	"strconv"
)

// TradingDaysPerYear is the annualization factor for daily series.
const TradingDaysPerYear = 252

// WeightTolerance is the allowed deviation of a weight sum from 1.0.
const WeightTolerance = 1e-6

// ReturnMode selects how price relatives are turned into returns.
type ReturnMode string

const (
	ReturnSimple ReturnMode = "simple"
	ReturnLog    ReturnMode = "log"
)

// Objective selects the optimization target.
type Objective string

const (
	MaxSharpe     Objective = "max_sharpe"
	MinVolatility Objective = "min_volatility"
)

// Ratio is a risk-adjusted ratio that may be undefined (zero denominator).
// An undefined ratio renders as "N/A" and marshals as JSON null; NaN never
// leaves this package.
type Ratio struct {
	Value   float64
	Defined bool
}

func DefinedRatio(v float64) Ratio { return Ratio{Value: v, Defined: true} }

func (r Ratio) String() string {
	if !r.Defined {
		return "N/A"
	}
	return strconv.FormatFloat(r.Value, 'f', 2, 64)
}

func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Defined {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(r.Value, 'g', -1, 64)), nil
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = Ratio{}
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*r = Ratio{Value: v, Defined: true}
	return nil
}

// PerformanceSummary holds the headline statistics of a daily return series.
type PerformanceSummary struct {
	AnnualReturn     float64 `json:"annual_return"`
	AnnualVolatility float64 `json:"annual_volatility"`
	Sharpe           Ratio   `json:"sharpe"`
	Sortino          Ratio   `json:"sortino"`
	Calmar           Ratio   `json:"calmar"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	VaR95            float64 `json:"var_95"`
	Skew             float64 `json:"skew"`
	Kurtosis         float64 `json:"kurtosis"`
	Observations     int     `json:"observations"`
}

// AssetStats holds per-asset statistics shown alongside the portfolio view.
type AssetStats struct {
	Ticker           string  `json:"ticker"`
	Weight           float64 `json:"weight"`
	AnnualReturn     float64 `json:"annual_return"`
	AnnualVolatility float64 `json:"annual_volatility"`
	Sharpe           Ratio   `json:"sharpe"`
	MaxDrawdown      float64 `json:"max_drawdown"`
}

// OptimizationResult is an optimized weight vector together with the
// performance of the portfolio those weights produce.
type OptimizationResult struct {
	Objective Objective          `json:"objective"`
	Weights   map[string]float64 `json:"weights"`
	Summary   PerformanceSummary `json:"summary"`
}

// DisplayWeights returns weights with dust positions floored to zero, for
// human-facing output. The stored weights stay untouched.
func (r *OptimizationResult) DisplayWeights() map[string]float64 {
	out := make(map[string]float64, len(r.Weights))
	for t, w := range r.Weights {
		if w < 1e-4 {
			w = 0
		}
		out[t] = w
	}
	return out
}

// ValidateWeights checks that weights match the ticker set, are finite and
// sum to 1 within tolerance.
func ValidateWeights(weights map[string]float64, tickers []string) error {
	if len(weights) != len(tickers) {
		return fmt.Errorf("got %d weights for %d tickers", len(weights), len(tickers))
	}
	sum := 0.0
	for _, t := range tickers {
		w, ok := weights[t]
		if !ok {
			return fmt.Errorf("missing weight for %s", t)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("weight for %s is not finite", t)
		}
		if w < 0 {
			return fmt.Errorf("weight for %s is negative: %v", t, w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > WeightTolerance {
		return fmt.Errorf("weights sum to %v, want 1 within %v", sum, WeightTolerance)
	}
	return nil
}

// NormalizeWeights rescales weights to sum to exactly 1. Used after dropping
// failed tickers from a requested allocation.
func NormalizeWeights(weights map[string]float64) map[string]float64 {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	out := make(map[string]float64, len(weights))
	if sum <= 0 {
		// Degenerate input: fall back to equal weights.
		for t := range weights {
			out[t] = 1.0 / float64(len(weights))
		}
		return out
	}
	for t, w := range weights {
		out[t] = w / sum
	}
	return out
}
