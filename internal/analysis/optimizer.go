package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// ErrDegenerateCovariance is returned when the sample covariance matrix is
// not positive definite (too few observations, duplicated or constant
// series). Optimization is impossible but the rest of a report is not.
var ErrDegenerateCovariance = errors.New("covariance matrix is not positive definite")

// Optimizer solves long-only mean-variance allocation problems over the
// weight simplex.
type Optimizer struct {
	RiskFree   float64
	LowerBound float64
	UpperBound float64
}

func NewOptimizer(riskFree float64) *Optimizer {
	return &Optimizer{RiskFree: riskFree, LowerBound: 0, UpperBound: 1}
}

// Optimize finds weights for the requested objective over the given daily
// return series. Returns ErrDegenerateCovariance when the sample covariance
// cannot support mean-variance optimization.
func (o *Optimizer) Optimize(objective Objective, returns map[string][]float64, tickers []string) (map[string]float64, error) {
	n := len(tickers)
	if n == 0 {
		return nil, fmt.Errorf("no tickers to optimize")
	}
	if n == 1 {
		return map[string]float64{tickers[0]: 1.0}, nil
	}

	obs := -1
	for _, t := range tickers {
		r, ok := returns[t]
		if !ok {
			return nil, fmt.Errorf("missing return series for %s", t)
		}
		if obs == -1 {
			obs = len(r)
		} else if len(r) != obs {
			return nil, fmt.Errorf("return series for %s has %d points, want %d", t, len(r), obs)
		}
	}
	if obs < n+1 {
		return nil, fmt.Errorf("%w: %d observations for %d assets", ErrDegenerateCovariance, obs, n)
	}

	// Annualized moments: arithmetic mean and sample covariance scaled by
	// trading days.
	mu := make([]float64, n)
	data := mat.NewDense(obs, n, nil)
	for j, t := range tickers {
		mu[j] = stat.Mean(returns[t], nil) * TradingDaysPerYear
		for i, v := range returns[t] {
			data.Set(i, j, v)
		}
	}
	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, data, nil)
	cov.ScaleSym(TradingDaysPerYear, cov)

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil, ErrDegenerateCovariance
	}

	sigma := mat.DenseCopyOf(cov)
	x, err := o.solve(objective, mu, sigma)
	if err != nil {
		return nil, err
	}
	x, err = clampToSimplex(x, o.LowerBound, o.UpperBound)
	if err != nil {
		return nil, err
	}

	weights := make(map[string]float64, n)
	for i, t := range tickers {
		weights[t] = x[i]
	}
	return weights, nil
}

// clampToSimplex projects x onto {w : lo <= w_i <= hi, Σw = 1} by clipping
// to the bounds and spreading the remaining mass over assets that still have
// slack. Plain renormalization by the sum would push clipped weights back
// outside the bounds. Bounds must be feasible (lo*n <= 1 <= hi*n).
func clampToSimplex(x []float64, lo, hi float64) ([]float64, error) {
	n := len(x)
	out := make([]float64, n)
	for i, v := range x {
		out[i] = math.Max(lo, math.Min(hi, v))
	}
	// Each pass either lands on Σ=1 or saturates at least one more asset, so
	// n passes suffice.
	for iter := 0; iter <= n; iter++ {
		sum := 0.0
		for _, v := range out {
			sum += v
		}
		diff := 1 - sum
		if math.Abs(diff) <= 1e-12 {
			return out, nil
		}
		var free []int
		for i, v := range out {
			if (diff > 0 && v < hi) || (diff < 0 && v > lo) {
				free = append(free, i)
			}
		}
		if len(free) == 0 {
			return nil, fmt.Errorf("bounds [%v, %v] leave no room to normalize %d weights", lo, hi, n)
		}
		share := diff / float64(len(free))
		for _, i := range free {
			out[i] = math.Max(lo, math.Min(hi, out[i]+share))
		}
	}
	return out, nil
}

// solve runs the penalty-method minimization for one objective. The sum
// constraint is a quadratic penalty; bounds are enforced by projection.
func (o *Optimizer) solve(objective Objective, mu []float64, sigma *mat.Dense) ([]float64, error) {
	n := len(mu)
	const penaltyWeight = 1000.0
	riskFree := o.RiskFree

	project := func(x []float64) []float64 {
		proj := make([]float64, len(x))
		for i := range x {
			proj[i] = math.Max(o.LowerBound, math.Min(o.UpperBound, x[i]))
		}
		return proj
	}

	var problem optimize.Problem
	switch objective {
	case MinVolatility:
		problem = optimize.Problem{
			Func: func(x []float64) float64 {
				xp := project(x)
				var variance float64
				for i := 0; i < n; i++ {
					for j := 0; j < n; j++ {
						variance += xp[i] * xp[j] * sigma.At(i, j)
					}
				}
				sum := 0.0
				for i := 0; i < n; i++ {
					sum += xp[i]
				}
				return variance + penaltyWeight*(sum-1)*(sum-1)
			},
			Grad: func(grad, x []float64) {
				xp := project(x)
				sum := 0.0
				for i := 0; i < n; i++ {
					sum += xp[i]
				}
				for i := 0; i < n; i++ {
					grad[i] = 2 * penaltyWeight * (sum - 1)
					for j := 0; j < n; j++ {
						grad[i] += 2 * sigma.At(i, j) * xp[j]
					}
				}
			},
		}
	case MaxSharpe:
		problem = optimize.Problem{
			Func: func(x []float64) float64 {
				xp := project(x)
				var ret, variance float64
				for i := 0; i < n; i++ {
					ret += mu[i] * xp[i]
					for j := 0; j < n; j++ {
						variance += xp[i] * xp[j] * sigma.At(i, j)
					}
				}
				stdDev := math.Sqrt(math.Max(variance, 1e-10))
				sum := 0.0
				for i := 0; i < n; i++ {
					sum += xp[i]
				}
				return -(ret-riskFree)/stdDev + penaltyWeight*(sum-1)*(sum-1)
			},
			Grad: func(grad, x []float64) {
				xp := project(x)
				var ret, variance float64
				for i := 0; i < n; i++ {
					ret += mu[i] * xp[i]
					for j := 0; j < n; j++ {
						variance += xp[i] * xp[j] * sigma.At(i, j)
					}
				}
				stdDev := math.Sqrt(math.Max(variance, 1e-10))
				sum := 0.0
				for i := 0; i < n; i++ {
					sum += xp[i]
				}
				for i := 0; i < n; i++ {
					var dVar float64
					for j := 0; j < n; j++ {
						dVar += 2 * sigma.At(i, j) * xp[j]
					}
					grad[i] = -mu[i]/stdDev + (ret-riskFree)*dVar/(2*stdDev*stdDev*stdDev)
					grad[i] += 2 * penaltyWeight * (sum - 1)
				}
			},
		}
	default:
		return nil, fmt.Errorf("unknown objective %q", objective)
	}

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	converged := func(s optimize.Status) bool {
		return s == optimize.Success || s == optimize.GradientThreshold || s == optimize.FunctionConvergence
	}
	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.BFGS{})
	if err != nil || !converged(result.Status) {
		result, err = optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
		if err != nil {
			return nil, fmt.Errorf("optimization failed: %w", err)
		}
		if !converged(result.Status) {
			return nil, fmt.Errorf("optimization did not converge: status=%v", result.Status)
		}
	}
	return project(result.X), nil
}
