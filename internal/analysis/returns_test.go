package analysis

import (
	"math"
	"testing"
)

func TestComputeReturns_Simple(t *testing.T) {
	prices := []float64{100, 110, 99}
	r, err := ComputeReturns(prices, ReturnSimple)
	if err != nil {
		t.Fatal(err)
	}
	if len(r) != 2 {
		t.Fatalf("got %d returns, want 2", len(r))
	}
	if math.Abs(r[0]-0.10) > 1e-12 {
		t.Errorf("r[0] = %v, want 0.10", r[0])
	}
	if math.Abs(r[1]-(-0.10)) > 1e-12 {
		t.Errorf("r[1] = %v, want -0.10", r[1])
	}
}

func TestComputeReturns_Log(t *testing.T) {
	prices := []float64{100, 110}
	r, err := ComputeReturns(prices, ReturnLog)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(r[0]-math.Log(1.1)) > 1e-12 {
		t.Errorf("r[0] = %v, want ln(1.1)", r[0])
	}
}

func TestComputeReturns_TooShort(t *testing.T) {
	if _, err := ComputeReturns([]float64{100}, ReturnSimple); err == nil {
		t.Fatal("expected error for single price")
	}
}

func TestBlendReturns_StaticWeights(t *testing.T) {
	returns := map[string][]float64{
		"A": {0.02, -0.01},
		"B": {0.00, 0.03},
	}
	weights := map[string]float64{"A": 0.25, "B": 0.75}
	blended, err := BlendReturns(returns, weights)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.25 * 0.02, 0.25*-0.01 + 0.75*0.03}
	for i := range want {
		if math.Abs(blended[i]-want[i]) > 1e-12 {
			t.Errorf("blended[%d] = %v, want %v", i, blended[i], want[i])
		}
	}
}

func TestBlendReturns_LengthMismatch(t *testing.T) {
	returns := map[string][]float64{"A": {0.01}, "B": {0.01, 0.02}}
	weights := map[string]float64{"A": 0.5, "B": 0.5}
	if _, err := BlendReturns(returns, weights); err == nil {
		t.Fatal("expected error for mismatched lengths")
	}
}

func TestCumulativeGrowth(t *testing.T) {
	g := CumulativeGrowth([]float64{0.10, -0.05})
	if math.Abs(g[0]-1.10) > 1e-12 {
		t.Errorf("g[0] = %v, want 1.10", g[0])
	}
	if math.Abs(g[1]-1.10*0.95) > 1e-12 {
		t.Errorf("g[1] = %v, want %v", g[1], 1.10*0.95)
	}
}

func TestDrawdownSeries_NonPositive(t *testing.T) {
	dd := DrawdownSeries([]float64{0.10, -0.20, 0.05})
	for i, v := range dd {
		if v > 0 {
			t.Errorf("dd[%d] = %v, drawdown must be <= 0", i, v)
		}
	}
	// After +10% then -20%, drawdown from peak is -20%.
	if math.Abs(dd[1]-(-0.20)) > 1e-12 {
		t.Errorf("dd[1] = %v, want -0.20", dd[1])
	}
}

func TestNormalizeWeights(t *testing.T) {
	w := NormalizeWeights(map[string]float64{"A": 0.4, "B": 0.4})
	if math.Abs(w["A"]-0.5) > 1e-12 || math.Abs(w["B"]-0.5) > 1e-12 {
		t.Errorf("normalized = %v, want 0.5 each", w)
	}
}

func TestValidateWeights(t *testing.T) {
	tickers := []string{"A", "B"}
	if err := ValidateWeights(map[string]float64{"A": 0.6, "B": 0.4}, tickers); err != nil {
		t.Errorf("valid weights rejected: %v", err)
	}
	if err := ValidateWeights(map[string]float64{"A": 0.6, "B": 0.6}, tickers); err == nil {
		t.Error("sum 1.2 accepted")
	}
	if err := ValidateWeights(map[string]float64{"A": 1.2, "B": -0.2}, tickers); err == nil {
		t.Error("negative weight accepted")
	}
	if err := ValidateWeights(map[string]float64{"A": 1.0}, tickers); err == nil {
		t.Error("missing ticker accepted")
	}
}
