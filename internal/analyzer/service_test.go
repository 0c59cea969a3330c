package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"portfolioAnalyzer/internal/analysis"
	"portfolioAnalyzer/internal/marketdata"
	"portfolioAnalyzer/internal/output"
	"portfolioAnalyzer/internal/report"
	"portfolioAnalyzer/internal/storage"
)

type stubPrices struct {
	table *marketdata.PriceTable
	err   error
}

func (s *stubPrices) Load(_ context.Context, tickers []string, _, _ time.Time) (*marketdata.PriceTable, error) {
	if s.err != nil {
		return nil, s.err
	}
	// Trim the canned table down to the requested tickers so benchmark
	// lookups for unknown symbols fail like the real loader.
	out := &marketdata.PriceTable{
		Dates:  s.table.Dates,
		Prices: map[string][]float64{},
		Failed: map[string]string{},
	}
	for _, t := range tickers {
		if p, ok := s.table.Prices[t]; ok {
			out.Tickers = append(out.Tickers, t)
			out.Prices[t] = p
			continue
		}
		if reason, ok := s.table.Failed[t]; ok {
			out.Failed[t] = reason
			continue
		}
		out.Failed[t] = "no usable price data in the requested range"
	}
	if len(out.Tickers) == 0 {
		return nil, marketdata.ErrInsufficientOverlap
	}
	return out, nil
}

func syntheticTable(n int, tickers ...string) *marketdata.PriceTable {
	rng := rand.New(rand.NewSource(7))
	table := &marketdata.PriceTable{
		Prices: map[string][]float64{},
		Failed: map[string]string{},
	}
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		table.Dates = append(table.Dates, base.AddDate(0, 0, i))
	}
	for _, t := range tickers {
		price := 100.0
		prices := make([]float64, n)
		for i := 0; i < n; i++ {
			price *= 1 + 0.0005 + 0.012*rng.NormFloat64()
			prices[i] = price
		}
		table.Tickers = append(table.Tickers, t)
		table.Prices[t] = prices
	}
	return table
}

func floatPtr(v float64) *float64 { return &v }

func newTestService(t *testing.T, prices PriceSource) *Service {
	t.Helper()
	out, err := output.NewController(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	db, err := storage.OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.InitSchema(db); err != nil {
		t.Fatal(err)
	}
	return NewService(prices, out, storage.NewStore(db), nil, 0.04, zerolog.Nop())
}

func TestGenerate_FullRun(t *testing.T) {
	svc := newTestService(t, &stubPrices{table: syntheticTable(260, "AAA", "BBB")})
	res, err := svc.Generate(context.Background(), Request{Tickers: []string{"AAA", "BBB"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.RunID == "" {
		t.Error("missing run id")
	}
	if res.Summary.Observations != 259 {
		t.Errorf("observations = %d, want 259", res.Summary.Observations)
	}
	kinds := map[string]bool{}
	for _, a := range res.Artifacts {
		kinds[a.Kind] = true
	}
	for _, want := range []report.Kind{
		report.KindMarkdown, report.KindManifest,
		report.KindCumulativeChart, report.KindDrawdownChart,
		report.KindCorrelationChart, report.KindAllocationChart,
	} {
		if !kinds[want.Key()] {
			t.Errorf("missing artifact kind %s", want.Key())
		}
	}
}

func TestGenerate_PersistsRun(t *testing.T) {
	out, err := output.NewController(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	db, err := storage.OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := storage.InitSchema(db); err != nil {
		t.Fatal(err)
	}
	store := storage.NewStore(db)
	svc := NewService(&stubPrices{table: syntheticTable(260, "AAA", "BBB")}, out, store, nil, 0.04, zerolog.Nop())

	res, err := svc.Generate(context.Background(), Request{Tickers: []string{"AAA", "BBB"}})
	if err != nil {
		t.Fatal(err)
	}
	runs, err := store.RecentRuns(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != res.RunID {
		t.Fatalf("persisted runs = %+v", runs)
	}
	files, err := store.ArtifactsForRun(res.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != len(res.Artifacts) {
		t.Errorf("persisted %d artifacts, want %d", len(files), len(res.Artifacts))
	}
}

func TestGenerate_ExcludedTickerRenormalized(t *testing.T) {
	table := syntheticTable(260, "AAA", "BBB")
	table.Failed["BAD"] = "no data"
	svc := newTestService(t, &stubPrices{table: table})
	res, err := svc.Generate(context.Background(), Request{
		Tickers: []string{"AAA", "BBB", "BAD"},
		Weights: map[string]float64{"AAA": 0.4, "BBB": 0.4, "BAD": 0.2},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := res.Excluded["BAD"]; !ok {
		t.Errorf("BAD should be excluded, got %v", res.Excluded)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a rescaling warning")
	}
}

func TestGenerate_DegenerateCovariancePartialReport(t *testing.T) {
	// Two identical price series: optimizer must fail, report must not.
	table := syntheticTable(260, "AAA")
	dup := make([]float64, len(table.Prices["AAA"]))
	copy(dup, table.Prices["AAA"])
	table.Tickers = append(table.Tickers, "BBB")
	table.Prices["BBB"] = dup
	svc := newTestService(t, &stubPrices{table: table})

	res, err := svc.Generate(context.Background(), Request{Tickers: []string{"AAA", "BBB"}})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "not positive definite") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected degenerate covariance warning, got %v", res.Warnings)
	}
	kinds := map[string]bool{}
	for _, a := range res.Artifacts {
		kinds[a.Kind] = true
	}
	if !kinds[report.KindMarkdown.Key()] || !kinds[report.KindManifest.Key()] {
		t.Error("markdown and manifest must still be published")
	}
	// Without an optimization result the allocation chart falls back to the
	// current-weights pie, so it is still published.
	if !kinds[report.KindAllocationChart.Key()] {
		t.Error("allocation chart should fall back to current weights")
	}
}

func TestGenerate_OptimizedSummaryMatchesItsWeights(t *testing.T) {
	table := syntheticTable(300, "AAA", "BBB", "CCC")
	dir := t.TempDir()
	out, err := output.NewController(dir, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(&stubPrices{table: table}, out, nil, nil, 0.04, zerolog.Nop())
	res, err := svc.Generate(context.Background(), Request{
		Tickers:    []string{"AAA", "BBB", "CCC"},
		Objectives: []analysis.Objective{analysis.MaxSharpe},
	})
	if err != nil {
		t.Fatal(err)
	}

	var manifestFile string
	for _, a := range res.Artifacts {
		if a.Kind == report.KindManifest.Key() {
			manifestFile = a.File
		}
	}
	if manifestFile == "" {
		t.Fatal("no manifest artifact")
	}
	raw, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		t.Fatal(err)
	}
	var m report.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if len(m.Optimizations) != 1 {
		t.Fatalf("got %d optimizations, want 1", len(m.Optimizations))
	}
	opt := m.Optimizations[0]

	// The published Sharpe must be the Sharpe of the published weights.
	returns := map[string][]float64{}
	for _, ticker := range []string{"AAA", "BBB", "CCC"} {
		r, err := analysis.ComputeReturns(table.Prices[ticker], analysis.ReturnSimple)
		if err != nil {
			t.Fatal(err)
		}
		returns[ticker] = r
	}
	blended, err := analysis.BlendReturns(returns, opt.Weights)
	if err != nil {
		t.Fatal(err)
	}
	recomputed := analysis.Summarize(blended, 0.04)
	if !opt.Summary.Sharpe.Defined || !recomputed.Sharpe.Defined {
		t.Fatal("expected defined Sharpe on both sides")
	}
	if math.Abs(opt.Summary.Sharpe.Value-recomputed.Sharpe.Value) > 1e-6*math.Abs(recomputed.Sharpe.Value) {
		t.Errorf("published Sharpe %v, recomputed %v", opt.Summary.Sharpe.Value, recomputed.Sharpe.Value)
	}
}

func TestGenerate_ValidationErrors(t *testing.T) {
	svc := newTestService(t, &stubPrices{table: syntheticTable(260, "AAA")})
	cases := []Request{
		{},
		{Tickers: []string{"AAA", "AAA"}},
		{Tickers: []string{"AAA"}, Weights: map[string]float64{"AAA": 0.5}},
		{Tickers: []string{"AAA"}, ReturnMode: "geometric"},
		{Tickers: []string{"AAA"}, Start: "2025-01-01", End: "2024-01-01"},
		{Tickers: []string{"AAA"}, Objectives: []analysis.Objective{"efficient_risk"}},
		{Tickers: []string{"AAA"}, RiskFreeRate: floatPtr(2.0)},
		{Tickers: []string{"AAA"}, LowerBound: floatPtr(0.8), UpperBound: floatPtr(0.2)},
		{Tickers: []string{"AAA", "BBB"}, UpperBound: floatPtr(0.3)},
	}
	for i, req := range cases {
		_, err := svc.Generate(context.Background(), req)
		if err == nil {
			t.Errorf("case %d: expected validation error", i)
			continue
		}
		if !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("case %d: err = %v, want ErrInvalidRequest", i, err)
		}
	}
}

func TestGenerate_DoesNotMutateRequest(t *testing.T) {
	svc := newTestService(t, &stubPrices{table: syntheticTable(260, "AAA", "BBB")})
	tickers := []string{"aaa", "bbb"}
	weights := map[string]float64{"aaa": 0.5, "bbb": 0.5}
	if _, err := svc.Generate(context.Background(), Request{Tickers: tickers, Weights: weights}); err != nil {
		t.Fatal(err)
	}
	if tickers[0] != "aaa" || tickers[1] != "bbb" {
		t.Errorf("caller's ticker slice was rewritten: %v", tickers)
	}
	if len(weights) != 2 {
		t.Fatalf("caller's weights map was rewritten: %v", weights)
	}
	for _, k := range []string{"aaa", "bbb"} {
		if weights[k] != 0.5 {
			t.Errorf("caller's weight for %s = %v, want 0.5", k, weights[k])
		}
	}
}

func TestGenerate_LoadFailure(t *testing.T) {
	svc := newTestService(t, &stubPrices{err: errors.New("upstream down")})
	if _, err := svc.Generate(context.Background(), Request{Tickers: []string{"AAA"}}); err == nil {
		t.Fatal("expected error when prices cannot load")
	}
}

func TestGenerate_BenchmarkSkippedOnFailure(t *testing.T) {
	svc := newTestService(t, &stubPrices{table: syntheticTable(260, "AAA", "BBB")})
	res, err := svc.Generate(context.Background(), Request{
		Tickers:   []string{"AAA", "BBB"},
		Benchmark: "NOPE",
	})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "benchmark NOPE skipped") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected benchmark warning, got %v", res.Warnings)
	}
}
