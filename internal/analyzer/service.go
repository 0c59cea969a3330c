package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"portfolioAnalyzer/internal/analysis"
	"portfolioAnalyzer/internal/marketdata"
	"portfolioAnalyzer/internal/output"
	"portfolioAnalyzer/internal/report"
	"portfolioAnalyzer/internal/storage"
)

// PriceSource loads aligned daily prices for a set of tickers.
type PriceSource interface {
	Load(ctx context.Context, tickers []string, start, end time.Time) (*marketdata.PriceTable, error)
}

// Commentator writes an optional narrative from computed statistics.
type Commentator interface {
	Comment(ctx context.Context, tickers []string, weights map[string]float64, s analysis.PerformanceSummary) (string, error)
}

// ErrInvalidRequest tags request validation failures so transports can map
// them to a client error without parsing messages.
var ErrInvalidRequest = errors.New("invalid request")

// Request describes one report generation.
type Request struct {
	Tickers    []string            `json:"tickers"`
	Weights    map[string]float64  `json:"weights,omitempty"`
	Start      string              `json:"start,omitempty"`
	End        string              `json:"end,omitempty"`
	ReturnMode analysis.ReturnMode `json:"return_mode,omitempty"`
	Benchmark  string              `json:"benchmark,omitempty"`
	Objectives []analysis.Objective `json:"objectives,omitempty"`

	// RiskFreeRate overrides the configured annual rate for this run.
	RiskFreeRate *float64 `json:"risk_free_rate,omitempty"`

	// LowerBound and UpperBound override the long-only per-asset weight
	// bounds [0, 1] used by the optimizer.
	LowerBound *float64 `json:"lower_bound,omitempty"`
	UpperBound *float64 `json:"upper_bound,omitempty"`
}

// Result is what a completed run hands back to the caller.
type Result struct {
	RunID     string                      `json:"run_id"`
	Summary   analysis.PerformanceSummary `json:"summary"`
	Excluded  map[string]string           `json:"excluded,omitempty"`
	Artifacts []report.ManifestArtifact   `json:"artifacts"`
	Warnings  []string                    `json:"warnings,omitempty"`
}

// Service runs the whole pipeline: load, analyze, optimize, render, publish,
// persist.
type Service struct {
	prices      PriceSource
	out         *output.Controller
	store       *storage.Store
	commentator Commentator
	riskFree    float64
	log         zerolog.Logger
}

func NewService(prices PriceSource, out *output.Controller, store *storage.Store, commentator Commentator, riskFree float64, log zerolog.Logger) *Service {
	return &Service{
		prices:      prices,
		out:         out,
		store:       store,
		commentator: commentator,
		riskFree:    riskFree,
		log:         log,
	}
}

const defaultLookbackYears = 1

func (r *Request) normalize() (start, end time.Time, err error) {
	if len(r.Tickers) == 0 {
		return start, end, errors.New("at least one ticker is required")
	}
	// Rewrite into fresh slices/maps so the caller's Request is untouched.
	tickers := make([]string, 0, len(r.Tickers))
	seen := map[string]bool{}
	for i, t := range r.Tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			return start, end, fmt.Errorf("ticker %d is empty", i)
		}
		if seen[t] {
			return start, end, fmt.Errorf("duplicate ticker %s", t)
		}
		seen[t] = true
		tickers = append(tickers, t)
	}
	r.Tickers = tickers
	if r.Weights == nil {
		r.Weights = map[string]float64{}
		for _, t := range r.Tickers {
			r.Weights[t] = 1.0 / float64(len(r.Tickers))
		}
	} else {
		upper := make(map[string]float64, len(r.Weights))
		for t, w := range r.Weights {
			upper[strings.ToUpper(strings.TrimSpace(t))] = w
		}
		r.Weights = upper
		if err := analysis.ValidateWeights(r.Weights, r.Tickers); err != nil {
			return start, end, err
		}
	}
	switch r.ReturnMode {
	case "":
		r.ReturnMode = analysis.ReturnSimple
	case analysis.ReturnSimple, analysis.ReturnLog:
	default:
		return start, end, fmt.Errorf("unknown return mode %q", r.ReturnMode)
	}
	if len(r.Objectives) == 0 {
		r.Objectives = []analysis.Objective{analysis.MaxSharpe, analysis.MinVolatility}
	}
	for _, o := range r.Objectives {
		if o != analysis.MaxSharpe && o != analysis.MinVolatility {
			return start, end, fmt.Errorf("unknown objective %q", o)
		}
	}
	r.Benchmark = strings.ToUpper(strings.TrimSpace(r.Benchmark))
	if r.RiskFreeRate != nil {
		if rf := *r.RiskFreeRate; math.IsNaN(rf) || rf < -1 || rf > 1 {
			return start, end, fmt.Errorf("risk-free rate %v out of range", rf)
		}
	}
	lo, hi := 0.0, 1.0
	if r.LowerBound != nil {
		lo = *r.LowerBound
	}
	if r.UpperBound != nil {
		hi = *r.UpperBound
	}
	if math.IsNaN(lo) || math.IsNaN(hi) || lo < 0 || hi > 1 || lo > hi {
		return start, end, fmt.Errorf("bad weight bounds [%v, %v]", lo, hi)
	}
	if n := float64(len(r.Tickers)); lo*n > 1 || hi*n < 1 {
		return start, end, fmt.Errorf("weight bounds [%v, %v] infeasible for %d tickers", lo, hi, len(r.Tickers))
	}

	end = time.Now()
	if r.End != "" {
		if end, err = time.Parse("2006-01-02", r.End); err != nil {
			return start, end, fmt.Errorf("bad end date %q: %w", r.End, err)
		}
	}
	start = end.AddDate(-defaultLookbackYears, 0, 0)
	if r.Start != "" {
		if start, err = time.Parse("2006-01-02", r.Start); err != nil {
			return start, end, fmt.Errorf("bad start date %q: %w", r.Start, err)
		}
	}
	if !start.Before(end) {
		return start, end, fmt.Errorf("start %s is not before end %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return start, end, nil
}

// Generate runs one full report. Per-ticker data failures and optimizer
// degeneracy degrade the report instead of failing it; only an empty price
// table or a publish failure aborts the run.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	start, end, err := req.normalize()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	runID := uuid.NewString()
	log := s.log.With().Str("run", runID).Logger()
	log.Info().Strs("tickers", req.Tickers).Time("start", start).Time("end", end).Msg("report run started")

	riskFree := s.riskFree
	if req.RiskFreeRate != nil {
		riskFree = *req.RiskFreeRate
	}

	table, err := s.prices.Load(ctx, req.Tickers, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}

	res := &Result{RunID: runID, Excluded: table.Failed}

	// Drop failed tickers from the requested allocation and rescale.
	tickers := table.Tickers
	weights := map[string]float64{}
	for _, t := range tickers {
		weights[t] = req.Weights[t]
	}
	weights = analysis.NormalizeWeights(weights)
	if len(table.Failed) > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%d ticker(s) excluded; remaining weights rescaled", len(table.Failed)))
	}

	returns := make(map[string][]float64, len(tickers))
	for _, t := range tickers {
		r, err := analysis.ComputeReturns(table.Prices[t], req.ReturnMode)
		if err != nil {
			return nil, fmt.Errorf("failed to compute returns for %s: %w", t, err)
		}
		returns[t] = r
	}
	blended, err := analysis.BlendReturns(returns, weights)
	if err != nil {
		return nil, err
	}
	summary := analysis.Summarize(blended, riskFree)
	res.Summary = summary
	assetStats := analysis.AssetStatistics(returns, weights, riskFree)

	// Optimization is best-effort: a degenerate covariance is reported, not
	// fatal.
	var optimizations []analysis.OptimizationResult
	var optimizerNote string
	opt := analysis.NewOptimizer(riskFree)
	if req.LowerBound != nil {
		opt.LowerBound = *req.LowerBound
	}
	if req.UpperBound != nil {
		opt.UpperBound = *req.UpperBound
	}
	for _, objective := range req.Objectives {
		w, err := opt.Optimize(objective, returns, tickers)
		if err != nil {
			if errors.Is(err, analysis.ErrDegenerateCovariance) {
				optimizerNote = "Optimization was skipped: the covariance matrix is not positive definite (too little history or duplicated assets)."
				log.Warn().Err(err).Msg("optimizer skipped")
				res.Warnings = append(res.Warnings, optimizerNote)
				break
			}
			optimizerNote = fmt.Sprintf("Optimization for %s failed: %v.", objective, err)
			log.Warn().Str("objective", string(objective)).Err(err).Msg("optimization failed")
			res.Warnings = append(res.Warnings, optimizerNote)
			continue
		}
		optBlend, err := analysis.BlendReturns(returns, w)
		if err != nil {
			return nil, err
		}
		optimizations = append(optimizations, analysis.OptimizationResult{
			Objective: objective,
			Weights:   w,
			Summary:   analysis.Summarize(optBlend, riskFree),
		})
	}

	// Benchmark is optional and best-effort.
	var benchSummary *analysis.PerformanceSummary
	var benchGrowth []float64
	if req.Benchmark != "" {
		bs, bg, err := s.loadBenchmark(ctx, req.Benchmark, start, end, req.ReturnMode, table.Dates, riskFree)
		if err != nil {
			log.Warn().Str("benchmark", req.Benchmark).Err(err).Msg("benchmark skipped")
			res.Warnings = append(res.Warnings, fmt.Sprintf("benchmark %s skipped: %v", req.Benchmark, err))
		} else {
			benchSummary = bs
			benchGrowth = bg
		}
	}

	corrTickers, corrMatrix := correlationRows(returns, tickers, log)
	artifacts, chartFiles := s.publishCharts(log, table.Dates[1:], blended, benchGrowth, req.Benchmark, tickers, weights, corrTickers, corrMatrix, optimizations)

	var commentary string
	if s.commentator != nil {
		commentary, err = s.commentator.Comment(ctx, tickers, weights, summary)
		if err != nil {
			log.Warn().Err(err).Msg("commentary skipped")
			res.Warnings = append(res.Warnings, fmt.Sprintf("commentary skipped: %v", err))
			commentary = ""
		}
	}

	data := report.Data{
		RunID:            runID,
		GeneratedAt:      time.Now(),
		Start:            start,
		End:              end,
		ReturnMode:       req.ReturnMode,
		Tickers:          tickers,
		Weights:          weights,
		Excluded:         table.Failed,
		Summary:          summary,
		AssetStats:       assetStats,
		Optimizations:    optimizations,
		OptimizerNote:    optimizerNote,
		BenchmarkTicker:  req.Benchmark,
		BenchmarkSummary: benchSummary,
		CorrTickers:      corrTickers,
		Corr:             corrMatrix,
		Commentary:       commentary,
		ChartFiles:       chartFiles,
	}
	mdName, err := s.out.Publish(report.KindMarkdown, []byte(report.RenderMarkdown(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to publish report: %w", err)
	}
	artifacts = append(artifacts, report.ManifestArtifact{
		Kind: report.KindMarkdown.Key(), File: mdName, Description: report.KindMarkdown.Description(),
	})

	manifest := report.Manifest{
		RunID:            runID,
		GeneratedAt:      data.GeneratedAt,
		Start:            start.Format("2006-01-02"),
		End:              end.Format("2006-01-02"),
		ReturnMode:       string(req.ReturnMode),
		Tickers:          tickers,
		Weights:          weights,
		Excluded:         table.Failed,
		Summary:          summary,
		Optimizations:    optimizations,
		OptimizerNote:    optimizerNote,
		Benchmark:        req.Benchmark,
		BenchmarkSummary: benchSummary,
		Artifacts:        artifacts,
	}
	encoded, err := manifest.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	manifestName, err := s.out.Publish(report.KindManifest, encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to publish manifest: %w", err)
	}
	artifacts = append(artifacts, report.ManifestArtifact{
		Kind: report.KindManifest.Key(), File: manifestName, Description: report.KindManifest.Description(),
	})
	res.Artifacts = artifacts

	s.persist(log, runID, req, summary, artifacts, optimizerNote)
	log.Info().Int("artifacts", len(artifacts)).Msg("report run finished")
	return res, nil
}

// loadBenchmark fetches the benchmark series and aligns it to the portfolio
// dates, holding the last known value over gaps.
func (s *Service) loadBenchmark(ctx context.Context, ticker string, start, end time.Time, mode analysis.ReturnMode, dates []time.Time, riskFree float64) (*analysis.PerformanceSummary, []float64, error) {
	table, err := s.prices.Load(ctx, []string{ticker}, start, end)
	if err != nil {
		return nil, nil, err
	}
	prices, ok := table.Prices[ticker]
	if !ok || len(prices) < 2 {
		return nil, nil, errors.New("insufficient benchmark data")
	}
	byDate := make(map[string]float64, len(table.Dates))
	for i, d := range table.Dates {
		byDate[d.Format("2006-01-02")] = prices[i]
	}
	aligned := make([]float64, 0, len(dates))
	last := prices[0]
	for _, d := range dates {
		if v, ok := byDate[d.Format("2006-01-02")]; ok {
			last = v
		}
		aligned = append(aligned, last)
	}
	returns, err := analysis.ComputeReturns(aligned, mode)
	if err != nil {
		return nil, nil, err
	}
	summary := analysis.Summarize(returns, riskFree)
	return &summary, analysis.CumulativeGrowth(returns), nil
}

// publishCharts renders and publishes every chart it can; a chart failure is
// logged and skipped, never fatal.
func (s *Service) publishCharts(
	log zerolog.Logger,
	dates []time.Time,
	blended, benchGrowth []float64,
	benchmark string,
	tickers []string,
	weights map[string]float64,
	corrTickers []string,
	corr [][]float64,
	optimizations []analysis.OptimizationResult,
) ([]report.ManifestArtifact, map[string]string) {
	var artifacts []report.ManifestArtifact
	chartFiles := map[string]string{}
	publish := func(kind report.Kind, data []byte, err error) {
		if err != nil {
			log.Warn().Str("kind", kind.Key()).Err(err).Msg("chart skipped")
			return
		}
		name, err := s.out.Publish(kind, data)
		if err != nil {
			log.Warn().Str("kind", kind.Key()).Err(err).Msg("chart publish failed")
			return
		}
		artifacts = append(artifacts, report.ManifestArtifact{Kind: kind.Key(), File: name, Description: kind.Description()})
		chartFiles[kind.Key()] = name
	}

	growth := analysis.CumulativeGrowth(blended)
	png, err := report.RenderCumulative(dates, growth, benchGrowth, benchmark)
	publish(report.KindCumulativeChart, png, err)

	png, err = report.RenderDrawdown(dates, analysis.DrawdownSeries(blended))
	publish(report.KindDrawdownChart, png, err)

	if corr != nil {
		png, err = report.RenderHeatmap(corrTickers, corr)
		publish(report.KindCorrelationChart, png, err)
	}

	if len(optimizations) > 0 {
		best := optimizations[0]
		png, err = report.RenderAllocation(tickers, weights, best.Weights, best.Objective)
	} else {
		png, err = report.RenderAllocationPie(tickers, weights)
	}
	publish(report.KindAllocationChart, png, err)
	return artifacts, chartFiles
}

// correlationRows flattens the correlation matrix for rendering. Returns nil
// when correlation can't be computed.
func correlationRows(returns map[string][]float64, tickers []string, log zerolog.Logger) ([]string, [][]float64) {
	corr, err := analysis.Correlate(returns, tickers)
	if err != nil {
		log.Warn().Err(err).Msg("correlation skipped")
		return nil, nil
	}
	n := len(tickers)
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		rows[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			rows[i][j] = corr.At(i, j)
		}
	}
	return tickers, rows
}

// persist records the run and its artifacts; storage failure only warns.
func (s *Service) persist(log zerolog.Logger, runID string, req Request, summary analysis.PerformanceSummary, artifacts []report.ManifestArtifact, note string) {
	if s.store == nil {
		return
	}
	now := time.Now().Unix()
	rec := storage.RunRecord{
		ID:            runID,
		Timestamp:     now,
		Tickers:       req.Tickers,
		Weights:       req.Weights,
		ReturnMode:    string(req.ReturnMode),
		AnnualReturn:  summary.AnnualReturn,
		AnnualVol:     summary.AnnualVolatility,
		Sharpe:        summary.Sharpe.Value,
		SharpeDefined: summary.Sharpe.Defined,
		MaxDrawdown:   summary.MaxDrawdown,
		Note:          note,
	}
	if err := s.store.SaveRun(rec); err != nil {
		log.Warn().Err(err).Msg("failed to persist run")
		return
	}
	for _, a := range artifacts {
		if err := s.store.SaveArtifact(runID, a.Kind, a.File, now); err != nil {
			log.Warn().Str("file", a.File).Err(err).Msg("failed to persist artifact")
		}
	}
}
