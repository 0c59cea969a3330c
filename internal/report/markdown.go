package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"portfolioAnalyzer/internal/analysis"
)

// Data is everything the markdown report needs. Optimizations may be empty
// and OptimizerNote set instead when the covariance was unusable; Benchmark
// and Commentary are optional.
type Data struct {
	RunID       string
	GeneratedAt time.Time
	Start, End  time.Time
	ReturnMode  analysis.ReturnMode

	Tickers  []string
	Weights  map[string]float64
	Excluded map[string]string

	Summary    analysis.PerformanceSummary
	AssetStats map[string]analysis.AssetStats

	Optimizations []analysis.OptimizationResult
	OptimizerNote string

	BenchmarkTicker  string
	BenchmarkSummary *analysis.PerformanceSummary

	CorrTickers []string
	Corr        [][]float64

	Commentary string
	ChartFiles map[string]string
}

func pct(v float64) string   { return fmt.Sprintf("%.2f%%", v*100) }
func ratio(r analysis.Ratio) string { return r.String() }

// RenderMarkdown produces the full markdown report.
func RenderMarkdown(d Data) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Portfolio Performance Report\n\n")
	fmt.Fprintf(&b, "Generated: %s  \n", d.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Run: `%s`  \n", d.RunID)
	fmt.Fprintf(&b, "Period: %s to %s (%d trading days)  \n",
		d.Start.Format("2006-01-02"), d.End.Format("2006-01-02"), d.Summary.Observations)
	fmt.Fprintf(&b, "Return mode: %s\n\n", d.ReturnMode)

	b.WriteString("## Holdings\n\n")
	b.WriteString("| Ticker | Weight |\n|---|---|\n")
	for _, t := range d.Tickers {
		fmt.Fprintf(&b, "| %s | %s |\n", t, pct(d.Weights[t]))
	}
	b.WriteString("\n")

	if len(d.Excluded) > 0 {
		b.WriteString("### Excluded assets\n\n")
		b.WriteString("The following tickers could not be loaded and were dropped; remaining weights were rescaled to sum to 100%.\n\n")
		excluded := make([]string, 0, len(d.Excluded))
		for t := range d.Excluded {
			excluded = append(excluded, t)
		}
		sort.Strings(excluded)
		for _, t := range excluded {
			fmt.Fprintf(&b, "- **%s**: %s\n", t, d.Excluded[t])
		}
		b.WriteString("\n")
	}

	b.WriteString("## Performance\n\n")
	writeSummaryTable(&b, d.Summary, d.BenchmarkTicker, d.BenchmarkSummary)

	if len(d.AssetStats) > 0 {
		b.WriteString("## Per-Asset Statistics\n\n")
		b.WriteString("| Ticker | Weight | Ann. Return | Ann. Vol | Sharpe | Max DD |\n|---|---|---|---|---|---|\n")
		for _, t := range d.Tickers {
			s, ok := d.AssetStats[t]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				t, pct(s.Weight), pct(s.AnnualReturn), pct(s.AnnualVolatility), ratio(s.Sharpe), pct(s.MaxDrawdown))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Optimization\n\n")
	if d.OptimizerNote != "" {
		fmt.Fprintf(&b, "%s\n\n", d.OptimizerNote)
	}
	for _, opt := range d.Optimizations {
		fmt.Fprintf(&b, "### %s\n\n", objectiveTitle(opt.Objective))
		b.WriteString("| Ticker | Weight |\n|---|---|\n")
		dw := opt.DisplayWeights()
		for _, t := range d.Tickers {
			fmt.Fprintf(&b, "| %s | %s |\n", t, pct(dw[t]))
		}
		fmt.Fprintf(&b, "\nExpected: %s annual return at %s volatility (Sharpe %s).\n\n",
			pct(opt.Summary.AnnualReturn), pct(opt.Summary.AnnualVolatility), ratio(opt.Summary.Sharpe))
	}

	if len(d.CorrTickers) > 1 && len(d.Corr) == len(d.CorrTickers) {
		b.WriteString("## Correlation\n\n")
		b.WriteString("| |")
		for _, t := range d.CorrTickers {
			fmt.Fprintf(&b, " %s |", t)
		}
		b.WriteString("\n|---|")
		for range d.CorrTickers {
			b.WriteString("---|")
		}
		b.WriteString("\n")
		for i, t := range d.CorrTickers {
			fmt.Fprintf(&b, "| %s |", t)
			for j := range d.CorrTickers {
				fmt.Fprintf(&b, " %.2f |", d.Corr[i][j])
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("## Assessment\n\n")
	for _, line := range Conclusions(d.Summary) {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	b.WriteString("\n")

	if d.Commentary != "" {
		b.WriteString("## Commentary\n\n")
		b.WriteString(strings.TrimSpace(d.Commentary))
		b.WriteString("\n\n")
	}

	if len(d.ChartFiles) > 0 {
		b.WriteString("## Charts\n\n")
		keys := make([]string, 0, len(d.ChartFiles))
		for k := range d.ChartFiles {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "![%s](%s)\n\n", k, d.ChartFiles[k])
		}
	}

	b.WriteString("---\n\n")
	b.WriteString("Returns are blended with static weights held for the whole period; no rebalancing drift is modeled. ")
	b.WriteString("Past performance does not guarantee future results.\n")
	return b.String()
}

func writeSummaryTable(b *strings.Builder, s analysis.PerformanceSummary, benchTicker string, bench *analysis.PerformanceSummary) {
	if bench != nil && benchTicker != "" {
		fmt.Fprintf(b, "| Metric | Portfolio | %s |\n|---|---|---|\n", benchTicker)
		fmt.Fprintf(b, "| Annual Return | %s | %s |\n", pct(s.AnnualReturn), pct(bench.AnnualReturn))
		fmt.Fprintf(b, "| Annual Volatility | %s | %s |\n", pct(s.AnnualVolatility), pct(bench.AnnualVolatility))
		fmt.Fprintf(b, "| Sharpe | %s | %s |\n", ratio(s.Sharpe), ratio(bench.Sharpe))
		fmt.Fprintf(b, "| Sortino | %s | %s |\n", ratio(s.Sortino), ratio(bench.Sortino))
		fmt.Fprintf(b, "| Calmar | %s | %s |\n", ratio(s.Calmar), ratio(bench.Calmar))
		fmt.Fprintf(b, "| Max Drawdown | %s | %s |\n", pct(s.MaxDrawdown), pct(bench.MaxDrawdown))
		fmt.Fprintf(b, "| Daily VaR (95%%) | %s | %s |\n", pct(s.VaR95), pct(bench.VaR95))
		fmt.Fprintf(b, "| Skew | %.2f | %.2f |\n", s.Skew, bench.Skew)
		fmt.Fprintf(b, "| Excess Kurtosis | %.2f | %.2f |\n\n", s.Kurtosis, bench.Kurtosis)
		return
	}
	b.WriteString("| Metric | Portfolio |\n|---|---|\n")
	fmt.Fprintf(b, "| Annual Return | %s |\n", pct(s.AnnualReturn))
	fmt.Fprintf(b, "| Annual Volatility | %s |\n", pct(s.AnnualVolatility))
	fmt.Fprintf(b, "| Sharpe | %s |\n", ratio(s.Sharpe))
	fmt.Fprintf(b, "| Sortino | %s |\n", ratio(s.Sortino))
	fmt.Fprintf(b, "| Calmar | %s |\n", ratio(s.Calmar))
	fmt.Fprintf(b, "| Max Drawdown | %s |\n", pct(s.MaxDrawdown))
	fmt.Fprintf(b, "| Daily VaR (95%%) | %s |\n", pct(s.VaR95))
	fmt.Fprintf(b, "| Skew | %.2f |\n", s.Skew)
	fmt.Fprintf(b, "| Excess Kurtosis | %.2f |\n\n", s.Kurtosis)
}

func objectiveTitle(o analysis.Objective) string {
	switch o {
	case analysis.MaxSharpe:
		return "Maximum Sharpe Ratio"
	case analysis.MinVolatility:
		return "Minimum Volatility"
	default:
		return string(o)
	}
}
