package report

import (
	"fmt"

	"portfolioAnalyzer/internal/analysis"
)

// Narrative thresholds for risk-adjusted performance.
const (
	sharpeExcellent = 1.0
	sharpeModerate  = 0.5
	drawdownHigh    = 0.20
	drawdownMod     = 0.10
)

// Conclusions produces the plain-language assessment lines of the report
// from the headline statistics.
func Conclusions(s analysis.PerformanceSummary) []string {
	var out []string

	switch {
	case !s.Sharpe.Defined:
		out = append(out, "Risk-adjusted performance could not be assessed: the portfolio showed no volatility over the period.")
	case s.Sharpe.Value > sharpeExcellent:
		out = append(out, fmt.Sprintf("The portfolio delivered excellent risk-adjusted returns (Sharpe %.2f).", s.Sharpe.Value))
	case s.Sharpe.Value > sharpeModerate:
		out = append(out, fmt.Sprintf("The portfolio delivered moderate risk-adjusted returns (Sharpe %.2f).", s.Sharpe.Value))
	default:
		out = append(out, fmt.Sprintf("The portfolio delivered poor risk-adjusted returns (Sharpe %.2f).", s.Sharpe.Value))
	}

	absDD := -s.MaxDrawdown
	switch {
	case absDD > drawdownHigh:
		out = append(out, fmt.Sprintf("Downside risk was high: the worst peak-to-trough decline reached %.1f%%.", absDD*100))
	case absDD > drawdownMod:
		out = append(out, fmt.Sprintf("Downside risk was moderate, with a maximum drawdown of %.1f%%.", absDD*100))
	default:
		out = append(out, fmt.Sprintf("Downside risk was low, with a maximum drawdown of %.1f%%.", absDD*100))
	}

	return out
}
