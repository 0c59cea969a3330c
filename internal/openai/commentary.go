package openai

import (
	"context"
	"fmt"
	"strings"

	oa "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"portfolioAnalyzer/internal/analysis"
)

type Commentator struct {
	cli oa.Client
}

func NewCommentator(apiKey string) *Commentator {
	client := oa.NewClient(option.WithAPIKey(apiKey))
	return &Commentator{cli: client}
}

// Comment produces a short narrative on the portfolio's measured
// performance. Only computed statistics go into the prompt, never raw price
// data.
func (c *Commentator) Comment(ctx context.Context, tickers []string, weights map[string]float64, s analysis.PerformanceSummary) (string, error) {
	systemPrompt := `You are a professional portfolio analyst writing a short commentary for a performance report.

Guidelines:
- 2-4 short paragraphs, plain prose, no headers
- Interpret the supplied statistics; do not invent numbers that were not given
- Mention risk-adjusted performance, drawdown behavior, and diversification
- Neutral, factual tone; no investment advice or predictions`

	var b strings.Builder
	fmt.Fprintf(&b, "Portfolio: %s\n", strings.Join(tickers, ", "))
	for _, t := range tickers {
		fmt.Fprintf(&b, "  %s weight %.1f%%\n", t, weights[t]*100)
	}
	fmt.Fprintf(&b, "Annual return: %.2f%%\n", s.AnnualReturn*100)
	fmt.Fprintf(&b, "Annual volatility: %.2f%%\n", s.AnnualVolatility*100)
	fmt.Fprintf(&b, "Sharpe: %s\n", s.Sharpe)
	fmt.Fprintf(&b, "Sortino: %s\n", s.Sortino)
	fmt.Fprintf(&b, "Max drawdown: %.2f%%\n", s.MaxDrawdown*100)
	fmt.Fprintf(&b, "Daily VaR 95%%: %.2f%%\n", s.VaR95*100)
	fmt.Fprintf(&b, "Observations: %d trading days\n", s.Observations)

	resp, err := c.cli.Chat.Completions.New(ctx, oa.ChatCompletionNewParams{
		Model: "gpt-4",
		Messages: []oa.ChatCompletionMessageParamUnion{
			oa.SystemMessage(systemPrompt),
			oa.UserMessage("Write the commentary for these portfolio statistics:\n" + b.String()),
		},
		MaxTokens: oa.Int(800),
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
