package report

import (
	"encoding/json"
	"time"

	"portfolioAnalyzer/internal/analysis"
)

// ManifestArtifact describes one published file of a run.
type ManifestArtifact struct {
	Kind        string `json:"kind"`
	File        string `json:"file"`
	Description string `json:"description"`
}

// Manifest is the machine-readable companion of the markdown report.
type Manifest struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Start       string    `json:"start"`
	End         string    `json:"end"`
	ReturnMode  string    `json:"return_mode"`

	Tickers  []string           `json:"tickers"`
	Weights  map[string]float64 `json:"weights"`
	Excluded map[string]string  `json:"excluded,omitempty"`

	Summary       analysis.PerformanceSummary   `json:"summary"`
	Optimizations []analysis.OptimizationResult `json:"optimizations,omitempty"`
	OptimizerNote string                        `json:"optimizer_note,omitempty"`

	Benchmark        string                       `json:"benchmark,omitempty"`
	BenchmarkSummary *analysis.PerformanceSummary `json:"benchmark_summary,omitempty"`

	Artifacts []ManifestArtifact `json:"artifacts"`
}

// Encode renders the manifest as indented JSON.
func (m Manifest) Encode() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
