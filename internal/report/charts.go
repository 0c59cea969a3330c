package report

import (
	"fmt"
	"math"
	"time"

	charts "github.com/vicanso/go-charts/v2"

	"portfolioAnalyzer/internal/analysis"
)

// xAxisLabels formats dates for the chart x-axis, thinning the tick density
// for long histories.
func xAxisLabels(dates []time.Time) ([]string, int) {
	labels := make([]string, len(dates))
	layout := "Jan 02"
	if len(dates) > 0 && dates[len(dates)-1].Sub(dates[0]) > 300*24*time.Hour {
		layout = "Jan '06"
	}
	for i, d := range dates {
		labels[i] = d.Format(layout)
	}
	split := 6
	if len(labels) <= 30 {
		split = len(labels) / 3
		if split < 3 {
			split = 3
		}
	}
	return labels, split
}

func yRange(series ...[]float64) (float64, float64) {
	minVal, maxVal := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s {
			if v < minVal {
				minVal = v
			}
			if v > maxVal {
				maxVal = v
			}
		}
	}
	if math.IsInf(minVal, 1) {
		return 0, 1
	}
	padding := (maxVal - minVal) * 0.05
	if padding == 0 {
		padding = math.Abs(maxVal) * 0.05
		if padding == 0 {
			padding = 0.05
		}
	}
	return minVal - padding, maxVal + padding
}

// RenderCumulative draws the growth-of-1 curve of the portfolio, with the
// benchmark as a second line when present.
func RenderCumulative(dates []time.Time, portfolio []float64, benchmark []float64, benchmarkName string) ([]byte, error) {
	if len(portfolio) == 0 {
		return nil, fmt.Errorf("no portfolio series to chart")
	}
	labels, split := xAxisLabels(dates)
	values := [][]float64{portfolio}
	names := []string{"Portfolio"}
	if len(benchmark) == len(portfolio) && benchmarkName != "" {
		values = append(values, benchmark)
		names = append(names, benchmarkName)
	}
	yMin, yMax := yRange(values...)

	seriesList := charts.NewSeriesListDataFromValues(values, charts.ChartTypeLine)
	p, err := charts.Render(charts.ChartOption{SeriesList: seriesList},
		charts.TitleTextOptionFunc("Cumulative Returns", "growth of 1.00 invested"),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: labels, BoundaryGap: charts.FalseFlag(), SplitNumber: split}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names, Top: charts.PositionTop}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(1000),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render cumulative chart: %w", err)
	}
	return p.Bytes()
}

// RenderDrawdown draws the underwater curve: running drawdown from the peak,
// in percent.
func RenderDrawdown(dates []time.Time, drawdown []float64) ([]byte, error) {
	if len(drawdown) == 0 {
		return nil, fmt.Errorf("no drawdown series to chart")
	}
	labels, split := xAxisLabels(dates)
	pct := make([]float64, len(drawdown))
	for i, v := range drawdown {
		pct[i] = v * 100
	}
	yMin, yMax := yRange(pct)
	if yMax < 0 {
		yMax = 0
	}

	p, err := charts.LineRender([][]float64{pct},
		charts.TitleTextOptionFunc("Drawdown", "decline from running peak, %"),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: labels, BoundaryGap: charts.FalseFlag(), SplitNumber: split}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(1000),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render drawdown chart: %w", err)
	}
	return p.Bytes()
}

// heatColor maps a correlation in [-1, 1] onto a blue-white-red scale.
func heatColor(v float64) charts.Color {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	if v >= 0 {
		// White toward red.
		fade := uint8(255 - v*160)
		return charts.Color{R: 255, G: fade, B: fade, A: 255}
	}
	// White toward blue.
	fade := uint8(255 + v*160)
	return charts.Color{R: fade, G: fade, B: 255, A: 255}
}

// RenderHeatmap draws the correlation matrix as a colored table, tickers on
// both axes.
func RenderHeatmap(tickers []string, corr [][]float64) ([]byte, error) {
	if len(tickers) == 0 || len(corr) != len(tickers) {
		return nil, fmt.Errorf("correlation matrix size %d doesn't match %d tickers", len(corr), len(tickers))
	}
	header := make([]string, len(tickers)+1)
	header[0] = ""
	copy(header[1:], tickers)
	data := make([][]string, len(tickers))
	for i := range tickers {
		row := make([]string, len(tickers)+1)
		row[0] = tickers[i]
		for j := range tickers {
			row[j+1] = fmt.Sprintf("%.2f", corr[i][j])
		}
		data[i] = row
	}

	p, err := charts.TableOptionRender(charts.TableChartOption{
		Type:   charts.ChartOutputPNG,
		Width:  120 * (len(tickers) + 1),
		Header: header,
		Data:   data,
		CellStyle: func(cell charts.TableCell) *charts.Style {
			if cell.Row == 0 || cell.Column == 0 {
				return nil
			}
			v := corr[cell.Row-1][cell.Column-1]
			return &charts.Style{FillColor: heatColor(v)}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render correlation heatmap: %w", err)
	}
	return p.Bytes()
}

// RenderAllocationPie draws the current weights as a pie. Used when there is
// no optimization result to compare against.
func RenderAllocationPie(tickers []string, weights map[string]float64) ([]byte, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no tickers to chart")
	}
	values := make([]float64, len(tickers))
	labels := make([]string, len(tickers))
	for i, t := range tickers {
		values[i] = weights[t] * 100
		labels[i] = fmt.Sprintf("%s (%.1f%%)", t, weights[t]*100)
	}
	p, err := charts.PieRender(
		values,
		charts.TitleTextOptionFunc("Allocation"),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: labels,
			Top:  charts.PositionTop,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(800),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render allocation pie: %w", err)
	}
	return p.Bytes()
}

// RenderAllocation draws current vs optimized weights side by side, percent
// per ticker.
func RenderAllocation(tickers []string, current, optimized map[string]float64, objective analysis.Objective) ([]byte, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no tickers to chart")
	}
	cur := make([]float64, len(tickers))
	opt := make([]float64, len(tickers))
	for i, t := range tickers {
		cur[i] = current[t] * 100
		opt[i] = optimized[t] * 100
	}
	values := [][]float64{cur, opt}
	names := []string{"Current", "Optimized (" + string(objective) + ")"}

	p, err := charts.BarRender(values,
		charts.TitleTextOptionFunc("Allocation", "portfolio weight, %"),
		charts.XAxisDataOptionFunc(tickers),
		charts.LegendOptionFunc(charts.LegendOption{Data: names, Top: charts.PositionTop}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(1000),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render allocation chart: %w", err)
	}
	return p.Bytes()
}
