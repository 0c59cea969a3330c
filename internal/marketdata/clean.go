package marketdata

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// trimPair truncates both slices to the shorter length so timestamps and
// closes stay index-aligned.
func trimPair(ts []int64, cl []float64) ([]int64, []float64) {
	n := min(len(ts), len(cl))
	return ts[:n], cl[:n]
}

// filterPositive removes points where close <= 0. Zero and negative closes
// would produce infinite or meaningless returns downstream.
func filterPositive(ts []int64, cl []float64) ([]int64, []float64) {
	ts, cl = trimPair(ts, cl)
	keptTs := make([]int64, 0, len(ts))
	keptCl := make([]float64, 0, len(cl))
	for i, v := range cl {
		if v <= 0 {
			continue
		}
		keptTs = append(keptTs, ts[i])
		keptCl = append(keptCl, v)
	}
	return keptTs, keptCl
}

// filterIQR drops closes outside [Q1 - k*IQR, Q3 + k*IQR], with quartiles
// taken as interpolated empirical quantiles. Series shorter than minPoints
// pass through untouched, and the filter backs off entirely when it would
// discard more than half the points, which signals a level shift rather than
// bad ticks.
func filterIQR(ts []int64, cl []float64, k float64, minPoints int) ([]int64, []float64) {
	ts, cl = trimPair(ts, cl)
	if len(cl) < minPoints {
		return ts, cl
	}
	sorted := append([]float64(nil), cl...)
	sort.Float64s(sorted)
	q1 := stat.Quantile(0.25, stat.LinInterp, sorted, nil)
	q3 := stat.Quantile(0.75, stat.LinInterp, sorted, nil)
	iqr := q3 - q1
	if iqr <= 0 {
		return ts, cl
	}
	lower, upper := q1-k*iqr, q3+k*iqr
	keptTs := make([]int64, 0, len(ts))
	keptCl := make([]float64, 0, len(cl))
	for i, v := range cl {
		if v < lower || v > upper {
			continue
		}
		keptTs = append(keptTs, ts[i])
		keptCl = append(keptCl, v)
	}
	if len(keptCl) < minPoints/2 {
		return ts, cl
	}
	return keptTs, keptCl
}
