package report

import "fmt"

// Kind identifies one of the fixed artifact types a report run produces.
// The set is closed: the output controller only manages filenames derived
// from these kinds.
type Kind int

const (
	KindMarkdown Kind = iota
	KindManifest
	KindCumulativeChart
	KindDrawdownChart
	KindCorrelationChart
	KindAllocationChart
)

var kinds = [...]struct {
	key    string
	prefix string
	ext    string
	desc   string
}{
	KindMarkdown:         {"markdown", "portfolio_report", "md", "Markdown performance report"},
	KindManifest:         {"manifest", "report_manifest", "json", "Machine-readable run manifest"},
	KindCumulativeChart:  {"cumulative", "cumulative_returns", "png", "Cumulative growth chart"},
	KindDrawdownChart:    {"drawdown", "drawdown_underwater", "png", "Underwater drawdown chart"},
	KindCorrelationChart: {"correlation", "correlation_matrix", "png", "Asset correlation heatmap"},
	KindAllocationChart:  {"allocation", "allocation_breakdown", "png", "Current vs optimized allocation"},
}

// AllKinds returns every artifact kind in declaration order.
func AllKinds() []Kind {
	out := make([]Kind, len(kinds))
	for i := range kinds {
		out[i] = Kind(i)
	}
	return out
}

func (k Kind) valid() bool { return k >= 0 && int(k) < len(kinds) }

// Key is the stable identifier used in manifests and storage.
func (k Kind) Key() string {
	if !k.valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kinds[k].key
}

// Prefix is the filename stem before the timestamp part.
func (k Kind) Prefix() string {
	if !k.valid() {
		return ""
	}
	return kinds[k].prefix
}

// Ext is the file extension without the dot.
func (k Kind) Ext() string {
	if !k.valid() {
		return ""
	}
	return kinds[k].ext
}

func (k Kind) Description() string {
	if !k.valid() {
		return ""
	}
	return kinds[k].desc
}

func (k Kind) String() string { return k.Key() }
