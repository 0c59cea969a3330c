package marketdata

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrInsufficientOverlap is returned when the requested tickers share no
// common trading dates after per-ticker fetching and cleaning.
var ErrInsufficientOverlap = errors.New("no overlapping trading dates across requested tickers")

// maxParallelFetches bounds concurrent Yahoo requests so a large portfolio
// does not trip rate limiting.
const maxParallelFetches = 4

// PriceTable holds daily adjusted close prices for a set of tickers aligned
// on the intersection of their trading dates. Tickers whose fetch failed are
// recorded in Failed with the failure reason; their absence never aborts the
// batch.
type PriceTable struct {
	Dates   []time.Time
	Tickers []string
	Prices  map[string][]float64
	Failed  map[string]string
}

// Loader fetches and aligns historical price series.
type Loader struct {
	client  *http.Client
	timeout time.Duration
	log     zerolog.Logger

	// fetchFn is swapped in tests.
	fetchFn func(ctx context.Context, symbol string, start, end time.Time) ([]int64, []float64, error)
}

func NewLoader(timeout time.Duration, log zerolog.Logger) *Loader {
	client := &http.Client{Timeout: timeout}
	l := &Loader{client: client, timeout: timeout, log: log}
	l.fetchFn = func(ctx context.Context, symbol string, start, end time.Time) ([]int64, []float64, error) {
		return fetchDailyCloses(ctx, client, symbol, start, end)
	}
	return l
}

type fetchedSeries struct {
	ticker string
	ts     []int64
	closes []float64
	err    error
}

// Load fetches daily closes for every ticker over [start, end] and aligns
// them on the intersection of available trading dates. Per-ticker failures
// (network error, unknown symbol, timeout) are isolated: the ticker is marked
// failed and the rest of the batch continues.
func (l *Loader) Load(ctx context.Context, tickers []string, start, end time.Time) (*PriceTable, error) {
	results := make([]fetchedSeries, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)
	for i, t := range tickers {
		i, t := i, t
		g.Go(func() error {
			symbol := strings.ToUpper(strings.TrimSpace(t))
			fctx, cancel := context.WithTimeout(gctx, l.timeout)
			defer cancel()
			ts, cl, err := l.fetchFn(fctx, symbol, start, end)
			results[i] = fetchedSeries{ticker: symbol, ts: ts, closes: cl, err: err}
			// Fetch errors are data, not batch errors.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	table := &PriceTable{
		Prices: map[string][]float64{},
		Failed: map[string]string{},
	}
	type column struct {
		ticker string
		byDate map[string]float64
	}
	var columns []column
	for _, r := range results {
		if r.err != nil {
			l.log.Warn().Str("ticker", r.ticker).Err(r.err).Msg("price fetch failed, excluding ticker")
			table.Failed[r.ticker] = r.err.Error()
			continue
		}
		if len(r.ts) == 0 {
			l.log.Warn().Str("ticker", r.ticker).Msg("no usable price data, excluding ticker")
			table.Failed[r.ticker] = "no usable price data in the requested range"
			continue
		}
		byDate := make(map[string]float64, len(r.ts))
		for i, t := range r.ts {
			if i >= len(r.closes) {
				break
			}
			// Daily bars carry the session open timestamp; key on the UTC
			// trade date so all tickers land on the same index.
			byDate[time.Unix(t, 0).UTC().Format("2006-01-02")] = r.closes[i]
		}
		columns = append(columns, column{ticker: r.ticker, byDate: byDate})
	}

	if len(columns) == 0 {
		return nil, ErrInsufficientOverlap
	}

	// Intersection of trading dates across all surviving tickers.
	common := make([]string, 0, len(columns[0].byDate))
	for date := range columns[0].byDate {
		present := true
		for _, c := range columns[1:] {
			if _, ok := c.byDate[date]; !ok {
				present = false
				break
			}
		}
		if present {
			common = append(common, date)
		}
	}
	if len(common) == 0 {
		return nil, ErrInsufficientOverlap
	}
	sort.Strings(common)

	table.Dates = make([]time.Time, len(common))
	for i, d := range common {
		table.Dates[i], _ = time.Parse("2006-01-02", d)
	}
	for _, c := range columns {
		prices := make([]float64, len(common))
		for i, d := range common {
			prices[i] = c.byDate[d]
		}
		table.Tickers = append(table.Tickers, c.ticker)
		table.Prices[c.ticker] = prices
	}
	l.log.Info().
		Int("tickers", len(table.Tickers)).
		Int("failed", len(table.Failed)).
		Int("dates", len(table.Dates)).
		Msg("price table loaded")
	return table, nil
}
