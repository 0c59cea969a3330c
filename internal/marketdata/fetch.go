package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// fetchDailyCloses fetches daily timestamps and adjusted close prices for a
// single symbol over [start, end]. It rotates between the two Yahoo query
// hosts with backoff and falls back to the v7 spark endpoint when the chart
// endpoint keeps failing.
func fetchDailyCloses(ctx context.Context, client *http.Client, symbol string, start, end time.Time) ([]int64, []float64, error) {
	hosts := []string{"query1.finance.yahoo.com", "query2.finance.yahoo.com"}
	backoffs := []time.Duration{200 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second}
	period1 := start.Unix()
	period2 := end.Unix()
	var yc yahooChartResp
	var lastErr error
	for attempt := 0; attempt < len(backoffs)+1; attempt++ {
		for _, host := range hosts {
			url := fmt.Sprintf("https://%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d&events=div,splits",
				host, symbol, period1, period2)
			body, err := doYahooRequest(ctx, client, url, symbol, host)
			if err != nil {
				lastErr = err
				continue
			}
			if err := json.Unmarshal(body, &yc); err != nil {
				lastErr = fmt.Errorf("failed to parse yahoo json: %v; body: %s", err, preview(body))
				continue
			}
			lastErr = nil
			break
		}
		if lastErr == nil {
			break
		}
		if attempt < len(backoffs) {
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(backoffs[attempt]):
			}
		}
	}
	if lastErr != nil {
		// Spark fallback
		var sp yahooSparkResp
		for attempt := 0; attempt < len(backoffs)+1 && lastErr != nil; attempt++ {
			for _, host := range hosts {
				url := fmt.Sprintf("https://%s/v7/finance/spark?symbols=%s&period1=%d&period2=%d&interval=1d",
					host, strings.ToUpper(symbol), period1, period2)
				body, err := doYahooRequest(ctx, client, url, symbol, host)
				if err != nil {
					lastErr = err
					continue
				}
				if err := json.Unmarshal(body, &sp); err != nil {
					lastErr = fmt.Errorf("failed to parse yahoo spark json: %v", err)
					continue
				}
				if len(sp.Spark.Result) > 0 && len(sp.Spark.Result[0].Response) > 0 {
					ts := sp.Spark.Result[0].Response[0].Timestamp
					cl := sp.Spark.Result[0].Response[0].Close
					ts, cl = filterPositive(ts, cl)
					ts, cl = filterIQR(ts, cl, 1.5, 20)
					return ts, cl, nil
				}
				lastErr = errors.New("yahoo spark returned empty result")
			}
			if attempt < len(backoffs) {
				select {
				case <-ctx.Done():
					return nil, nil, ctx.Err()
				case <-time.After(backoffs[attempt]):
				}
			}
		}
		if lastErr != nil {
			return nil, nil, lastErr
		}
	}
	if len(yc.Chart.Result) == 0 || len(yc.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil, errors.New("no data")
	}
	res := yc.Chart.Result[0]
	ts := res.Timestamp
	cl := res.Indicators.Quote[0].Close
	// Prefer split/dividend adjusted closes when present.
	if len(res.Indicators.Adjclose) > 0 && len(res.Indicators.Adjclose[0].Adjclose) == len(ts) {
		cl = res.Indicators.Adjclose[0].Adjclose
	}
	ts, cl = filterPositive(ts, cl)
	ts, cl = filterIQR(ts, cl, 1.5, 20)
	return ts, cl, nil
}

// doYahooRequest performs one request and validates the body looks like JSON.
func doYahooRequest(ctx context.Context, client *http.Client, url, symbol, host string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15")
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", fmt.Sprintf("https://finance.yahoo.com/quote/%s/chart", strings.ToUpper(symbol)))
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("failed to read yahoo response: %w", readErr)
	}
	if resp.StatusCode == http.StatusTooManyRequests || strings.HasPrefix(string(body), "Edge: Too Many Requests") {
		return nil, fmt.Errorf("yahoo %s returned 429: Edge: Too Many Requests", host)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo %s returned %d: %s", host, resp.StatusCode, preview(body))
	}
	if strings.HasPrefix(string(body), "<") || strings.HasPrefix(string(body), "Edge:") {
		return nil, fmt.Errorf("yahoo returned non-json body: %s", preview(body))
	}
	return body, nil
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}
