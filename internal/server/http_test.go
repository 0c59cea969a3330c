package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"portfolioAnalyzer/internal/analysis"
	"portfolioAnalyzer/internal/analyzer"
	"portfolioAnalyzer/internal/marketdata"
	"portfolioAnalyzer/internal/output"
)

type stubAnalyzer struct {
	res *analyzer.Result
	err error
}

func (s *stubAnalyzer) Generate(_ context.Context, _ analyzer.Request) (*analyzer.Result, error) {
	return s.res, s.err
}

func newTestServer(t *testing.T, a Analyzer) (*Server, *output.Controller) {
	t.Helper()
	out, err := output.NewController(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return New(a, out, nil, zerolog.Nop()), out
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, &stubAnalyzer{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestAnalyze_OK(t *testing.T) {
	res := &analyzer.Result{
		RunID:   "run-1",
		Summary: analysis.PerformanceSummary{AnnualReturn: 0.1, Sharpe: analysis.DefinedRatio(0.5)},
	}
	s, _ := newTestServer(t, &stubAnalyzer{res: res})
	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"tickers":["AAPL","MSFT"]}`)
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/portfolio/analyze", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got analyzer.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.RunID != "run-1" {
		t.Errorf("run id = %q", got.RunID)
	}
}

func TestAnalyze_BadJSON(t *testing.T) {
	s, _ := newTestServer(t, &stubAnalyzer{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/portfolio/analyze", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAnalyze_ValidationError(t *testing.T) {
	wrapped := fmt.Errorf("%w: at least one ticker is required", analyzer.ErrInvalidRequest)
	s, _ := newTestServer(t, &stubAnalyzer{err: wrapped})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/portfolio/analyze", strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAnalyze_ValidationMessageNotStatus(t *testing.T) {
	// An internal failure whose message merely resembles a validation error
	// must still be a 500; only the sentinel maps to 400.
	s, _ := newTestServer(t, &stubAnalyzer{err: errors.New("store rejected duplicate ticker row")})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/portfolio/analyze", strings.NewReader(`{"tickers":["A"]}`)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAnalyze_InsufficientOverlap(t *testing.T) {
	wrapped := errors.Join(marketdata.ErrInsufficientOverlap)
	s, _ := newTestServer(t, &stubAnalyzer{err: wrapped})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/portfolio/analyze", strings.NewReader(`{"tickers":["A","B"]}`)))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAnalyze_InternalError(t *testing.T) {
	s, _ := newTestServer(t, &stubAnalyzer{err: errors.New("disk on fire")})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/portfolio/analyze", strings.NewReader(`{"tickers":["A"]}`)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHistory_ListsArtifacts(t *testing.T) {
	s, out := newTestServer(t, &stubAnalyzer{})
	if err := os.WriteFile(filepath.Join(out.Dir(), "portfolio_report_20250602_150405.md"), []byte("#"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/history", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "portfolio_report_20250602_150405.md") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestFiles_ServesPublished(t *testing.T) {
	s, out := newTestServer(t, &stubAnalyzer{})
	name := "report_manifest_20250602_150405.json"
	if err := os.WriteFile(filepath.Join(out.Dir(), name), []byte(`{"run_id":"x"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/files/"+name, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"run_id"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRuns_EmptyWithoutStore(t *testing.T) {
	s, _ := newTestServer(t, &stubAnalyzer{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %s", rec.Body.String())
	}
}
