package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"trading-signal-engine/config"
	"trading-signal-engine/internal/engine"
	"trading-signal-engine/internal/market"
	"trading-signal-engine/internal/scanner"
)

type failingSource struct{}

func (failingSource) GetBars(context.Context, string, market.Timeframe, int) (*market.Series, error) {
	return nil, errors.New("feed down")
}

func newTestServer(t *testing.T, source market.BarSource) *Server {
	t.Helper()
	eng, err := engine.New(source, engine.DefaultConfig(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("building engine: %v", err)
	}
	return NewServer(config.ServerConfig{AllowedOrigins: "*"}, eng, nil, zerolog.Nop())
}

func doRequest(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding %s response: %v", path, err)
	}
	return rec, body
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, market.NewMockSource(0.001, 0.01))
	rec, body := doRequest(t, s, "/health")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %v, want healthy", body["status"])
	}
	if body["redis"] != "disabled" {
		t.Errorf("redis field = %v, want disabled", body["redis"])
	}
}

func TestAnalyzeEndpointNoSignalIsOK(t *testing.T) {
	s := newTestServer(t, market.NewMockSource(0.0005, 0.01))
	rec, body := doRequest(t, s, "/api/v1/analyze/btcusdt")

	// No signal is a valid outcome and must not surface as an error status
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["symbol"] != "BTCUSDT" {
		t.Errorf("symbol = %v, want uppercased BTCUSDT", body["symbol"])
	}
	if _, ok := body["signal"]; !ok {
		t.Error("response missing signal field")
	}
}

func TestAnalyzeEndpointFailureIs5xx(t *testing.T) {
	s := newTestServer(t, failingSource{})
	rec, body := doRequest(t, s, "/api/v1/analyze/BTCUSDT")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if body["error"] == nil {
		t.Error("error response missing error field")
	}
}

func TestRegimeEndpoint(t *testing.T) {
	s := newTestServer(t, market.NewMockSource(0.001, 0.01))
	rec, body := doRequest(t, s, "/api/v1/regime/BTCUSDT?timeframe=4h")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["timeframe"] != "4h" {
		t.Errorf("timeframe = %v, want 4h", body["timeframe"])
	}
	if body["regime"] == nil {
		t.Error("response missing regime")
	}
}

func TestRegimeEndpointRejectsBadTimeframe(t *testing.T) {
	s := newTestServer(t, market.NewMockSource(0.001, 0.01))
	rec, _ := doRequest(t, s, "/api/v1/regime/BTCUSDT?timeframe=3h")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPatternsEndpoint(t *testing.T) {
	s := newTestServer(t, market.NewMockSource(0.001, 0.01))
	rec, body := doRequest(t, s, "/api/v1/patterns/BTCUSDT")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if _, ok := body["count"]; !ok {
		t.Error("response missing count")
	}
}

func TestLatestScanEndpointWithoutScanner(t *testing.T) {
	s := newTestServer(t, market.NewMockSource(0.001, 0.01))
	rec, body := doRequest(t, s, "/api/v1/scan/latest")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if body["error"] == nil {
		t.Error("response missing error field")
	}
}

func TestLatestScanEndpoint(t *testing.T) {
	source := market.NewMockSource(0.001, 0.01)
	s := newTestServer(t, source)

	eng, err := engine.New(source, engine.DefaultConfig(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("building engine: %v", err)
	}
	scCfg := scanner.DefaultConfig()
	scCfg.Symbols = []string{"BTCUSDT"}
	sc := scanner.New(eng, nil, scCfg, zerolog.Nop())
	s.AttachScanner(sc)

	rec, body := doRequest(t, s, "/api/v1/scan/latest")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if _, ok := body["scan"]; !ok {
		t.Error("response missing scan field before first scan")
	}

	sc.Scan()
	rec, body = doRequest(t, s, "/api/v1/scan/latest")
	if rec.Code != http.StatusOK {
		t.Fatalf("status after scan = %d, want 200", rec.Code)
	}
	scan, ok := body["scan"].(map[string]any)
	if !ok {
		t.Fatalf("scan field = %v, want object", body["scan"])
	}
	if scan["symbols_scanned"] != float64(1) {
		t.Errorf("symbols_scanned = %v, want 1", scan["symbols_scanned"])
	}
}

func TestIndicatorsEndpoint(t *testing.T) {
	s := newTestServer(t, market.NewMockSource(0.001, 0.01))
	rec, body := doRequest(t, s, "/api/v1/indicators/BTCUSDT")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["values"] == nil {
		t.Error("response missing raw values")
	}
	if body["readings"] == nil {
		t.Error("response missing readings")
	}
}
