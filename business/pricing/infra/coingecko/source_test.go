package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/asset"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/retry"
)

func newTestSource(t *testing.T, handler http.HandlerFunc, apiKey string) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	src, err := New(config.CoinGeckoConfig{BaseURL: srv.URL, APIKey: apiKey}, asset.DefaultRegistry(asset.ChainIDPolygon), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return src
}

func TestSource_Fetch(t *testing.T) {
	var gotQuery, gotKey string
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("X-Cg-Pro-Api-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ethereum":{"usd":2347.5,"usd_24h_vol":15000000000}}`))
	}, "secret")

	q, err := src.Fetch(context.Background(), "weth", "quickswap")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if !q.PriceUSD.Equal(decimal.RequireFromString("2347.5")) {
		t.Errorf("price = %s", q.PriceUSD)
	}
	if !q.LiquidityUSD.Equal(decimal.NewFromInt(15_000_000_000)) {
		t.Errorf("liquidity = %s", q.LiquidityUSD)
	}
	if !q.Fee.IsZero() || q.Source != "coingecko" || q.Asset != "WETH" {
		t.Errorf("quote = %+v", q)
	}
	if gotKey != "secret" {
		t.Errorf("api key header = %q", gotKey)
	}
	want := "ids=ethereum&include_24hr_vol=true&vs_currencies=usd"
	if gotQuery != want {
		t.Errorf("query = %q, want %q", gotQuery, want)
	}
}

func TestSource_UnsupportedAsset(t *testing.T) {
	called := false
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) { called = true }, "")

	_, err := src.Fetch(context.Background(), "PEPE", "quickswap")
	if apperror.GetCode(err) != apperror.CodeUnsupportedPriceAsset {
		t.Errorf("err = %v", err)
	}
	if called {
		t.Error("unsupported asset must not reach the API")
	}
}

func TestSource_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		code      apperror.Code
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"status":{"error_code":429}}`, apperror.CodeCoinGeckoAPIError, true},
		{"server error", http.StatusBadGateway, `bad gateway`, apperror.CodeCoinGeckoAPIError, true},
		{"bad request", http.StatusBadRequest, `{"error":"invalid vs_currency"}`, apperror.CodeCoinGeckoAPIError, false},
		{"missing coin", http.StatusOK, `{}`, apperror.CodeNoPriceAvailable, false},
		{"missing usd", http.StatusOK, `{"ethereum":{"eur":2100}}`, apperror.CodeNoPriceAvailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, "")

			_, err := src.Fetch(context.Background(), "WETH", "quickswap")
			if apperror.GetCode(err) != tt.code {
				t.Fatalf("code = %s, want %s (err %v)", apperror.GetCode(err), tt.code, err)
			}
			if retryable, _ := retry.Classify(err); retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", retryable, tt.retryable)
			}
		})
	}
}
