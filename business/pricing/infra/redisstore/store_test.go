package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/pricing/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/config"
)

func samplePrice() domain.AggregatedPrice {
	return domain.AggregatedPrice{
		Asset:        "WETH",
		Venue:        "quickswap",
		PriceUSD:     decimal.RequireFromString("2348.25"),
		LiquidityUSD: decimal.RequireFromString("2500000"),
		Fee:          decimal.RequireFromString("0.003"),
		SampleCount:  2,
		Sources:      []string{"static", "coingecko"},
		CachedUntil:  time.UnixMilli(1_760_000_000_000),
	}
}

func TestEncodeDecode(t *testing.T) {
	in := samplePrice()

	raw := encode(in)
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		fields[k] = v.(string)
	}

	out, err := decode("WETH", "quickswap", fields)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.PriceUSD.Equal(in.PriceUSD) || !out.Fee.Equal(in.Fee) || !out.LiquidityUSD.Equal(in.LiquidityUSD) {
		t.Errorf("decimals changed: %+v", out)
	}
	if out.SampleCount != 2 || len(out.Sources) != 2 || out.Sources[1] != "coingecko" {
		t.Errorf("metadata changed: %+v", out)
	}
	if !out.CachedUntil.Equal(in.CachedUntil) {
		t.Errorf("cached until = %s, want %s", out.CachedUntil, in.CachedUntil)
	}
}

func TestDecode_Corrupt(t *testing.T) {
	fields := map[string]string{fieldPrice: "abc"}
	if _, err := decode("WETH", "quickswap", fields); apperror.GetCode(err) != apperror.CodePriceStoreFailed {
		t.Errorf("err = %v", err)
	}
}

func TestKey(t *testing.T) {
	s := New(nil, "")
	if got := s.key("QuickSwap", "weth"); got != "arb:price:quickswap:WETH" {
		t.Errorf("key = %s", got)
	}
}

// TestStore_Redis runs against a real server when ARB_TEST_REDIS_ADDR is set.
func TestStore_Redis(t *testing.T) {
	addr := os.Getenv("ARB_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ARB_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	rdb, err := NewClient(ctx, config.RedisConfig{Addr: addr, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer rdb.Close()

	s := New(rdb, "arbtest-"+time.Now().Format("150405.000"))

	if _, found, err := s.Get(ctx, "quickswap", "WETH"); err != nil || found {
		t.Fatalf("empty Get = found %v err %v", found, err)
	}

	if err := s.Set(ctx, samplePrice(), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, found, err := s.Get(ctx, "quickswap", "weth")
	if err != nil || !found {
		t.Fatalf("Get = found %v err %v", found, err)
	}
	if !got.PriceUSD.Equal(decimal.RequireFromString("2348.25")) {
		t.Errorf("price = %s", got.PriceUSD)
	}

	ttl, err := rdb.TTL(ctx, s.key("quickswap", "WETH")).Result()
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Errorf("ttl = %s err %v", ttl, err)
	}
}
