// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"
	"time"

	"github.com/fd1az/arbitrage-engine/business/pricing/domain"
)

// PriceSource produces quotes for an asset at a venue. Sources that are not
// venue specific (reference APIs) may ignore venue.
type PriceSource interface {
	Name() string
	Fetch(ctx context.Context, asset, venue string) (domain.PriceQuote, error)
}

// PriceStore is a shared second cache tier consulted after a local miss.
type PriceStore interface {
	// Get reports found=false on a miss. Errors are store failures, not misses.
	Get(ctx context.Context, venue, asset string) (domain.AggregatedPrice, bool, error)
	Set(ctx context.Context, price domain.AggregatedPrice, ttl time.Duration) error
}
