// Package service contains the market data gateway and the trust service
// built on top of the adapters, the cache, and the repositories.
package service

import (
	"context"
	"fmt"

	"github.com/trust-engine/internal/adapter"
	"github.com/trust-engine/internal/circuitbreaker"
	"github.com/trust-engine/internal/logging"
	"github.com/trust-engine/internal/models"
	"github.com/trust-engine/internal/retry"
	"github.com/trust-engine/internal/storage"
)

// Buy sizing parameters. Tokens below the market-cap floor or without
// liquidity get all-zero tiers; that is a circuit breaker, not an error.
const (
	MinBuyMarketCap = 100_000.0

	LowTierPercent    = 0.01
	MediumTierPercent = 0.05
	HighTierPercent   = 0.10
)

// Red-flag thresholds for HasTradingRedFlags.
const (
	MaxTop10HolderPercent  = 0.70
	MinVolume24hUsd        = 2_000.0
	MaxPriceDrop24hPercent = -50.0
	MaxPriceDrop12hPercent = -30.0
	MinLiquidityUsd        = 1_000.0
)

// MarketDataGateway fronts the external data vendors with the layered cache,
// bounded retries, and per-vendor circuit breakers.
type MarketDataGateway struct {
	vendor *adapter.VendorClient
	dex    *adapter.DexClient
	cache  storage.Cache

	vendorBreaker *circuitbreaker.CircuitBreaker
	dexBreaker    *circuitbreaker.CircuitBreaker
	retryCfg      *retry.Config
}

// NewMarketDataGateway creates a new market data gateway
func NewMarketDataGateway(vendor *adapter.VendorClient, dex *adapter.DexClient, cache storage.Cache) *MarketDataGateway {
	return &MarketDataGateway{
		vendor:        vendor,
		dex:           dex,
		cache:         cache,
		vendorBreaker: circuitbreaker.New(circuitbreaker.DefaultConfig("token-data-vendor")),
		dexBreaker:    circuitbreaker.New(circuitbreaker.DefaultConfig("dex-vendor")),
		retryCfg:      retry.DefaultConfig(),
	}
}

// fetchCached is the shared fetch path: cache first, then a live fetch
// through retry and the circuit breaker, then write-through to both tiers.
func (g *MarketDataGateway) fetchCached(ctx context.Context, key string, dest interface{}, breaker *circuitbreaker.CircuitBreaker, fetch func(ctx context.Context) (interface{}, error)) error {
	found, err := g.cache.Get(ctx, key, dest)
	if err != nil {
		// A broken cache tier must not take down the fetch path.
		logging.FromContext(ctx).WithError(err).WithField("key", key).Warn("Cache read failed, falling through to live fetch")
	}
	if found {
		return nil
	}

	var fetched interface{}
	err = retry.Do(ctx, g.retryCfg, func(ctx context.Context, _ int) error {
		return breaker.Execute(ctx, func() error {
			var ferr error
			fetched, ferr = fetch(ctx)
			return ferr
		})
	})
	if err != nil {
		return err
	}

	if err := g.cache.Set(ctx, key, fetched, 0); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("key", key).Warn("Cache write failed")
	}
	return reassign(dest, fetched)
}

// FetchTokenSecurity returns the security report for a token
func (g *MarketDataGateway) FetchTokenSecurity(ctx context.Context, tokenAddress string) (*models.TokenSecurityData, error) {
	var data models.TokenSecurityData
	key := storage.CacheKey("security", tokenAddress)
	err := g.fetchCached(ctx, key, &data, g.vendorBreaker, func(ctx context.Context) (interface{}, error) {
		return g.vendor.GetTokenSecurity(ctx, tokenAddress)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token security for %s: %w", tokenAddress, err)
	}
	return &data, nil
}

// FetchTokenTradeData returns the 24h/12h trade statistics for a token
func (g *MarketDataGateway) FetchTokenTradeData(ctx context.Context, tokenAddress string) (*models.TokenTradeData, error) {
	var data models.TokenTradeData
	key := storage.CacheKey("trade", tokenAddress)
	err := g.fetchCached(ctx, key, &data, g.vendorBreaker, func(ctx context.Context) (interface{}, error) {
		return g.vendor.GetTokenTradeData(ctx, tokenAddress)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trade data for %s: %w", tokenAddress, err)
	}
	return &data, nil
}

// FetchDexListingData returns the DEX pair listings for a token
func (g *MarketDataGateway) FetchDexListingData(ctx context.Context, tokenAddress string) (*models.DexListingData, error) {
	var data models.DexListingData
	key := storage.CacheKey("dex", tokenAddress)
	err := g.fetchCached(ctx, key, &data, g.dexBreaker, func(ctx context.Context) (interface{}, error) {
		return g.dex.GetListing(ctx, tokenAddress)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dex listing for %s: %w", tokenAddress, err)
	}
	return &data, nil
}

// FetchHolderList returns the token's holder list, paginated and capped at
// MaxHolderPages pages. A short final page ends the walk early.
func (g *MarketDataGateway) FetchHolderList(ctx context.Context, tokenAddress string) ([]models.HolderData, error) {
	var holders []models.HolderData
	key := storage.CacheKey("holders", tokenAddress)
	err := g.fetchCached(ctx, key, &holders, g.vendorBreaker, func(ctx context.Context) (interface{}, error) {
		var all []models.HolderData
		for page := 0; page < adapter.MaxHolderPages; page++ {
			items, err := g.vendor.GetHolderPage(ctx, tokenAddress, page*adapter.HolderPageSize)
			if err != nil {
				return nil, err
			}
			all = append(all, items...)
			if len(items) < adapter.HolderPageSize {
				break
			}
		}
		return all, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch holder list for %s: %w", tokenAddress, err)
	}
	return holders, nil
}

// FetchPrices returns spot prices for the fixed reference basket
func (g *MarketDataGateway) FetchPrices(ctx context.Context) (*models.Prices, error) {
	var prices models.Prices
	key := storage.CacheKey("prices")
	err := g.fetchCached(ctx, key, &prices, g.vendorBreaker, func(ctx context.Context) (interface{}, error) {
		return g.vendor.GetPrices(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reference prices: %w", err)
	}
	return &prices, nil
}

// ComputeBuyAmounts returns the tiered notional buy sizes in base asset
// units for the given top-pair liquidity and market cap.
func ComputeBuyAmounts(liquidityUsd, marketCap, baseAssetPriceUsd float64) models.BuyAmounts {
	if liquidityUsd <= 0 || marketCap < MinBuyMarketCap || baseAssetPriceUsd <= 0 {
		return models.BuyAmounts{}
	}
	return models.BuyAmounts{
		Low:    liquidityUsd * LowTierPercent / baseAssetPriceUsd,
		Medium: liquidityUsd * MediumTierPercent / baseAssetPriceUsd,
		High:   liquidityUsd * HighTierPercent / baseAssetPriceUsd,
	}
}

// CalculateBuyAmounts computes buy tiers for a token from its top trading
// pair and the current base asset price.
func (g *MarketDataGateway) CalculateBuyAmounts(ctx context.Context, tokenAddress string) (models.BuyAmounts, error) {
	listing, err := g.FetchDexListingData(ctx, tokenAddress)
	if err != nil {
		return models.BuyAmounts{}, err
	}
	pair, err := listing.TopPair()
	if err != nil {
		// No trading pair is a defined fallback: zero tiers.
		return models.BuyAmounts{}, nil
	}

	prices, err := g.FetchPrices(ctx)
	if err != nil {
		return models.BuyAmounts{}, err
	}
	return ComputeBuyAmounts(pair.LiquidityUsd, pair.MarketCap, prices.Sol.Usd), nil
}

// RedFlagInput bundles the signals inspected by HasTradingRedFlags.
type RedFlagInput struct {
	Top10HolderPercent    float64
	Volume24hUsd          float64
	PriceChange24hPercent float64
	PriceChange12hPercent float64
	UniqueWallet24hChange float64
	LiquidityUsd          float64
	MarketCap             float64
}

// HasTradingRedFlags reports whether any red-flag threshold is crossed for
// the token: high holder concentration, thin volume, a 24h/12h price
// collapse, shrinking unique wallets, or a liquidity/market-cap floor.
// Callers abstain from trading on a true result.
func HasTradingRedFlags(in RedFlagInput) bool {
	switch {
	case in.Top10HolderPercent >= MaxTop10HolderPercent:
		return true
	case in.Volume24hUsd < MinVolume24hUsd:
		return true
	case in.PriceChange24hPercent <= MaxPriceDrop24hPercent:
		return true
	case in.PriceChange12hPercent <= MaxPriceDrop12hPercent:
		return true
	case in.UniqueWallet24hChange < 0:
		return true
	case in.LiquidityUsd < MinLiquidityUsd:
		return true
	case in.MarketCap < MinBuyMarketCap:
		return true
	default:
		return false
	}
}

// ShouldAbstainFromToken runs the red-flag gate against freshly fetched
// vendor data.
func (g *MarketDataGateway) ShouldAbstainFromToken(ctx context.Context, tokenAddress string) (bool, error) {
	security, err := g.FetchTokenSecurity(ctx, tokenAddress)
	if err != nil {
		return true, err
	}
	tradeData, err := g.FetchTokenTradeData(ctx, tokenAddress)
	if err != nil {
		return true, err
	}
	listing, err := g.FetchDexListingData(ctx, tokenAddress)
	if err != nil {
		return true, err
	}

	input := RedFlagInput{
		Top10HolderPercent:    security.Top10HolderPercent,
		Volume24hUsd:          tradeData.Volume24hUsd,
		PriceChange24hPercent: tradeData.PriceChange24hPercent,
		PriceChange12hPercent: tradeData.PriceChange12hPercent,
		UniqueWallet24hChange: tradeData.UniqueWallet24hChange,
	}
	if pair, err := listing.TopPair(); err == nil {
		input.LiquidityUsd = pair.LiquidityUsd
		input.MarketCap = pair.MarketCap
	}
	return HasTradingRedFlags(input), nil
}

// reassign copies a fetched value into the caller's destination pointer.
func reassign(dest, fetched interface{}) error {
	switch d := dest.(type) {
	case *models.TokenSecurityData:
		src, ok := fetched.(*models.TokenSecurityData)
		if !ok {
			return fmt.Errorf("unexpected fetch result type %T", fetched)
		}
		*d = *src
	case *models.TokenTradeData:
		src, ok := fetched.(*models.TokenTradeData)
		if !ok {
			return fmt.Errorf("unexpected fetch result type %T", fetched)
		}
		*d = *src
	case *models.DexListingData:
		src, ok := fetched.(*models.DexListingData)
		if !ok {
			return fmt.Errorf("unexpected fetch result type %T", fetched)
		}
		*d = *src
	case *models.Prices:
		src, ok := fetched.(*models.Prices)
		if !ok {
			return fmt.Errorf("unexpected fetch result type %T", fetched)
		}
		*d = *src
	case *[]models.HolderData:
		src, ok := fetched.([]models.HolderData)
		if !ok {
			return fmt.Errorf("unexpected fetch result type %T", fetched)
		}
		*d = src
	default:
		return fmt.Errorf("unsupported cache destination type %T", dest)
	}
	return nil
}
