package service

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/trust-engine/internal/models"
)

func TestComputeBuyAmounts(t *testing.T) {
	t.Run("tiers at unit base price", func(t *testing.T) {
		amounts := ComputeBuyAmounts(10_000, 200_000, 1.0)
		assert.InDelta(t, 100, amounts.Low, 1e-9)
		assert.InDelta(t, 500, amounts.Medium, 1e-9)
		assert.InDelta(t, 1000, amounts.High, 1e-9)
	})

	t.Run("base price converts usd to units", func(t *testing.T) {
		amounts := ComputeBuyAmounts(10_000, 200_000, 50.0)
		assert.InDelta(t, 2, amounts.Low, 1e-9)
		assert.InDelta(t, 10, amounts.Medium, 1e-9)
		assert.InDelta(t, 20, amounts.High, 1e-9)
	})

	t.Run("zero liquidity gates all tiers", func(t *testing.T) {
		assert.Equal(t, models.BuyAmounts{}, ComputeBuyAmounts(0, 200_000, 1.0))
	})

	t.Run("market cap below floor gates all tiers", func(t *testing.T) {
		assert.Equal(t, models.BuyAmounts{}, ComputeBuyAmounts(10_000, 99_999, 1.0))
	})

	t.Run("market cap at floor passes", func(t *testing.T) {
		amounts := ComputeBuyAmounts(10_000, 100_000, 1.0)
		assert.Greater(t, amounts.Low, 0.0)
	})

	t.Run("invalid base price gates all tiers", func(t *testing.T) {
		assert.Equal(t, models.BuyAmounts{}, ComputeBuyAmounts(10_000, 200_000, 0))
	})
}

func TestComputeBuyAmountsOrdering(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("tiers are strictly ordered when non-zero", prop.ForAll(
		func(liquidity, marketCap, price float64) bool {
			amounts := ComputeBuyAmounts(liquidity, marketCap, price)
			if amounts == (models.BuyAmounts{}) {
				return true
			}
			return amounts.Low < amounts.Medium && amounts.Medium < amounts.High
		},
		gen.Float64Range(0, 1e9),
		gen.Float64Range(0, 1e10),
		gen.Float64Range(0.01, 1e5),
	))

	properties.TestingRun(t)
}

func TestHasTradingRedFlags(t *testing.T) {
	healthy := RedFlagInput{
		Top10HolderPercent:    0.3,
		Volume24hUsd:          50_000,
		PriceChange24hPercent: 5,
		PriceChange12hPercent: 2,
		UniqueWallet24hChange: 10,
		LiquidityUsd:          25_000,
		MarketCap:             500_000,
	}

	t.Run("healthy token passes", func(t *testing.T) {
		assert.False(t, HasTradingRedFlags(healthy))
	})

	cases := []struct {
		name   string
		mutate func(in RedFlagInput) RedFlagInput
	}{
		{"holder concentration", func(in RedFlagInput) RedFlagInput { in.Top10HolderPercent = 0.7; return in }},
		{"thin volume", func(in RedFlagInput) RedFlagInput { in.Volume24hUsd = 500; return in }},
		{"24h price collapse", func(in RedFlagInput) RedFlagInput { in.PriceChange24hPercent = -50; return in }},
		{"12h price collapse", func(in RedFlagInput) RedFlagInput { in.PriceChange12hPercent = -30; return in }},
		{"shrinking wallets", func(in RedFlagInput) RedFlagInput { in.UniqueWallet24hChange = -1; return in }},
		{"low liquidity", func(in RedFlagInput) RedFlagInput { in.LiquidityUsd = 500; return in }},
		{"low market cap", func(in RedFlagInput) RedFlagInput { in.MarketCap = 50_000; return in }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, HasTradingRedFlags(tc.mutate(healthy)))
		})
	}
}
