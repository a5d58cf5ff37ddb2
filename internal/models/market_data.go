package models

import (
	"errors"
)

// Sentinel validation errors for decoded external payloads.
var (
	ErrMissingTokenAddress = errors.New("token address is required")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrNoTradingPair       = errors.New("no trading pair found")
)

// TokenSecurityData is the decoded security report for a token, as returned
// by the token data vendor.
type TokenSecurityData struct {
	TokenAddress       string  `json:"tokenAddress"`
	OwnerBalance       string  `json:"ownerBalance"`
	CreatorBalance     string  `json:"creatorBalance"`
	OwnerPercentage    float64 `json:"ownerPercentage"`
	CreatorPercentage  float64 `json:"creatorPercentage"`
	Top10HolderBalance string  `json:"top10HolderBalance"`
	Top10HolderPercent float64 `json:"top10HolderPercent"`
}

// TokenTradeData is the decoded 24h/12h trade statistics for a token.
type TokenTradeData struct {
	TokenAddress           string  `json:"tokenAddress"`
	Symbol                 string  `json:"symbol"`
	Price                  float64 `json:"price"`
	PriceChange24hPercent  float64 `json:"priceChange24hPercent"`
	PriceChange12hPercent  float64 `json:"priceChange12hPercent"`
	Volume24hUsd           float64 `json:"volume24hUsd"`
	VolumeChange24hPercent float64 `json:"volumeChange24hPercent"`
	Trade24hChangePercent  float64 `json:"trade24hChangePercent"`
	UniqueWallet24h        int     `json:"uniqueWallet24h"`
	UniqueWallet24hChange  float64 `json:"uniqueWallet24hChangePercent"`
	Holder                 int     `json:"holder"`
	HolderChange24hPercent float64 `json:"holderChange24hPercent"`
	LastTradeUnixTime      int64   `json:"lastTradeUnixTime"`
}

// DexPair is one trading pair from the DEX listings vendor.
type DexPair struct {
	PairAddress  string  `json:"pairAddress"`
	DexID        string  `json:"dexId"`
	BaseSymbol   string  `json:"baseSymbol"`
	QuoteSymbol  string  `json:"quoteSymbol"`
	PriceUsd     float64 `json:"priceUsd"`
	LiquidityUsd float64 `json:"liquidityUsd"`
	MarketCap    float64 `json:"marketCap"`
	FDV          float64 `json:"fdv"`
}

// DexListingData is the decoded DEX listing response for a token address.
type DexListingData struct {
	TokenAddress string    `json:"tokenAddress"`
	Pairs        []DexPair `json:"pairs"`
}

// TopPair returns the pair with the highest USD liquidity, or an error when
// the token has no listed pair.
func (d *DexListingData) TopPair() (*DexPair, error) {
	if len(d.Pairs) == 0 {
		return nil, ErrNoTradingPair
	}
	top := &d.Pairs[0]
	for i := range d.Pairs[1:] {
		if d.Pairs[i+1].LiquidityUsd > top.LiquidityUsd {
			top = &d.Pairs[i+1]
		}
	}
	return top, nil
}

// HolderData is one holder row from the paginated holder list endpoint.
type HolderData struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// Prices holds spot prices for the fixed reference basket.
type Prices struct {
	Sol struct {
		Usd float64 `json:"usd"`
	} `json:"solana"`
	Btc struct {
		Usd float64 `json:"usd"`
	} `json:"bitcoin"`
	Eth struct {
		Usd float64 `json:"usd"`
	} `json:"ethereum"`
}

// BuyAmounts holds the tiered notional buy sizes in base asset units.
type BuyAmounts struct {
	None   float64 `json:"none"`
	Low    float64 `json:"low"`
	Medium float64 `json:"medium"`
	High   float64 `json:"high"`
}

// ProcessedTokenData bundles everything a scoring pass needs for one token.
type ProcessedTokenData struct {
	Security    *TokenSecurityData
	TradeData   *TokenTradeData
	DexData     *DexListingData
	HolderCount int
}
