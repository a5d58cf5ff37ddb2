// Package models defines the domain types shared across the trust engine.
package models

import (
	"time"
)

// TokenPerformance is the per-token scoring snapshot. One logical row per
// token address, upserted on every scoring pass.
type TokenPerformance struct {
	TokenAddress     string    `json:"tokenAddress" db:"token_address"`
	Symbol           string    `json:"symbol" db:"symbol"`
	PriceChange24h   float64   `json:"priceChange24h" db:"price_change_24h"`
	VolumeChange24h  float64   `json:"volumeChange24h" db:"volume_change_24h"`
	TradeChange24h   float64   `json:"trade_24h_change" db:"trade_change_24h"`
	Liquidity        float64   `json:"liquidity" db:"liquidity"`
	LiquidityChange  float64   `json:"liquidityChange24h" db:"liquidity_change_24h"`
	HolderChange24h  float64   `json:"holderChange24h" db:"holder_change_24h"`
	RugPull          bool      `json:"rugPull" db:"rug_pull"`
	IsScam           bool      `json:"isScam" db:"is_scam"`
	MarketCapChange  float64   `json:"marketCapChange24h" db:"market_cap_change_24h"`
	SustainedGrowth  bool      `json:"sustainedGrowth" db:"sustained_growth"`
	RapidDump        bool      `json:"rapidDump" db:"rapid_dump"`
	SuspiciousVolume bool      `json:"suspiciousVolume" db:"suspicious_volume"`
	ValidationTrust  float64   `json:"validationTrust" db:"validation_trust"`
	Balance          float64   `json:"balance" db:"balance"`
	InitialMarketCap float64   `json:"initialMarketCap" db:"initial_market_cap"`
	LastUpdated      time.Time `json:"lastUpdated" db:"last_updated"`
}

// RecommenderMetrics is the per-recommender aggregate. Created lazily on the
// first recommendation and mutated on every new recommendation and sell.
type RecommenderMetrics struct {
	RecommenderID        string    `json:"recommenderId" db:"recommender_id"`
	TrustScore           float64   `json:"trustScore" db:"trust_score"`
	TotalRecommendations int       `json:"totalRecommendations" db:"total_recommendations"`
	SuccessfulRecs       int       `json:"successfulRecs" db:"successful_recs"`
	AvgTokenPerformance  float64   `json:"avgTokenPerformance" db:"avg_token_performance"`
	RiskScore            float64   `json:"riskScore" db:"risk_score"`
	ConsistencyScore     float64   `json:"consistencyScore" db:"consistency_score"`
	VirtualConfidence    float64   `json:"virtualConfidence" db:"virtual_confidence"`
	LastActiveDate       time.Time `json:"lastActiveDate" db:"last_active_date"`
	TrustDecay           float64   `json:"trustDecay" db:"trust_decay"`
	LastUpdated          time.Time `json:"lastUpdated" db:"last_updated"`
}

// TokenRecommendation is an immutable record of a recommender's call on a
// token. Written once, never mutated.
type TokenRecommendation struct {
	ID               string    `json:"id" db:"id"`
	RecommenderID    string    `json:"recommenderId" db:"recommender_id"`
	TokenAddress     string    `json:"tokenAddress" db:"token_address"`
	Timestamp        time.Time `json:"timestamp" db:"created_at"`
	InitialMarketCap float64   `json:"initialMarketCap" db:"initial_market_cap"`
	InitialLiquidity float64   `json:"initialLiquidity" db:"initial_liquidity"`
	InitialPrice     float64   `json:"initialPrice" db:"initial_price"`
}
