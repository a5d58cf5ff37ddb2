package models

import (
	"time"
)

// TradePerformance is one row per buy, completed later by the matching sell.
// Two parallel ledgers exist, simulation and real, selected by IsSimulation;
// a sell update must target the same ledger as its buy.
type TradePerformance struct {
	ID                string    `json:"id" db:"id"`
	TokenAddress      string    `json:"token_address" db:"token_address"`
	RecommenderID     string    `json:"recommender_id" db:"recommender_id"`
	BuyPrice          float64   `json:"buy_price" db:"buy_price"`
	SellPrice         float64   `json:"sell_price" db:"sell_price"`
	BuyTimestamp      time.Time `json:"buy_timeStamp" db:"buy_timestamp"`
	SellTimestamp     time.Time `json:"sell_timeStamp" db:"sell_timestamp"`
	BuyAmount         float64   `json:"buy_amount" db:"buy_amount"`
	SellAmount        float64   `json:"sell_amount" db:"sell_amount"`
	BuySol            float64   `json:"buy_sol" db:"buy_sol"`
	ReceivedSol       float64   `json:"received_sol" db:"received_sol"`
	BuyValueUsd       float64   `json:"buy_value_usd" db:"buy_value_usd"`
	SellValueUsd      float64   `json:"sell_value_usd" db:"sell_value_usd"`
	ProfitUsd         float64   `json:"profit_usd" db:"profit_usd"`
	ProfitPercent     float64   `json:"profit_percent" db:"profit_percent"`
	BuyMarketCap      float64   `json:"buy_market_cap" db:"buy_market_cap"`
	SellMarketCap     float64   `json:"sell_market_cap" db:"sell_market_cap"`
	MarketCapChange   float64   `json:"market_cap_change" db:"market_cap_change"`
	BuyLiquidity      float64   `json:"buy_liquidity" db:"buy_liquidity"`
	SellLiquidity     float64   `json:"sell_liquidity" db:"sell_liquidity"`
	LiquidityChange   float64   `json:"liquidity_change" db:"liquidity_change"`
	RapidDump         bool      `json:"rapidDump" db:"rapid_dump"`
	SellRecommenderID *string   `json:"sell_recommender_id,omitempty" db:"sell_recommender_id"`
	IsSimulation      bool      `json:"-" db:"is_simulation"`
}

// IsOpen reports whether the row still represents an open position. A row
// without a sell timestamp has not been liquidated yet.
func (t *TradePerformance) IsOpen() bool {
	return t.SellTimestamp.IsZero()
}

// TransactionType distinguishes rows in the immutable transaction ledger.
type TransactionType string

const (
	TransactionBuy  TransactionType = "buy"
	TransactionSell TransactionType = "sell"
)

// TokenTransaction is one append-only row in the transaction ledger. Rows are
// never updated or deleted.
type TokenTransaction struct {
	ID              string          `json:"id" db:"id"`
	TokenAddress    string          `json:"tokenAddress" db:"token_address"`
	TransactionHash string          `json:"transactionHash" db:"transaction_hash"`
	Type            TransactionType `json:"type" db:"type"`
	Amount          float64         `json:"amount" db:"amount"`
	Price           float64         `json:"price" db:"price"`
	ValueUsd        float64         `json:"valueUsd" db:"value_usd"`
	IsSimulation    bool            `json:"isSimulation" db:"is_simulation"`
	Timestamp       time.Time       `json:"timestamp" db:"timestamp"`
}

// SellInstruction is the queue message consumed by the liquidation service.
// SellRecommenderID may be null for scan-triggered liquidations relayed
// through the queue.
type SellInstruction struct {
	TokenAddress      string  `json:"tokenAddress"`
	Amount            float64 `json:"amount"`
	SellRecommenderID *string `json:"sell_recommender_id"`
}

// Validate fails loudly on missing required fields rather than letting a
// half-formed instruction reach the liquidation flow.
func (s *SellInstruction) Validate() error {
	if s.TokenAddress == "" {
		return ErrMissingTokenAddress
	}
	if s.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
