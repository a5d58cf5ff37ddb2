package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSellInstructionValidate(t *testing.T) {
	t.Run("valid instruction", func(t *testing.T) {
		s := &SellInstruction{TokenAddress: "0xtok", Amount: 1.5}
		assert.NoError(t, s.Validate())
	})

	t.Run("missing token address", func(t *testing.T) {
		s := &SellInstruction{Amount: 1.5}
		assert.ErrorIs(t, s.Validate(), ErrMissingTokenAddress)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		assert.ErrorIs(t, (&SellInstruction{TokenAddress: "0xtok"}).Validate(), ErrInvalidAmount)
		assert.ErrorIs(t, (&SellInstruction{TokenAddress: "0xtok", Amount: -1}).Validate(), ErrInvalidAmount)
	})

	t.Run("null sell recommender decodes", func(t *testing.T) {
		var s SellInstruction
		payload := `{"tokenAddress":"0xtok","amount":2,"sell_recommender_id":null}`
		require.NoError(t, json.Unmarshal([]byte(payload), &s))
		assert.NoError(t, s.Validate())
		assert.Nil(t, s.SellRecommenderID)
	})
}

func TestTopPair(t *testing.T) {
	t.Run("no pairs", func(t *testing.T) {
		d := &DexListingData{}
		_, err := d.TopPair()
		assert.ErrorIs(t, err, ErrNoTradingPair)
	})

	t.Run("highest liquidity wins", func(t *testing.T) {
		d := &DexListingData{Pairs: []DexPair{
			{PairAddress: "a", LiquidityUsd: 100},
			{PairAddress: "b", LiquidityUsd: 900},
			{PairAddress: "c", LiquidityUsd: 500},
		}}
		pair, err := d.TopPair()
		require.NoError(t, err)
		assert.Equal(t, "b", pair.PairAddress)
	})
}

func TestTradePerformanceIsOpen(t *testing.T) {
	trade := &TradePerformance{BuyTimestamp: time.Now()}
	assert.True(t, trade.IsOpen())

	trade.SellTimestamp = time.Now()
	assert.False(t, trade.IsOpen())
}
