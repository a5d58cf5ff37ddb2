package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	apperrors "github.com/trust-engine/internal/errors"
	"github.com/trust-engine/internal/models"
)

// TradeRepository handles the buy/sell trade ledgers. Simulation and real
// trades share one schema, split by the is_simulation column; a sell update
// always targets the ledger its buy was booked in.
type TradeRepository struct {
	db *PostgresDB
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db *PostgresDB) *TradeRepository {
	return &TradeRepository{db: db}
}

// AddBuy books a new buy row in the ledger selected by trade.IsSimulation
func (r *TradeRepository) AddBuy(ctx context.Context, trade *models.TradePerformance) error {
	trade.TokenAddress = strings.ToLower(trade.TokenAddress)
	if trade.BuyTimestamp.IsZero() {
		trade.BuyTimestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO trade_performance (
			id, token_address, recommender_id, buy_price, buy_timestamp,
			buy_amount, buy_sol, buy_value_usd, buy_market_cap, buy_liquidity,
			is_simulation
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		trade.ID,
		trade.TokenAddress,
		trade.RecommenderID,
		trade.BuyPrice,
		trade.BuyTimestamp,
		trade.BuyAmount,
		trade.BuySol,
		trade.BuyValueUsd,
		trade.BuyMarketCap,
		trade.BuyLiquidity,
		trade.IsSimulation,
	)
	if err != nil {
		return apperrors.DatabaseError("TRADE_INSERT", "failed to insert trade", err)
	}
	return nil
}

const tradeColumns = `
	id, token_address, recommender_id, buy_price, sell_price,
	buy_timestamp, sell_timestamp, buy_amount, sell_amount, buy_sol,
	received_sol, buy_value_usd, sell_value_usd, profit_usd, profit_percent,
	buy_market_cap, sell_market_cap, market_cap_change, buy_liquidity,
	sell_liquidity, liquidity_change, rapid_dump, sell_recommender_id, is_simulation
`

func scanTrade(row pgx.Row) (*models.TradePerformance, error) {
	var t models.TradePerformance
	var sellPrice, sellAmount, receivedSol, sellValueUsd, profitUsd, profitPercent *float64
	var sellMarketCap, marketCapChange, sellLiquidity, liquidityChange *float64
	var sellTimestamp *time.Time

	err := row.Scan(
		&t.ID,
		&t.TokenAddress,
		&t.RecommenderID,
		&t.BuyPrice,
		&sellPrice,
		&t.BuyTimestamp,
		&sellTimestamp,
		&t.BuyAmount,
		&sellAmount,
		&t.BuySol,
		&receivedSol,
		&t.BuyValueUsd,
		&sellValueUsd,
		&profitUsd,
		&profitPercent,
		&t.BuyMarketCap,
		&sellMarketCap,
		&marketCapChange,
		&t.BuyLiquidity,
		&sellLiquidity,
		&liquidityChange,
		&t.RapidDump,
		&t.SellRecommenderID,
		&t.IsSimulation,
	)
	if err != nil {
		return nil, err
	}

	// Null sell columns mean the position is still open.
	if sellTimestamp != nil {
		t.SellTimestamp = *sellTimestamp
	}
	assign := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	assign(&t.SellPrice, sellPrice)
	assign(&t.SellAmount, sellAmount)
	assign(&t.ReceivedSol, receivedSol)
	assign(&t.SellValueUsd, sellValueUsd)
	assign(&t.ProfitUsd, profitUsd)
	assign(&t.ProfitPercent, profitPercent)
	assign(&t.SellMarketCap, sellMarketCap)
	assign(&t.MarketCapChange, marketCapChange)
	assign(&t.SellLiquidity, sellLiquidity)
	assign(&t.LiquidityChange, liquidityChange)

	return &t, nil
}

// LatestOpenTrade returns the most recent buy row for the token without a
// sell timestamp, in the requested ledger.
func (r *TradeRepository) LatestOpenTrade(ctx context.Context, tokenAddress string, isSimulation bool) (*models.TradePerformance, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM trade_performance
		WHERE token_address = $1 AND is_simulation = $2 AND sell_timestamp IS NULL
		ORDER BY buy_timestamp DESC
		LIMIT 1
	`, tradeColumns)

	t, err := scanTrade(r.db.Pool().QueryRow(ctx, query, strings.ToLower(tokenAddress), isSimulation))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFoundError("OPEN_TRADE_NOT_FOUND",
				fmt.Sprintf("no open trade for token %s", tokenAddress))
		}
		return nil, apperrors.DatabaseError("TRADE_GET", "failed to get open trade", err)
	}
	return t, nil
}

// CompleteSell fills in the sell side of a trade row. The update is keyed by
// the row id and the ledger flag, so a sell can never complete a buy from
// the other ledger.
func (r *TradeRepository) CompleteSell(ctx context.Context, trade *models.TradePerformance) error {
	query := `
		UPDATE trade_performance SET
			sell_price = $3,
			sell_timestamp = $4,
			sell_amount = $5,
			received_sol = $6,
			sell_value_usd = $7,
			profit_usd = $8,
			profit_percent = $9,
			sell_market_cap = $10,
			market_cap_change = $11,
			sell_liquidity = $12,
			liquidity_change = $13,
			rapid_dump = $14,
			sell_recommender_id = $15
		WHERE id = $1 AND is_simulation = $2
	`

	tag, err := r.db.Pool().Exec(ctx, query,
		trade.ID,
		trade.IsSimulation,
		trade.SellPrice,
		trade.SellTimestamp,
		trade.SellAmount,
		trade.ReceivedSol,
		trade.SellValueUsd,
		trade.ProfitUsd,
		trade.ProfitPercent,
		trade.SellMarketCap,
		trade.MarketCapChange,
		trade.SellLiquidity,
		trade.LiquidityChange,
		trade.RapidDump,
		trade.SellRecommenderID,
	)
	if err != nil {
		return apperrors.DatabaseError("TRADE_COMPLETE", "failed to complete trade", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFoundError("TRADE_NOT_FOUND",
			fmt.Sprintf("no trade %s in this ledger", trade.ID))
	}
	return nil
}

// ListByRecommender returns all trade rows attributed to a recommender in
// the requested ledger, newest buys first.
func (r *TradeRepository) ListByRecommender(ctx context.Context, recommenderID string, isSimulation bool) ([]*models.TradePerformance, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM trade_performance
		WHERE recommender_id = $1 AND is_simulation = $2
		ORDER BY buy_timestamp DESC
	`, tradeColumns)

	rows, err := r.db.Pool().Query(ctx, query, recommenderID, isSimulation)
	if err != nil {
		return nil, apperrors.DatabaseError("TRADE_LIST", "failed to list trades", err)
	}
	defer rows.Close()

	var result []*models.TradePerformance
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, apperrors.DatabaseError("TRADE_SCAN", "failed to scan trade", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.DatabaseError("TRADE_ROWS", "failed reading trades", err)
	}
	return result, nil
}
