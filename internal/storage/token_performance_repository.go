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

// TokenPerformanceRepository handles per-token scoring snapshots
type TokenPerformanceRepository struct {
	db *PostgresDB
}

// NewTokenPerformanceRepository creates a new token performance repository
func NewTokenPerformanceRepository(db *PostgresDB) *TokenPerformanceRepository {
	return &TokenPerformanceRepository{db: db}
}

// Upsert writes the scoring snapshot for a token, overwriting any previous
// row for the address.
func (r *TokenPerformanceRepository) Upsert(ctx context.Context, perf *models.TokenPerformance) error {
	perf.TokenAddress = strings.ToLower(perf.TokenAddress)
	if perf.LastUpdated.IsZero() {
		perf.LastUpdated = time.Now().UTC()
	}

	query := `
		INSERT INTO token_performance (
			token_address, symbol, price_change_24h, volume_change_24h, trade_change_24h,
			liquidity, liquidity_change_24h, holder_change_24h, rug_pull, is_scam,
			market_cap_change_24h, sustained_growth, rapid_dump, suspicious_volume,
			validation_trust, balance, initial_market_cap, last_updated
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (token_address) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			price_change_24h = EXCLUDED.price_change_24h,
			volume_change_24h = EXCLUDED.volume_change_24h,
			trade_change_24h = EXCLUDED.trade_change_24h,
			liquidity = EXCLUDED.liquidity,
			liquidity_change_24h = EXCLUDED.liquidity_change_24h,
			holder_change_24h = EXCLUDED.holder_change_24h,
			rug_pull = EXCLUDED.rug_pull,
			is_scam = EXCLUDED.is_scam,
			market_cap_change_24h = EXCLUDED.market_cap_change_24h,
			sustained_growth = EXCLUDED.sustained_growth,
			rapid_dump = EXCLUDED.rapid_dump,
			suspicious_volume = EXCLUDED.suspicious_volume,
			validation_trust = EXCLUDED.validation_trust,
			balance = EXCLUDED.balance,
			initial_market_cap = EXCLUDED.initial_market_cap,
			last_updated = EXCLUDED.last_updated
	`

	_, err := r.db.Pool().Exec(ctx, query,
		perf.TokenAddress,
		perf.Symbol,
		perf.PriceChange24h,
		perf.VolumeChange24h,
		perf.TradeChange24h,
		perf.Liquidity,
		perf.LiquidityChange,
		perf.HolderChange24h,
		perf.RugPull,
		perf.IsScam,
		perf.MarketCapChange,
		perf.SustainedGrowth,
		perf.RapidDump,
		perf.SuspiciousVolume,
		perf.ValidationTrust,
		perf.Balance,
		perf.InitialMarketCap,
		perf.LastUpdated,
	)
	if err != nil {
		return apperrors.DatabaseError("TOKEN_PERFORMANCE_UPSERT", "failed to upsert token performance", err)
	}
	return nil
}

const tokenPerformanceColumns = `
	token_address, symbol, price_change_24h, volume_change_24h, trade_change_24h,
	liquidity, liquidity_change_24h, holder_change_24h, rug_pull, is_scam,
	market_cap_change_24h, sustained_growth, rapid_dump, suspicious_volume,
	validation_trust, balance, initial_market_cap, last_updated
`

func scanTokenPerformance(row pgx.Row) (*models.TokenPerformance, error) {
	var perf models.TokenPerformance
	err := row.Scan(
		&perf.TokenAddress,
		&perf.Symbol,
		&perf.PriceChange24h,
		&perf.VolumeChange24h,
		&perf.TradeChange24h,
		&perf.Liquidity,
		&perf.LiquidityChange,
		&perf.HolderChange24h,
		&perf.RugPull,
		&perf.IsScam,
		&perf.MarketCapChange,
		&perf.SustainedGrowth,
		&perf.RapidDump,
		&perf.SuspiciousVolume,
		&perf.ValidationTrust,
		&perf.Balance,
		&perf.InitialMarketCap,
		&perf.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	return &perf, nil
}

// Get retrieves the scoring snapshot for a token address
func (r *TokenPerformanceRepository) Get(ctx context.Context, tokenAddress string) (*models.TokenPerformance, error) {
	query := fmt.Sprintf(`SELECT %s FROM token_performance WHERE token_address = $1`, tokenPerformanceColumns)

	perf, err := scanTokenPerformance(r.db.Pool().QueryRow(ctx, query, strings.ToLower(tokenAddress)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFoundError("TOKEN_PERFORMANCE_NOT_FOUND",
				fmt.Sprintf("no performance row for token %s", tokenAddress))
		}
		return nil, apperrors.DatabaseError("TOKEN_PERFORMANCE_GET", "failed to get token performance", err)
	}
	return perf, nil
}

// ListWithBalance returns every token holding a nonzero simulated balance.
// The periodic liquidation scan iterates this set.
func (r *TokenPerformanceRepository) ListWithBalance(ctx context.Context) ([]*models.TokenPerformance, error) {
	query := fmt.Sprintf(`SELECT %s FROM token_performance WHERE balance > 0 ORDER BY last_updated`, tokenPerformanceColumns)

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, apperrors.DatabaseError("TOKEN_PERFORMANCE_LIST", "failed to list token performances", err)
	}
	defer rows.Close()

	var result []*models.TokenPerformance
	for rows.Next() {
		perf, err := scanTokenPerformance(rows)
		if err != nil {
			return nil, apperrors.DatabaseError("TOKEN_PERFORMANCE_SCAN", "failed to scan token performance", err)
		}
		result = append(result, perf)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.DatabaseError("TOKEN_PERFORMANCE_ROWS", "failed reading token performances", err)
	}
	return result, nil
}

// UpdateBalance persists a new balance for the token. The balance is clamped
// at zero at the call site; the store never accepts a negative value.
func (r *TokenPerformanceRepository) UpdateBalance(ctx context.Context, tokenAddress string, balance float64) error {
	if balance < 0 {
		return apperrors.ValidationError("NEGATIVE_BALANCE", "token balance must not be negative")
	}

	tag, err := r.db.Pool().Exec(ctx,
		`UPDATE token_performance SET balance = $2, last_updated = $3 WHERE token_address = $1`,
		strings.ToLower(tokenAddress), balance, time.Now().UTC())
	if err != nil {
		return apperrors.DatabaseError("TOKEN_BALANCE_UPDATE", "failed to update token balance", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFoundError("TOKEN_PERFORMANCE_NOT_FOUND",
			fmt.Sprintf("no performance row for token %s", tokenAddress))
	}
	return nil
}
