package storage

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/trust-engine/internal/errors"
	"github.com/trust-engine/internal/models"
)

// TransactionRepository appends immutable buy/sell records to the ClickHouse
// transaction ledger. Rows are write-once; the table has no update path.
type TransactionRepository struct {
	db *ClickHouseDB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *ClickHouseDB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Append inserts one transaction record
func (r *TransactionRepository) Append(ctx context.Context, tx *models.TokenTransaction) error {
	tx.TokenAddress = strings.ToLower(tx.TokenAddress)
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO token_transactions (
			id, token_address, transaction_hash, type, amount,
			price, value_usd, is_simulation, timestamp
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := r.db.Conn().Exec(ctx, query,
		tx.ID,
		tx.TokenAddress,
		tx.TransactionHash,
		string(tx.Type),
		tx.Amount,
		tx.Price,
		tx.ValueUsd,
		tx.IsSimulation,
		tx.Timestamp,
	)
	if err != nil {
		return apperrors.DatabaseError("TRANSACTION_APPEND", "failed to append transaction", err)
	}
	return nil
}

// ListByToken returns the transaction history for a token, oldest first
func (r *TransactionRepository) ListByToken(ctx context.Context, tokenAddress string) ([]*models.TokenTransaction, error) {
	query := `
		SELECT id, token_address, transaction_hash, type, amount,
			   price, value_usd, is_simulation, timestamp
		FROM token_transactions
		WHERE token_address = ?
		ORDER BY timestamp
	`

	rows, err := r.db.Conn().Query(ctx, query, strings.ToLower(tokenAddress))
	if err != nil {
		return nil, apperrors.DatabaseError("TRANSACTION_LIST", "failed to list transactions", err)
	}
	defer rows.Close()

	var result []*models.TokenTransaction
	for rows.Next() {
		var tx models.TokenTransaction
		var txType string
		if err := rows.Scan(
			&tx.ID,
			&tx.TokenAddress,
			&tx.TransactionHash,
			&txType,
			&tx.Amount,
			&tx.Price,
			&tx.ValueUsd,
			&tx.IsSimulation,
			&tx.Timestamp,
		); err != nil {
			return nil, apperrors.DatabaseError("TRANSACTION_SCAN", "failed to scan transaction", err)
		}
		tx.Type = models.TransactionType(txType)
		result = append(result, &tx)
	}
	return result, nil
}
