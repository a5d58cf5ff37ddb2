package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	apperrors "github.com/trust-engine/internal/errors"
	"github.com/trust-engine/internal/models"
)

// RecommenderMetricsRepository handles per-recommender aggregates and the
// immutable recommendation records
type RecommenderMetricsRepository struct {
	db *PostgresDB
}

// NewRecommenderMetricsRepository creates a new recommender metrics repository
func NewRecommenderMetricsRepository(db *PostgresDB) *RecommenderMetricsRepository {
	return &RecommenderMetricsRepository{db: db}
}

const recommenderMetricsColumns = `
	recommender_id, trust_score, total_recommendations, successful_recs,
	avg_token_performance, risk_score, consistency_score, virtual_confidence,
	last_active_date, trust_decay, last_updated
`

func scanRecommenderMetrics(row pgx.Row) (*models.RecommenderMetrics, error) {
	var m models.RecommenderMetrics
	err := row.Scan(
		&m.RecommenderID,
		&m.TrustScore,
		&m.TotalRecommendations,
		&m.SuccessfulRecs,
		&m.AvgTokenPerformance,
		&m.RiskScore,
		&m.ConsistencyScore,
		&m.VirtualConfidence,
		&m.LastActiveDate,
		&m.TrustDecay,
		&m.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Get retrieves the metrics row for a recommender
func (r *RecommenderMetricsRepository) Get(ctx context.Context, recommenderID string) (*models.RecommenderMetrics, error) {
	query := fmt.Sprintf(`SELECT %s FROM recommender_metrics WHERE recommender_id = $1`, recommenderMetricsColumns)

	m, err := scanRecommenderMetrics(r.db.Pool().QueryRow(ctx, query, recommenderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFoundError("RECOMMENDER_NOT_FOUND",
				fmt.Sprintf("no metrics for recommender %s", recommenderID))
		}
		return nil, apperrors.DatabaseError("RECOMMENDER_METRICS_GET", "failed to get recommender metrics", err)
	}
	return m, nil
}

// GetOrCreate fetches the metrics row for a recommender, lazily creating an
// empty one on the first recommendation.
func (r *RecommenderMetricsRepository) GetOrCreate(ctx context.Context, recommenderID string) (*models.RecommenderMetrics, error) {
	m, err := r.Get(ctx, recommenderID)
	if err == nil {
		return m, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	now := time.Now().UTC()
	m = &models.RecommenderMetrics{
		RecommenderID:  recommenderID,
		LastActiveDate: now,
		LastUpdated:    now,
	}

	query := `
		INSERT INTO recommender_metrics (
			recommender_id, trust_score, total_recommendations, successful_recs,
			avg_token_performance, risk_score, consistency_score, virtual_confidence,
			last_active_date, trust_decay, last_updated
		)
		VALUES ($1, 0, 0, 0, 0, 0, 0, 0, $2, 0, $2)
		ON CONFLICT (recommender_id) DO NOTHING
	`
	if _, err := r.db.Pool().Exec(ctx, query, recommenderID, now); err != nil {
		return nil, apperrors.DatabaseError("RECOMMENDER_METRICS_CREATE", "failed to create recommender metrics", err)
	}

	// Another writer may have won the insert race; read back the row either way.
	return r.Get(ctx, recommenderID)
}

// Update persists the full metrics row for a recommender
func (r *RecommenderMetricsRepository) Update(ctx context.Context, m *models.RecommenderMetrics) error {
	m.LastUpdated = time.Now().UTC()

	query := `
		UPDATE recommender_metrics SET
			trust_score = $2,
			total_recommendations = $3,
			successful_recs = $4,
			avg_token_performance = $5,
			risk_score = $6,
			consistency_score = $7,
			virtual_confidence = $8,
			last_active_date = $9,
			trust_decay = $10,
			last_updated = $11
		WHERE recommender_id = $1
	`

	tag, err := r.db.Pool().Exec(ctx, query,
		m.RecommenderID,
		m.TrustScore,
		m.TotalRecommendations,
		m.SuccessfulRecs,
		m.AvgTokenPerformance,
		m.RiskScore,
		m.ConsistencyScore,
		m.VirtualConfidence,
		m.LastActiveDate,
		m.TrustDecay,
		m.LastUpdated,
	)
	if err != nil {
		return apperrors.DatabaseError("RECOMMENDER_METRICS_UPDATE", "failed to update recommender metrics", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFoundError("RECOMMENDER_NOT_FOUND",
			fmt.Sprintf("no metrics for recommender %s", m.RecommenderID))
	}
	return nil
}

// InsertRecommendation writes one immutable recommendation record
func (r *RecommenderMetricsRepository) InsertRecommendation(ctx context.Context, rec *models.TokenRecommendation) error {
	query := `
		INSERT INTO token_recommendations (
			id, recommender_id, token_address, created_at,
			initial_market_cap, initial_liquidity, initial_price
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		rec.ID,
		rec.RecommenderID,
		rec.TokenAddress,
		rec.Timestamp,
		rec.InitialMarketCap,
		rec.InitialLiquidity,
		rec.InitialPrice,
	)
	if err != nil {
		return apperrors.DatabaseError("RECOMMENDATION_INSERT", "failed to insert recommendation", err)
	}
	return nil
}

// ListRecommendations returns the recommendations made by a recommender,
// newest first.
func (r *RecommenderMetricsRepository) ListRecommendations(ctx context.Context, recommenderID string) ([]*models.TokenRecommendation, error) {
	query := `
		SELECT id, recommender_id, token_address, created_at,
			   initial_market_cap, initial_liquidity, initial_price
		FROM token_recommendations
		WHERE recommender_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, recommenderID)
	if err != nil {
		return nil, apperrors.DatabaseError("RECOMMENDATION_LIST", "failed to list recommendations", err)
	}
	defer rows.Close()

	var result []*models.TokenRecommendation
	for rows.Next() {
		var rec models.TokenRecommendation
		if err := rows.Scan(
			&rec.ID,
			&rec.RecommenderID,
			&rec.TokenAddress,
			&rec.Timestamp,
			&rec.InitialMarketCap,
			&rec.InitialLiquidity,
			&rec.InitialPrice,
		); err != nil {
			return nil, apperrors.DatabaseError("RECOMMENDATION_SCAN", "failed to scan recommendation", err)
		}
		result = append(result, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.DatabaseError("RECOMMENDATION_ROWS", "failed reading recommendations", err)
	}
	return result, nil
}
