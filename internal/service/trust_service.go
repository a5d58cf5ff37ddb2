package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trust-engine/internal/errors"
	"github.com/trust-engine/internal/logging"
	"github.com/trust-engine/internal/models"
	"github.com/trust-engine/internal/score"
)

// Buy tier selection by decayed trust. Cold or low-trust recommenders get
// the small tier.
const (
	MediumTierMinTrust = 20.0
	HighTierMinTrust   = 50.0
)

// MarketData is the slice of the gateway the trust service consumes.
type MarketData interface {
	FetchTokenSecurity(ctx context.Context, tokenAddress string) (*models.TokenSecurityData, error)
	FetchTokenTradeData(ctx context.Context, tokenAddress string) (*models.TokenTradeData, error)
	FetchDexListingData(ctx context.Context, tokenAddress string) (*models.DexListingData, error)
	FetchPrices(ctx context.Context) (*models.Prices, error)
}

// TokenPerformanceStore persists per-token scoring snapshots.
type TokenPerformanceStore interface {
	Upsert(ctx context.Context, perf *models.TokenPerformance) error
	Get(ctx context.Context, tokenAddress string) (*models.TokenPerformance, error)
	UpdateBalance(ctx context.Context, tokenAddress string, balance float64) error
}

// RecommenderMetricsStore persists recommender aggregates and the immutable
// recommendation log.
type RecommenderMetricsStore interface {
	Get(ctx context.Context, recommenderID string) (*models.RecommenderMetrics, error)
	GetOrCreate(ctx context.Context, recommenderID string) (*models.RecommenderMetrics, error)
	Update(ctx context.Context, m *models.RecommenderMetrics) error
	InsertRecommendation(ctx context.Context, rec *models.TokenRecommendation) error
}

// TradeStore books buy rows into the sim/real trade ledgers.
type TradeStore interface {
	AddBuy(ctx context.Context, trade *models.TradePerformance) error
}

// BackendNotifier pushes trade events to the upstream backend.
type BackendNotifier interface {
	CreateTradePerformance(ctx context.Context, trade *models.TradePerformance) error
}

// ProcessStarter asks the external process controller to begin monitoring a
// token position.
type ProcessStarter interface {
	StartProcess(ctx context.Context, tokenAddress string, balance float64, isSimulation bool, initialMarketCap float64, sellRecommenderID *string) error
}

// StakeReader reads a recommender's on-chain stake balance.
type StakeReader interface {
	GetStakeBalance(ctx context.Context, stakeAddress string) (float64, error)
}

// TrustService records recommendations, runs scoring passes, and formats
// trust reports.
type TrustService struct {
	market       MarketData
	perfStore    TokenPerformanceStore
	metricsStore RecommenderMetricsStore
	tradeStore   TradeStore
	backend      BackendNotifier
	process      ProcessStarter
	chain        StakeReader
	isSimulation bool

	now func() time.Time
}

// NewTrustService creates a new trust service
func NewTrustService(market MarketData, perfStore TokenPerformanceStore, metricsStore RecommenderMetricsStore, tradeStore TradeStore, backend BackendNotifier, process ProcessStarter, chain StakeReader, isSimulation bool) *TrustService {
	return &TrustService{
		market:       market,
		perfStore:    perfStore,
		metricsStore: metricsStore,
		tradeStore:   tradeStore,
		backend:      backend,
		process:      process,
		chain:        chain,
		isSimulation: isSimulation,
		now:          time.Now,
	}
}

// RecordRecommendation registers a recommender's call on a token: it creates
// the metrics row if needed, appends the immutable recommendation, books the
// buy into the active ledger, and notifies the backend and the process
// controller. Backend and process-control failures are logged, not returned;
// the local books are the source of truth.
func (s *TrustService) RecordRecommendation(ctx context.Context, recommenderID, tokenAddress string) (*models.TokenRecommendation, error) {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"recommenderId": recommenderID,
		"tokenAddress":  tokenAddress,
	})
	now := s.now()

	metrics, err := s.metricsStore.GetOrCreate(ctx, recommenderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load recommender metrics: %w", err)
	}

	tradeData, err := s.market.FetchTokenTradeData(ctx, tokenAddress)
	if err != nil {
		return nil, err
	}
	security, err := s.market.FetchTokenSecurity(ctx, tokenAddress)
	if err != nil {
		return nil, err
	}
	listing, err := s.market.FetchDexListingData(ctx, tokenAddress)
	if err != nil {
		return nil, err
	}
	pair, err := listing.TopPair()
	if err != nil {
		return nil, errors.ValidationError("NO_TRADING_PAIR", "no trading pair for recommended token")
	}
	prices, err := s.market.FetchPrices(ctx)
	if err != nil {
		return nil, err
	}

	rec := &models.TokenRecommendation{
		ID:               uuid.NewString(),
		RecommenderID:    recommenderID,
		TokenAddress:     tokenAddress,
		Timestamp:        now,
		InitialMarketCap: pair.MarketCap,
		InitialLiquidity: pair.LiquidityUsd,
		InitialPrice:     tradeData.Price,
	}
	if err := s.metricsStore.InsertRecommendation(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to insert recommendation: %w", err)
	}

	flags := RedFlagInput{
		Top10HolderPercent:    security.Top10HolderPercent,
		Volume24hUsd:          tradeData.Volume24hUsd,
		PriceChange24hPercent: tradeData.PriceChange24hPercent,
		PriceChange12hPercent: tradeData.PriceChange12hPercent,
		UniqueWallet24hChange: tradeData.UniqueWallet24hChange,
		LiquidityUsd:          pair.LiquidityUsd,
		MarketCap:             pair.MarketCap,
	}
	if HasTradingRedFlags(flags) {
		logger.Info("Token tripped a trading red flag, recommendation recorded without a trade")
		s.touchMetrics(ctx, metrics, now)
		return rec, nil
	}

	amounts := ComputeBuyAmounts(pair.LiquidityUsd, pair.MarketCap, prices.Sol.Usd)
	buyAmount := s.pickBuyTier(metrics, amounts)
	if buyAmount <= 0 {
		logger.Info("Buy amount gated to zero, recommendation recorded without a trade")
		s.touchMetrics(ctx, metrics, now)
		return rec, nil
	}

	perf := buildPerformance(tradeData, pair, now)
	if existing, err := s.perfStore.Get(ctx, tokenAddress); err == nil {
		perf.Balance = existing.Balance
		perf.InitialMarketCap = existing.InitialMarketCap
		perf.RugPull = existing.RugPull
		perf.IsScam = existing.IsScam
		perf.ValidationTrust = existing.ValidationTrust
	} else if !errors.IsNotFound(err) {
		return nil, err
	} else {
		perf.InitialMarketCap = pair.MarketCap
	}
	perf.Balance += buyAmount
	if err := s.perfStore.Upsert(ctx, perf); err != nil {
		return nil, fmt.Errorf("failed to upsert token performance: %w", err)
	}

	trade := &models.TradePerformance{
		ID:            uuid.NewString(),
		TokenAddress:  tokenAddress,
		RecommenderID: recommenderID,
		BuyPrice:      tradeData.Price,
		BuyTimestamp:  now,
		BuyAmount:     buyAmount,
		BuySol:        buyAmount * tradeData.Price / prices.Sol.Usd,
		BuyValueUsd:   buyAmount * tradeData.Price,
		BuyMarketCap:  pair.MarketCap,
		BuyLiquidity:  pair.LiquidityUsd,
		IsSimulation:  s.isSimulation,
	}
	if err := s.tradeStore.AddBuy(ctx, trade); err != nil {
		return nil, fmt.Errorf("failed to book buy: %w", err)
	}

	if err := s.backend.CreateTradePerformance(ctx, trade); err != nil {
		logger.WithError(err).Error("Backend createTradePerformance failed")
	}
	if err := s.process.StartProcess(ctx, tokenAddress, perf.Balance, s.isSimulation, perf.InitialMarketCap, nil); err != nil {
		logger.WithError(err).Error("Process control startProcess failed")
	}

	s.touchMetrics(ctx, metrics, now)
	logger.WithField("buyAmount", buyAmount).Info("Recommendation recorded")
	return rec, nil
}

// pickBuyTier maps decayed trust to a buy tier.
func (s *TrustService) pickBuyTier(metrics *models.RecommenderMetrics, amounts models.BuyAmounts) float64 {
	trust := score.DecayedTrust(metrics, s.now())
	switch {
	case trust >= HighTierMinTrust:
		return amounts.High
	case trust >= MediumTierMinTrust:
		return amounts.Medium
	default:
		return amounts.Low
	}
}

// touchMetrics bumps the recommendation counters and activity timestamp.
// Failures here are logged; the recommendation itself is already durable.
func (s *TrustService) touchMetrics(ctx context.Context, metrics *models.RecommenderMetrics, now time.Time) {
	metrics.TotalRecommendations++
	metrics.LastActiveDate = now
	metrics.LastUpdated = now
	if err := s.metricsStore.Update(ctx, metrics); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("recommenderId", metrics.RecommenderID).Error("Failed to update recommender metrics")
	}
}

// ScoreToken runs a full scoring pass for a token: fetch vendor data,
// classify, persist the performance snapshot, and fold the result into the
// recommender's aggregate metrics.
func (s *TrustService) ScoreToken(ctx context.Context, recommenderID, tokenAddress string) (*models.TokenPerformance, error) {
	now := s.now()

	tradeData, err := s.market.FetchTokenTradeData(ctx, tokenAddress)
	if err != nil {
		return nil, err
	}
	security, err := s.market.FetchTokenSecurity(ctx, tokenAddress)
	if err != nil {
		return nil, err
	}
	listing, err := s.market.FetchDexListingData(ctx, tokenAddress)
	if err != nil {
		return nil, err
	}

	var pair *models.DexPair
	if p, err := listing.TopPair(); err == nil {
		pair = p
	}

	perf := buildPerformance(tradeData, pair, now)
	perf.IsScam = security.Top10HolderPercent >= MaxTop10HolderPercent

	if existing, err := s.perfStore.Get(ctx, tokenAddress); err == nil {
		perf.Balance = existing.Balance
		perf.InitialMarketCap = existing.InitialMarketCap
		perf.RugPull = existing.RugPull
		perf.ValidationTrust = existing.ValidationTrust
	} else if !errors.IsNotFound(err) {
		return nil, err
	}
	if pair != nil && perf.InitialMarketCap > 0 {
		perf.MarketCapChange = (pair.MarketCap - perf.InitialMarketCap) / perf.InitialMarketCap * 100
		// A drained pair after launch is treated as a rug.
		if pair.LiquidityUsd == 0 {
			perf.RugPull = true
		}
	}

	if err := s.perfStore.Upsert(ctx, perf); err != nil {
		return nil, fmt.Errorf("failed to upsert token performance: %w", err)
	}
	if err := s.UpdateRecommenderMetrics(ctx, recommenderID, perf); err != nil {
		return nil, err
	}
	return perf, nil
}

// buildPerformance maps vendor data into a performance snapshot with the
// pure classifiers applied.
func buildPerformance(tradeData *models.TokenTradeData, pair *models.DexPair, now time.Time) *models.TokenPerformance {
	rapidDump, sustainedGrowth, suspiciousVolume := score.Classify(tradeData)
	perf := &models.TokenPerformance{
		TokenAddress:     tradeData.TokenAddress,
		Symbol:           tradeData.Symbol,
		PriceChange24h:   tradeData.PriceChange24hPercent,
		VolumeChange24h:  tradeData.VolumeChange24hPercent,
		TradeChange24h:   tradeData.Trade24hChangePercent,
		HolderChange24h:  tradeData.HolderChange24hPercent,
		RapidDump:        rapidDump,
		SustainedGrowth:  sustainedGrowth,
		SuspiciousVolume: suspiciousVolume,
		LastUpdated:      now,
	}
	if pair != nil {
		perf.Liquidity = pair.LiquidityUsd
	}
	return perf
}

// UpdateRecommenderMetrics folds one scored token performance into the
// recommender's aggregates: running means for trust and token performance,
// success counting on positive performance, decay bookkeeping, and the
// on-chain virtual confidence refresh.
func (s *TrustService) UpdateRecommenderMetrics(ctx context.Context, recommenderID string, perf *models.TokenPerformance) error {
	logger := logging.FromContext(ctx).WithField("recommenderId", recommenderID)
	now := s.now()

	metrics, err := s.metricsStore.GetOrCreate(ctx, recommenderID)
	if err != nil {
		return fmt.Errorf("failed to load recommender metrics: %w", err)
	}

	metrics.RiskScore = score.RiskScore(perf)
	metrics.ConsistencyScore = score.ConsistencyScore(perf, metrics)
	instant := score.TrustScore(perf, metrics)

	n := float64(metrics.TotalRecommendations)
	if n <= 0 {
		n = 1
	}
	metrics.TrustScore = (metrics.TrustScore*(n-1) + instant) / n
	metrics.AvgTokenPerformance = (metrics.AvgTokenPerformance*(n-1) + perf.PriceChange24h) / n
	if perf.PriceChange24h > 0 {
		metrics.SuccessfulRecs++
	}

	if stake, err := s.chain.GetStakeBalance(ctx, recommenderID); err != nil {
		logger.WithError(err).Warn("Stake balance lookup failed, keeping previous virtual confidence")
	} else {
		metrics.VirtualConfidence = stake
	}

	metrics.TrustDecay = score.DecayFactor(metrics.LastActiveDate, now)
	metrics.LastActiveDate = now
	metrics.LastUpdated = now

	if err := s.metricsStore.Update(ctx, metrics); err != nil {
		return fmt.Errorf("failed to update recommender metrics: %w", err)
	}
	logger.WithFields(map[string]interface{}{
		"trustScore":       metrics.TrustScore,
		"riskScore":        metrics.RiskScore,
		"consistencyScore": metrics.ConsistencyScore,
	}).Debug("Recommender metrics updated")
	return nil
}

// DecayedTrustScore returns the recommender's current trust with time decay
// applied. The stored score is never mutated by decay.
func (s *TrustService) DecayedTrustScore(ctx context.Context, recommenderID string) (float64, error) {
	metrics, err := s.metricsStore.Get(ctx, recommenderID)
	if err != nil {
		return 0, err
	}
	return score.DecayedTrust(metrics, s.now()), nil
}

// FormatTrustReport renders a human-readable trust summary. It never returns
// an error: any internal failure yields an explanatory string instead.
func (s *TrustService) FormatTrustReport(ctx context.Context, recommenderID string) string {
	metrics, err := s.metricsStore.Get(ctx, recommenderID)
	if err != nil {
		if errors.IsNotFound(err) {
			return fmt.Sprintf("No trust data recorded for recommender %s.", recommenderID)
		}
		logging.FromContext(ctx).WithError(err).WithField("recommenderId", recommenderID).Error("Trust report lookup failed")
		return "Trust report is temporarily unavailable."
	}

	decayed := score.DecayedTrust(metrics, s.now())
	successRate := 0.0
	if metrics.TotalRecommendations > 0 {
		successRate = float64(metrics.SuccessfulRecs) / float64(metrics.TotalRecommendations) * 100
	}
	return fmt.Sprintf(
		"Recommender %s: trust %.2f (decayed %.2f), risk %.2f, consistency %.2f, %d recommendations (%.0f%% successful), avg token performance %.2f%%, virtual confidence %.2f, last active %s.",
		recommenderID,
		metrics.TrustScore,
		decayed,
		metrics.RiskScore,
		metrics.ConsistencyScore,
		metrics.TotalRecommendations,
		successRate,
		metrics.AvgTokenPerformance,
		metrics.VirtualConfidence,
		metrics.LastActiveDate.Format("2006-01-02"),
	)
}
