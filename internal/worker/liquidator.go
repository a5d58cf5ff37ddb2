// Package worker runs the liquidation decision loop: a queue consumer for
// explicit sell instructions and a periodic scan over open positions.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trust-engine/internal/errors"
	"github.com/trust-engine/internal/logging"
	"github.com/trust-engine/internal/models"
	"github.com/trust-engine/internal/queue"
	"github.com/trust-engine/internal/score"
)

// PerformanceStore is the slice of the token performance repository the
// liquidator consumes.
type PerformanceStore interface {
	Get(ctx context.Context, tokenAddress string) (*models.TokenPerformance, error)
	ListWithBalance(ctx context.Context) ([]*models.TokenPerformance, error)
	UpdateBalance(ctx context.Context, tokenAddress string, balance float64) error
}

// TradeLedger finds and completes open trade rows in the sim/real ledgers.
type TradeLedger interface {
	LatestOpenTrade(ctx context.Context, tokenAddress string, isSimulation bool) (*models.TradePerformance, error)
	CompleteSell(ctx context.Context, trade *models.TradePerformance) error
}

// TransactionLedger appends immutable transaction rows.
type TransactionLedger interface {
	Append(ctx context.Context, tx *models.TokenTransaction) error
}

// Guard serializes liquidation per token.
type Guard interface {
	TryAcquire(ctx context.Context, tokenAddress string) (bool, error)
	Release(ctx context.Context, tokenAddress string) error
}

// MarketData supplies current prices and pair state for sell accounting.
type MarketData interface {
	FetchTokenTradeData(ctx context.Context, tokenAddress string) (*models.TokenTradeData, error)
	FetchDexListingData(ctx context.Context, tokenAddress string) (*models.DexListingData, error)
	FetchPrices(ctx context.Context) (*models.Prices, error)
}

// Scorer refreshes scores before a sell mutates the books.
type Scorer interface {
	ScoreToken(ctx context.Context, recommenderID, tokenAddress string) (*models.TokenPerformance, error)
}

// BackendSyncer pushes completed sells upstream.
type BackendSyncer interface {
	UpdateTradePerformance(ctx context.Context, trade *models.TradePerformance, balanceLeft float64) error
}

// ProcessStopper stops external monitoring for a fully liquidated token.
type ProcessStopper interface {
	StopProcess(ctx context.Context, tokenAddress string) error
}

// Consumer delivers sell instructions until the context is cancelled.
type Consumer interface {
	Consume(ctx context.Context, handler queue.Handler) error
}

// LiquidationService drives sell decisions from the instruction queue and
// the periodic position scan. Per-token state moves idle to running to idle,
// serialized by the guard on both paths.
type LiquidationService struct {
	consumer     Consumer
	market       MarketData
	scorer       Scorer
	perfStore    PerformanceStore
	tradeLedger  TradeLedger
	txLedger     TransactionLedger
	guard        Guard
	backend      BackendSyncer
	process      ProcessStopper
	scanInterval time.Duration
	isSimulation bool

	running bool
	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}

	now func() time.Time
}

// LiquidationServiceConfig holds configuration for the liquidation service
type LiquidationServiceConfig struct {
	Consumer     Consumer
	Market       MarketData
	Scorer       Scorer
	PerfStore    PerformanceStore
	TradeLedger  TradeLedger
	TxLedger     TransactionLedger
	Guard        Guard
	Backend      BackendSyncer
	Process      ProcessStopper
	ScanInterval time.Duration
	IsSimulation bool
}

// NewLiquidationService creates a new liquidation service
func NewLiquidationService(cfg *LiquidationServiceConfig) (*LiquidationService, error) {
	if cfg.Market == nil {
		return nil, fmt.Errorf("market data gateway cannot be nil")
	}
	if cfg.PerfStore == nil {
		return nil, fmt.Errorf("performance store cannot be nil")
	}
	if cfg.TradeLedger == nil {
		return nil, fmt.Errorf("trade ledger cannot be nil")
	}
	if cfg.Guard == nil {
		return nil, fmt.Errorf("running guard cannot be nil")
	}

	scanInterval := cfg.ScanInterval
	if scanInterval <= 0 {
		scanInterval = time.Minute
	}

	return &LiquidationService{
		consumer:     cfg.Consumer,
		market:       cfg.Market,
		scorer:       cfg.Scorer,
		perfStore:    cfg.PerfStore,
		tradeLedger:  cfg.TradeLedger,
		txLedger:     cfg.TxLedger,
		guard:        cfg.Guard,
		backend:      cfg.Backend,
		process:      cfg.Process,
		scanInterval: scanInterval,
		isSimulation: cfg.IsSimulation,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
		now:          time.Now,
	}, nil
}

// Start launches the scan loop and, when a consumer is configured, the queue
// consumer.
func (s *LiquidationService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("liquidation service is already running")
	}
	s.running = true
	s.mu.Unlock()

	logger := logging.FromContext(ctx)
	logger.WithField("scanInterval", s.scanInterval.String()).Info("Starting liquidation service")

	go s.scanLoop(ctx)

	if s.consumer != nil {
		go func() {
			if err := s.consumer.Consume(ctx, s.HandleInstruction); err != nil && ctx.Err() == nil {
				logger.WithError(err).Error("Sell instruction consumer exited")
			}
		}()
	}
	return nil
}

// Stop signals the scan loop and waits for it to drain.
func (s *LiquidationService) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("liquidation service is not running")
	}
	s.mu.Unlock()

	close(s.stopCh)

	select {
	case <-s.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

// scanLoop periodically walks every token with a positive balance and sells
// out of positions whose token has turned.
func (s *LiquidationService) scanLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.scanOnce(ctx)
		}
	}
}

// scanOnce evaluates all open positions. One bad token does not stop the
// pass.
func (s *LiquidationService) scanOnce(ctx context.Context) {
	logger := logging.FromContext(ctx)

	positions, err := s.perfStore.ListWithBalance(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to list open positions")
		return
	}

	for _, perf := range positions {
		if err := s.evaluatePosition(ctx, perf); err != nil {
			logger.WithError(err).WithField("tokenAddress", perf.TokenAddress).Error("Position evaluation failed")
		}
	}
}

// evaluatePosition liquidates the full balance when the token shows rug or
// dump behavior. Tokens already mid-liquidation are skipped.
func (s *LiquidationService) evaluatePosition(ctx context.Context, perf *models.TokenPerformance) error {
	logger := logging.FromContext(ctx).WithField("tokenAddress", perf.TokenAddress)

	tradeData, err := s.market.FetchTokenTradeData(ctx, perf.TokenAddress)
	if err != nil {
		return err
	}
	if !score.IsRapidDump(tradeData.Trade24hChangePercent) && !perf.RugPull {
		return nil
	}

	acquired, err := s.guard.TryAcquire(ctx, perf.TokenAddress)
	if err != nil {
		return err
	}
	if !acquired {
		logger.Debug("Token already mid-liquidation, skipping scan trigger")
		return nil
	}
	defer func() {
		if err := s.guard.Release(ctx, perf.TokenAddress); err != nil {
			logger.WithError(err).Warn("Failed to release running guard")
		}
	}()

	logger.WithField("balance", perf.Balance).Info("Scan triggered liquidation")
	_, err = s.ExecuteSellDecision(ctx, perf.TokenAddress, perf.Balance, nil)
	return err
}

// HandleInstruction processes one sell instruction from the queue. The
// instruction is already validated by the consumer.
func (s *LiquidationService) HandleInstruction(ctx context.Context, instruction *models.SellInstruction) error {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"tokenAddress": instruction.TokenAddress,
		"amount":       instruction.Amount,
	})

	acquired, err := s.guard.TryAcquire(ctx, instruction.TokenAddress)
	if err != nil {
		return err
	}
	if !acquired {
		logger.Warn("Token already mid-liquidation, dropping instruction")
		return nil
	}
	defer func() {
		if err := s.guard.Release(ctx, instruction.TokenAddress); err != nil {
			logger.WithError(err).Warn("Failed to release running guard")
		}
	}()

	_, err = s.ExecuteSellDecision(ctx, instruction.TokenAddress, instruction.Amount, instruction.SellRecommenderID)
	return err
}

// ExecuteSellDecision completes a sell against the latest open trade row in
// the active ledger. The amount is clamped to the held balance; scores are
// refreshed before the balance mutates; the completed row, the immutable
// transaction record, the backend sync, and the process stop follow in that
// order. Backend and process-control failures are logged, not returned.
func (s *LiquidationService) ExecuteSellDecision(ctx context.Context, tokenAddress string, amount float64, sellRecommenderID *string) (*models.TradePerformance, error) {
	logger := logging.FromContext(ctx).WithField("tokenAddress", tokenAddress)
	now := s.now()

	perf, err := s.perfStore.Get(ctx, tokenAddress)
	if err != nil {
		return nil, err
	}
	if perf.Balance <= 0 {
		return nil, errors.ValidationError("NO_BALANCE", "no balance held for token")
	}
	if amount > perf.Balance {
		logger.WithFields(map[string]interface{}{
			"requested": amount,
			"balance":   perf.Balance,
		}).Warn("Sell amount exceeds balance, clamping")
		amount = perf.Balance
	}

	trade, err := s.tradeLedger.LatestOpenTrade(ctx, tokenAddress, s.isSimulation)
	if err != nil {
		return nil, err
	}

	tradeData, err := s.market.FetchTokenTradeData(ctx, tokenAddress)
	if err != nil {
		return nil, err
	}
	listing, err := s.market.FetchDexListingData(ctx, tokenAddress)
	if err != nil {
		return nil, err
	}
	prices, err := s.market.FetchPrices(ctx)
	if err != nil {
		return nil, err
	}

	if s.scorer != nil {
		if _, err := s.scorer.ScoreToken(ctx, trade.RecommenderID, tokenAddress); err != nil {
			logger.WithError(err).Warn("Pre-sell scoring pass failed")
		}
	}

	newBalance := perf.Balance - amount
	if newBalance < 0 {
		newBalance = 0
	}
	if err := s.perfStore.UpdateBalance(ctx, tokenAddress, newBalance); err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	sellValueUsd := amount * tradeData.Price
	buyValueOnSold := amount * trade.BuyPrice

	trade.SellPrice = tradeData.Price
	trade.SellTimestamp = now
	trade.SellAmount = amount
	trade.SellValueUsd = sellValueUsd
	trade.ProfitUsd = sellValueUsd - buyValueOnSold
	if buyValueOnSold > 0 {
		trade.ProfitPercent = trade.ProfitUsd / buyValueOnSold * 100
	}
	if prices.Sol.Usd > 0 {
		trade.ReceivedSol = sellValueUsd / prices.Sol.Usd
	}
	if pair, err := listing.TopPair(); err == nil {
		trade.SellMarketCap = pair.MarketCap
		trade.SellLiquidity = pair.LiquidityUsd
		if trade.BuyMarketCap > 0 {
			trade.MarketCapChange = (pair.MarketCap - trade.BuyMarketCap) / trade.BuyMarketCap * 100
		}
		if trade.BuyLiquidity > 0 {
			trade.LiquidityChange = (pair.LiquidityUsd - trade.BuyLiquidity) / trade.BuyLiquidity * 100
		}
	}
	trade.RapidDump, _, _ = score.Classify(tradeData)
	trade.SellRecommenderID = sellRecommenderID
	trade.IsSimulation = s.isSimulation

	if err := s.tradeLedger.CompleteSell(ctx, trade); err != nil {
		return nil, fmt.Errorf("failed to complete sell: %w", err)
	}

	if s.txLedger != nil {
		tx := &models.TokenTransaction{
			ID:           uuid.NewString(),
			TokenAddress: tokenAddress,
			Type:         models.TransactionSell,
			Amount:       amount,
			Price:        tradeData.Price,
			ValueUsd:     sellValueUsd,
			IsSimulation: s.isSimulation,
			Timestamp:    now,
		}
		if err := s.txLedger.Append(ctx, tx); err != nil {
			logger.WithError(err).Error("Failed to append transaction record")
		}
	}

	if s.backend != nil {
		if err := s.backend.UpdateTradePerformance(ctx, trade, newBalance); err != nil {
			logger.WithError(err).Error("Backend updateTradePerformance failed, dropping sync")
		}
	}

	if newBalance == 0 && s.process != nil {
		if err := s.process.StopProcess(ctx, tokenAddress); err != nil {
			logger.WithError(err).Error("Process control stopProcess failed")
		}
	}

	logger.WithFields(map[string]interface{}{
		"amount":        amount,
		"sellPrice":     tradeData.Price,
		"profitUsd":     trade.ProfitUsd,
		"profitPercent": trade.ProfitPercent,
		"balanceLeft":   newBalance,
	}).Info("Sell completed")
	return trade, nil
}
