package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/trust-engine/internal/errors"
	"github.com/trust-engine/internal/models"
)

type fakeMarket struct {
	tradeData *models.TokenTradeData
	listing   *models.DexListingData
	prices    *models.Prices
}

func (f *fakeMarket) FetchTokenTradeData(ctx context.Context, tokenAddress string) (*models.TokenTradeData, error) {
	return f.tradeData, nil
}

func (f *fakeMarket) FetchDexListingData(ctx context.Context, tokenAddress string) (*models.DexListingData, error) {
	return f.listing, nil
}

func (f *fakeMarket) FetchPrices(ctx context.Context) (*models.Prices, error) {
	return f.prices, nil
}

type fakePerfStore struct {
	rows           map[string]*models.TokenPerformance
	balanceUpdates []float64
}

func newFakePerfStore() *fakePerfStore {
	return &fakePerfStore{rows: make(map[string]*models.TokenPerformance)}
}

func (f *fakePerfStore) Get(ctx context.Context, tokenAddress string) (*models.TokenPerformance, error) {
	perf, ok := f.rows[tokenAddress]
	if !ok {
		return nil, apperrors.NotFoundError("TOKEN_PERFORMANCE_NOT_FOUND", "no row")
	}
	cp := *perf
	return &cp, nil
}

func (f *fakePerfStore) ListWithBalance(ctx context.Context) ([]*models.TokenPerformance, error) {
	var out []*models.TokenPerformance
	for _, perf := range f.rows {
		if perf.Balance > 0 {
			cp := *perf
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakePerfStore) UpdateBalance(ctx context.Context, tokenAddress string, balance float64) error {
	perf, ok := f.rows[tokenAddress]
	if !ok {
		return apperrors.NotFoundError("TOKEN_PERFORMANCE_NOT_FOUND", "no row")
	}
	perf.Balance = balance
	f.balanceUpdates = append(f.balanceUpdates, balance)
	return nil
}

type fakeTradeLedger struct {
	open      *models.TradePerformance
	completed []*models.TradePerformance
}

func (f *fakeTradeLedger) LatestOpenTrade(ctx context.Context, tokenAddress string, isSimulation bool) (*models.TradePerformance, error) {
	if f.open == nil || f.open.IsSimulation != isSimulation {
		return nil, apperrors.NotFoundError("OPEN_TRADE_NOT_FOUND", "no open trade")
	}
	cp := *f.open
	return &cp, nil
}

func (f *fakeTradeLedger) CompleteSell(ctx context.Context, trade *models.TradePerformance) error {
	cp := *trade
	f.completed = append(f.completed, &cp)
	return nil
}

type fakeTxLedger struct {
	appended []*models.TokenTransaction
}

func (f *fakeTxLedger) Append(ctx context.Context, tx *models.TokenTransaction) error {
	cp := *tx
	f.appended = append(f.appended, &cp)
	return nil
}

type fakeGuard struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{held: make(map[string]bool)}
}

func (f *fakeGuard) TryAcquire(ctx context.Context, tokenAddress string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[tokenAddress] {
		return false, nil
	}
	f.held[tokenAddress] = true
	return true, nil
}

func (f *fakeGuard) Release(ctx context.Context, tokenAddress string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, tokenAddress)
	return nil
}

type fakeBackend struct {
	balances []float64
}

func (f *fakeBackend) UpdateTradePerformance(ctx context.Context, trade *models.TradePerformance, balanceLeft float64) error {
	f.balances = append(f.balances, balanceLeft)
	return nil
}

type fakeProcess struct {
	stopped []string
}

func (f *fakeProcess) StopProcess(ctx context.Context, tokenAddress string) error {
	f.stopped = append(f.stopped, tokenAddress)
	return nil
}

type liquidatorFixture struct {
	svc     *LiquidationService
	market  *fakeMarket
	perf    *fakePerfStore
	trades  *fakeTradeLedger
	txs     *fakeTxLedger
	guard   *fakeGuard
	backend *fakeBackend
	process *fakeProcess
}

func newLiquidatorFixture(t *testing.T) *liquidatorFixture {
	t.Helper()

	market := &fakeMarket{
		tradeData: &models.TokenTradeData{
			TokenAddress:          "0xtok",
			Price:                 2.5,
			Trade24hChangePercent: -10,
		},
		listing: &models.DexListingData{
			TokenAddress: "0xtok",
			Pairs: []models.DexPair{
				{PairAddress: "0xpair", LiquidityUsd: 8_000, MarketCap: 150_000},
			},
		},
		prices: &models.Prices{},
	}
	market.prices.Sol.Usd = 125.0

	perf := newFakePerfStore()
	perf.rows["0xtok"] = &models.TokenPerformance{TokenAddress: "0xtok", Balance: 8}

	trades := &fakeTradeLedger{
		open: &models.TradePerformance{
			ID:            "trade-1",
			TokenAddress:  "0xtok",
			RecommenderID: "rec-1",
			BuyPrice:      2.0,
			BuyAmount:     8,
			BuyTimestamp:  time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
			BuyMarketCap:  100_000,
			BuyLiquidity:  10_000,
			IsSimulation:  true,
		},
	}
	txs := &fakeTxLedger{}
	guard := newFakeGuard()
	backend := &fakeBackend{}
	process := &fakeProcess{}

	svc, err := NewLiquidationService(&LiquidationServiceConfig{
		Market:       market,
		PerfStore:    perf,
		TradeLedger:  trades,
		TxLedger:     txs,
		Guard:        guard,
		Backend:      backend,
		Process:      process,
		IsSimulation: true,
	})
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }

	return &liquidatorFixture{
		svc:     svc,
		market:  market,
		perf:    perf,
		trades:  trades,
		txs:     txs,
		guard:   guard,
		backend: backend,
		process: process,
	}
}

func TestExecuteSellDecision(t *testing.T) {
	ctx := context.Background()
	fx := newLiquidatorFixture(t)

	trade, err := fx.svc.ExecuteSellDecision(ctx, "0xtok", 5, nil)
	require.NoError(t, err)

	t.Run("profit on the sold amount", func(t *testing.T) {
		// 5 units bought at 2.0 sold at 2.5
		assert.InDelta(t, 12.5, trade.SellValueUsd, 1e-9)
		assert.InDelta(t, 2.5, trade.ProfitUsd, 1e-9)
		assert.InDelta(t, 25, trade.ProfitPercent, 1e-9)
		assert.InDelta(t, 0.1, trade.ReceivedSol, 1e-9)
	})

	t.Run("snapshot deltas vs buy", func(t *testing.T) {
		assert.InDelta(t, 50, trade.MarketCapChange, 1e-9)
		assert.InDelta(t, -20, trade.LiquidityChange, 1e-9)
	})

	t.Run("balance decremented once", func(t *testing.T) {
		assert.Equal(t, []float64{3}, fx.perf.balanceUpdates)
		perf, err := fx.perf.Get(ctx, "0xtok")
		require.NoError(t, err)
		assert.InDelta(t, 3, perf.Balance, 1e-9)
	})

	t.Run("completed row targets the same ledger", func(t *testing.T) {
		require.Len(t, fx.trades.completed, 1)
		assert.True(t, fx.trades.completed[0].IsSimulation)
		assert.False(t, fx.trades.completed[0].IsOpen())
	})

	t.Run("transaction record appended", func(t *testing.T) {
		require.Len(t, fx.txs.appended, 1)
		tx := fx.txs.appended[0]
		assert.Equal(t, models.TransactionSell, tx.Type)
		assert.InDelta(t, 5, tx.Amount, 1e-9)
		assert.InDelta(t, 12.5, tx.ValueUsd, 1e-9)
	})

	t.Run("backend receives remaining balance", func(t *testing.T) {
		assert.Equal(t, []float64{3}, fx.backend.balances)
	})

	t.Run("position still open, no process stop", func(t *testing.T) {
		assert.Empty(t, fx.process.stopped)
	})
}

func TestExecuteSellDecisionClampsToBalance(t *testing.T) {
	ctx := context.Background()
	fx := newLiquidatorFixture(t)

	trade, err := fx.svc.ExecuteSellDecision(ctx, "0xtok", 100, nil)
	require.NoError(t, err)

	assert.InDelta(t, 8, trade.SellAmount, 1e-9)
	assert.Equal(t, []float64{0}, fx.perf.balanceUpdates)
	assert.Equal(t, []string{"0xtok"}, fx.process.stopped)
}

func TestExecuteSellDecisionNoBalance(t *testing.T) {
	ctx := context.Background()
	fx := newLiquidatorFixture(t)
	fx.perf.rows["0xtok"].Balance = 0

	_, err := fx.svc.ExecuteSellDecision(ctx, "0xtok", 5, nil)
	require.Error(t, err)
	assert.Empty(t, fx.trades.completed)
}

func TestExecuteSellDecisionUnknownToken(t *testing.T) {
	ctx := context.Background()
	fx := newLiquidatorFixture(t)

	_, err := fx.svc.ExecuteSellDecision(ctx, "0xother", 5, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestHandleInstruction(t *testing.T) {
	ctx := context.Background()

	t.Run("executes the sell and releases the guard", func(t *testing.T) {
		fx := newLiquidatorFixture(t)
		recommender := "rec-2"

		err := fx.svc.HandleInstruction(ctx, &models.SellInstruction{
			TokenAddress:      "0xtok",
			Amount:            5,
			SellRecommenderID: &recommender,
		})
		require.NoError(t, err)

		require.Len(t, fx.trades.completed, 1)
		require.NotNil(t, fx.trades.completed[0].SellRecommenderID)
		assert.Equal(t, "rec-2", *fx.trades.completed[0].SellRecommenderID)

		acquired, err := fx.guard.TryAcquire(ctx, "0xtok")
		require.NoError(t, err)
		assert.True(t, acquired)
	})

	t.Run("skips a token already mid-liquidation", func(t *testing.T) {
		fx := newLiquidatorFixture(t)
		acquired, err := fx.guard.TryAcquire(ctx, "0xtok")
		require.NoError(t, err)
		require.True(t, acquired)

		err = fx.svc.HandleInstruction(ctx, &models.SellInstruction{TokenAddress: "0xtok", Amount: 5})
		require.NoError(t, err)
		assert.Empty(t, fx.trades.completed)
	})
}

func TestScanTriggersLiquidation(t *testing.T) {
	ctx := context.Background()
	fx := newLiquidatorFixture(t)

	t.Run("healthy token is left alone", func(t *testing.T) {
		fx.svc.scanOnce(ctx)
		assert.Empty(t, fx.trades.completed)
	})

	t.Run("rapid dump sells out the position", func(t *testing.T) {
		fx.market.tradeData.Trade24hChangePercent = -70

		fx.svc.scanOnce(ctx)

		require.Len(t, fx.trades.completed, 1)
		assert.InDelta(t, 8, fx.trades.completed[0].SellAmount, 1e-9)
		perf, err := fx.perf.Get(ctx, "0xtok")
		require.NoError(t, err)
		assert.Equal(t, 0.0, perf.Balance)
	})
}

func TestLiquidationServiceLifecycle(t *testing.T) {
	fx := newLiquidatorFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, fx.svc.Start(ctx))
	require.Error(t, fx.svc.Start(ctx))

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	require.NoError(t, fx.svc.Stop(stopCtx))
	require.Error(t, fx.svc.Stop(stopCtx))
}
