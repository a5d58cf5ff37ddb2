package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trust-engine/internal/adapter"
	"github.com/trust-engine/internal/models"
	"github.com/trust-engine/internal/retry"
	"github.com/trust-engine/internal/storage"
)

func writeVendorData(t *testing.T, w http.ResponseWriter, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"success":true,"data":%s}`, raw)
}

// newTestGateway wires a gateway to an httptest vendor with an in-memory
// cache and millisecond retry delays.
func newTestGateway(t *testing.T, vendorHandler http.HandlerFunc) (*MarketDataGateway, storage.Cache) {
	t.Helper()
	srv := httptest.NewServer(vendorHandler)
	t.Cleanup(srv.Close)

	cache := storage.Layered(storage.NewMemoryCache(), storage.NewMemoryCache(), time.Minute, time.Minute)
	vendor := adapter.NewVendorClient("test-key", srv.URL, 10_000)
	dex := adapter.NewDexClient(srv.URL)
	g := NewMarketDataGateway(vendor, dex, cache)
	g.retryCfg = retry.FixedDelayConfig(3, time.Millisecond)
	return g, cache
}

func TestGatewayCacheReadThrough(t *testing.T) {
	ctx := context.Background()
	calls := 0
	g, cache := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeVendorData(t, w, models.TokenTradeData{Symbol: "TOK", Price: 2.0, Volume24hUsd: 50_000})
	})

	first, err := g.FetchTokenTradeData(ctx, "0xtok")
	require.NoError(t, err)
	assert.Equal(t, 2.0, first.Price)
	assert.Equal(t, "0xtok", first.TokenAddress)
	require.Equal(t, 1, calls)

	t.Run("second read is served from cache", func(t *testing.T) {
		second, err := g.FetchTokenTradeData(ctx, "0xtok")
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, calls)
	})

	t.Run("fetch writes through to the cache", func(t *testing.T) {
		var cached models.TokenTradeData
		found, err := cache.Get(ctx, storage.CacheKey("trade", "0xtok"), &cached)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "TOK", cached.Symbol)
	})
}

func TestGatewayRetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	calls := 0
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "vendor hiccup", http.StatusInternalServerError)
			return
		}
		writeVendorData(t, w, models.TokenSecurityData{Top10HolderPercent: 0.2})
	})

	security, err := g.FetchTokenSecurity(ctx, "0xtok")
	require.NoError(t, err)
	assert.Equal(t, 0.2, security.Top10HolderPercent)
	assert.Equal(t, 3, calls)
}

func TestGatewayFetchFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	calls := 0
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "vendor down", http.StatusInternalServerError)
	})

	_, err := g.FetchTokenSecurity(ctx, "0xtok")
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func holderPageHandler(t *testing.T, pages map[int]int, requests *[]int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
		require.NoError(t, err)
		*requests = append(*requests, offset)

		n := pages[offset]
		items := make([]models.HolderData, n)
		for i := range items {
			items[i] = models.HolderData{Address: fmt.Sprintf("holder-%d", offset+i), Balance: "1"}
		}
		writeVendorData(t, w, map[string]interface{}{"items": items})
	}
}

func TestFetchHolderList(t *testing.T) {
	ctx := context.Background()

	t.Run("short page ends the walk", func(t *testing.T) {
		var requests []int
		pages := map[int]int{0: adapter.HolderPageSize, adapter.HolderPageSize: 40}
		g, _ := newTestGateway(t, holderPageHandler(t, pages, &requests))

		holders, err := g.FetchHolderList(ctx, "0xtok")
		require.NoError(t, err)
		assert.Len(t, holders, adapter.HolderPageSize+40)
		assert.Equal(t, []int{0, adapter.HolderPageSize}, requests)
	})

	t.Run("page cap bounds the walk", func(t *testing.T) {
		var requests []int
		pages := make(map[int]int)
		for p := 0; p < adapter.MaxHolderPages+5; p++ {
			pages[p*adapter.HolderPageSize] = adapter.HolderPageSize
		}
		g, _ := newTestGateway(t, holderPageHandler(t, pages, &requests))

		holders, err := g.FetchHolderList(ctx, "0xtok")
		require.NoError(t, err)
		assert.Len(t, holders, adapter.MaxHolderPages*adapter.HolderPageSize)
		assert.Len(t, requests, adapter.MaxHolderPages)
	})

	t.Run("holder list is cached", func(t *testing.T) {
		var requests []int
		pages := map[int]int{0: 3}
		g, _ := newTestGateway(t, holderPageHandler(t, pages, &requests))

		first, err := g.FetchHolderList(ctx, "0xtok")
		require.NoError(t, err)
		require.Len(t, first, 3)

		second, err := g.FetchHolderList(ctx, "0xtok")
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Len(t, requests, 1)
	})
}
