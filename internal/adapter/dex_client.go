package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/trust-engine/internal/models"
)

// DexClient fetches pair listings from the DEX aggregator vendor.
type DexClient struct {
	baseURL string
	client  *http.Client
}

// NewDexClient creates a new DEX listings client
func NewDexClient(baseURL string) *DexClient {
	return &DexClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// dexPairPayload mirrors the aggregator's pair shape; liquidity and market
// cap arrive nested or as strings depending on the pair age.
type dexPairPayload struct {
	PairAddress string `json:"pairAddress"`
	DexID       string `json:"dexId"`
	BaseToken   struct {
		Symbol string `json:"symbol"`
	} `json:"baseToken"`
	QuoteToken struct {
		Symbol string `json:"symbol"`
	} `json:"quoteToken"`
	PriceUsd  string `json:"priceUsd"`
	Liquidity struct {
		Usd float64 `json:"usd"`
	} `json:"liquidity"`
	MarketCap float64 `json:"marketCap"`
	FDV       float64 `json:"fdv"`
}

// GetListing fetches every listed pair for a token address
func (c *DexClient) GetListing(ctx context.Context, tokenAddress string) (*models.DexListingData, error) {
	u := fmt.Sprintf("%s/latest/dex/tokens/%s", c.baseURL, tokenAddress)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build dex request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dex request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read dex response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dex vendor returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Pairs []dexPairPayload `json:"pairs"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode dex payload: %w", err)
	}

	listing := &models.DexListingData{TokenAddress: tokenAddress}
	for _, p := range payload.Pairs {
		var priceUsd float64
		if p.PriceUsd != "" {
			if _, err := fmt.Sscanf(p.PriceUsd, "%f", &priceUsd); err != nil {
				continue
			}
		}
		listing.Pairs = append(listing.Pairs, models.DexPair{
			PairAddress:  p.PairAddress,
			DexID:        p.DexID,
			BaseSymbol:   p.BaseToken.Symbol,
			QuoteSymbol:  p.QuoteToken.Symbol,
			PriceUsd:     priceUsd,
			LiquidityUsd: p.Liquidity.Usd,
			MarketCap:    p.MarketCap,
			FDV:          p.FDV,
		})
	}
	return listing, nil
}
