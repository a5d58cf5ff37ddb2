// Package adapter contains the HTTP clients for external systems: the token
// data vendor, the DEX listings vendor, the chain RPC node, the trade
// backend, and the process-control endpoint.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/trust-engine/internal/models"
)

// HolderPageSize is the page size requested from the holder list endpoint.
const HolderPageSize = 100

// MaxHolderPages caps the paginated holder fetch.
const MaxHolderPages = 10

// VendorClient fetches token security, trade, holder, and price data from
// the read-only token data vendor.
type VendorClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewVendorClient creates a new token data vendor client
func NewVendorClient(apiKey, baseURL string, requestsPerSec float64) *VendorClient {
	if requestsPerSec <= 0 {
		requestsPerSec = 3.0
	}
	return &VendorClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), 1),
	}
}

// vendorEnvelope is the common response wrapper used by the vendor.
type vendorEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// getJSON performs one rate-limited GET and decodes the data payload into
// dest. Retrying is the caller's concern.
func (c *VendorClient) getJSON(ctx context.Context, path string, query url.Values, dest interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build vendor request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("vendor request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read vendor response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vendor returned status %d: %s", resp.StatusCode, string(body))
	}

	var envelope vendorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to decode vendor envelope: %w", err)
	}
	if !envelope.Success {
		return fmt.Errorf("vendor rejected request: %s", envelope.Message)
	}

	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		return fmt.Errorf("failed to decode vendor payload: %w", err)
	}
	return nil
}

// GetTokenSecurity fetches the security report for a token address
func (c *VendorClient) GetTokenSecurity(ctx context.Context, tokenAddress string) (*models.TokenSecurityData, error) {
	query := url.Values{"address": {tokenAddress}}

	var data models.TokenSecurityData
	if err := c.getJSON(ctx, "/defi/token_security", query, &data); err != nil {
		return nil, err
	}
	data.TokenAddress = tokenAddress
	return &data, nil
}

// GetTokenTradeData fetches 24h/12h trade statistics for a token address
func (c *VendorClient) GetTokenTradeData(ctx context.Context, tokenAddress string) (*models.TokenTradeData, error) {
	query := url.Values{"address": {tokenAddress}}

	var data models.TokenTradeData
	if err := c.getJSON(ctx, "/defi/token_trade_data", query, &data); err != nil {
		return nil, err
	}
	data.TokenAddress = tokenAddress
	return &data, nil
}

// GetHolderPage fetches one page of a token's holder list
func (c *VendorClient) GetHolderPage(ctx context.Context, tokenAddress string, offset int) ([]models.HolderData, error) {
	query := url.Values{
		"address": {tokenAddress},
		"offset":  {strconv.Itoa(offset)},
		"limit":   {strconv.Itoa(HolderPageSize)},
	}

	var page struct {
		Items []models.HolderData `json:"items"`
	}
	if err := c.getJSON(ctx, "/defi/token_holders", query, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// GetPrices fetches spot prices for the fixed reference basket
func (c *VendorClient) GetPrices(ctx context.Context) (*models.Prices, error) {
	var prices models.Prices
	if err := c.getJSON(ctx, "/defi/reference_prices", url.Values{}, &prices); err != nil {
		return nil, err
	}
	return &prices, nil
}
