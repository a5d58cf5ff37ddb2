package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/trust-engine/internal/models"
	"github.com/trust-engine/internal/retry"
)

// backendSyncAttempts and backendSyncDelay bound backend synchronization:
// a fixed number of fixed-delay retries, then the update is logged and
// dropped. There is no dead-letter path.
const (
	backendSyncAttempts = 3
	backendSyncDelay    = 2 * time.Second
)

// BackendClient synchronizes trade state to the remote trade backend.
type BackendClient struct {
	baseURL  string
	token    string
	username string
	client   *http.Client
}

// NewBackendClient creates a new backend sync client
func NewBackendClient(baseURL, token, username string) *BackendClient {
	return &BackendClient{
		baseURL:  baseURL,
		token:    token,
		username: username,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *BackendClient) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal backend payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build backend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("backend returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// postWithRetry retries a backend call a fixed number of times with a fixed
// delay before giving up.
func (c *BackendClient) postWithRetry(ctx context.Context, path string, payload interface{}) error {
	cfg := retry.FixedDelayConfig(backendSyncAttempts, backendSyncDelay)
	return retry.Do(ctx, cfg, func(ctx context.Context, _ int) error {
		return c.post(ctx, path, payload)
	})
}

// UpdateTradePerformance pushes a completed or partially sold trade row to
// the backend.
func (c *BackendClient) UpdateTradePerformance(ctx context.Context, trade *models.TradePerformance, balanceLeft float64) error {
	payload := map[string]interface{}{
		"tokenAddress":  trade.TokenAddress,
		"tradeData":     trade,
		"recommenderId": trade.RecommenderID,
		"username":      c.username,
		"isSimulation":  trade.IsSimulation,
		"balanceLeft":   balanceLeft,
	}
	return c.postWithRetry(ctx, "/updateTradePerformance", payload)
}

// CreateTradePerformance registers a freshly booked buy with the backend.
func (c *BackendClient) CreateTradePerformance(ctx context.Context, trade *models.TradePerformance) error {
	payload := map[string]interface{}{
		"tokenAddress":  trade.TokenAddress,
		"tradeData":     trade,
		"recommenderId": trade.RecommenderID,
	}
	return c.postWithRetry(ctx, "/createTradePerformance", payload)
}
