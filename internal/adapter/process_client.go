package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ProcessControlClient starts and stops per-token tracking processes on the
// external process-control service.
type ProcessControlClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewProcessControlClient creates a new process-control client
func NewProcessControlClient(baseURL, apiKey string) *ProcessControlClient {
	return &ProcessControlClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *ProcessControlClient) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal process-control payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build process-control request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("process-control request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("process-control returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// StartProcess begins tracking a token position
func (c *ProcessControlClient) StartProcess(ctx context.Context, tokenAddress string, balance float64, isSimulation bool, initialMarketCap float64, sellRecommenderID *string) error {
	payload := map[string]interface{}{
		"tokenAddress":        tokenAddress,
		"balance":             balance,
		"isSimulation":        isSimulation,
		"initial_mc":          initialMarketCap,
		"sell_recommender_id": sellRecommenderID,
	}
	return c.post(ctx, "/startProcess", payload)
}

// StopProcess stops tracking a token position
func (c *ProcessControlClient) StopProcess(ctx context.Context, tokenAddress string) error {
	payload := map[string]interface{}{
		"tokenAddress": tokenAddress,
	}
	return c.post(ctx, "/stopProcess", payload)
}
