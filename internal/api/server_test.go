package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/trust-engine/internal/errors"
	"github.com/trust-engine/internal/models"
)

type fakeTrustService struct {
	trust  float64
	report string
	err    error
}

func (f *fakeTrustService) DecayedTrustScore(ctx context.Context, recommenderID string) (float64, error) {
	return f.trust, f.err
}

func (f *fakeTrustService) FormatTrustReport(ctx context.Context, recommenderID string) string {
	return f.report
}

type fakePerfReader struct {
	perf *models.TokenPerformance
	err  error
}

func (f *fakePerfReader) Get(ctx context.Context, tokenAddress string) (*models.TokenPerformance, error) {
	return f.perf, f.err
}

func newTestServer(trust *fakeTrustService, perf *fakePerfReader) *Server {
	return NewServer(&ServerConfig{
		Host:         "127.0.0.1",
		Port:         "0",
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		IdleTimeout:  time.Second,
	}, trust, perf)
}

func TestHandleHealth(t *testing.T) {
	server := newTestServer(&fakeTrustService{}, &fakePerfReader{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHandleGetTrust(t *testing.T) {
	t.Run("returns trust and report", func(t *testing.T) {
		server := newTestServer(&fakeTrustService{trust: 42.5, report: "all good"}, &fakePerfReader{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/recommenders/rec-1/trust", nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var body TrustResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "rec-1", body.RecommenderID)
		assert.Equal(t, 42.5, body.TrustScore)
		assert.Equal(t, "all good", body.Report)
	})

	t.Run("unknown recommender maps to 404", func(t *testing.T) {
		server := newTestServer(&fakeTrustService{
			err: apperrors.NotFoundError("RECOMMENDER_NOT_FOUND", "no metrics"),
		}, &fakePerfReader{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/recommenders/nobody/trust", nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleGetTokenPerformance(t *testing.T) {
	t.Run("returns the snapshot", func(t *testing.T) {
		server := newTestServer(&fakeTrustService{}, &fakePerfReader{
			perf: &models.TokenPerformance{TokenAddress: "0xtok", Balance: 5},
		})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tokens/0xtok/performance", nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var body models.TokenPerformance
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "0xtok", body.TokenAddress)
		assert.Equal(t, 5.0, body.Balance)
	})

	t.Run("unknown token maps to 404", func(t *testing.T) {
		server := newTestServer(&fakeTrustService{}, &fakePerfReader{
			err: apperrors.NotFoundError("TOKEN_PERFORMANCE_NOT_FOUND", "no row"),
		})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tokens/0xother/performance", nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
