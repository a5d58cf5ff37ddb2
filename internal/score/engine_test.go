package score

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/trust-engine/internal/models"
)

func TestRiskScore(t *testing.T) {
	t.Run("clean token scores zero", func(t *testing.T) {
		assert.Equal(t, 0.0, RiskScore(&models.TokenPerformance{}))
	})

	t.Run("penalties are additive", func(t *testing.T) {
		perf := &models.TokenPerformance{
			RugPull:          true,
			IsScam:           true,
			RapidDump:        true,
			SuspiciousVolume: true,
		}
		assert.Equal(t, 30.0, RiskScore(perf))
	})

	t.Run("individual penalties", func(t *testing.T) {
		assert.Equal(t, 10.0, RiskScore(&models.TokenPerformance{RugPull: true}))
		assert.Equal(t, 10.0, RiskScore(&models.TokenPerformance{IsScam: true}))
		assert.Equal(t, 5.0, RiskScore(&models.TokenPerformance{RapidDump: true}))
		assert.Equal(t, 5.0, RiskScore(&models.TokenPerformance{SuspiciousVolume: true}))
	})
}

func TestRiskScoreMonotonic(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Setting any additional flag never lowers the risk score.
	properties.Property("adding a flag never lowers risk", prop.ForAll(
		func(rug, scam, dump, susp bool) bool {
			base := &models.TokenPerformance{RugPull: rug, IsScam: scam, RapidDump: dump, SuspiciousVolume: susp}
			flagged := &models.TokenPerformance{RugPull: true, IsScam: scam, RapidDump: dump, SuspiciousVolume: susp}
			return RiskScore(flagged) >= RiskScore(base)
		},
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
	))

	properties.Property("risk is never negative", prop.ForAll(
		func(rug, scam, dump, susp bool) bool {
			perf := &models.TokenPerformance{RugPull: rug, IsScam: scam, RapidDump: dump, SuspiciousVolume: susp}
			return RiskScore(perf) >= 0
		},
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestConsistencyScore(t *testing.T) {
	perf := &models.TokenPerformance{PriceChange24h: 10}
	metrics := &models.RecommenderMetrics{AvgTokenPerformance: 25}
	assert.Equal(t, 15.0, ConsistencyScore(perf, metrics))

	// Symmetric around the average.
	perf.PriceChange24h = 40
	assert.Equal(t, 15.0, ConsistencyScore(perf, metrics))
}

func TestTrustScore(t *testing.T) {
	perf := &models.TokenPerformance{RugPull: true, PriceChange24h: 4}
	metrics := &models.RecommenderMetrics{AvgTokenPerformance: 0}
	// (10 + 4) / 2
	assert.Equal(t, 7.0, TrustScore(perf, metrics))
}

func TestDecayedTrust(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("no decay same day", func(t *testing.T) {
		m := &models.RecommenderMetrics{TrustScore: 50, LastActiveDate: now}
		assert.Equal(t, 50.0, DecayedTrust(m, now))
	})

	t.Run("one day applies one decay step", func(t *testing.T) {
		m := &models.RecommenderMetrics{TrustScore: 50, LastActiveDate: now.Add(-24 * time.Hour)}
		assert.InDelta(t, 47.5, DecayedTrust(m, now), 1e-9)
	})

	t.Run("decay caps at thirty days", func(t *testing.T) {
		at30 := &models.RecommenderMetrics{TrustScore: 50, LastActiveDate: now.AddDate(0, 0, -30)}
		at40 := &models.RecommenderMetrics{TrustScore: 50, LastActiveDate: now.AddDate(0, 0, -40)}
		assert.Equal(t, DecayedTrust(at30, now), DecayedTrust(at40, now))
	})

	t.Run("forty days inactive", func(t *testing.T) {
		m := &models.RecommenderMetrics{TrustScore: 50, LastActiveDate: now.AddDate(0, 0, -40)}
		want := 50 * math.Pow(0.95, 30)
		got := DecayedTrust(m, now)
		assert.InDelta(t, want, got, 1e-9)
		assert.InDelta(t, 10.46, got, 0.01)
	})

	t.Run("future last active does not inflate", func(t *testing.T) {
		m := &models.RecommenderMetrics{TrustScore: 50, LastActiveDate: now.Add(24 * time.Hour)}
		assert.Equal(t, 50.0, DecayedTrust(m, now))
	})

	t.Run("recomputed from stored score each call", func(t *testing.T) {
		m := &models.RecommenderMetrics{TrustScore: 50, LastActiveDate: now.AddDate(0, 0, -10)}
		first := DecayedTrust(m, now)
		second := DecayedTrust(m, now)
		assert.Equal(t, first, second)
		assert.Equal(t, 50.0, m.TrustScore)
	})
}

func TestDecayFactor(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 1.0, DecayFactor(now, now))
	assert.InDelta(t, math.Pow(0.95, 30), DecayFactor(now.AddDate(0, 0, -45), now), 1e-12)
}

func TestClassifiers(t *testing.T) {
	t.Run("rapid dump threshold", func(t *testing.T) {
		assert.True(t, IsRapidDump(-60))
		assert.False(t, IsRapidDump(-40))
		assert.False(t, IsRapidDump(-50))
	})

	t.Run("sustained growth threshold", func(t *testing.T) {
		assert.True(t, IsSustainedGrowth(60))
		assert.False(t, IsSustainedGrowth(50))
		assert.False(t, IsSustainedGrowth(10))
	})

	t.Run("suspicious volume ratio", func(t *testing.T) {
		assert.True(t, IsSuspiciousVolume(600, 1000))
		assert.False(t, IsSuspiciousVolume(400, 1000))
		assert.False(t, IsSuspiciousVolume(100, 0))
	})
}

func TestClassify(t *testing.T) {
	trade := &models.TokenTradeData{
		Trade24hChangePercent:  -70,
		VolumeChange24hPercent: 80,
		UniqueWallet24h:        900,
		Volume24hUsd:           1000,
	}
	rapidDump, sustainedGrowth, suspiciousVolume := Classify(trade)
	assert.True(t, rapidDump)
	assert.True(t, sustainedGrowth)
	assert.True(t, suspiciousVolume)
}
