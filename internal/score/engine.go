// Package score implements the trust scoring model: risk and consistency
// scores over token performance, instantaneous trust, and time decay of
// stored trust for inactive recommenders.
package score

import (
	"math"
	"time"

	"github.com/trust-engine/internal/models"
)

// Scoring model parameters. The trust formula averages a penalty count with
// a deviation magnitude; the scales are not normalized, and the tier
// thresholds downstream are calibrated against this combined scale.
const (
	DecayRate    = 0.95
	MaxDecayDays = 30

	RugPullPenalty          = 10.0
	ScamPenalty             = 10.0
	RapidDumpPenalty        = 5.0
	SuspiciousVolumePenalty = 5.0

	RapidDumpThreshold       = -50.0
	SustainedGrowthThreshold = 50.0
	SuspiciousVolumeRatio    = 0.5
)

// RiskScore computes the additive risk penalty for a token. Unbounded above,
// floor 0.
func RiskScore(perf *models.TokenPerformance) float64 {
	risk := 0.0
	if perf.RugPull {
		risk += RugPullPenalty
	}
	if perf.IsScam {
		risk += ScamPenalty
	}
	if perf.RapidDump {
		risk += RapidDumpPenalty
	}
	if perf.SuspiciousVolume {
		risk += SuspiciousVolumePenalty
	}
	return risk
}

// ConsistencyScore measures how far the token's 24h price change sits from
// the recommender's historical average token performance. Smaller means more
// consistent.
func ConsistencyScore(perf *models.TokenPerformance, metrics *models.RecommenderMetrics) float64 {
	return math.Abs(perf.PriceChange24h - metrics.AvgTokenPerformance)
}

// TrustScore computes the instantaneous trust for a recommendation as the
// average of the risk and consistency scores.
func TrustScore(perf *models.TokenPerformance, metrics *models.RecommenderMetrics) float64 {
	return (RiskScore(perf) + ConsistencyScore(perf, metrics)) / 2
}

// InactiveDays returns the whole days elapsed between the recommender's last
// activity and now.
func InactiveDays(lastActive, now time.Time) int {
	if now.Before(lastActive) {
		return 0
	}
	return int(now.Sub(lastActive).Hours() / 24)
}

// DecayedTrust applies exponential time decay to the stored trust score:
// stored * DecayRate^min(inactiveDays, MaxDecayDays). The decay is always
// recomputed from the stored undecayed score; it is never compounded onto a
// previously decayed value.
func DecayedTrust(metrics *models.RecommenderMetrics, now time.Time) float64 {
	days := InactiveDays(metrics.LastActiveDate, now)
	if days > MaxDecayDays {
		days = MaxDecayDays
	}
	return metrics.TrustScore * math.Pow(DecayRate, float64(days))
}

// DecayFactor returns the multiplier DecayedTrust would apply for the given
// inactivity window. Stored on the metrics row for reporting.
func DecayFactor(lastActive, now time.Time) float64 {
	days := InactiveDays(lastActive, now)
	if days > MaxDecayDays {
		days = MaxDecayDays
	}
	return math.Pow(DecayRate, float64(days))
}

// IsRapidDump classifies a collapse in 24h trade activity.
func IsRapidDump(tradeChange24hPercent float64) bool {
	return tradeChange24hPercent < RapidDumpThreshold
}

// IsSustainedGrowth classifies a strong rise in 24h volume.
func IsSustainedGrowth(volumeChange24hPercent float64) bool {
	return volumeChange24hPercent > SustainedGrowthThreshold
}

// IsSuspiciousVolume flags volume that is spread across too few dollars per
// wallet: a high unique-wallets to volume ratio suggests wash activity.
func IsSuspiciousVolume(uniqueWallet24h int, volume24hUsd float64) bool {
	if volume24hUsd <= 0 {
		return false
	}
	return float64(uniqueWallet24h)/volume24hUsd > SuspiciousVolumeRatio
}

// Classify derives the boolean behavior flags for a token from its trade
// statistics.
func Classify(trade *models.TokenTradeData) (rapidDump, sustainedGrowth, suspiciousVolume bool) {
	rapidDump = IsRapidDump(trade.Trade24hChangePercent)
	sustainedGrowth = IsSustainedGrowth(trade.VolumeChange24hPercent)
	suspiciousVolume = IsSuspiciousVolume(trade.UniqueWallet24h, trade.Volume24hUsd)
	return rapidDump, sustainedGrowth, suspiciousVolume
}
