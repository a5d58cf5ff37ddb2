// Package main provides an operator CLI that prints a recommender's trust
// report and decayed score.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/trust-engine/internal/config"
	"github.com/trust-engine/internal/models"
	"github.com/trust-engine/internal/score"
	"github.com/trust-engine/internal/storage"
)

func main() {
	idFlag := flag.String("recommender", "", "Recommender id to check")
	recsFlag := flag.Bool("recommendations", false, "Also list the recommender's recommendations")
	flag.Parse()

	if *idFlag == "" {
		fmt.Println("Usage: trust_check -recommender <id> [-recommendations]")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		fmt.Printf("Error connecting to Postgres: %v\n", err)
		os.Exit(1)
	}
	defer postgres.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	metricsRepo := storage.NewRecommenderMetricsRepository(postgres)
	metrics, err := metricsRepo.Get(ctx, *idFlag)
	if err != nil {
		fmt.Printf("Error loading recommender %s: %v\n", *idFlag, err)
		os.Exit(1)
	}

	printMetrics(metrics)

	if *recsFlag {
		recs, err := metricsRepo.ListRecommendations(ctx, *idFlag)
		if err != nil {
			fmt.Printf("Error listing recommendations: %v\n", err)
			os.Exit(1)
		}
		printRecommendations(recs)
	}
}

func printMetrics(m *models.RecommenderMetrics) {
	now := time.Now()
	fmt.Printf("Recommender:           %s\n", m.RecommenderID)
	fmt.Printf("Stored trust:          %.4f\n", m.TrustScore)
	fmt.Printf("Decayed trust:         %.4f (inactive %d days)\n", score.DecayedTrust(m, now), score.InactiveDays(m.LastActiveDate, now))
	fmt.Printf("Risk score:            %.4f\n", m.RiskScore)
	fmt.Printf("Consistency score:     %.4f\n", m.ConsistencyScore)
	fmt.Printf("Virtual confidence:    %.4f\n", m.VirtualConfidence)
	fmt.Printf("Recommendations:       %d (%d successful)\n", m.TotalRecommendations, m.SuccessfulRecs)
	fmt.Printf("Avg token performance: %.2f%%\n", m.AvgTokenPerformance)
	fmt.Printf("Last active:           %s\n", m.LastActiveDate.Format(time.RFC3339))
}

func printRecommendations(recs []*models.TokenRecommendation) {
	fmt.Printf("\n%d recommendations:\n", len(recs))
	for _, rec := range recs {
		fmt.Printf("  %s  %s  mc=%.0f liq=%.0f price=%.6f\n",
			rec.Timestamp.Format("2006-01-02 15:04"),
			rec.TokenAddress,
			rec.InitialMarketCap,
			rec.InitialLiquidity,
			rec.InitialPrice,
		)
	}
}
