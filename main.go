package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/vietddude/uplink/internal/core/domain"
	"github.com/vietddude/uplink/internal/infra/cloud"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found")
	}

	PRIMARY_URL := os.Getenv("UPLINK_PRIMARY_URL")
	BACKUP_URL := os.Getenv("UPLINK_BACKUP_URL")
	if PRIMARY_URL == "" {
		log.Fatalf("UPLINK_PRIMARY_URL is not set")
	}
	if BACKUP_URL == "" {
		log.Fatalf("UPLINK_BACKUP_URL is not set")
	}

	ctx := context.Background()

	// 1. Create the engine with a monthly budget
	engine := cloud.NewEngine(cloud.EngineConfig{
		BudgetCeiling: decimal.NewFromInt(50),
		Strategy:      cloud.StrategyRoundRobin,
		CostFirst:     true,
	})

	// 2. Register two REST destinations
	err = engine.Register(ctx, cloud.Registration{
		Settings: cloud.Settings{
			Name:      "primary",
			Platform:  domain.PlatformCustom,
			Transport: domain.TransportREST,
			Endpoint:  PRIMARY_URL,
			Bucket:    "blobs",
			Token:     os.Getenv("UPLINK_PRIMARY_TOKEN"),
			Timeout:   30 * time.Second,
		},
		Priority:  1,
		RatePerMB: decimal.NewFromFloat(0.012),
	})
	if err != nil {
		log.Fatalf("register primary: %v", err)
	}

	err = engine.Register(ctx, cloud.Registration{
		Settings: cloud.Settings{
			Name:      "backup",
			Platform:  domain.PlatformCustom,
			Transport: domain.TransportREST,
			Endpoint:  BACKUP_URL,
			Bucket:    "blobs",
			Token:     os.Getenv("UPLINK_BACKUP_TOKEN"),
			Timeout:   30 * time.Second,
		},
		Priority:  2,
		RatePerMB: decimal.NewFromFloat(0.018),
	})
	if err != nil {
		log.Fatalf("register backup: %v", err)
	}

	fmt.Println("=== Uploading Sample Blobs ===")

	// 3. Push a handful of uploads through the fleet
	for i := 0; i < 5; i++ {
		payload := make([]byte, 256<<10)
		path := fmt.Sprintf("/device-42/reading-%d.bin", i+1)

		receipt, err := engine.Upload(ctx, *domain.NewUploadRequest(path, payload))
		if err != nil {
			log.Printf("Upload %d failed: %v", i+1, err)
			continue
		}
		fmt.Printf("Upload %d: %s via %s (%d bytes, %d attempt(s), $%s)\n",
			i+1, path, receipt.Provider, receipt.Bytes, receipt.Attempts, receipt.Cost)

		time.Sleep(100 * time.Millisecond)
	}

	fmt.Println()

	// 4. Show per-provider health
	fmt.Println("=== Provider Status ===")
	for _, st := range engine.GetProviderStatuses() {
		fmt.Printf("%s:\n", st.Provider)
		fmt.Printf("  Health: %s (%s)\n", st.Health, st.Quality)
		fmt.Printf("  Success Rate: %.1f%%\n", st.SuccessRate)
		fmt.Printf("  Avg Response: %.0fms\n", st.AvgResponseMs)
		fmt.Println()
	}

	// 5. Show spend against the budget
	fmt.Println("=== Budget ===")
	fmt.Printf("Monthly spend: $%s / $%s\n", engine.TotalMonthlySpend(), engine.BudgetCeiling())

	pred := engine.Predict()
	if pred.TimeToExhaustion > 0 {
		fmt.Printf("Predicted exhaustion: %v\n", pred.TimeToExhaustion.Round(time.Minute))
	} else {
		fmt.Println("Predicted exhaustion: N/A (low activity)")
	}
}
