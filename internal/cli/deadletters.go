package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/uplink/internal/core/config"
	redisclient "github.com/vietddude/uplink/internal/infra/redis"
)

var (
	deadLetterLimit   int
	deadLetterResolve string
)

var deadLettersCmd = &cobra.Command{
	Use:   "dead-letters",
	Short: "List uploads that exhausted every provider, or resolve one by ID",
	Run:   runDeadLetters,
}

func init() {
	deadLettersCmd.Flags().IntVar(&deadLetterLimit, "limit", 20, "maximum entries to list")
	deadLettersCmd.Flags().StringVar(&deadLetterResolve, "resolve", "", "mark the given dead letter ID resolved")
	rootCmd.AddCommand(deadLettersCmd)
}

func runDeadLetters(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.Redis.URL == "" {
		fmt.Println("No Redis configured; dead letters are disabled")
		return
	}

	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = client.Close()
	}()

	ctx := context.Background()
	repo := redisclient.NewDeadLetterRepo(client, "uplink")

	if deadLetterResolve != "" {
		if err := repo.MarkResolved(ctx, deadLetterResolve); err != nil {
			slog.Error("Failed to resolve dead letter", "id", deadLetterResolve, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Resolved dead letter %s\n", deadLetterResolve)
		return
	}

	letters, err := repo.List(ctx, deadLetterLimit)
	if err != nil {
		slog.Error("Failed to list dead letters", "error", err)
		os.Exit(1)
	}

	if len(letters) == 0 {
		fmt.Println("No dead letters")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ID\tPATH\tSIZE\tTRIED\tFAILED_AT\tERROR")

	for _, dl := range letters {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			dl.ID,
			dl.RemotePath,
			dl.SizeBytes,
			len(dl.Providers),
			dl.FailedAt.Format(time.RFC3339),
			dl.Error,
		)
	}
	_ = w.Flush()
}
