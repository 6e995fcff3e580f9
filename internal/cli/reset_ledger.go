package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/vietddude/uplink/internal/core/config"
	"github.com/vietddude/uplink/internal/infra/storage/postgres"
)

var resetLedgerCmd = &cobra.Command{
	Use:   "reset-ledger [provider]",
	Short: "Zero the spend accumulator for one provider, or all when omitted",
	Args:  cobra.MaximumNArgs(1),
	Run:   runResetLedger,
}

func init() {
	rootCmd.AddCommand(resetLedgerCmd)
}

func runResetLedger(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	// Direct SQL keeps the override simple; the daemon reloads state on
	// its next start.
	if len(args) == 1 {
		query := "UPDATE ledger_state SET spend = 0, period_start = NOW(), updated_at = NOW() WHERE provider = $1"
		res, err := db.ExecContext(ctx, query, args[0])
		if err != nil {
			slog.Error("Failed to reset ledger", "error", err)
			os.Exit(1)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			fmt.Printf("No ledger entry for provider %s\n", args[0])
			os.Exit(1)
		}
		fmt.Printf("Successfully reset ledger for %s\n", args[0])
		return
	}

	query := "UPDATE ledger_state SET spend = 0, period_start = NOW(), updated_at = NOW()"
	res, err := db.ExecContext(ctx, query)
	if err != nil {
		slog.Error("Failed to reset ledger", "error", err)
		os.Exit(1)
	}
	n, _ := res.RowsAffected()
	fmt.Printf("Successfully reset ledger for %d providers\n", n)
}
