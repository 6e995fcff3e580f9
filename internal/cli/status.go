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
	"github.com/vietddude/uplink/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-provider spend and journal outcome totals",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
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

	rows, err := db.QueryContext(ctx, "SELECT provider, spend, period_start FROM ledger_state ORDER BY provider")
	if err != nil {
		slog.Error("Failed to query ledger", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = rows.Close()
	}()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "PROVIDER\tSPEND\tPERIOD_START")

	for rows.Next() {
		var provider, spend string
		var periodStart time.Time
		if err := rows.Scan(&provider, &spend, &periodStart); err != nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t$%s\t%s\n", provider, spend, periodStart.Format(time.RFC3339))
	}
	_ = w.Flush()

	counts, err := db.QueryContext(ctx, "SELECT outcome, COUNT(*) FROM upload_journal GROUP BY outcome ORDER BY outcome")
	if err != nil {
		slog.Error("Failed to query journal", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = counts.Close()
	}()

	fmt.Println()
	cw := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(cw, "OUTCOME\tUPLOADS")

	for counts.Next() {
		var outcome string
		var total int64
		if err := counts.Scan(&outcome, &total); err != nil {
			continue
		}
		_, _ = fmt.Fprintf(cw, "%s\t%d\n", outcome, total)
	}
	_ = cw.Flush()
}
