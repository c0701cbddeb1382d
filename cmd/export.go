package cmd

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jsvoboda/rollcall/internal/config"
	"github.com/jsvoboda/rollcall/internal/database/postgres"
)

var exportCmd = &cobra.Command{
	Use:   "export [teacher-email]",
	Short: "Export a teacher's attendance ledger to CSV",
	Long: `Exports attendance records for the given teacher account straight
from the database, without going through the web API. Useful for backups
and end-of-term reporting.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("start", "", "Start date (YYYY-MM-DD, default today)")
	exportCmd.Flags().String("end", "", "End date (YYYY-MM-DD, default today)")
	exportCmd.Flags().String("out", "", "Output file (default Attendance_<start>_<end>.csv)")
}

func runExport(cmd *cobra.Command, args []string) error {
	email := args[0]

	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	store := postgres.NewStore(pool, cfg.App.Timezone, cfg.Embedding.Dim)
	ctx := context.Background()

	// Fail on unknown accounts instead of provisioning an empty tenant.
	if _, err := store.GetTeacherByEmail(ctx, email); err != nil {
		return fmt.Errorf("teacher %s: %w", email, err)
	}
	tenantID, err := store.ResolveTenant(ctx, email)
	if err != nil {
		return fmt.Errorf("resolve tenant: %w", err)
	}

	loc := cfg.App.Timezone
	today := time.Now().In(loc).Format("2006-01-02")
	startStr := mustGetString(cmd, "start")
	if startStr == "" {
		startStr = today
	}
	endStr := mustGetString(cmd, "end")
	if endStr == "" {
		endStr = today
	}

	start, err := time.ParseInLocation("2006-01-02", startStr, loc)
	if err != nil {
		return fmt.Errorf("invalid --start date: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02", endStr, loc)
	if err != nil {
		return fmt.Errorf("invalid --end date: %w", err)
	}
	if end.Before(start) {
		return errors.New("--end date before --start date")
	}
	end = end.AddDate(0, 0, 1).Add(-time.Second)

	records, err := store.QueryRange(ctx, tenantID, start, end)
	if err != nil {
		return fmt.Errorf("query attendance: %w", err)
	}

	outPath := mustGetString(cmd, "out")
	if outPath == "" {
		outPath = fmt.Sprintf("Attendance_%s_%s.csv", startStr, endStr)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	bar := progressbar.NewOptions(len(records),
		progressbar.OptionSetDescription("Exporting attendance"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("records"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"Name", "Roll Number", "Timestamp"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write([]string{
			rec.Name,
			rec.Roll,
			rec.RecordedAt.In(loc).Format("2006-01-02 15:04:05"),
		}); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
		_ = bar.Add(1)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	fmt.Printf("\nExported %d records to %s\n", len(records), outPath)
	return nil
}
