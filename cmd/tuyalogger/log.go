package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/tuyalogger/internal/tuya"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Fetch the current meter reading and record it",
	Long: `Fetches the cumulative forward energy reading from the Tuya smart meter and
records it: appends a row to today's daily CSV, updates today's entry in this
month's summary CSV, overwrites the latest-reading snapshot, and archives the
reading in the local database.

A non-zero exit status means nothing was recorded; the next scheduled run is
the recovery mechanism.`,
	RunE: runLog,
}

func init() {
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Log run started at %s ===\n", time.Now().UTC().Format("2006-01-02 15:04:05 UTC"))

	// Load config and validate credentials before touching anything
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Fetch the reading first, so a failed fetch modifies no stored file
	client := tuya.NewClient(cfg.GetEndpoint(), cfg.Tuya.AccessID, cfg.Tuya.AccessKey, newLogger())

	fmt.Printf("Fetching reading from device %s...\n", cfg.Tuya.DeviceID)
	reading, err := client.GetEnergyReading(context.Background(), cfg.Tuya.DeviceID)
	if err != nil {
		return fmt.Errorf("fetching reading: %w", err)
	}

	fmt.Printf("⚡ Forward energy total: %g kWh at %s %s UTC\n", reading.ForwardEnergyKWh, reading.Date(), reading.Clock())

	// Commit the reading to the daily, monthly and snapshot files
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	if err := st.Record(*reading); err != nil {
		return err
	}
	fmt.Printf("✓ Recorded to %s and %s\n", st.DailyPath(reading.Date()), st.MonthlyPath(reading.Month()))
	fmt.Printf("✓ Snapshot updated: %s\n", st.SnapshotPath())

	// Archive in the local database (duplicate timestamps are skipped by
	// the UNIQUE constraint)
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.InsertReading(*reading); err != nil {
		return err
	}

	count, err := db.CountReadings(reading.Date())
	if err != nil {
		return err
	}
	fmt.Printf("✓ Archived (%d readings for %s)\n", count, reading.Date())

	if err := st.WriteReadme(); err != nil {
		return err
	}

	fmt.Println("✓ Log run completed successfully")
	return nil
}
