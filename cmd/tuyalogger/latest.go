package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jgoulah/tuyalogger/pkg/models"
)

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the most recent reading",
	Long:  `Displays the latest-reading snapshot from the data directory.`,
	RunE:  runLatest,
}

func init() {
	rootCmd.AddCommand(latestCmd)
}

func runLatest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	snap, err := st.ReadSnapshot()
	if err != nil {
		return err
	}
	if snap == nil {
		// No snapshot file; fall back to the archive database
		db, err := openDB()
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		r, err := db.LatestReading()
		if err != nil {
			return err
		}
		if r == nil {
			fmt.Println("No readings recorded yet. Run 'tuyalogger log' first.")
			return nil
		}
		s := models.NewSnapshot(*r)
		snap = &s
	}

	fmt.Printf("Latest reading: %g kWh\n", snap.ForwardEnergyKWh)
	fmt.Printf("Recorded:       %s %s UTC (%s, %s)\n", snap.Date, snap.Time, snap.DayOfWeek, humanize.Time(snap.Timestamp))
	return nil
}
