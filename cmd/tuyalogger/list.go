package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jgoulah/tuyalogger/internal/database"
)

var (
	listDate  string
	listMonth string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived readings",
	Long: `Displays readings from the local archive database. With --month, shows one
row per day holding that day's latest reading and readings count; otherwise
every archived reading is listed.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listDate, "date", "", "Filter by date (YYYY-MM-DD)")
	listCmd.Flags().StringVar(&listMonth, "month", "", "Filter by month (YYYY-MM)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	if listDate != "" && listMonth != "" {
		return fmt.Errorf("--date and --month are mutually exclusive")
	}

	// Open database
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if listMonth != "" {
		return listMonthSummary(db)
	}

	readings, err := db.ListReadings(listDate)
	if err != nil {
		return fmt.Errorf("listing readings: %w", err)
	}

	if len(readings) == 0 {
		fmt.Println("No readings found")
		return nil
	}

	fmt.Println("\nArchived Readings:")
	fmt.Println("--------------------------------------------------")
	fmt.Printf("%-20s  %14s\n", "Timestamp (UTC)", "kWh")
	fmt.Println("--------------------------------------------------")

	for _, r := range readings {
		fmt.Printf("%-20s  %14s\n", r.Timestamp.Format("2006-01-02 15:04:05"), humanize.Commaf(r.ForwardEnergyKWh))
	}

	fmt.Println("--------------------------------------------------")
	// The meter reports a cumulative counter, so consumption over the
	// listed period is last minus first
	consumed := readings[len(readings)-1].ForwardEnergyKWh - readings[0].ForwardEnergyKWh
	fmt.Printf("Consumed: %.2f kWh across %d readings\n", consumed, len(readings))

	return nil
}

// listMonthSummary prints one row per day of the month: the latest
// reading and readings count for each date
func listMonthSummary(db *database.DB) error {
	summaries, err := db.ListDailyLatest(listMonth)
	if err != nil {
		return fmt.Errorf("listing daily latest readings: %w", err)
	}

	if len(summaries) == 0 {
		fmt.Println("No readings found")
		return nil
	}

	fmt.Printf("\nDaily Readings for %s:\n", listMonth)
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("%-12s  %-10s  %14s  %9s\n", "Date", "Day", "Latest kWh", "Readings")
	fmt.Println("------------------------------------------------------------")

	totalReadings := 0
	for _, sum := range summaries {
		fmt.Printf("%-12s  %-10s  %14s  %9d\n", sum.Date, sum.DayOfWeek, humanize.Commaf(sum.LatestReadingKWh), sum.ReadingsCount)
		totalReadings += sum.ReadingsCount
	}

	fmt.Println("------------------------------------------------------------")
	consumed := summaries[len(summaries)-1].LatestReadingKWh - summaries[0].LatestReadingKWh
	fmt.Printf("Consumed: %.2f kWh across %d days (%d readings)\n", consumed, len(summaries), totalReadings)

	return nil
}
