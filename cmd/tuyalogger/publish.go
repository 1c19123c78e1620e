package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/tuyalogger/internal/publisher"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Push the latest reading to Home Assistant or MQTT",
	Long: `Publishes the latest-reading snapshot to the destinations enabled in config:
a Home Assistant sensor entity via its HTTP API, and/or an MQTT topic.`,
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Publish started at %s ===\n", time.Now().UTC().Format("2006-01-02 15:04:05 UTC"))

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
		return fmt.Errorf("no snapshot to publish: run 'tuyalogger log' first")
	}

	pub, err := publisher.New(cfg.MQTT, cfg.GetTopicPrefix(), cfg.HomeAssistant)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	if err := pub.Publish(*snap); err != nil {
		return fmt.Errorf("publishing: %w", err)
	}

	fmt.Printf("✓ Published %g kWh (%s %s UTC)\n", snap.ForwardEnergyKWh, snap.Date, snap.Time)
	return nil
}
