package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jgoulah/tuyalogger/internal/config"
	"github.com/jgoulah/tuyalogger/internal/database"
	"github.com/jgoulah/tuyalogger/internal/store"
)

var (
	cfgFile string
	dataDir string
	dbPath  string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "tuyalogger",
	Short: "Log energy readings from a Tuya smart meter",
	Long: `TuyaLogger polls a Tuya smart meter's cloud API for its cumulative energy
reading and maintains daily CSV records, monthly summaries, and a latest-reading
snapshot, plus a local SQLite archive. It is designed to be run hourly by an
external scheduler that commits the data directory.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "output directory (default is ./data)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default is ./readings.db)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// getDBPath returns the database file path (local directory)
func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return "readings.db"
}

// loadConfig loads the configuration file with environment overrides
func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

// getDataDir returns the output directory, flag over config
func getDataDir(cfg *config.Config) string {
	if dataDir != "" {
		return dataDir
	}
	return cfg.GetDataDir()
}

// openStore opens the record store under the output directory
func openStore(cfg *config.Config) (*store.Store, error) {
	return store.New(getDataDir(cfg))
}

// openDB opens the readings archive database
func openDB() (*database.DB, error) {
	path := getDBPath()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return database.New(path)
}

// newLogger returns a zerolog logger honoring the --debug flag
func newLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}
