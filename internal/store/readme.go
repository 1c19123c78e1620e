package store

import (
	"fmt"
	"path/filepath"
	"time"
)

// readmeTemplate documents the data directory layout for anyone browsing
// the repository the scheduler commits it to
const readmeTemplate = `# Energy Data

This directory contains energy consumption data from a Tuya smart meter.

## Data Structure

### Daily Data (` + "`daily/`" + `)
- Individual CSV files for each day: ` + "`energy_YYYY-MM-DD.csv`" + `
- Contains hourly readings with timestamp, energy total, and metadata
- New file created automatically for each day

### Monthly Summaries (` + "`monthly/`" + `)
- Monthly summary files: ` + "`energy_summary_YYYY-MM.csv`" + `
- Contains one row per day with the latest reading and a readings count
- Updated automatically as new data arrives

### Latest Reading (` + "`latest_reading.json`" + `)
- Always contains the most recent energy reading
- Fully overwritten on every run

## Data Columns

**Daily Files:**
- ` + "`timestamp`" + `: Full datetime in UTC
- ` + "`date`" + `: Date (YYYY-MM-DD)
- ` + "`time`" + `: Time (HH:MM:SS)
- ` + "`forward_energy_total_kwh`" + `: Cumulative energy reading in kWh
- ` + "`hour`" + `: Hour of day (0-23)
- ` + "`day_of_week`" + `: Day name (Monday, Tuesday, etc.)
- ` + "`unix_timestamp`" + `: Unix timestamp for easy processing

**Monthly Files:**
- ` + "`date`" + `: Date (YYYY-MM-DD)
- ` + "`day_of_week`" + `: Day name
- ` + "`latest_reading_kwh`" + `: Latest energy reading for that day
- ` + "`last_updated`" + `: When the row was last updated
- ` + "`readings_count`" + `: Number of readings recorded for that day

## Automated Collection

Data is collected hourly by an external scheduler running ` + "`tuyalogger log`" + `.

Last updated: %s
`

// WriteReadme regenerates the data directory's README
func (s *Store) WriteReadme() error {
	content := fmt.Sprintf(readmeTemplate, time.Now().UTC().Format(timestampLayout))
	if err := writeFileAtomic(filepath.Join(s.dataDir, "README.md"), []byte(content)); err != nil {
		return fmt.Errorf("writing data README: %w", err)
	}
	return nil
}
