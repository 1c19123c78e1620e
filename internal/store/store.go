package store

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/jgoulah/tuyalogger/pkg/models"
)

// timestampLayout is the human-readable UTC format used in the record files
const timestampLayout = "2006-01-02 15:04:05 UTC"

// dailyHeader is the column set of a daily record file
var dailyHeader = []string{
	"timestamp",
	"date",
	"time",
	"forward_energy_total_kwh",
	"hour",
	"day_of_week",
	"unix_timestamp",
}

// monthlyHeader is the column set of a monthly summary file
var monthlyHeader = []string{
	"date",
	"day_of_week",
	"latest_reading_kwh",
	"last_updated",
	"readings_count",
}

// Store maintains the CSV/JSON record files under a data directory:
// per-day readings in daily/, per-month summaries in monthly/, and a
// latest-reading snapshot at the top level.
type Store struct {
	dataDir    string
	dailyDir   string
	monthlyDir string
}

// New creates a Store rooted at dataDir, creating the directory layout
// if needed
func New(dataDir string) (*Store, error) {
	s := &Store{
		dataDir:    dataDir,
		dailyDir:   filepath.Join(dataDir, "daily"),
		monthlyDir: filepath.Join(dataDir, "monthly"),
	}
	for _, dir := range []string{s.dataDir, s.dailyDir, s.monthlyDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	return s, nil
}

// DailyPath returns the daily record file for a date (YYYY-MM-DD)
func (s *Store) DailyPath(date string) string {
	return filepath.Join(s.dailyDir, fmt.Sprintf("energy_%s.csv", date))
}

// MonthlyPath returns the monthly summary file for a month (YYYY-MM)
func (s *Store) MonthlyPath(month string) string {
	return filepath.Join(s.monthlyDir, fmt.Sprintf("energy_summary_%s.csv", month))
}

// SnapshotPath returns the latest-reading snapshot file
func (s *Store) SnapshotPath() string {
	return filepath.Join(s.dataDir, "latest_reading.json")
}

// Record commits one reading to all three views. Existing state is loaded
// and the updated files are computed in memory first, then written daily,
// monthly, snapshot in order, each via temp-file-and-rename, so a failure
// never leaves a partially written file behind.
func (s *Store) Record(r models.Reading) error {
	dailyRows, err := s.readDailyRows(r.Date())
	if err != nil {
		return fmt.Errorf("loading daily record: %w", err)
	}
	summaries, err := s.ReadMonthly(r.Month())
	if err != nil {
		return fmt.Errorf("loading monthly record: %w", err)
	}

	dailyRows = append(dailyRows, dailyRow(r))
	summaries = upsertSummary(summaries, r)

	if err := s.writeDaily(r.Date(), dailyRows); err != nil {
		return fmt.Errorf("writing daily record: %w", err)
	}
	if err := s.writeMonthly(r.Month(), summaries); err != nil {
		return fmt.Errorf("writing monthly record: %w", err)
	}
	if err := s.WriteSnapshot(r); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// dailyRow renders a reading as one daily record row
func dailyRow(r models.Reading) []string {
	return []string{
		r.Timestamp.Format(timestampLayout),
		r.Date(),
		r.Clock(),
		formatKWh(r.ForwardEnergyKWh),
		strconv.Itoa(r.Hour()),
		r.DayOfWeek(),
		strconv.FormatInt(r.Unix(), 10),
	}
}

// upsertSummary updates the reading's date entry in place, or creates it,
// and returns the summaries sorted by date
func upsertSummary(summaries []models.DailySummary, r models.Reading) []models.DailySummary {
	found := false
	for i := range summaries {
		if summaries[i].Date == r.Date() {
			summaries[i].LatestReadingKWh = r.ForwardEnergyKWh
			summaries[i].LastUpdated = r.Timestamp
			summaries[i].ReadingsCount++
			found = true
			break
		}
	}
	if !found {
		summaries = append(summaries, models.DailySummary{
			Date:             r.Date(),
			DayOfWeek:        r.DayOfWeek(),
			LatestReadingKWh: r.ForwardEnergyKWh,
			LastUpdated:      r.Timestamp,
			ReadingsCount:    1,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Date < summaries[j].Date
	})
	return summaries
}

// readDailyRows loads the existing rows of a date's record, without the
// header. A missing file means a fresh day.
func (s *Store) readDailyRows(date string) ([][]string, error) {
	f, err := os.Open(s.DailyPath(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.DailyPath(date), err)
	}
	if len(records) <= 1 {
		return nil, nil
	}
	for _, rec := range records[1:] {
		if len(rec) != len(dailyHeader) {
			return nil, fmt.Errorf("malformed row in %s: %v", s.DailyPath(date), rec)
		}
	}
	return records[1:], nil
}

// ReadMonthly loads a month's summary entries. A missing file means a
// fresh month.
func (s *Store) ReadMonthly(month string) ([]models.DailySummary, error) {
	f, err := os.Open(s.MonthlyPath(month))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.MonthlyPath(month), err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	summaries := make([]models.DailySummary, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != len(monthlyHeader) {
			return nil, fmt.Errorf("malformed row in %s: %v", s.MonthlyPath(month), rec)
		}
		kwh, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing latest_reading_kwh: %w", err)
		}
		updated, err := time.Parse(timestampLayout, rec[3])
		if err != nil {
			return nil, fmt.Errorf("parsing last_updated: %w", err)
		}
		count, err := strconv.Atoi(rec[4])
		if err != nil {
			return nil, fmt.Errorf("parsing readings_count: %w", err)
		}
		summaries = append(summaries, models.DailySummary{
			Date:             rec[0],
			DayOfWeek:        rec[1],
			LatestReadingKWh: kwh,
			LastUpdated:      updated.UTC(),
			ReadingsCount:    count,
		})
	}
	return summaries, nil
}

// writeDaily rewrites a date's record with the header and all rows
func (s *Store) writeDaily(date string, rows [][]string) error {
	return s.writeCSV(s.DailyPath(date), dailyHeader, rows)
}

// writeMonthly rewrites a month's summary file
func (s *Store) writeMonthly(month string, summaries []models.DailySummary) error {
	rows := make([][]string, 0, len(summaries))
	for _, sum := range summaries {
		rows = append(rows, []string{
			sum.Date,
			sum.DayOfWeek,
			formatKWh(sum.LatestReadingKWh),
			sum.LastUpdated.Format(timestampLayout),
			strconv.Itoa(sum.ReadingsCount),
		})
	}
	return s.writeCSV(s.MonthlyPath(month), monthlyHeader, rows)
}

// WriteSnapshot overwrites the latest-reading snapshot
func (s *Store) WriteSnapshot(r models.Reading) error {
	data, err := json.MarshalIndent(models.NewSnapshot(r), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return writeFileAtomic(s.SnapshotPath(), append(data, '\n'))
}

// ReadSnapshot loads the latest-reading snapshot. Returns nil when no
// snapshot has been written yet.
func (s *Store) ReadSnapshot() (*models.Snapshot, error) {
	data, err := os.ReadFile(s.SnapshotPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	return &snap, nil
}

// writeCSV serializes header+rows and writes them atomically
func (s *Store) writeCSV(path string, header []string, rows [][]string) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return writeFileAtomic(path, buf.Bytes())
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place, so readers never observe a partial file
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

// formatKWh renders a kWh value without trailing zeros, matching how the
// meter's hundredths resolution reads naturally (1234.5, not 1234.500000)
func formatKWh(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
