package store

import (
	"encoding/csv"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/tuyalogger/pkg/models"
)

func reading(t *testing.T, ts string, kwh float64) models.Reading {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04:05", ts)
	require.NoError(t, err)
	return models.Reading{Timestamp: parsed.UTC(), ForwardEnergyKWh: kwh}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestRecordFirstReadingOfEmptyDataset(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	r := reading(t, "2025-07-06 07:00:00", 1234.5)
	require.NoError(t, s.Record(r))

	daily := readCSV(t, s.DailyPath("2025-07-06"))
	require.Len(t, daily, 2)
	assert.Equal(t, []string{
		"timestamp", "date", "time", "forward_energy_total_kwh",
		"hour", "day_of_week", "unix_timestamp",
	}, daily[0])
	assert.Equal(t, "2025-07-06 07:00:00 UTC", daily[1][0])
	assert.Equal(t, "2025-07-06", daily[1][1])
	assert.Equal(t, "07:00:00", daily[1][2])
	assert.Equal(t, "1234.5", daily[1][3])
	assert.Equal(t, "7", daily[1][4])
	assert.Equal(t, "Sunday", daily[1][5])

	monthly := readCSV(t, s.MonthlyPath("2025-07"))
	require.Len(t, monthly, 2)
	assert.Equal(t, []string{
		"date", "day_of_week", "latest_reading_kwh", "last_updated", "readings_count",
	}, monthly[0])
	assert.Equal(t, []string{"2025-07-06", "Sunday", "1234.5", "2025-07-06 07:00:00 UTC", "1"}, monthly[1])

	snap, err := s.ReadSnapshot()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 1234.5, snap.ForwardEnergyKWh)
	assert.Equal(t, "2025-07-06", snap.Date)
	assert.Equal(t, "07:00:00", snap.Time)
}

func TestRecordSecondReadingSameDate(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Record(reading(t, "2025-07-06 07:00:00", 1234.5)))
	require.NoError(t, s.Record(reading(t, "2025-07-06 08:00:00", 1236.0)))

	// Daily record gains a second row, in fetch order, header written once
	daily := readCSV(t, s.DailyPath("2025-07-06"))
	require.Len(t, daily, 3)
	assert.Equal(t, "07:00:00", daily[1][2])
	assert.Equal(t, "08:00:00", daily[2][2])

	// Monthly entry is updated in place
	monthly := readCSV(t, s.MonthlyPath("2025-07"))
	require.Len(t, monthly, 2)
	assert.Equal(t, []string{"2025-07-06", "Sunday", "1236", "2025-07-06 08:00:00 UTC", "2"}, monthly[1])

	// Snapshot reflects the most recent reading
	snap, err := s.ReadSnapshot()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 1236.0, snap.ForwardEnergyKWh)
	assert.Equal(t, "08:00:00", snap.Time)
}

func TestRecordDayRollover(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Record(reading(t, "2025-07-06 23:00:00", 1240.0)))
	require.NoError(t, s.Record(reading(t, "2025-07-07 00:00:00", 1240.25)))

	// Each date gets its own daily record; the frozen day is untouched
	require.Len(t, readCSV(t, s.DailyPath("2025-07-06")), 2)
	require.Len(t, readCSV(t, s.DailyPath("2025-07-07")), 2)

	// Both days appear in the monthly summary, sorted by date
	summaries, err := s.ReadMonthly("2025-07")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "2025-07-06", summaries[0].Date)
	assert.Equal(t, 1, summaries[0].ReadingsCount)
	assert.Equal(t, 1240.0, summaries[0].LatestReadingKWh)
	assert.Equal(t, "2025-07-07", summaries[1].Date)
	assert.Equal(t, 1, summaries[1].ReadingsCount)
}

func TestRecordMonthRollover(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Record(reading(t, "2025-07-31 23:00:00", 1300.0)))
	require.NoError(t, s.Record(reading(t, "2025-08-01 00:00:00", 1300.5)))

	july, err := s.ReadMonthly("2025-07")
	require.NoError(t, err)
	require.Len(t, july, 1)
	assert.Equal(t, "2025-07-31", july[0].Date)

	august, err := s.ReadMonthly("2025-08")
	require.NoError(t, err)
	require.Len(t, august, 1)
	assert.Equal(t, "2025-08-01", august[0].Date)
}

func TestRecordDuplicateReadingIncrementsCount(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	// Re-running within the same hour is not deduplicated
	r := reading(t, "2025-07-06 07:00:00", 1234.5)
	require.NoError(t, s.Record(r))
	require.NoError(t, s.Record(r))

	summaries, err := s.ReadMonthly("2025-07")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].ReadingsCount)

	require.Len(t, readCSV(t, s.DailyPath("2025-07-06")), 3)
}

func TestMonthlySummariesSortedByDate(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Record(reading(t, "2025-07-10 07:00:00", 1250.0)))
	require.NoError(t, s.Record(reading(t, "2025-07-02 07:00:00", 1210.0)))
	require.NoError(t, s.Record(reading(t, "2025-07-06 07:00:00", 1234.5)))

	summaries, err := s.ReadMonthly("2025-07")
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, "2025-07-02", summaries[0].Date)
	assert.Equal(t, "2025-07-06", summaries[1].Date)
	assert.Equal(t, "2025-07-10", summaries[2].Date)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	r := reading(t, "2025-07-06 08:00:00", 1236.0)
	require.NoError(t, s.WriteSnapshot(r))

	snap, err := s.ReadSnapshot()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, r, snap.Reading())
	assert.Equal(t, models.NewSnapshot(r), *snap)
}

func TestReadSnapshotMissing(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	snap, err := s.ReadSnapshot()
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestRecordLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.Record(reading(t, "2025-07-06 07:00:00", 1234.5)))
	require.NoError(t, s.WriteReadme())

	var names []string
	for _, sub := range []string{dir, s.dailyDir, s.monthlyDir} {
		entries, err := os.ReadDir(sub)
		require.NoError(t, err)
		for _, e := range entries {
			names = append(names, e.Name())
		}
	}
	for _, name := range names {
		assert.NotContains(t, name, ".tmp")
	}
}

func TestWriteReadme(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.WriteReadme())

	data, err := os.ReadFile(dir + "/README.md")
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Energy Data")
	assert.Contains(t, string(data), "energy_YYYY-MM-DD.csv")
}

func TestRecordRejectsMalformedDailyFile(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	// A daily file whose rows don't match the expected columns
	corrupt := "timestamp,date,kwh\n2025-07-06 07:00:00 UTC,2025-07-06,1234.5\n"
	require.NoError(t, os.WriteFile(s.DailyPath("2025-07-06"), []byte(corrupt), 0644))

	err = s.Record(reading(t, "2025-07-06 08:00:00", 1236.0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed row")

	// Nothing downstream was written
	_, statErr := os.Stat(s.MonthlyPath("2025-07"))
	assert.True(t, os.IsNotExist(statErr))
	snap, err := s.ReadSnapshot()
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestRecordRejectsMalformedMonthlyFile(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	corrupt := "date,latest_reading_kwh\n2025-07-05,1200\n"
	require.NoError(t, os.WriteFile(s.MonthlyPath("2025-07"), []byte(corrupt), 0644))

	err = s.Record(reading(t, "2025-07-06 08:00:00", 1236.0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed row")
}

func TestRecordPreservesOtherDatesInMonth(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Record(reading(t, "2025-07-05 07:00:00", 1200.0)))
	require.NoError(t, s.Record(reading(t, "2025-07-06 07:00:00", 1234.5)))
	require.NoError(t, s.Record(reading(t, "2025-07-06 08:00:00", 1236.0)))

	summaries, err := s.ReadMonthly("2025-07")
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// The 7/5 entry is untouched by 7/6 updates
	assert.Equal(t, 1200.0, summaries[0].LatestReadingKWh)
	assert.Equal(t, 1, summaries[0].ReadingsCount)
	assert.Equal(t, 1236.0, summaries[1].LatestReadingKWh)
	assert.Equal(t, 2, summaries[1].ReadingsCount)
}
