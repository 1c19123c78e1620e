package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jgoulah/tuyalogger/pkg/models"
	_ "modernc.org/sqlite"
)

// DB wraps the readings archive database
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		kwh REAL NOT NULL,
		hour INTEGER NOT NULL,
		day_of_week TEXT NOT NULL,
		unix_timestamp INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(timestamp)
	);
	CREATE INDEX IF NOT EXISTS idx_readings_date ON readings(date);
	CREATE INDEX IF NOT EXISTS idx_readings_unix ON readings(unix_timestamp);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// InsertReading inserts a reading, ignoring duplicates of the same timestamp
func (db *DB) InsertReading(r models.Reading) error {
	query := `
	INSERT OR IGNORE INTO readings (timestamp, date, time, kwh, hour, day_of_week, unix_timestamp, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	timestampStr := r.Timestamp.Format("2006-01-02 15:04:05")
	createdAt := time.Now().UTC().Format(time.RFC3339)

	_, err := db.conn.Exec(query, timestampStr, r.Date(), r.Clock(), r.ForwardEnergyKWh, r.Hour(), r.DayOfWeek(), r.Unix(), createdAt)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}

	return nil
}

// LatestReading retrieves the most recent reading, or nil if none exist
func (db *DB) LatestReading() (*models.Reading, error) {
	query := `
	SELECT timestamp, kwh
	FROM readings
	ORDER BY unix_timestamp DESC
	LIMIT 1
	`

	row := db.conn.QueryRow(query)

	var timestampStr string
	var r models.Reading

	err := row.Scan(&timestampStr, &r.ForwardEnergyKWh)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest reading: %w", err)
	}

	r.Timestamp, err = time.ParseInLocation("2006-01-02 15:04:05", timestampStr, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp: %w", err)
	}

	return &r, nil
}

// ListReadings retrieves readings in chronological order. An empty prefix
// returns everything; a date ("2025-07-06") or month ("2025-07") prefix
// filters to that period.
func (db *DB) ListReadings(prefix string) ([]models.Reading, error) {
	query := `
	SELECT timestamp, kwh
	FROM readings
	WHERE date LIKE ?
	ORDER BY unix_timestamp ASC
	`

	rows, err := db.conn.Query(query, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	var results []models.Reading
	for rows.Next() {
		var timestampStr string
		var r models.Reading

		if err := rows.Scan(&timestampStr, &r.ForwardEnergyKWh); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		r.Timestamp, err = time.ParseInLocation("2006-01-02 15:04:05", timestampStr, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}

		results = append(results, r)
	}

	return results, rows.Err()
}

// ListDailyLatest retrieves one row per day of a month (YYYY-MM): the
// latest reading for that date plus how many readings it accumulated,
// ordered by date
func (db *DB) ListDailyLatest(month string) ([]models.DailySummary, error) {
	// In a GROUP BY with a bare MAX(), sqlite takes the other columns
	// from the row holding the maximum
	query := `
	SELECT date, day_of_week, kwh, timestamp, COUNT(*), MAX(unix_timestamp)
	FROM readings
	WHERE date LIKE ?
	GROUP BY date
	ORDER BY date ASC
	`

	rows, err := db.conn.Query(query, month+"%")
	if err != nil {
		return nil, fmt.Errorf("querying daily latest readings: %w", err)
	}
	defer rows.Close()

	var results []models.DailySummary
	for rows.Next() {
		var sum models.DailySummary
		var timestampStr string
		var maxUnix int64

		if err := rows.Scan(&sum.Date, &sum.DayOfWeek, &sum.LatestReadingKWh, &timestampStr, &sum.ReadingsCount, &maxUnix); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		sum.LastUpdated, err = time.ParseInLocation("2006-01-02 15:04:05", timestampStr, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}

		results = append(results, sum)
	}

	return results, rows.Err()
}

// CountReadings returns the number of archived readings for a date
func (db *DB) CountReadings(date string) (int, error) {
	var count int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM readings WHERE date = ?`, date).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting readings: %w", err)
	}
	return count, nil
}
