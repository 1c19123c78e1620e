package models

import (
	"fmt"
	"time"
)

// Reading represents a single cumulative energy reading from the meter
type Reading struct {
	Timestamp        time.Time `json:"timestamp"`                // UTC fetch time
	ForwardEnergyKWh float64   `json:"forward_energy_total_kwh"` // cumulative forward energy
}

// Date returns the reading's calendar date as YYYY-MM-DD
func (r Reading) Date() string {
	return r.Timestamp.Format("2006-01-02")
}

// Clock returns the reading's time of day as HH:MM:SS
func (r Reading) Clock() string {
	return r.Timestamp.Format("15:04:05")
}

// Month returns the reading's year-month as YYYY-MM
func (r Reading) Month() string {
	return r.Timestamp.Format("2006-01")
}

// Hour returns the hour of day (0-23)
func (r Reading) Hour() int {
	return r.Timestamp.Hour()
}

// DayOfWeek returns the English day name (Monday, Tuesday, ...)
func (r Reading) DayOfWeek() string {
	return r.Timestamp.Weekday().String()
}

// Unix returns the reading's unix timestamp in seconds
func (r Reading) Unix() int64 {
	return r.Timestamp.Unix()
}

// DailySummary is one row of a monthly summary record: the state of a single
// day, updated in place as readings arrive for that date
type DailySummary struct {
	Date             string    `json:"date"`
	DayOfWeek        string    `json:"day_of_week"`
	LatestReadingKWh float64   `json:"latest_reading_kwh"`
	LastUpdated      time.Time `json:"last_updated"`
	ReadingsCount    int       `json:"readings_count"`
}

// Snapshot is the latest-reading file: a Reading flattened out with all of
// its derived fields so consumers don't need to compute them
type Snapshot struct {
	Timestamp        time.Time `json:"timestamp"`
	Date             string    `json:"date"`
	Time             string    `json:"time"`
	ForwardEnergyKWh float64   `json:"forward_energy_total_kwh"`
	Hour             int       `json:"hour"`
	DayOfWeek        string    `json:"day_of_week"`
	UnixTimestamp    int64     `json:"unix_timestamp"`
	FormattedReading string    `json:"formatted_reading"`
}

// NewSnapshot builds a Snapshot from a Reading
func NewSnapshot(r Reading) Snapshot {
	return Snapshot{
		Timestamp:        r.Timestamp,
		Date:             r.Date(),
		Time:             r.Clock(),
		ForwardEnergyKWh: r.ForwardEnergyKWh,
		Hour:             r.Hour(),
		DayOfWeek:        r.DayOfWeek(),
		UnixTimestamp:    r.Unix(),
		FormattedReading: fmt.Sprintf("%g kWh at %s %s UTC", r.ForwardEnergyKWh, r.Date(), r.Clock()),
	}
}

// Reading reconstructs the Reading a Snapshot was built from
func (s Snapshot) Reading() Reading {
	return Reading{Timestamp: s.Timestamp, ForwardEnergyKWh: s.ForwardEnergyKWh}
}
