package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/i474232898/weather-forecast/internal/weather"
)

const schema = `
CREATE TABLE IF NOT EXISTS forecast_items (
	slot_key            TEXT PRIMARY KEY,
	dt_timestamp        INTEGER NOT NULL,
	date_time_text      TEXT NOT NULL,
	temp                REAL NOT NULL,
	feels_like          REAL NOT NULL,
	humidity            INTEGER NOT NULL,
	pressure            INTEGER NOT NULL,
	weather_main        TEXT NOT NULL,
	weather_description TEXT NOT NULL,
	weather_icon        TEXT NOT NULL,
	wind_speed          REAL NOT NULL,
	cloudiness_percent  INTEGER NOT NULL,
	rain_volume_3h      REAL,
	city_name           TEXT NOT NULL COLLATE NOCASE,
	country_code        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_forecast_items_city_dt ON forecast_items (city_name, dt_timestamp);

CREATE TABLE IF NOT EXISTS last_fetch_timestamps (
	city_name_key TEXT PRIMARY KEY COLLATE NOCASE,
	timestamp     INTEGER NOT NULL
);
`

const selectColumns = `slot_key, dt_timestamp, date_time_text, temp, feels_like, humidity, pressure,
	weather_main, weather_description, weather_icon, wind_speed, cloudiness_percent,
	rain_volume_3h, city_name, country_code`

// SQLiteStore persists forecasts in a sqlite database.
type SQLiteStore struct {
	db  *sql.DB
	hub *watchHub
}

// OpenSQLite opens (creating if needed) the database at path. Use ":memory:"
// for a throwaway database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, hub: newWatchHub()}, nil
}

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping() error {
	return s.db.Ping()
}

// ReadByCityOnce returns the slots of city ordered by time.
func (s *SQLiteStore) ReadByCityOnce(ctx context.Context, city string) ([]weather.ForecastEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM forecast_items WHERE city_name = ? ORDER BY dt_timestamp ASC`, city)
	if err != nil {
		return nil, fmt.Errorf("query forecast for %s: %w", city, err)
	}
	defer rows.Close()

	entries := []weather.ForecastEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// WatchByCity streams the slots of city after every replace.
func (s *SQLiteStore) WatchByCity(ctx context.Context, city string) (<-chan []weather.ForecastEntry, error) {
	initial, err := s.ReadByCityOnce(ctx, city)
	if err != nil {
		return nil, err
	}
	return s.hub.watch(ctx, city, initial), nil
}

// Slot looks up a single slot by its key.
func (s *SQLiteStore) Slot(ctx context.Context, slotKey string) (weather.ForecastEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM forecast_items WHERE slot_key = ?`, slotKey)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.ForecastEntry{}, ErrNotFound
	}
	return e, err
}

// ReplaceByCity drops every slot of city and inserts entries, atomically.
func (s *SQLiteStore) ReplaceByCity(ctx context.Context, city string, entries []weather.ForecastEntry) error {
	return s.inTx(ctx, city, entries, func(tx *sql.Tx) error {
		return replaceTx(ctx, tx, city, entries)
	})
}

// LastFetch returns when city was last fetched.
func (s *SQLiteStore) LastFetch(ctx context.Context, city string) (time.Time, bool, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx,
		`SELECT timestamp FROM last_fetch_timestamps WHERE city_name_key = ?`, city).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query last fetch for %s: %w", city, err)
	}
	return time.UnixMilli(ms), true, nil
}

// UpsertLastFetch records the last fetch time of city.
func (s *SQLiteStore) UpsertLastFetch(ctx context.Context, city string, fetchedAt time.Time) error {
	return upsertTx(ctx, s.db, city, fetchedAt)
}

// CommitFetch replaces the slots of city and records fetchedAt in one
// transaction.
func (s *SQLiteStore) CommitFetch(ctx context.Context, city string, entries []weather.ForecastEntry, fetchedAt time.Time) error {
	return s.inTx(ctx, city, entries, func(tx *sql.Tx) error {
		if err := replaceTx(ctx, tx, city, entries); err != nil {
			return err
		}
		return upsertTx(ctx, tx, city, fetchedAt)
	})
}

// Cities lists every fetched city, most recent first.
func (s *SQLiteStore) Cities(ctx context.Context) ([]weather.LastFetch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT city_name_key, timestamp FROM last_fetch_timestamps ORDER BY timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("query cities: %w", err)
	}
	defer rows.Close()

	var result []weather.LastFetch
	for rows.Next() {
		var lf weather.LastFetch
		var ms int64
		if err := rows.Scan(&lf.City, &ms); err != nil {
			return nil, err
		}
		lf.FetchedAt = time.UnixMilli(ms)
		result = append(result, lf)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) inTx(ctx context.Context, city string, entries []weather.ForecastEntry, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit forecast for %s: %w", city, err)
	}

	sorted := cloneEntries(entries)
	weather.SortEntries(sorted)
	s.hub.publish(city, sorted)
	return nil
}

func replaceTx(ctx context.Context, tx *sql.Tx, city string, entries []weather.ForecastEntry) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM forecast_items WHERE city_name = ?`, city); err != nil {
		return fmt.Errorf("delete forecast for %s: %w", city, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO forecast_items (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		var rain sql.NullFloat64
		if e.RainVolume3h != nil {
			rain = sql.NullFloat64{Float64: *e.RainVolume3h, Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			e.SlotKey, e.Timestamp, e.DateTimeText, e.Temperature, e.FeelsLike,
			e.Humidity, e.Pressure, e.WeatherMain, e.WeatherDescription, e.WeatherIcon,
			e.WindSpeed, e.CloudinessPercent, rain, e.CityName, e.CountryCode,
		)
		if err != nil {
			return fmt.Errorf("insert slot %s: %w", e.SlotKey, err)
		}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertTx(ctx context.Context, db execer, city string, fetchedAt time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO last_fetch_timestamps (city_name_key, timestamp) VALUES (?, ?)`,
		city, fetchedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert last fetch for %s: %w", city, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (weather.ForecastEntry, error) {
	var (
		e    weather.ForecastEntry
		rain sql.NullFloat64
	)
	err := row.Scan(
		&e.SlotKey, &e.Timestamp, &e.DateTimeText, &e.Temperature, &e.FeelsLike,
		&e.Humidity, &e.Pressure, &e.WeatherMain, &e.WeatherDescription, &e.WeatherIcon,
		&e.WindSpeed, &e.CloudinessPercent, &rain, &e.CityName, &e.CountryCode,
	)
	if err != nil {
		return weather.ForecastEntry{}, err
	}
	if rain.Valid {
		v := rain.Float64
		e.RainVolume3h = &v
	}
	return e, nil
}

var _ weather.Store = (*SQLiteStore)(nil)
