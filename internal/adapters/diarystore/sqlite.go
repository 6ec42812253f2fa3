// Package diarystore provides the relational home of raw diary entries.
// Clean Architecture: Adapter implementing ports.DiaryStore.
package diarystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mizuki-h/diaryrag/internal/domain/entities"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ErrNotFound indicates no diary entry exists for the requested date.
var ErrNotFound = errors.New("diary entry not found")

// SQLiteStore persists diary entries and their enrichment records.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the diary database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/diary_enriched.sqlite"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		date TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		location TEXT,
		tags TEXT
	);
	CREATE TABLE IF NOT EXISTS weather_daily (
		date TEXT NOT NULL,
		lat REAL NOT NULL,
		lon REAL NOT NULL,
		tmax_c REAL,
		tmin_c REAL,
		precip_mm REAL,
		weather_code INTEGER,
		weather_text TEXT,
		source TEXT,
		PRIMARY KEY(date, lat, lon)
	);
	CREATE TABLE IF NOT EXISTS sun_info (
		date TEXT NOT NULL,
		lat REAL NOT NULL,
		lon REAL NOT NULL,
		sunrise_utc TEXT,
		sunset_utc TEXT,
		source TEXT,
		PRIMARY KEY(date, lat, lon)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save inserts or replaces entries, keyed by date.
func (s *SQLiteStore) Save(ctx context.Context, entries []entities.DiaryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO entries (date, body, location, tags)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		tags := strings.Join(entry.Tags, ",")
		if _, err := stmt.ExecContext(ctx, entry.Date, entry.Body, entry.Location, tags); err != nil {
			return fmt.Errorf("inserting entry %s: %w", entry.Date, err)
		}
	}
	return tx.Commit()
}

// GetByDate returns the entry for date, or ErrNotFound.
func (s *SQLiteStore) GetByDate(ctx context.Context, date string) (*entities.DiaryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entry entities.DiaryEntry
	var location, tags sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT date, body, location, tags FROM entries WHERE date = ?
	`, date).Scan(&entry.Date, &entry.Body, &location, &tags)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying entry: %w", err)
	}

	entry.Location = location.String
	if tags.String != "" {
		entry.Tags = strings.Split(tags.String, ",")
	}
	return &entry, nil
}

// SaveEnrichment stores the weather and daylight facts for a date.
func (s *SQLiteStore) SaveEnrichment(ctx context.Context, e entities.Enrichment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if e.WeatherText != "" {
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO weather_daily
				(date, lat, lon, tmax_c, tmin_c, precip_mm, weather_code, weather_text, source)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, e.Date, e.Lat, e.Lon, e.TmaxC, e.TminC, e.PrecipMM, e.WeatherCode, e.WeatherText, e.Source)
		if err != nil {
			return fmt.Errorf("inserting weather: %w", err)
		}
	}

	if e.SunriseUTC != "" || e.SunsetUTC != "" {
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO sun_info (date, lat, lon, sunrise_utc, sunset_utc, source)
			VALUES (?, ?, ?, ?, ?, ?)
		`, e.Date, e.Lat, e.Lon, e.SunriseUTC, e.SunsetUTC, e.Source)
		if err != nil {
			return fmt.Errorf("inserting sun info: %w", err)
		}
	}

	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
