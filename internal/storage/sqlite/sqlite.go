// Package sqlite archives readings in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/chrissnell/observerip/internal/storage"
	"github.com/chrissnell/observerip/internal/types"
	"github.com/chrissnell/observerip/pkg/migrate"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrations returns the archive schema migrations.
func Migrations() fs.FS {
	sub, _ := fs.Sub(migrationFS, "migrations")
	return sub
}

const columns = `time, stationname, stationtype, sessionid, barometer, intemp, inhumidity,
	outtemp, outhumidity, windspeed, windgust, winddir, windchill, heatindex, dewpoint,
	solarwatts, uv, rainincremental, intempbatterystatus, outtempbatterystatus, txbatterystatus`

// Storage is the SQLite archive backend.
type Storage struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// New opens the archive at path and migrates its schema.
func New(path string, logger *zap.SugaredLogger) (*Storage, error) {
	logger = logger.Named("sqlite")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping archive %s: %w", path, err)
	}

	m := migrate.NewMigrator(db, migrate.NewFSProvider(Migrations(), "schema_migrations"), logger)
	if err := m.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate archive: %w", err)
	}

	return &Storage{db: db, logger: logger}, nil
}

// StartStorageEngine starts the goroutine that archives readings sent on the
// returned channel.
func (s *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.Reading {
	s.logger.Info("starting SQLite storage engine...")
	readingChan := make(chan types.Reading, 10)
	wg.Add(1)
	go storage.ProcessReadings(ctx, wg, readingChan, s.StoreReading, "SQLite", s.logger)
	return readingChan
}

// StoreReading archives r. A second reading for the same station and second
// replaces the first.
func (s *Storage) StoreReading(r types.Reading) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO observations (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Timestamp.Unix(), r.StationName, r.StationType, r.SessionID,
		r.Barometer, r.InTemp, r.InHumidity, r.OutTemp, r.OutHumidity,
		r.WindSpeed, r.WindGust, r.WindDir, r.WindChill, r.HeatIndex, r.DewPoint,
		r.SolarWatts, r.UV, r.RainIncremental,
		r.InTempBatteryStatus, r.OutTempBatteryStatus, r.TxBatteryStatus,
	)
	if err != nil {
		return fmt.Errorf("could not archive reading: %w", err)
	}
	return nil
}

// Latest returns the newest archived reading for station, or nil if there is
// none.
func (s *Storage) Latest(ctx context.Context, station string) (*types.Reading, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM observations
		WHERE stationname = ? ORDER BY time DESC LIMIT 1`, station)

	var (
		r          types.Reading
		ts         int64
		stationTyp sql.NullString
		sessionID  sql.NullString
	)
	err := row.Scan(&ts, &r.StationName, &stationTyp, &sessionID,
		&r.Barometer, &r.InTemp, &r.InHumidity, &r.OutTemp, &r.OutHumidity,
		&r.WindSpeed, &r.WindGust, &r.WindDir, &r.WindChill, &r.HeatIndex, &r.DewPoint,
		&r.SolarWatts, &r.UV, &r.RainIncremental,
		&r.InTempBatteryStatus, &r.OutTempBatteryStatus, &r.TxBatteryStatus,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read latest reading for %s: %w", station, err)
	}

	r.Timestamp = time.Unix(ts, 0)
	r.StationType = stationTyp.String
	r.SessionID = sessionID.String
	return &r, nil
}

// RainSince returns the rain archived for station at or after t.
func (s *Storage) RainSince(ctx context.Context, station string, t time.Time) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(rainincremental), 0) FROM observations
		WHERE stationname = ? AND time >= ?`, station, t.Unix()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("could not sum rain for %s: %w", station, err)
	}
	return total, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}
