package config

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/chrissnell/observerip/pkg/migrate"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrations returns the configuration database schema migrations.
func Migrations() fs.FS {
	sub, _ := fs.Sub(migrationFS, "migrations")
	return sub
}

const (
	kindCalibration = "calibration"
	kindUnits       = "units"
)

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider opens dbPath and brings its schema up to date.
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	m := migrate.NewMigrator(db, migrate.NewFSProvider(Migrations(), "schema_migrations"), nil)
	if err := m.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate config database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	devices, err := s.GetDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to load devices: %w", err)
	}
	config.Devices = devices

	storage, err := s.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	config.Storage = *storage

	controllers, err := s.GetControllers()
	if err != nil {
		return nil, fmt.Errorf("failed to load controllers: %w", err)
	}
	config.Controllers = controllers

	return config, nil
}

const deviceQuery = `
	SELECT d.id, d.name, d.type, d.hostname,
	       o.device_id, o.direct, o.poll_interval, o.dup_interval, o.xferfile,
	       o.max_tries, o.retry_wait, o.check_calibration, o.set_calibration
	FROM devices d
	LEFT JOIN observerip_settings o ON o.device_id = d.id
	WHERE d.config_id = (SELECT id FROM configs WHERE name = 'default')
`

// GetDevices returns device configurations from the database
func (s *SQLiteProvider) GetDevices() ([]DeviceData, error) {
	rows, err := s.db.Query(deviceQuery + " ORDER BY d.name")
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var (
		devices []DeviceData
		ids     []int64
	)
	for rows.Next() {
		id, device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read devices: %w", err)
	}
	rows.Close()

	for i := range devices {
		if err := s.loadValues(ids[i], &devices[i]); err != nil {
			return nil, err
		}
	}
	return devices, nil
}

// GetDevice returns a specific device by name
func (s *SQLiteProvider) GetDevice(name string) (*DeviceData, error) {
	row := s.db.QueryRow(deviceQuery+" AND d.name = ?", name)
	id, device, err := scanDevice(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("device not found: %s", name)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadValues(id, &device); err != nil {
		return nil, err
	}
	return &device, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row scanner) (int64, DeviceData, error) {
	var (
		id               int64
		device           DeviceData
		hostname         sql.NullString
		settingsID       sql.NullInt64
		direct           sql.NullBool
		pollInterval     sql.NullFloat64
		dupInterval      sql.NullFloat64
		xferFile         sql.NullString
		maxTries         sql.NullInt64
		retryWait        sql.NullFloat64
		checkCalibration sql.NullBool
		setCalibration   sql.NullBool
	)

	err := row.Scan(&id, &device.Name, &device.Type, &hostname,
		&settingsID, &direct, &pollInterval, &dupInterval, &xferFile,
		&maxTries, &retryWait, &checkCalibration, &setCalibration)
	if err == sql.ErrNoRows {
		return 0, device, err
	}
	if err != nil {
		return 0, device, fmt.Errorf("failed to scan device row: %w", err)
	}

	device.Hostname = hostname.String
	if settingsID.Valid {
		device.ObserverIP = &ObserverIPData{
			Direct:           direct.Bool,
			PollInterval:     pollInterval.Float64,
			DupInterval:      dupInterval.Float64,
			XferFile:         xferFile.String,
			MaxTries:         int(maxTries.Int64),
			RetryWait:        retryWait.Float64,
			CheckCalibration: checkCalibration.Bool,
			SetCalibration:   setCalibration.Bool,
		}
	}
	return id, device, nil
}

func (s *SQLiteProvider) loadValues(deviceID int64, device *DeviceData) error {
	if device.ObserverIP == nil {
		return nil
	}

	rows, err := s.db.Query("SELECT kind, key, value FROM observerip_values WHERE device_id = ?", deviceID)
	if err != nil {
		return fmt.Errorf("failed to query values for device %s: %w", device.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, key, value string
		if err := rows.Scan(&kind, &key, &value); err != nil {
			return fmt.Errorf("failed to scan value row: %w", err)
		}
		switch kind {
		case kindCalibration:
			if device.ObserverIP.Calibration == nil {
				device.ObserverIP.Calibration = make(map[string]string)
			}
			device.ObserverIP.Calibration[key] = value
		case kindUnits:
			if device.ObserverIP.ExpectedUnits == nil {
				device.ObserverIP.ExpectedUnits = make(map[string]string)
			}
			device.ObserverIP.ExpectedUnits[key] = value
		}
	}
	return rows.Err()
}

// GetStorageConfig returns the enabled storage backends
func (s *SQLiteProvider) GetStorageConfig() (*StorageData, error) {
	query := `
		SELECT backend_type, timescale_connection_string, sqlite_path
		FROM storage_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default') AND enabled = 1
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query storage configs: %w", err)
	}
	defer rows.Close()

	storage := &StorageData{}
	for rows.Next() {
		var backendType string
		var connectionString, sqlitePath sql.NullString
		if err := rows.Scan(&backendType, &connectionString, &sqlitePath); err != nil {
			return nil, fmt.Errorf("failed to scan storage config row: %w", err)
		}

		switch backendType {
		case "timescaledb":
			if connectionString.Valid {
				storage.TimescaleDB = &TimescaleDBData{ConnectionString: connectionString.String}
			}
		case "sqlite":
			if sqlitePath.Valid {
				storage.SQLite = &SQLiteData{Path: sqlitePath.String}
			}
		}
	}

	return storage, rows.Err()
}

// GetControllers returns controller configurations from the database
func (s *SQLiteProvider) GetControllers() ([]ControllerData, error) {
	query := `
		SELECT controller_type, rest_cert, rest_key, rest_port, rest_listen_addr
		FROM controller_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default') AND enabled = 1
		ORDER BY id
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query controllers: %w", err)
	}
	defer rows.Close()

	var controllers []ControllerData
	for rows.Next() {
		var controller ControllerData
		var cert, key, listenAddr sql.NullString
		var port sql.NullInt64
		if err := rows.Scan(&controller.Type, &cert, &key, &port, &listenAddr); err != nil {
			return nil, fmt.Errorf("failed to scan controller row: %w", err)
		}

		if controller.Type == "rest" {
			controller.RESTServer = &RESTServerData{
				Cert:       cert.String,
				Key:        key.String,
				Port:       int(port.Int64),
				ListenAddr: listenAddr.String,
			}
		}
		controllers = append(controllers, controller)
	}

	return controllers, rows.Err()
}

// IsReadOnly returns false since SQLite supports writes
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig replaces the stored configuration with configData.
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.insertConfig(tx, "default")
	if err != nil {
		return fmt.Errorf("failed to insert config: %w", err)
	}

	if err := s.clearExistingConfig(tx, configID); err != nil {
		return fmt.Errorf("failed to clear existing config: %w", err)
	}

	for i := range configData.Devices {
		if err := s.insertDevice(tx, configID, &configData.Devices[i]); err != nil {
			return fmt.Errorf("failed to insert device %s: %w", configData.Devices[i].Name, err)
		}
	}

	if err := s.insertStorageConfigs(tx, configID, &configData.Storage); err != nil {
		return fmt.Errorf("failed to insert storage configs: %w", err)
	}

	for i := range configData.Controllers {
		if err := s.insertController(tx, configID, &configData.Controllers[i]); err != nil {
			return fmt.Errorf("failed to insert controller %s: %w", configData.Controllers[i].Type, err)
		}
	}

	return tx.Commit()
}

// AddDevice adds a device to the stored configuration.
func (s *SQLiteProvider) AddDevice(device *DeviceData) error {
	if err := device.Validate(); err != nil {
		return err
	}
	if _, err := s.GetDevice(device.Name); err == nil {
		return fmt.Errorf("device %s already exists", device.Name)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.insertConfig(tx, "default")
	if err != nil {
		return fmt.Errorf("failed to get config ID: %w", err)
	}
	if err := s.insertDevice(tx, configID, device); err != nil {
		return fmt.Errorf("failed to insert device: %w", err)
	}

	return tx.Commit()
}

// DeleteDevice removes a device and its ObserverIP settings.
func (s *SQLiteProvider) DeleteDevice(name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteDeviceRows(tx, "name = ?", name); err != nil {
		return fmt.Errorf("failed to delete device settings: %w", err)
	}

	result, err := tx.Exec("DELETE FROM devices WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("device %s not found", name)
	}

	return tx.Commit()
}

// insertConfig returns the id of the named config, creating it if needed.
func (s *SQLiteProvider) insertConfig(tx *sql.Tx, name string) (int64, error) {
	_, err := tx.Exec(`
		INSERT INTO configs (name) VALUES (?)
		ON CONFLICT(name) DO UPDATE SET updated_at = CURRENT_TIMESTAMP
	`, name)
	if err != nil {
		return 0, err
	}

	var id int64
	err = tx.QueryRow("SELECT id FROM configs WHERE name = ?", name).Scan(&id)
	return id, err
}

func (s *SQLiteProvider) clearExistingConfig(tx *sql.Tx, configID int64) error {
	if err := deleteDeviceRows(tx, "config_id = ?", configID); err != nil {
		return err
	}

	queries := []string{
		"DELETE FROM devices WHERE config_id = ?",
		"DELETE FROM storage_configs WHERE config_id = ?",
		"DELETE FROM controller_configs WHERE config_id = ?",
	}
	for _, query := range queries {
		if _, err := tx.Exec(query, configID); err != nil {
			return err
		}
	}
	return nil
}

// deleteDeviceRows removes the per-device rows of every device matching where.
func deleteDeviceRows(tx *sql.Tx, where string, arg interface{}) error {
	for _, table := range []string{"observerip_values", "observerip_settings"} {
		query := fmt.Sprintf("DELETE FROM %s WHERE device_id IN (SELECT id FROM devices WHERE %s)", table, where)
		if _, err := tx.Exec(query, arg); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteProvider) insertDevice(tx *sql.Tx, configID int64, device *DeviceData) error {
	result, err := tx.Exec(
		"INSERT INTO devices (config_id, name, type, hostname) VALUES (?, ?, ?, ?)",
		configID, device.Name, device.Type, nullString(device.Hostname),
	)
	if err != nil {
		return err
	}

	o := device.ObserverIP
	if o == nil {
		return nil
	}
	deviceID, err := result.LastInsertId()
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO observerip_settings (
			device_id, direct, poll_interval, dup_interval, xferfile,
			max_tries, retry_wait, check_calibration, set_calibration
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, deviceID, o.Direct, o.PollInterval, o.DupInterval, nullString(o.XferFile),
		o.MaxTries, o.RetryWait, o.CheckCalibration, o.SetCalibration)
	if err != nil {
		return err
	}

	if err := insertValues(tx, deviceID, kindCalibration, o.Calibration); err != nil {
		return err
	}
	return insertValues(tx, deviceID, kindUnits, o.ExpectedUnits)
}

func insertValues(tx *sql.Tx, deviceID int64, kind string, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		_, err := tx.Exec("INSERT INTO observerip_values (device_id, kind, key, value) VALUES (?, ?, ?, ?)",
			deviceID, kind, k, values[k])
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteProvider) insertStorageConfigs(tx *sql.Tx, configID int64, storage *StorageData) error {
	if storage.TimescaleDB != nil {
		_, err := tx.Exec(`
			INSERT INTO storage_configs (config_id, backend_type, enabled, timescale_connection_string)
			VALUES (?, 'timescaledb', 1, ?)
		`, configID, storage.TimescaleDB.ConnectionString)
		if err != nil {
			return err
		}
	}

	if storage.SQLite != nil {
		_, err := tx.Exec(`
			INSERT INTO storage_configs (config_id, backend_type, enabled, sqlite_path)
			VALUES (?, 'sqlite', 1, ?)
		`, configID, storage.SQLite.Path)
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *SQLiteProvider) insertController(tx *sql.Tx, configID int64, controller *ControllerData) error {
	var cert, key, listenAddr sql.NullString
	var port sql.NullInt64
	if r := controller.RESTServer; r != nil {
		cert, key, listenAddr = nullString(r.Cert), nullString(r.Key), nullString(r.ListenAddr)
		port = sql.NullInt64{Int64: int64(r.Port), Valid: r.Port != 0}
	}

	_, err := tx.Exec(`
		INSERT INTO controller_configs (
			config_id, controller_type, enabled, rest_cert, rest_key, rest_port, rest_listen_addr
		) VALUES (?, ?, 1, ?, ?, ?, ?)
	`, configID, controller.Type, cert, key, port, listenAddr)
	return err
}

// Helper functions for handling nullable fields
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
