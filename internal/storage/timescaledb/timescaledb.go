// Package timescaledb stores readings in a TimescaleDB hypertable.
package timescaledb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/observerip/internal/log"
	"github.com/chrissnell/observerip/internal/storage"
	"github.com/chrissnell/observerip/internal/types"
	"github.com/chrissnell/observerip/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Storage holds the connection for a TimescaleDB storage backend
type Storage struct {
	TimescaleDBConn *gorm.DB
	logger          *zap.SugaredLogger
}

// schemaStep is one statement run when the backend starts. Optional steps
// only warn on failure.
type schemaStep struct {
	name     string
	sql      string
	optional bool
}

var schema = []schemaStep{
	{name: "weather table", sql: createTableSQL},
	{name: "TimescaleDB extension", sql: createExtensionSQL},
	{name: "hypertable", sql: createHypertableSQL},
	{name: "station/time index", sql: createIndexSQL},
	{name: "circular average type", sql: createCircAvgStateTypeSQL, optional: true},
	{name: "circular average accumulator", sql: createCircAvgStateFunctionSQL},
	{name: "circular average combiner", sql: createCircAvgCombinerFunctionSQL},
	{name: "circular average finalizer", sql: createCircAvgFinalizerFunctionSQL},
	{name: "circular average aggregate", sql: createCircAvgAggregateFunctionSQL},
	{name: "1h view", sql: create1hViewSQL},
	{name: "1h aggregation policy", sql: addAggregationPolicy1hSQL},
	{name: "drop rain-since-midnight view", sql: dropRainSinceMidnightViewSQL},
	{name: "rain-since-midnight view", sql: createRainSinceMidnightViewSQL},
}

// New connects to TimescaleDB and prepares the schema.
func New(ctx context.Context, c *config.TimescaleDBData, logger *zap.SugaredLogger) (*Storage, error) {
	t := &Storage{logger: logger.Named("timescaledb")}

	dbLogger := gormlogger.New(
		log.StdLogger(zapcore.WarnLevel),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Warn,
		},
	)

	t.logger.Info("connecting to TimescaleDB...")
	conn, err := gorm.Open(postgres.Open(c.ConnectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("unable to create a TimescaleDB connection: %w", err)
	}
	t.TimescaleDBConn = conn

	for _, step := range schema {
		t.logger.Debugf("creating %s...", step.name)
		if err := conn.WithContext(ctx).Exec(step.sql).Error; err != nil {
			if step.optional {
				t.logger.Warnf("could not create %s, it probably exists already: %v", step.name, err)
				continue
			}
			return nil, fmt.Errorf("could not create %s: %w", step.name, err)
		}
	}

	return t, nil
}

// StartStorageEngine creates a goroutine loop to receive readings and send
// them off to TimescaleDB
func (t *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.Reading {
	t.logger.Info("starting TimescaleDB storage engine...")
	readingChan := make(chan types.Reading, 10)
	wg.Add(1)
	go storage.ProcessReadings(ctx, wg, readingChan, t.StoreReading, "TimescaleDB", t.logger)
	return readingChan
}

// StoreReading stores a reading value in TimescaleDB
func (t *Storage) StoreReading(r types.Reading) error {
	if err := t.TimescaleDBConn.Create(&r).Error; err != nil {
		return fmt.Errorf("could not store reading: %w", err)
	}
	return nil
}
