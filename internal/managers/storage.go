package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrissnell/observerip/internal/storage"
	"github.com/chrissnell/observerip/internal/storage/sqlite"
	"github.com/chrissnell/observerip/internal/storage/timescaledb"
	"github.com/chrissnell/observerip/internal/types"
	"github.com/chrissnell/observerip/pkg/config"
	"go.uber.org/zap"
)

// StorageManager holds our active storage backends
type StorageManager struct {
	Engines            []StorageEngine
	ReadingDistributor chan types.Reading
	// Archive is the SQLite engine, if one is configured.
	Archive *sqlite.Storage

	mu     sync.RWMutex
	logger *zap.SugaredLogger
}

// StorageEngine holds a backend storage engine's interface as well as
// a channel for passing readings to the engine
type StorageEngine struct {
	Name   string
	Engine storage.StorageEngineInterface
	C      chan<- types.Reading
}

// NewStorageManager creates a StorageManager object, populated with all configured StorageEngines
func NewStorageManager(ctx context.Context, wg *sync.WaitGroup, c *config.StorageData, logger *zap.SugaredLogger) (*StorageManager, error) {
	s := &StorageManager{
		ReadingDistributor: make(chan types.Reading, 20),
		logger:             logger,
	}

	if c.TimescaleDB != nil && c.TimescaleDB.ConnectionString != "" {
		t, err := timescaledb.New(ctx, c.TimescaleDB, logger)
		if err != nil {
			return nil, fmt.Errorf("could not add TimescaleDB storage backend: %v", err)
		}
		s.AddEngine(ctx, wg, "timescaledb", t)
	}

	if c.SQLite != nil && c.SQLite.Path != "" {
		a, err := sqlite.New(c.SQLite.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("could not add SQLite storage backend: %v", err)
		}
		s.Archive = a
		s.AddEngine(ctx, wg, "sqlite", a)
	}

	wg.Add(1)
	go s.startReadingDistributor(ctx, wg)

	return s, nil
}

// AddEngine starts engine and adds it to the fan-out.
func (s *StorageManager) AddEngine(ctx context.Context, wg *sync.WaitGroup, name string, engine storage.StorageEngineInterface) {
	se := StorageEngine{Name: name, Engine: engine}
	se.C = engine.StartStorageEngine(ctx, wg)

	s.mu.Lock()
	s.Engines = append(s.Engines, se)
	s.mu.Unlock()
}

// startReadingDistributor receives readings from gatherers and fans them out to the various
// storage backends
func (s *StorageManager) startReadingDistributor(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case r := <-s.ReadingDistributor:
			s.mu.RLock()
			engines := s.Engines
			s.mu.RUnlock()

			if len(engines) == 0 {
				s.logger.Debugf("no storage engines configured, discarding reading from %s", r.StationName)
			}
			for _, e := range engines {
				select {
				case e.C <- r:
				case <-ctx.Done():
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
