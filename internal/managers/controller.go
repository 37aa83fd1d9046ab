package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrissnell/observerip/internal/controllers/restserver"
	"github.com/chrissnell/observerip/internal/interfaces"
	"github.com/chrissnell/observerip/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ControllerManager interface for the controller manager
type ControllerManager interface {
	StartControllers() error
}

// Controller is an interface that provides standard methods for various controller backends
type Controller interface {
	StartController() error
}

// NewControllerManager creates the configured controllers. Controllers that
// consume readings are added to sm.
func NewControllerManager(ctx context.Context, wg *sync.WaitGroup, controllers []config.ControllerData, sm *StorageManager,
	wsm interfaces.WeatherStationManager, gatherer prometheus.Gatherer, logger *zap.SugaredLogger) (ControllerManager, error) {
	cm := &controllerManager{
		ctx:         ctx,
		wg:          wg,
		storage:     sm,
		stations:    wsm,
		gatherer:    gatherer,
		logger:      logger,
		controllers: make([]Controller, 0),
	}

	for _, con := range controllers {
		controller, err := cm.createController(con)
		if err != nil {
			return nil, fmt.Errorf("error creating controller: %v", err)
		}
		cm.controllers = append(cm.controllers, controller)
	}

	return cm, nil
}

type controllerManager struct {
	ctx         context.Context
	wg          *sync.WaitGroup
	storage     *StorageManager
	stations    interfaces.WeatherStationManager
	gatherer    prometheus.Gatherer
	logger      *zap.SugaredLogger
	controllers []Controller
}

func (c *controllerManager) StartControllers() error {
	c.logger.Info("Starting controller manager...")

	for _, controller := range c.controllers {
		if err := controller.StartController(); err != nil {
			return fmt.Errorf("error starting controller: %v", err)
		}
	}

	c.logger.Infof("Started %d controllers successfully", len(c.controllers))
	return nil
}

// createController creates a controller based on the controller configuration
func (c *controllerManager) createController(cc config.ControllerData) (Controller, error) {
	switch cc.Type {
	case "restserver", "rest":
		if cc.RESTServer == nil {
			return nil, fmt.Errorf("rest controller has no rest configuration")
		}
		var archive restserver.Archive
		if c.storage.Archive != nil {
			archive = c.storage.Archive
		}
		rs, err := restserver.NewController(c.ctx, c.wg, *cc.RESTServer, c.stations, archive, c.gatherer, c.logger)
		if err != nil {
			return nil, err
		}
		c.storage.AddEngine(c.ctx, c.wg, "rest", rs)
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown controller type: %s", cc.Type)
	}
}
