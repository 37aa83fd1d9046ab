// Package restserver serves the latest readings, the probed device's network
// identity and the poll metrics over HTTP.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/observerip/internal/log"
	"github.com/chrissnell/observerip/internal/storage"
	"github.com/chrissnell/observerip/internal/types"
	"github.com/chrissnell/observerip/internal/weatherstations"
	"github.com/chrissnell/observerip/pkg/config"
	"github.com/chrissnell/observerip/pkg/responseformat"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StationLookup finds a running weather station by name.
type StationLookup interface {
	GetStation(deviceName string) weatherstations.WeatherStation
}

// Archive answers queries the in-memory cache cannot.
type Archive interface {
	Latest(ctx context.Context, station string) (*types.Reading, error)
	RainSince(ctx context.Context, station string, t time.Time) (float64, error)
}

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.RESTServerData
	Server     http.Server
	stations   StationLookup
	archive    Archive
	gatherer   prometheus.Gatherer
	formatter  *responseformat.Formatter
	logger     *zap.SugaredLogger

	mu     sync.RWMutex
	latest map[string]types.Reading
}

var _ storage.StorageEngineInterface = (*Controller)(nil)

// NewController creates a new REST server controller. archive may be nil.
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.RESTServerData, stations StationLookup,
	archive Archive, gatherer prometheus.Gatherer, logger *zap.SugaredLogger) (*Controller, error) {
	c := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		stations:   stations,
		archive:    archive,
		gatherer:   gatherer,
		formatter:  responseformat.NewFormatter(),
		logger:     logger.Named("restserver"),
		latest:     make(map[string]types.Reading),
	}

	if rc.ListenAddr == "" {
		c.logger.Info("rest.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}
	if rc.Port == 0 {
		c.logger.Info("rest.port not provided; defaulting to 8080")
		rc.Port = 8080
	}
	if (rc.Cert == "") != (rc.Key == "") {
		return nil, fmt.Errorf("rest server needs both cert and key for TLS")
	}

	c.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	c.Server.Handler = c.Handler()
	return c, nil
}

// Handler wraps the routes with access logging, CORS for read-only
// dashboards and panic recovery.
func (c *Controller) Handler() http.Handler {
	var h http.Handler = c.Router()
	h = log.HTTPMiddleware(c.logger)(h)
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet}),
	)(h)
	return handlers.RecoveryHandler(handlers.RecoveryLogger(log.StdLogger(zapcore.ErrorLevel)))(h)
}

// Router returns the HTTP routes.
func (c *Controller) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/latest", c.GetLatest).Methods(http.MethodGet)
	router.HandleFunc("/latest/{station}", c.GetLatest).Methods(http.MethodGet)
	router.HandleFunc("/station/{station}", c.GetStation).Methods(http.MethodGet)
	if c.gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return router
}

// StartStorageEngine receives readings into the latest-reading cache.
func (c *Controller) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.Reading {
	readingChan := make(chan types.Reading, 10)
	wg.Add(1)
	go storage.ProcessReadings(ctx, wg, readingChan, c.cacheReading, "REST latest cache", c.logger)
	return readingChan
}

func (c *Controller) cacheReading(r types.Reading) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.latest[r.StationName]; ok && prev.Timestamp.After(r.Timestamp) {
		return nil
	}
	c.latest[r.StationName] = r
	return nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infof("starting REST server on %s", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		var err error
		if c.restConfig.Cert != "" {
			err = c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key)
		} else {
			err = c.Server.ListenAndServe()
		}
		if err != http.ErrServerClosed {
			c.logger.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}
