package observerip

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Device pages, relative to the base unit's address.
const (
	PageNetwork            = "bscsetting.htm"
	PageCredentials        = "weather.htm"
	PageStation            = "station.htm"
	PageLiveData           = "livedata.htm"
	PageCalibration        = "correction.htm"
	PageCalibrationDefault = "msgcoredef.htm"
)

// ErrNothingToSet is returned by SetCredentials when neither value is given.
var ErrNothingToSet = errors.New("nothing to set")

type options struct {
	baseURL   string
	probePort int
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	metrics   *Metrics
}

// Option adjusts how the driver reaches the device.
type Option func(*options)

// WithBaseURL sends HTTP requests to url instead of the probed address.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = strings.TrimSuffix(url, "/") }
}

// WithProbePort sends discovery probes to port instead of ProbePort.
func WithProbePort(port int) Option {
	return func(o *options) { o.probePort = port }
}

// WithClock replaces the wall clock and the sleep between poll cycles.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) {
		o.now = now
		o.sleep = sleep
	}
}

// WithMetrics records poll and fetch activity in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) *options {
	o := &options{
		probePort: ProbePort,
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// DeviceClient talks to one probed base unit. Requests are serialized; the
// device's web server handles one at a time.
type DeviceClient struct {
	host    string
	baseURL string
	fixed   bool

	prober  *Prober
	scraper *FormScraper
	logger  *zap.SugaredLogger

	mu     sync.Mutex
	packet InfoPacket
}

// Dial probes host (broadcasting when host is empty) and returns a client for
// the device that answered. Failing to obtain a probe reply is fatal.
func Dial(ctx context.Context, host string, policy RetryPolicy, logger *zap.SugaredLogger, opts ...Option) (*DeviceClient, error) {
	o := buildOptions(opts)

	c := &DeviceClient{
		host:    host,
		baseURL: o.baseURL,
		fixed:   o.baseURL != "",
		prober:  NewProber(policy, logger),
		scraper: NewFormScraper(policy, logger),
		logger:  logger,
	}
	c.prober.Port = o.probePort
	c.scraper.Metrics = o.metrics

	if err := c.probe(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *DeviceClient) probe(ctx context.Context) error {
	packet, err := c.prober.Probe(ctx, c.host)
	if err != nil {
		return err
	}
	ip, err := packet.IPAddr()
	if err != nil {
		return fmt.Errorf("unusable probe reply: %w", err)
	}

	c.packet = packet
	if !c.fixed {
		c.baseURL = "http://" + ip
	}
	return nil
}

// Packet returns the most recent probe reply.
func (c *DeviceClient) Packet() InfoPacket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.packet
}

// Version returns the firmware version string of the probed device.
func (c *DeviceClient) Version() (string, error) {
	return c.Packet().Version()
}

func (c *DeviceClient) url(page string) string {
	return c.baseURL + "/" + page
}

func (c *DeviceClient) fetch(ctx context.Context, page string, readable bool) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scraper.Fetch(ctx, c.url(page), readable)
}

func (c *DeviceClient) submit(ctx context.Context, page string, form map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scraper.Submit(ctx, c.url(page), form)
}

// NetworkSettings reads the network page.
func (c *DeviceClient) NetworkSettings(ctx context.Context, readable bool) map[string]string {
	return c.fetch(ctx, PageNetwork, readable)
}

// SetNetworkSettings writes the network page.
func (c *DeviceClient) SetNetworkSettings(ctx context.Context, settings map[string]string) error {
	return c.submit(ctx, PageNetwork, settings)
}

// Credentials reads the Weather Underground station id and password.
func (c *DeviceClient) Credentials(ctx context.Context) map[string]string {
	return c.fetch(ctx, PageCredentials, false)
}

// SetCredentials writes the Weather Underground station id and password.
// An empty id or password keeps the value currently stored on the device.
func (c *DeviceClient) SetCredentials(ctx context.Context, id, password string) error {
	if id == "" && password == "" {
		return ErrNothingToSet
	}
	if id == "" || password == "" {
		current := c.Credentials(ctx)
		if id == "" {
			id = current["stationID"]
		}
		if password == "" {
			password = current["stationPW"]
		}
	}
	return c.submit(ctx, PageCredentials, map[string]string{
		"stationID": id,
		"stationPW": password,
	})
}

// StationSettings reads the station and time settings page.
func (c *DeviceClient) StationSettings(ctx context.Context, readable bool) map[string]string {
	return c.fetch(ctx, PageStation, readable)
}

// SetStationSettings writes the station page. WRFreq is never sent; the
// device rejects the form when it is present.
func (c *DeviceClient) SetStationSettings(ctx context.Context, settings map[string]string) error {
	form := make(map[string]string, len(settings))
	for k, v := range settings {
		if k == "WRFreq" {
			continue
		}
		form[k] = v
	}
	return c.submit(ctx, PageStation, form)
}

// LiveData reads the live sensor snapshot. An empty map means no data.
func (c *DeviceClient) LiveData(ctx context.Context) map[string]string {
	return c.fetch(ctx, PageLiveData, false)
}

// Calibration reads the device's calibration constants.
func (c *DeviceClient) Calibration(ctx context.Context) map[string]string {
	return c.fetch(ctx, PageCalibration, false)
}

// SetCalibration bound-checks every value in calib and, only if all pass,
// submits them. A *BoundError is returned before any request is made.
// Submission failures are logged and not returned.
func (c *DeviceClient) SetCalibration(ctx context.Context, calib map[string]string) error {
	if err := CheckCalibration(calib); err != nil {
		return err
	}
	if err := c.submit(ctx, PageCalibration, calib); err != nil {
		c.logger.Errorf("calibration submission failed: %v", err)
	}
	return nil
}

// ResetCalibration restores the factory calibration.
func (c *DeviceClient) ResetCalibration(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scraper.Get(ctx, c.url(PageCalibrationDefault))
}

// Reboot has no HTTP command to send on current firmware; the restart is
// done at the device. With wait set it re-probes and succeeds only when the
// device answers again, replacing the stored probe reply.
func (c *DeviceClient) Reboot(ctx context.Context, wait bool) error {
	c.logger.Info("reboot is not supported by the device web interface")
	if !wait {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.packet = nil
	if err := c.probe(ctx); err != nil {
		return fmt.Errorf("can't find station after reboot: %w", err)
	}
	return nil
}
