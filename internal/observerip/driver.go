package observerip

import (
	"context"
	"fmt"
	"iter"
	"time"

	"go.uber.org/zap"
)

// HardwareName is the name the driver reports to its host.
const HardwareName = "ObserverIP"

// Config is everything the driver needs at construction.
type Config struct {
	// Direct polls the device itself; otherwise readings come from TransferFile.
	Direct bool
	// Host is probed by unicast. Empty means broadcast, or in indirect mode
	// the address recorded in the transfer file.
	Host         string
	PollInterval time.Duration
	DupInterval  time.Duration
	TransferFile string
	Retry        RetryPolicy

	CheckCalibration bool
	// SetCalibration pushes Calibration to the device when it differs.
	SetCalibration bool
	Calibration    map[string]string
	// ExpectedUnits maps station.htm unit settings to the required values.
	// Empty skips the check.
	ExpectedUnits map[string]string
}

// Driver is a validated, ready to poll ObserverIP.
type Driver struct {
	Config  Config
	Mapping *FieldMapping
	// Client is nil in indirect mode without calibration checking.
	Client *DeviceClient
	Poller *Poller

	logger *zap.SugaredLogger
}

// New connects to the device when needed, selects the field mapping and
// runs the startup checks. Any error means the driver must not run.
func New(ctx context.Context, cfg Config, logger *zap.SugaredLogger, opts ...Option) (*Driver, error) {
	o := buildOptions(opts)
	d := &Driver{Config: cfg, logger: logger}

	if cfg.Direct || cfg.CheckCalibration {
		host := cfg.Host
		if !cfg.Direct && host == "" && cfg.TransferFile != "" {
			h, err := LookupDeviceHost(cfg.TransferFile)
			if err != nil {
				logger.Infof("no device address from transfer file, broadcasting: %v", err)
			}
			host = h
		}

		client, err := Dial(ctx, host, cfg.Retry, logger, opts...)
		if err != nil {
			return nil, err
		}
		d.Client = client
	}

	if cfg.Direct {
		version, err := d.Client.Version()
		if err != nil {
			return nil, fmt.Errorf("reading firmware version: %w", err)
		}
		mapping, matched := ProfileForFirmware(version)
		if !matched {
			logger.Infof("unknown firmware version: %s", version)
		}
		d.Mapping = mapping
	} else {
		d.Mapping, _ = Profile(ProfileWU)
	}

	if d.Client != nil && len(cfg.ExpectedUnits) > 0 {
		if err := d.checkUnits(ctx); err != nil {
			return nil, err
		}
	}

	if cfg.CheckCalibration && len(cfg.Calibration) > 0 {
		if err := d.checkCalibration(ctx); err != nil {
			return nil, err
		}
	}

	var source Source
	if cfg.Direct {
		source = NewDirectSource(d.Client, o.now)
	} else {
		fs := NewFileSource(cfg.TransferFile, cfg.Retry, logger)
		fs.Metrics = o.metrics
		source = fs
	}
	d.Poller = NewPoller(source, NewNormalizer(d.Mapping, logger), cfg.Direct, cfg.PollInterval, cfg.DupInterval, logger, opts...)

	logger.Infof("polling interval is %v using profile %s", cfg.PollInterval, d.Mapping.Name)
	return d, nil
}

func (d *Driver) checkUnits(ctx context.Context) error {
	settings := d.Client.StationSettings(ctx, false)
	mismatches := make(map[string][2]string)
	for k, want := range d.Config.ExpectedUnits {
		if have := settings[k]; have != want {
			mismatches[k] = [2]string{want, have}
		}
	}
	if len(mismatches) > 0 {
		return &UnitsMismatchError{Mismatches: mismatches}
	}
	return nil
}

func (d *Driver) checkCalibration(ctx context.Context) error {
	if err := CheckCalibration(d.Config.Calibration); err != nil {
		return err
	}

	diff := DiffCalibration(d.Config.Calibration, d.Client.Calibration(ctx))
	if len(diff) == 0 {
		return nil
	}
	if !d.Config.SetCalibration {
		return &CalibrationMismatchError{Mismatches: diff}
	}

	d.logger.Infof("station calibration differs in %d keys, correcting", len(diff))
	if err := d.Client.SetCalibration(ctx, d.Config.Calibration); err != nil {
		return err
	}
	if diff := DiffCalibration(d.Config.Calibration, d.Client.Calibration(ctx)); len(diff) > 0 {
		return &CalibrationMismatchError{Mismatches: diff, Corrected: true}
	}
	return nil
}

// Packets is the driver's packet stream. Stop ranging over it, or cancel
// ctx, to stop polling.
func (d *Driver) Packets(ctx context.Context) iter.Seq[Packet] {
	return d.Poller.Packets(ctx)
}
