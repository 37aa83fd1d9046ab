// Observerip-simulator imitates an ObserverIP base unit: it answers
// discovery probes, serves the settings and live data pages, and can keep a
// transfer file up to date for indirect mode.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/observerip/internal/log"
	"github.com/chrissnell/observerip/internal/observerip"
)

func main() {
	var (
		httpAddr   = flag.String("http", ":80", "Address for the device web interface")
		probePort  = flag.Int("probe-port", observerip.ProbePort, "UDP port to answer discovery probes on")
		deviceIP   = flag.String("ip", "127.0.0.1", "IP address the device reports in probe replies")
		firmware   = flag.String("firmware", observerip.ProfileWH2600USA, "Firmware version string")
		dhcp       = flag.Bool("dhcp", true, "Report a DHCP-assigned address")
		xferFile   = flag.String("xferfile", "", "Transfer file to keep updated (indirect mode)")
		interval   = flag.Duration("interval", 16*time.Second, "Transfer file update interval")
		lowBattery = flag.Bool("low-battery", false, "Report low sensor batteries")
		debug      = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()
	logger := log.Named("simulator")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	emulator := NewWeatherEmulator(time.Now().UnixNano())
	emulator.lowBatt = *lowBattery

	device := NewDevice(observerip.Info{
		DHCP:          *dhcp,
		IPAddr:        *deviceIP,
		StaticIPAddr:  *deviceIP,
		PortA:         80,
		ProbePort:     *probePort,
		ListenPort:    80,
		Netmask:       "255.255.255.0",
		Gateway:       "192.168.1.1",
		DNS:           "192.168.1.1",
		UpdateHost:    "rtupdate.wunderground.com",
		IPAddrUnknown: "0.0.0.0",
		Version:       *firmware,
	}, emulator, logger)

	var wg sync.WaitGroup

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: *probePort})
	if err != nil {
		logger.Fatalf("can't listen for probes on port %d: %v", *probePort, err)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		device.ServeProbes(ctx, conn)
	}()
	logger.Infof("answering probes on udp port %d as %s (%s)", *probePort, *deviceIP, *firmware)

	server := &http.Server{Addr: *httpAddr, Handler: log.HTTPMiddleware(logger)(device.Router())}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Infof("serving device pages on %s", *httpAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("web interface: %v", err)
			cancel()
		}
	}()

	if *xferFile != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			writeTransferFile(ctx, *xferFile, *interval, emulator, *deviceIP, logger)
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	server.Shutdown(shutdownCtx)
	wg.Wait()
}

// writeTransferFile replaces path with a fresh reading every interval. The
// file is written beside path and renamed so readers never see a partial file.
func writeTransferFile(ctx context.Context, path string, interval time.Duration, emulator *WeatherEmulator, deviceIP string, logger *zap.SugaredLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+strconv.Itoa(os.Getpid()))
	for {
		body := formatTransfer(emulator.TransferData(), deviceIP)
		if err := os.WriteFile(tmp, []byte(body), 0644); err != nil {
			logger.Errorf("writing %s: %v", tmp, err)
		} else if err := os.Rename(tmp, path); err != nil {
			logger.Errorf("replacing %s: %v", path, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
