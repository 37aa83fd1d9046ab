// Observerip-cfg inspects and configures an ObserverIP base unit.
//
// It probes the unit over UDP, then reads and writes the settings pages of
// its web interface.
//
// Usage:
//
//	observerip-cfg [command] [flags]
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chrissnell/observerip/internal/log"
	"github.com/chrissnell/observerip/internal/observerip"
)

const version = "1.0"

var (
	host      string
	xferFile  string
	readable  bool
	assumeYes bool
	maxTries  int
	retryWait time.Duration
	debug     bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "observerip-cfg",
	Short: "ObserverIP base unit configuration utility",
	Long: `A utility for inspecting and configuring ObserverIP weather station base units.

The unit is located with a UDP probe: unicast to --host when given, otherwise
to the address recorded in --xferfile, otherwise broadcast on the local network.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return log.Init(debug)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&host, "host", "", "Device hostname or IP address (default: broadcast)")
	pf.StringVar(&xferFile, "xferfile", "", "Transfer file holding an observerip=<ip> line")
	pf.BoolVar(&readable, "readable", false, "Show option labels instead of raw values")
	pf.BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	pf.IntVar(&maxTries, "max-tries", observerip.DefaultMaxTries, "Attempts per device exchange")
	pf.DurationVar(&retryWait, "retry-wait", observerip.DefaultRetryWait, "Wait between attempts")
	pf.BoolVar(&debug, "debug", false, "Turn on debugging output")
}

func logger() *zap.SugaredLogger {
	return log.Named("observerip-cfg")
}

func policy() observerip.RetryPolicy {
	return observerip.RetryPolicy{MaxTries: maxTries, RetryWait: retryWait}
}

// targetHost picks the probe target from the flags.
func targetHost() string {
	if host != "" {
		return host
	}
	if xferFile != "" {
		h, err := observerip.LookupDeviceHost(xferFile)
		if err != nil {
			logger().Warnf("no device address in %s, broadcasting: %v", xferFile, err)
			return ""
		}
		return h
	}
	return ""
}

func dial(ctx context.Context) (*observerip.DeviceClient, error) {
	c, err := observerip.Dial(ctx, targetHost(), policy(), logger())
	if err != nil {
		return nil, fmt.Errorf("can't find an ObserverIP: %w", err)
	}
	return c, nil
}

// printSettings writes settings as key=value lines in key order.
func printSettings(w io.Writer, settings map[string]string) {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s=%s\n", k, settings[k])
	}
}

// confirm asks until the answer is y or n. It returns true at once when
// --yes is set.
func confirm(in io.Reader, out io.Writer, msg string) bool {
	if assumeYes {
		return true
	}

	fmt.Fprintln(out, msg)
	r := bufio.NewReader(in)
	for {
		fmt.Fprintln(out, "This program does not check the validity of every value.")
		fmt.Fprintln(out, "Wrong settings can leave the station unreachable; the web interface is the safer way to change them.")
		fmt.Fprint(out, "Are you sure you wish to proceed (y/n)? ")

		line, err := r.ReadString('\n')
		switch strings.TrimSpace(line) {
		case "y":
			return true
		case "n":
			fmt.Fprintln(out, "Aborting")
			return false
		}
		if err != nil {
			fmt.Fprintln(out, "Aborting")
			return false
		}
	}
}
